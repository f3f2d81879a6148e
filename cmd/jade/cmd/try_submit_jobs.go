package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NREL/jade/internal/common/jadeerrors"
	"github.com/NREL/jade/internal/loop"
)

// trySubmitJobsCmd mirrors try_submit_jobs.py: make one non-blocking
// attempt to advance an existing run. If another process already holds
// the cluster lock this exits quietly rather than waiting, since it's
// meant to be invoked opportunistically (from run-jobs, from a cron, from
// cancel-jobs) without piling up waiters.
func trySubmitJobsCmd() *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "try-submit-jobs OUTPUT",
		Short: "Make one non-blocking attempt to submit the next ready batches of an existing run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			output := args[0]
			log, err := setUpLogging(output, "submit_jobs.log", verbose)
			if err != nil {
				return err
			}

			cfg, err := loadConfiguration(outputConfigPath(output))
			if err != nil {
				return err
			}

			store := newClusterStoreWithTimeout(output, tryLockTimeout, log)

			adapters, err := buildAdapters(cfg, log)
			if err != nil {
				return err
			}

			l := loop.New(cfg, store, newResultsFile(output), adapters, output, outputConfigPath(output), log)
			summary, err := l.RunIteration()
			if err != nil {
				var lockErr *jadeerrors.ErrLockTimeout
				if errors.As(err, &lockErr) {
					fmt.Println("Another node is already the submitter.")
					return nil
				}
				return err
			}

			if summary.IsComplete {
				log.Info("all jobs are already finished")
				return nil
			}
			fmt.Printf("Jobs are in progress. Check %s for progress, or rerun try-submit-jobs.\n", outputResultsPath(output))
			return nil
		},
	}

	c.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose log output.")
	return c
}
