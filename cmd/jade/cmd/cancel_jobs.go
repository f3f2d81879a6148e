package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NREL/jade/internal/cancel"
)

// cancelJobsCmd mirrors cancel_jobs.py: mark the run canceled and tear
// down every batch still active on the scheduler, then make one more
// submission pass to let the run settle into its final state. It does not
// wait for the nodes to unwind first.
func cancelJobsCmd() *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "cancel-jobs OUTPUT",
		Short: "Cancel all unfinished jobs in a run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			output := args[0]
			log, err := setUpLogging(output, "cancel_jobs.log", verbose)
			if err != nil {
				return err
			}

			cfg, err := loadConfiguration(outputConfigPath(output))
			if err != nil {
				return err
			}
			adapters, err := buildAdapters(cfg, log)
			if err != nil {
				return err
			}

			store := newClusterStore(output, log)
			canceller := cancel.New(store, adapters, cfg, log)
			result, err := canceller.Run()
			if err != nil {
				return err
			}

			if result.AlreadyComplete {
				fmt.Println("All jobs are already finished.")
				return nil
			}
			log.Infof("canceled %d active batches", result.NumBatchesKilled)
			tryResubmit(output)
			return nil
		},
	}

	c.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose log output.")
	return c
}
