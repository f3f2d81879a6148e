package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/NREL/jade/internal/batch"
	"github.com/NREL/jade/internal/common/config"
	"github.com/NREL/jade/internal/loop"
)

// submitJobsCmd mirrors submit_jobs.py: validate the configuration, lay
// down the output directory's fixed files (the run's own copy of the
// configuration and an empty results.csv), and perform the first
// submission pass. Grounded on
// _examples/original_source/jade/cli/submit_jobs.py.
func submitJobsCmd() *cobra.Command {
	var (
		output  string
		local   bool
		verbose bool
	)

	c := &cobra.Command{
		Use:   "submit-jobs CONFIG_FILE",
		Short: "Submit jobs to run on the configured HPC scheduler.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(args[0])
			if err != nil {
				return err
			}
			if err := batch.Validate(cfg); err != nil {
				return err
			}
			if local {
				forceLocal(cfg)
			}

			if err := ensureOutputDir(output); err != nil {
				return err
			}
			log, err := setUpLogging(output, "submit_jobs.log", verbose)
			if err != nil {
				return err
			}

			if err := config.WriteJSON(outputConfigPath(output), cfg, "  "); err != nil {
				return fmt.Errorf("writing run configuration: %w", err)
			}
			if err := newResultsFile(output).Create(); err != nil {
				return fmt.Errorf("creating results file: %w", err)
			}

			if cfg.SetupCommand != "" {
				setup := exec.Command("sh", "-c", cfg.SetupCommand)
				setup.Dir = output
				if err := setup.Run(); err != nil {
					return fmt.Errorf("setup command failed: %w", err)
				}
			}

			store := newClusterStore(output, log)
			if err := store.Create(configID(cfg)); err != nil {
				return fmt.Errorf("creating cluster state: %w", err)
			}

			adapters, err := buildAdapters(cfg, log)
			if err != nil {
				return err
			}

			l := loop.New(cfg, store, newResultsFile(output), adapters, output, outputConfigPath(output), log)
			summary, err := l.RunIteration()
			if err != nil {
				return err
			}
			log.Infof("submitted %d jobs", summary.NumSubmitted)
			if summary.IsComplete {
				log.Info("all jobs are already finished")
			} else {
				log.Infof("jobs are in progress; run 'jade try-submit-jobs %s' to continue submission", output)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "output", "Output directory.")
	c.Flags().BoolVarP(&local, "local", "l", false, "Run locally even if the configuration targets an HPC scheduler.")
	c.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose log output.")
	return c
}
