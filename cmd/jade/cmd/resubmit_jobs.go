package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NREL/jade/internal/model"
)

// resubmitJobsCmd mirrors resubmit_jobs.py: once a run has gone to
// completion, drop the failed/canceled/missing jobs' results and
// submitted-state so the next try-submit-jobs picks them back up as if
// they were never run.
func resubmitJobsCmd() *cobra.Command {
	var (
		failed  bool
		missing bool
		verbose bool
	)

	c := &cobra.Command{
		Use:   "resubmit-jobs OUTPUT",
		Short: "Resubmit failed and missing jobs from a completed run.",
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
			allJobIDs := map[int]bool{}
			for _, j := range cfg.Jobs {
				allJobIDs[j.ID] = true
			}

			store := newClusterStore(output, log)
			var numResubmitted int
			err = store.WithLock(func(state *model.ClusterState) error {
				if !state.IsComplete {
					return fmt.Errorf("resubmit-jobs requires that the existing submission be complete")
				}

				seen := map[int]bool{}
				var keep []model.JobResult
				for _, r := range state.CompletedResults {
					seen[r.JobID] = true
					isUnsuccessful := r.ReturnCode != 0 || r.Status == model.StatusCanceled
					isMissing := r.Status == model.StatusMissing
					if (isUnsuccessful && failed) || (isMissing && missing) {
						delete(state.SubmittedJobs, r.JobID)
						numResubmitted++
						continue
					}
					keep = append(keep, r)
				}
				state.CompletedResults = keep

				if missing {
					for id := range allJobIDs {
						if !seen[id] {
							delete(state.SubmittedJobs, id)
							numResubmitted++
						}
					}
				}

				if numResubmitted > 0 {
					state.IsComplete = false
					state.Canceled = false
				}
				return nil
			})
			if err != nil {
				return err
			}

			log.Infof("queued %d jobs for resubmission", numResubmitted)
			fmt.Printf("Run 'jade try-submit-jobs %s' to resubmit.\n", output)
			return nil
		},
	}

	c.Flags().BoolVar(&failed, "failed", true, "Resubmit failed and canceled jobs.")
	c.Flags().BoolVar(&missing, "missing", true, "Resubmit missing jobs.")
	c.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose log output.")
	return c
}
