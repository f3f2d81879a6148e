package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/NREL/jade/internal/common/apprun"
	"github.com/NREL/jade/internal/common/config"
	"github.com/NREL/jade/internal/common/jadecontext"
	"github.com/NREL/jade/internal/model"
	"github.com/NREL/jade/internal/worker"
)

var batchDirPattern = regexp.MustCompile(`batch_(\d+)$`)

// runJobsCmd mirrors run_jobs.py: it's the command the scheduler actually
// invokes on a compute node, pointed at the batch-scoped config.json a
// Submitter wrote alongside the run script. Grounded on
// _examples/original_source/jade/cli/run_jobs.py, including its "try to
// submit more jobs before and after running this batch" behavior for
// non-local HPC types.
func runJobsCmd() *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "run-jobs BATCH_CONFIG_FILE",
		Short: "Runs one batch's jobs on the current node.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			configFile := args[0]
			batchID, err := parseBatchID(configFile)
			if err != nil {
				return err
			}

			var batchCfg model.Configuration
			if err := config.LoadJSON(configFile, &batchCfg); err != nil {
				return err
			}
			if len(batchCfg.SubmissionGroups) != 1 {
				return fmt.Errorf("batch config must have exactly one submission group, got %d", len(batchCfg.SubmissionGroups))
			}
			group := &batchCfg.SubmissionGroups[0]

			output := filepath.Dir(filepath.Dir(configFile))
			log, err := setUpLogging(output, fmt.Sprintf("run_jobs_batch_%d.log", batchID), verbose)
			if err != nil {
				return err
			}

			isLocal := group.HpcConfig.HpcType == model.HpcTypeLocal
			if !isLocal {
				tryResubmit(output)
			}

			state, err := newClusterStore(output, log).Load()
			if err != nil {
				return err
			}
			priorCompleted := map[int]bool{}
			for _, r := range state.CompletedResults {
				priorCompleted[r.JobID] = true
			}

			results := newResultsFile(output)
			var nodeNames []string
			if active, ok := state.ActiveBatches[batchID]; ok {
				nodeNames = active.NodeNames
			}
			pool := worker.New(group, filepath.Dir(configFile), output, batchID, nodeNames, log)
			isCanceled := func() bool {
				s, err := newClusterStore(output, log).Load()
				return err == nil && s.Canceled
			}

			ctx := jadecontext.New(apprun.WithShutdownSignal(), log)
			jobResults := pool.RunBatch(ctx, batchCfg.Jobs, priorCompleted, isCanceled)

			failed := 0
			for _, r := range jobResults {
				if err := results.Append(r); err != nil {
					log.Errorf("failed to record result for job %d: %s", r.JobID, err)
				}
				if r.ReturnCode != 0 {
					failed++
				}
			}
			log.Infof("batch %d finished: %d jobs, %d failed", batchID, len(jobResults), failed)

			if !isLocal {
				tryResubmit(output)
			}
			if failed > 0 {
				return fmt.Errorf("%d jobs failed in batch %d", failed, batchID)
			}
			return nil
		},
	}

	c.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose log output.")
	return c
}

func parseBatchID(configFile string) (int, error) {
	match := batchDirPattern.FindStringSubmatch(filepath.Dir(configFile))
	if match == nil {
		return 0, fmt.Errorf("could not parse batch id from %s", configFile)
	}
	return strconv.Atoi(match[1])
}

// tryResubmit shells out to this same binary's try-submit-jobs subcommand
// so submission advances even while this batch's jobs are still running,
// the way run_jobs.py's _try_submit_jobs does via run_command.
func tryResubmit(output string) {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	cmd := exec.Command(exe, "try-submit-jobs", output)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	_ = cmd.Run()
}
