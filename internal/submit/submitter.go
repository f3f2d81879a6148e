// Package submit forms and submits HPC batches for a configuration's
// submission groups, with retried scheduler calls. Grounded on
// _examples/original_source/jade/hpc/hpc_submitter.py's HpcSubmitter.run
// and _submit_batches.
package submit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/batch"
	"github.com/NREL/jade/internal/common/config"
	"github.com/NREL/jade/internal/hpc"
	"github.com/NREL/jade/internal/model"
)

// Submitter forms batches from a Configuration's ready jobs and hands them
// to the scheduler, one submission group at a time.
type Submitter struct {
	cfg        *model.Configuration
	adapters   map[model.HpcType]hpc.Adapter
	outputDir  string
	configFile string
	log        *logrus.Entry
}

func New(cfg *model.Configuration, adapters map[model.HpcType]hpc.Adapter, outputDir, configFile string, log *logrus.Entry) *Submitter {
	return &Submitter{cfg: cfg, adapters: adapters, outputDir: outputDir, configFile: configFile, log: log}
}

// Run mutates state in place: it forms and submits as many batches as
// max_nodes allows across every submission group, and records them as
// active. Returns the number of jobs newly submitted.
func (s *Submitter) Run(state *model.ClusterState) (int, error) {
	maxNodes := resolveMaxNodes(s.cfg.SubmissionGroups)
	outstanding := countOutstanding(state)
	numSubmitted := 0

	for i := range s.cfg.SubmissionGroups {
		group := &s.cfg.SubmissionGroups[i]
		if outstanding >= maxNodes {
			break
		}

		available := batch.AvailableJobs(s.cfg, state, group)
		if group.TimeBasedBatching {
			batch.SortByEstimatedRunMinutes(available)
		}

		adapter, ok := s.adapters[group.HpcConfig.HpcType]
		if !ok {
			return numSubmitted, fmt.Errorf("no hpc adapter configured for type %q", group.HpcConfig.HpcType)
		}

		plan := batch.Pack(s.cfg, group, available, adapterNumCPUs(adapter), maxNodes-outstanding)
		for _, jobs := range plan.Batches {
			batchID := state.AllocateBatchID()
			if err := s.submitOne(state, adapter, group, batchID, jobs); err != nil {
				return numSubmitted, fmt.Errorf("submitting batch %d: %w", batchID, err)
			}
			outstanding++
			numSubmitted += len(jobs)
			if outstanding >= maxNodes {
				break
			}
		}
	}
	return numSubmitted, nil
}

func (s *Submitter) submitOne(state *model.ClusterState, adapter hpc.Adapter, group *model.SubmissionGroup, batchID int, jobs []model.Job) error {
	batchDir := filepath.Join(s.outputDir, "batch_"+strconv.Itoa(batchID))
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		return fmt.Errorf("creating batch directory: %w", err)
	}

	jobIDs := make([]int, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
	}

	batchConfigFile := filepath.Join(batchDir, "config.json")
	batchCfg := model.Configuration{
		Jobs:             jobs,
		SubmissionGroups: []model.SubmissionGroup{*group},
	}
	if err := config.WriteJSON(batchConfigFile, &batchCfg, "  "); err != nil {
		return fmt.Errorf("writing batch config: %w", err)
	}

	spec := model.BatchSpec{
		BatchID:         batchID,
		JobIDs:          jobIDs,
		SubmissionGroup: group.Name,
		ConfigFilePath:  batchConfigFile,
	}

	runScript := filepath.Join(batchDir, "run.sh")
	if err := writeRunScript(runScript, batchConfigFile, batchDir); err != nil {
		return err
	}

	var hpcJobID string
	err := retry.Do(
		func() error {
			id, err := adapter.Submit(spec, *group, runScript, batchDir)
			if err != nil {
				return err
			}
			hpcJobID = id
			return nil
		},
		retryAttempts(group.HpcConfig.RetryAttempts),
		retry.Delay(retryDelay(group.HpcConfig.RetryBaseDelaySeconds)),
		retry.DelayType(retry.BackOffDelay),
	)
	if err != nil {
		return fmt.Errorf("hpc submission failed for batch %d: %w", batchID, err)
	}

	state.ActiveBatches[batchID] = &model.ActiveBatch{
		HpcJobID:        hpcJobID,
		SubmissionGroup: group.Name,
		JobIDs:          jobIDs,
		State:           model.BatchSubmitted,
	}
	for _, id := range jobIDs {
		state.SubmittedJobs[id] = true
	}
	s.log.Infof("submitted batch %d (%d jobs) as hpc job %s", batchID, len(jobIDs), hpcJobID)
	return nil
}

func writeRunScript(path, configFile, outputDir string) error {
	script := "#!/bin/bash\n" +
		"jade run-jobs " + configFile + "\n"
	return os.WriteFile(path, []byte(script), 0o755)
}

// countOutstanding returns the number of ActiveBatches that have not yet
// been finalized, i.e. still occupy a node allocation slot.
func countOutstanding(state *model.ClusterState) int {
	n := 0
	for _, active := range state.ActiveBatches {
		if active.State != model.BatchFinalized {
			n++
		}
	}
	return n
}

func resolveMaxNodes(groups []model.SubmissionGroup) int {
	if len(groups) == 0 {
		return 1
	}
	if groups[0].MaxNodes > 0 {
		return groups[0].MaxNodes
	}
	return 1 << 30 // effectively unbounded, matching sys.maxsize's role
}

func retryAttempts(configured int) retry.Option {
	if configured > 0 {
		return retry.Attempts(uint(configured))
	}
	return retry.Attempts(3)
}

func retryDelay(configuredSeconds int) time.Duration {
	if configuredSeconds > 0 {
		return time.Duration(configuredSeconds) * time.Second
	}
	return time.Second
}

func adapterNumCPUs(adapter hpc.Adapter) int {
	if n := adapter.NumCPUs(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
