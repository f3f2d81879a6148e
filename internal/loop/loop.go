// Package loop drives the distributed submitter: any node may run an
// iteration, and the cluster lock (internal/cluster) serializes whichever
// ones overlap, so there is no separate leader-election mechanism and no
// daemon. Grounded on _examples/original_source/jade/hpc/hpc_submitter.py's
// HpcSubmitter.run, simplified per the decision to coordinate purely
// through the shared locked document rather than a leader process.
package loop

import (
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/aggregate"
	"github.com/NREL/jade/internal/batch"
	"github.com/NREL/jade/internal/cluster"
	"github.com/NREL/jade/internal/hpc"
	"github.com/NREL/jade/internal/model"
	"github.com/NREL/jade/internal/submit"
)

// Loop runs one or more submission iterations against a shared cluster
// state document.
type Loop struct {
	cfg        *model.Configuration
	store      *cluster.Store
	results    *aggregate.ResultsFile
	adapters   map[model.HpcType]hpc.Adapter
	outputDir  string
	configFile string
	log        *logrus.Entry
}

func New(cfg *model.Configuration, store *cluster.Store, results *aggregate.ResultsFile, adapters map[model.HpcType]hpc.Adapter, outputDir, configFile string, log *logrus.Entry) *Loop {
	return &Loop{cfg: cfg, store: store, results: results, adapters: adapters, outputDir: outputDir, configFile: configFile, log: log}
}

// IterationSummary reports what one iteration accomplished, for logging
// and for deciding whether the caller should keep polling.
type IterationSummary struct {
	NumSubmitted int
	NumCompleted int
	NumCanceled  int
	NumMissing   int
	IsComplete   bool
}

// RunIteration performs one submit/update cycle under the cluster lock,
// mirroring hpc_submitter.py's HpcSubmitter.run body: absorb newly
// completed results (cascading cancellation to any dependent configured
// with cancel_on_blocking_job_failure), synthesize missing rows for any
// batch the scheduler no longer reports as running but which never fully
// reported in, then submit as many new batches as capacity allows, and
// finally trigger report generation + the run teardown command the first
// time every job reaches a terminal state.
func (l *Loop) RunIteration() (IterationSummary, error) {
	var summary IterationSummary
	err := l.store.WithLock(func(state *model.ClusterState) error {
		newlyCompleted, canceled, err := l.absorbResults(state)
		if err != nil {
			return err
		}
		summary.NumCompleted = newlyCompleted
		summary.NumCanceled = canceled

		numMissing, err := l.detectMissingJobs(state)
		if err != nil {
			return err
		}
		summary.NumMissing = numMissing
		if numMissing > 0 {
			finalizeDoneBatches(state)
		}

		if !state.Canceled {
			submitter := submit.New(l.cfg, l.adapters, l.outputDir, l.configFile, l.log)
			numSubmitted, err := submitter.Run(state)
			if err != nil {
				return err
			}
			summary.NumSubmitted = numSubmitted
		}

		allIDs := make([]int, len(l.cfg.Jobs))
		for i, j := range l.cfg.Jobs {
			allIDs[i] = j.ID
		}
		if !state.IsComplete && state.AllComplete(allIDs) {
			if err := l.finalize(state); err != nil {
				return err
			}
			state.IsComplete = true
		}
		summary.IsComplete = state.IsComplete
		return nil
	})
	return summary, err
}

// detectMissingJobs checks every non-finalized ActiveBatch's scheduler
// status and, for one no longer reported as queued or running, synthesizes
// a "missing" result for any of its jobs that never reported in on its
// own: the node that would have run them died (walltime kill outside
// JobRunner's own grace period, OOM, hardware failure) before they could
// write a result row. Mirrors spec §4.4's "update active_batches" step and
// §7's handling of jobs missing from completed_results. While a batch is
// still running, this also refreshes its NodeNames from
// HpcAdapter.ListActiveNodes.
func (l *Loop) detectMissingJobs(state *model.ClusterState) (int, error) {
	numMissing := 0
	statusCache := map[model.HpcType]map[string]hpc.JobStatus{}

	for batchID, active := range state.ActiveBatches {
		if active.State == model.BatchFinalized {
			continue
		}
		if state.AllComplete(active.JobIDs) {
			continue
		}

		group := l.cfg.GroupByName(active.SubmissionGroup)
		if group == nil {
			l.log.Warnf("active batch references unknown submission group %q", active.SubmissionGroup)
			continue
		}
		adapter, ok := l.adapters[group.HpcConfig.HpcType]
		if !ok {
			return numMissing, fmt.Errorf("no hpc adapter configured for type %q", group.HpcConfig.HpcType)
		}

		status, err := statusOf(adapter, group.HpcConfig.HpcType, active.HpcJobID, statusCache)
		if err != nil {
			return numMissing, fmt.Errorf("checking status of hpc job %s: %w", active.HpcJobID, err)
		}
		if status == hpc.StatusQueued || status == hpc.StatusRunning {
			active.State = model.BatchRunning
			if nodes, err := adapter.ListActiveNodes(active.HpcJobID); err == nil && len(nodes) > 0 {
				active.NodeNames = nodes
			}
			continue
		}

		for _, jobID := range active.JobIDs {
			if _, ok := state.CompletedResultByJobID(jobID); ok {
				continue
			}
			state.CompletedResults = append(state.CompletedResults, model.JobResult{
				Name: displayName(l.cfg.JobByID(jobID), jobID), JobID: jobID,
				ReturnCode: 1, Status: model.StatusMissing, BatchID: batchID,
				HpcJobID: active.HpcJobID, CompletionTime: time.Now().UTC(),
			})
			numMissing++
			l.log.Warnf("job %d never reported a result; hpc job %s ended in state %q", jobID, active.HpcJobID, status)
		}
	}
	return numMissing, nil
}

// statusOf prefers the adapter's bulk CheckStatuses (one scheduler call
// covers every active batch under this HpcType) and falls back to a
// per-job CheckStatus call when the bulk map doesn't mention hpcJobID,
// matching Adapter.CheckStatuses' own documented contract: "implementations
// that cannot enumerate cheaply may return an empty map and rely on
// CheckStatus". The bulk result is cached per HpcType for the duration of
// one detectMissingJobs pass.
func statusOf(adapter hpc.Adapter, hpcType model.HpcType, hpcJobID string, cache map[model.HpcType]map[string]hpc.JobStatus) (hpc.JobStatus, error) {
	statuses, ok := cache[hpcType]
	if !ok {
		var err error
		statuses, err = adapter.CheckStatuses()
		if err != nil {
			return "", err
		}
		cache[hpcType] = statuses
	}
	if status, ok := statuses[hpcJobID]; ok {
		return status, nil
	}
	info, err := adapter.CheckStatus(hpcJobID)
	if err != nil {
		return "", err
	}
	return info.Status, nil
}

func displayName(job *model.Job, id int) string {
	if job != nil {
		return job.DisplayName()
	}
	return strconv.Itoa(id)
}

// finalize runs once, the iteration that observes every job has reached a
// terminal state: it writes results.txt/errors.txt from the full result
// set and, if configured, runs the run-wide teardown command. Mirrors
// spec §4.4's "trigger ResultAggregator.finalize(); if teardown_command is
// set, run it".
func (l *Loop) finalize(state *model.ClusterState) error {
	if l.cfg.GenerateReports {
		if err := aggregate.Finalize(l.outputDir, state.CompletedResults); err != nil {
			return fmt.Errorf("generating completion reports: %w", err)
		}
	}
	if l.cfg.TeardownCommand != "" {
		cmd := exec.Command("sh", "-c", l.cfg.TeardownCommand)
		cmd.Dir = l.outputDir
		if err := cmd.Run(); err != nil {
			l.log.Errorf("teardown command failed: %s", err)
		}
	}
	return nil
}

// absorbResults pulls newly appended rows out of the results file and
// folds them into state.CompletedResults, cascading cancellation to any
// not-yet-submitted job whose blocker just failed and which opted into
// cancel_on_blocking_job_failure. Mirrors hpc_submitter.py's
// _update_completed_jobs, including its "may need several passes" loop for
// chains of cancellations.
func (l *Loop) absorbResults(state *model.ClusterState) (numCompleted int, numCanceled int, err error) {
	rows, err := l.results.ReadAll()
	if err != nil {
		return 0, 0, fmt.Errorf("reading results: %w", err)
	}

	known := map[int]bool{}
	for _, r := range state.CompletedResults {
		known[r.JobID] = true
	}

	var newResults []model.JobResult
	for _, r := range rows {
		if !known[r.JobID] {
			newResults = append(newResults, r)
			known[r.JobID] = true
		}
	}

	needRerun := len(newResults) > 0
	for needRerun {
		needRerun = false
		failed := map[int]bool{}
		for _, r := range newResults {
			if r.ReturnCode != 0 {
				failed[r.JobID] = true
			}
		}
		for i := range l.cfg.Jobs {
			job := &l.cfg.Jobs[i]
			if state.IsSubmitted(job.ID) || known[job.ID] {
				continue
			}
			if !job.CancelOnBlockingJobFailure {
				continue
			}
			for _, b := range job.BlockedBy {
				if failed[b] {
					canceledResult := model.JobResult{
						Name: job.DisplayName(), JobID: job.ID, ReturnCode: 1,
						Status: model.StatusCanceled, BatchID: -1,
					}
					newResults = append(newResults, canceledResult)
					known[job.ID] = true
					numCanceled++
					needRerun = true
					break
				}
			}
		}
	}

	state.CompletedResults = append(state.CompletedResults, newResults...)
	numCompleted = len(newResults) - numCanceled
	finalizeDoneBatches(state)
	return numCompleted, numCanceled, nil
}

// finalizeDoneBatches marks every ActiveBatch whose jobs have all reached
// a terminal state as finalized, freeing its node allocation slot for
// Submitter.Run's max_nodes accounting.
func finalizeDoneBatches(state *model.ClusterState) {
	for _, active := range state.ActiveBatches {
		if active.State == model.BatchFinalized {
			continue
		}
		if state.AllComplete(active.JobIDs) {
			active.State = model.BatchFinalized
		}
	}
}

// ValidateBeforeRun runs the static configuration checks that must pass
// before any batch is ever formed.
func ValidateBeforeRun(cfg *model.Configuration) error {
	return batch.Validate(cfg)
}
