// Package batch packs a submission group's ready jobs into HPC batches.
// Grounded on _examples/original_source/jade/hpc/hpc_submitter.py's
// _BatchJobs / _make_batch / _get_available_jobs(_by_time).
package batch

import (
	"sort"
	"time"

	"github.com/NREL/jade/internal/model"
)

// Plan is the output of packing one submission group's ready jobs: zero or
// more batches, plus jobs that remain blocked on something outside the
// batch (and so were left for a later round).
type Plan struct {
	Batches     [][]model.Job
	BlockedJobs []model.Job
}

// accumulator tracks one in-progress batch while packing, mirroring
// _BatchJobs.
type accumulator struct {
	group             *model.SubmissionGroup
	jobs              []model.Job
	names             map[string]bool
	estimatedDuration time.Duration
	maxDuration       time.Duration
	readyToSubmit     bool
}

func newAccumulator(group *model.SubmissionGroup, numCPU int) *accumulator {
	a := &accumulator{group: group, names: map[string]bool{}}
	if group.TimeBasedBatching {
		walltime := parseWalltimeOrZero(group.HpcConfig.Walltime)
		safety := time.Duration(model.SafetyMarginMinutes) * time.Minute
		perProcess := walltime - safety
		if perProcess < 0 {
			perProcess = 0
		}
		a.maxDuration = perProcess * time.Duration(group.ResolvedParallelism(numCPU))
	}
	return a
}

// tryAppend attempts to add job to the batch. It returns false, without
// mutating state, when appending would exceed the time budget (time-based
// batching only) — the caller should start a new batch. Assumes jobs are
// presented in ascending EstimatedRunMinutes order when time-based batching
// is enabled, same assumption _BatchJobs.try_append makes.
func (a *accumulator) tryAppend(job model.Job) bool {
	if a.group.TimeBasedBatching {
		minutes := 0
		if job.EstimatedRunMinutes != nil {
			minutes = *job.EstimatedRunMinutes
		}
		jobDuration := time.Duration(minutes) * time.Minute
		if a.estimatedDuration+jobDuration > a.maxDuration {
			a.readyToSubmit = true
			return false
		}
		a.jobs = append(a.jobs, job)
		a.names[job.DisplayName()] = true
		a.estimatedDuration += jobDuration
		return true
	}

	a.jobs = append(a.jobs, job)
	a.names[job.DisplayName()] = true
	if len(a.jobs) >= a.group.PerNodeBatchSize {
		a.readyToSubmit = true
	}
	return true
}

// blockingJobsPresent reports whether every name in blockedBy is already in
// this batch, mirroring _BatchJobs.are_blocking_jobs_present.
func (a *accumulator) blockingJobsPresent(blockedBy []int, cfg *model.Configuration) bool {
	for _, id := range blockedBy {
		blocker := cfg.JobByID(id)
		if blocker == nil || !a.names[blocker.DisplayName()] {
			return false
		}
	}
	return true
}

// isBlocked reports whether job cannot be added to this batch right now,
// mirroring _BatchJobs.is_job_blocked.
func (a *accumulator) isBlocked(job model.Job, cfg *model.Configuration) bool {
	if len(job.BlockedBy) == 0 {
		return false
	}
	if a.group.TryAddBlockedJobs && a.blockingJobsPresent(job.BlockedBy, cfg) {
		// The worker pool orders execution within the batch; the blocker
		// just needs to be present, not already complete.
		return false
	}
	return true
}

// Pack forms as many batches as fit from availableJobs for one submission
// group, mirroring hpc_submitter.py's _submit_batches loop: keep forming
// batches from the same pool of ready jobs until the pool is exhausted.
// availableJobs must already be sorted by EstimatedRunMinutes when
// group.TimeBasedBatching is set (see SortByEstimatedRunMinutes).
func Pack(cfg *model.Configuration, group *model.SubmissionGroup, availableJobs []model.Job, numCPU int, maxBatches int) Plan {
	var plan Plan
	remaining := availableJobs

	for len(remaining) > 0 && (maxBatches <= 0 || len(plan.Batches) < maxBatches) {
		batchJobs, blocked, rest := packOneBatch(cfg, group, remaining, numCPU)
		plan.BlockedJobs = append(plan.BlockedJobs, blocked...)
		remaining = rest
		if len(batchJobs) > 0 {
			plan.Batches = append(plan.Batches, batchJobs)
		} else {
			break
		}
	}
	return plan
}

// packOneBatch mirrors hpc_submitter.py's _make_batch: walk the available
// jobs (optionally making multiple passes when try_add_blocked_jobs allows
// out-of-order listings), packing everything that fits, until the batch
// signals it's full or every job has been placed or deferred.
func packOneBatch(cfg *model.Configuration, group *model.SubmissionGroup, availableJobs []model.Job, numCPU int) (batchJobs []model.Job, blockedJobs []model.Job, notChecked []model.Job) {
	acc := newAccumulator(group, numCPU)
	blockedByName := map[string]model.Job{}
	submittedByName := map[string]bool{}

	maxIterations := 1
	if group.TryAddBlockedJobs {
		maxIterations = len(availableJobs)
	}

	highestIndex := -1
	done := false
	for iter := 0; iter < maxIterations && !done; iter++ {
		for i, job := range availableJobs {
			if i > highestIndex {
				highestIndex = i
			}
			if submittedByName[job.DisplayName()] {
				continue
			}
			if acc.isBlocked(job, cfg) {
				blockedByName[job.DisplayName()] = job
				continue
			}
			if acc.tryAppend(job) {
				submittedByName[job.DisplayName()] = true
				delete(blockedByName, job.DisplayName())
			} else {
				highestIndex--
			}
			if acc.readyToSubmit || len(submittedByName) == len(availableJobs) {
				done = true
				break
			}
		}
	}

	for _, job := range blockedByName {
		blockedJobs = append(blockedJobs, job)
	}
	if highestIndex == len(availableJobs)-1 {
		notChecked = nil
	} else {
		notChecked = availableJobs[highestIndex+1:]
	}
	return acc.jobs, blockedJobs, notChecked
}

// SortByEstimatedRunMinutes orders jobs ascending by EstimatedRunMinutes
// (nil treated as zero), required before Pack when a group uses time-based
// batching. Mirrors hpc_submitter.py's _get_available_jobs_by_time.
func SortByEstimatedRunMinutes(jobs []model.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return estimatedMinutes(jobs[i]) < estimatedMinutes(jobs[j])
	})
}

func estimatedMinutes(j model.Job) int {
	if j.EstimatedRunMinutes == nil {
		return 0
	}
	return *j.EstimatedRunMinutes
}

// parseWalltimeOrZero parses a Slurm walltime string (D-HH:MM:SS, HH:MM:SS,
// or MM:SS) into a duration, returning zero on a format it doesn't
// recognize rather than failing batch packing.
func parseWalltimeOrZero(walltime string) time.Duration {
	d, err := ParseWalltime(walltime)
	if err != nil {
		return 0
	}
	return d
}
