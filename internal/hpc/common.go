// Package hpc adapts JADE's batch submission to a concrete HPC scheduler.
// Grounded on _examples/original_source/jade/hpc/{hpc_manager_interface,
// slurm_manager,fake_manager,local_manager,common}.py.
package hpc

import "github.com/NREL/jade/internal/model"

// JobStatus is the scheduler-reported state of a submitted batch.
type JobStatus string

const (
	StatusNone    JobStatus = "none"
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "complete"
	StatusUnknown JobStatus = "unknown"
)

// JobInfo is the result of a single-job status check.
type JobInfo struct {
	HpcJobID string
	Name     string
	Status   JobStatus
}

// Adapter is implemented once per scheduler backend (Slurm, a local
// subprocess runner, or a fake used in tests). A SubmissionGroup's
// HpcConfig.HpcType selects which Adapter handles its batches.
type Adapter interface {
	// Submit renders a scheduler submission script wrapping runScript and
	// hands it off, returning the scheduler's job id.
	Submit(batch model.BatchSpec, group model.SubmissionGroup, runScript string, outputDir string) (hpcJobID string, err error)

	// Cancel asks the scheduler to stop a previously submitted job.
	Cancel(hpcJobID string) error

	// CheckStatus returns the current state of one job.
	CheckStatus(hpcJobID string) (JobInfo, error)

	// CheckStatuses returns the current state of every job this adapter's
	// user has queued, keyed by hpc job id. Implementations that cannot
	// enumerate cheaply may return an empty map and rely on CheckStatus.
	CheckStatuses() (map[string]JobStatus, error)

	// ListActiveNodes returns the hostnames participating in hpcJobID.
	ListActiveNodes(hpcJobID string) ([]string, error)

	// NumCPUs returns the CPU count of the node this process runs on,
	// used to resolve SubmissionGroup.ResolvedParallelism.
	NumCPUs() int
}
