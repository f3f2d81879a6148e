package model

// BatchRunState is the lifecycle stage of an entry in ClusterState's
// ActiveBatches map: formed → submitted-to-HPC → running-on-node →
// finalized.
type BatchRunState string

const (
	BatchFormed    BatchRunState = "formed"
	BatchSubmitted BatchRunState = "submitted"
	BatchRunning   BatchRunState = "running"
	BatchFinalized BatchRunState = "finalized"
)

// ActiveBatch is one entry of ClusterState.ActiveBatches.
type ActiveBatch struct {
	HpcJobID        string        `json:"hpc_job_id,omitempty"`
	NodeNames       []string      `json:"node_names,omitempty"`
	SubmissionGroup string        `json:"submission_group"`
	JobIDs          []int         `json:"job_ids"`
	State           BatchRunState `json:"state"`
}

// ClusterState is the single shared document coordinating every submitter
// and worker operating on a Configuration, grounded on
// _examples/original_source/jade/jobs/cluster.py's ClusterConfig +
// JobStatuses (kept as one merged document here rather than two files).
type ClusterState struct {
	ConfigID string `json:"config_id"`

	// SubmittedJobs tracks every Job.ID placed into a submitted batch,
	// whether or not it has completed yet.
	SubmittedJobs map[int]bool `json:"submitted_jobs"`

	CompletedResults []JobResult `json:"completed_results"`

	ActiveBatches map[int]*ActiveBatch `json:"active_batches"`

	// NextBatchID is the monotonically increasing batch id allocator.
	NextBatchID int `json:"next_batch_id"`

	IsComplete bool `json:"is_complete"`
	Canceled   bool `json:"canceled"`

	Version int `json:"version"`
}

// NewClusterState builds the initial document for a fresh run.
func NewClusterState(configID string) *ClusterState {
	return &ClusterState{
		ConfigID:      configID,
		SubmittedJobs: map[int]bool{},
		ActiveBatches: map[int]*ActiveBatch{},
		NextBatchID:   1,
	}
}

// AllocateBatchID returns the next batch id and advances the counter.
func (s *ClusterState) AllocateBatchID() int {
	id := s.NextBatchID
	s.NextBatchID++
	return id
}

// IsSubmitted reports whether jobID has been placed into some batch,
// regardless of whether that batch has finished.
func (s *ClusterState) IsSubmitted(jobID int) bool {
	return s.SubmittedJobs[jobID]
}

// CompletedResultByJobID returns the JobResult for jobID if it has reached
// a terminal state, and whether it was found.
func (s *ClusterState) CompletedResultByJobID(jobID int) (JobResult, bool) {
	for _, r := range s.CompletedResults {
		if r.JobID == jobID {
			return r, true
		}
	}
	return JobResult{}, false
}

// AllComplete reports whether every jobID in ids has a completed result.
func (s *ClusterState) AllComplete(ids []int) bool {
	for _, id := range ids {
		if _, ok := s.CompletedResultByJobID(id); !ok {
			return false
		}
	}
	return true
}
