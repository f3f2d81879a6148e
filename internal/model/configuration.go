package model

// Configuration is the full JSON job configuration document a user submits.
type Configuration struct {
	Jobs             []Job             `json:"jobs"`
	SubmissionGroups []SubmissionGroup `json:"submission_groups" validate:"required,min=1"`

	SetupCommand    string `json:"setup_command,omitempty"`
	TeardownCommand string `json:"teardown_command,omitempty"`

	UserData map[string]any `json:"user_data,omitempty"`

	// GenerateReports, DryRun mirror submitter_params.py's flags of the
	// same name. GenerateReports decides whether summary reports are written
	// after completion. DryRun is stored with the configuration but no
	// component reads it: batches are submitted whether or not it is set.
	GenerateReports bool `json:"generate_reports,omitempty"`
	DryRun          bool `json:"dry_run,omitempty"`
}

// GroupByName returns the SubmissionGroup with the given name, or nil.
func (c *Configuration) GroupByName(name string) *SubmissionGroup {
	for i := range c.SubmissionGroups {
		if c.SubmissionGroups[i].Name == name {
			return &c.SubmissionGroups[i]
		}
	}
	return nil
}

// JobByID returns the Job with the given id, or nil.
func (c *Configuration) JobByID(id int) *Job {
	for i := range c.Jobs {
		if c.Jobs[i].ID == id {
			return &c.Jobs[i]
		}
	}
	return nil
}

// ResolvedSubmissionGroup returns the Job's submission group name,
// defaulting to the sole group in the Configuration when the Job doesn't
// name one.
func (c *Configuration) ResolvedSubmissionGroup(j *Job) string {
	if j.SubmissionGroup != "" {
		return j.SubmissionGroup
	}
	if len(c.SubmissionGroups) == 1 {
		return c.SubmissionGroups[0].Name
	}
	return ""
}

// BatchSpec is the ephemeral unit handed to HpcAdapter for submission.
type BatchSpec struct {
	BatchID         int    `json:"batch_id"`
	JobIDs          []int  `json:"job_ids"`
	SubmissionGroup string `json:"submission_group"`

	// ConfigFilePath is the filtered configuration written for this
	// batch's node.
	ConfigFilePath string `json:"config_file_path,omitempty"`

	// PriorCompletedJobIDs hints to the in-batch wait logic that these
	// IDs are already satisfied from a prior batch, so it need not poll
	// the shared cluster state for them.
	PriorCompletedJobIDs []int `json:"prior_completed_job_ids,omitempty"`
}
