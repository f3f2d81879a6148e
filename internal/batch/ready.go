package batch

import "github.com/NREL/jade/internal/model"

// AvailableJobs returns the not-yet-submitted jobs in group, with BlockedBy
// narrowed to only the blockers that have not yet completed. Mirrors
// hpc_submitter.py's _get_available_jobs combined with
// _update_completed_jobs's blocked_by.difference_update(newly_completed):
// a job with an empty resulting BlockedBy is fully unblocked; one with a
// non-empty BlockedBy is left for Pack's try_add_blocked_jobs handling.
func AvailableJobs(cfg *model.Configuration, state *model.ClusterState, group *model.SubmissionGroup) []model.Job {
	var available []model.Job
	for _, j := range cfg.Jobs {
		if state.IsSubmitted(j.ID) {
			continue
		}
		if cfg.ResolvedSubmissionGroup(&j) != group.Name {
			continue
		}
		j.BlockedBy = unresolvedBlockers(state, j.BlockedBy)
		available = append(available, j)
	}
	return available
}

func unresolvedBlockers(state *model.ClusterState, blockedBy []int) []int {
	var remaining []int
	for _, id := range blockedBy {
		if _, ok := state.CompletedResultByJobID(id); !ok {
			remaining = append(remaining, id)
		}
	}
	return remaining
}
