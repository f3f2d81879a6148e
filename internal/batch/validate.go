package batch

import (
	"github.com/hashicorp/go-multierror"

	"github.com/NREL/jade/internal/common/jadeerrors"
	"github.com/NREL/jade/internal/model"
)

// Validate checks a Configuration's static invariants: every blocked_by
// reference resolves to a real job, the blocked_by graph has no cycle,
// every job's submission group is defined, and max_nodes/poll_interval
// agree across all submission groups. All violations are collected and
// returned together so a user can fix a config file in one pass.
func Validate(cfg *model.Configuration) error {
	var result *multierror.Error

	groupNames := map[string]bool{}
	for _, g := range cfg.SubmissionGroups {
		groupNames[g.Name] = true
	}

	jobIDs := map[int]bool{}
	for _, j := range cfg.Jobs {
		jobIDs[j.ID] = true
	}

	for _, j := range cfg.Jobs {
		for _, blocker := range j.BlockedBy {
			if !jobIDs[blocker] {
				result = multierror.Append(result, &jadeerrors.ErrJobReferencesUnknownBlocker{JobID: j.ID, Blocker: blocker})
			}
		}
		group := cfg.ResolvedSubmissionGroup(&j)
		if group == "" || !groupNames[group] {
			result = multierror.Append(result, &jadeerrors.ErrUnknownSubmissionGroup{JobID: j.ID, Group: j.SubmissionGroup})
		}
	}

	if cycle := findCycle(cfg.Jobs); cycle != nil {
		result = multierror.Append(result, &jadeerrors.ErrCycleDetected{Cycle: cycle})
	}

	if err := validateGroupPolicyConsistency(cfg.SubmissionGroups); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// findCycle runs a depth-first search over the blocked_by graph and
// returns the first cycle found, or nil if the graph is acyclic.
func findCycle(jobs []model.Job) []int {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[int]int{}
	blockedBy := map[int][]int{}
	for _, j := range jobs {
		blockedBy[j.ID] = j.BlockedBy
	}

	var path []int
	var visit func(id int) []int
	visit = func(id int) []int {
		switch state[id] {
		case done:
			return nil
		case visiting:
			// Found the back-edge; trim path to the cycle itself.
			for i, p := range path {
				if p == id {
					return append(append([]int{}, path[i:]...), id)
				}
			}
			return append(append([]int{}, path...), id)
		}
		state[id] = visiting
		path = append(path, id)
		for _, blocker := range blockedBy[id] {
			if cycle := visit(blocker); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, j := range jobs {
		if state[j.ID] == unvisited {
			if cycle := visit(j.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// validateGroupPolicyConsistency enforces that max_nodes and
// poll_interval_seconds are identical across every submission group,
// since a single SubmitterLoop applies one queue depth and poll cadence
// across all groups it services in one pass.
func validateGroupPolicyConsistency(groups []model.SubmissionGroup) error {
	if len(groups) == 0 {
		return nil
	}
	maxNodes := map[string]any{}
	pollInterval := map[string]any{}
	for _, g := range groups {
		maxNodes[g.Name] = g.MaxNodes
		pollInterval[g.Name] = g.PollIntervalSeconds
	}
	if !allEqual(maxNodes) {
		return &jadeerrors.ErrInconsistentGroupPolicy{Field: "max_nodes", Values: maxNodes}
	}
	if !allEqual(pollInterval) {
		return &jadeerrors.ErrInconsistentGroupPolicy{Field: "poll_interval_seconds", Values: pollInterval}
	}
	return nil
}

func allEqual(values map[string]any) bool {
	var first any
	seen := false
	for _, v := range values {
		if !seen {
			first = v
			seen = true
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}
