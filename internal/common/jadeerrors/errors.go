// Package jadeerrors defines JADE's typed error taxonomy. Handlers use
// errors.As to recover a concrete type and decide how to react (fatal at
// load, retry, or record-and-continue), the way armadaerrors lets gRPC
// interceptors recover a concrete type to set a status code.
package jadeerrors

import "fmt"

// ErrCycleDetected is returned when a Job's blocked_by graph contains a
// cycle. Fatal at load.
type ErrCycleDetected struct {
	Cycle []int
}

func (e *ErrCycleDetected) Error() string {
	return fmt.Sprintf("blocked_by graph contains a cycle: %v", e.Cycle)
}

// ErrUnknownSubmissionGroup is returned when a Job references a
// submission_group name that isn't defined in the Configuration.
type ErrUnknownSubmissionGroup struct {
	JobID int
	Group string
}

func (e *ErrUnknownSubmissionGroup) Error() string {
	return fmt.Sprintf("job %d references unknown submission group %q", e.JobID, e.Group)
}

// ErrInconsistentGroupPolicy is returned when submission groups disagree on
// a field required to be identical across all groups in a configuration
// (max_nodes, poll_interval).
type ErrInconsistentGroupPolicy struct {
	Field  string
	Values map[string]any
}

func (e *ErrInconsistentGroupPolicy) Error() string {
	return fmt.Sprintf("submission groups disagree on %s: %v", e.Field, e.Values)
}

// ErrClusterStateCorrupt is returned when the persisted ClusterState
// document fails to parse. Fatal; the user must repair or recreate it.
type ErrClusterStateCorrupt struct {
	Path string
	Err  error
}

func (e *ErrClusterStateCorrupt) Error() string {
	return fmt.Sprintf("cluster state file %s is corrupt: %v", e.Path, e.Err)
}

func (e *ErrClusterStateCorrupt) Unwrap() error { return e.Err }

// ErrLockTimeout is returned when the cluster lock could not be acquired
// within the configured timeout (10 minutes by default). See DESIGN.md for
// the (manual, non-race-safe) recovery procedure.
type ErrLockTimeout struct {
	Path    string
	Timeout string
}

func (e *ErrLockTimeout) Error() string {
	return fmt.Sprintf("timed out after %s waiting for cluster lock %s; see recovery procedure in DESIGN.md", e.Timeout, e.Path)
}

// ErrJobReferencesUnknownBlocker is returned when a Job's blocked_by set
// names a Job.id that does not exist in the configuration.
type ErrJobReferencesUnknownBlocker struct {
	JobID   int
	Blocker int
}

func (e *ErrJobReferencesUnknownBlocker) Error() string {
	return fmt.Sprintf("job %d is blocked_by unknown job %d", e.JobID, e.Blocker)
}
