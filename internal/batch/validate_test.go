package batch

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/NREL/jade/internal/common/jadeerrors"
	"github.com/NREL/jade/internal/model"
)

func baseConfig() *model.Configuration {
	return &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{Name: "g"}},
	}
}

func TestValidateOK(t *testing.T) {
	cfg := baseConfig()
	cfg.Jobs = []model.Job{
		{ID: 1, Command: "true"},
		{ID: 2, Command: "true", BlockedBy: []int{1}},
	}
	require.NoError(t, Validate(cfg))
}

func TestValidateUnknownBlocker(t *testing.T) {
	cfg := baseConfig()
	cfg.Jobs = []model.Job{
		{ID: 1, Command: "true", BlockedBy: []int{99}},
	}
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown job 99")
}

func TestValidateUnknownSubmissionGroup(t *testing.T) {
	cfg := baseConfig()
	cfg.Jobs = []model.Job{
		{ID: 1, Command: "true", SubmissionGroup: "nope"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown submission group")
}

func TestValidateDetectsCycle(t *testing.T) {
	cfg := baseConfig()
	cfg.Jobs = []model.Job{
		{ID: 1, Command: "true", BlockedBy: []int{2}},
		{ID: 2, Command: "true", BlockedBy: []int{3}},
		{ID: 3, Command: "true", BlockedBy: []int{1}},
	}
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func TestValidateInconsistentGroupPolicy(t *testing.T) {
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{
			{Name: "g1", MaxNodes: 4},
			{Name: "g2", MaxNodes: 8},
		},
		Jobs: []model.Job{
			{ID: 1, Command: "true", SubmissionGroup: "g1"},
			{ID: 2, Command: "true", SubmissionGroup: "g2"},
		},
	}
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_nodes")
}

func TestFindCycleNone(t *testing.T) {
	jobs := []model.Job{
		{ID: 1},
		{ID: 2, BlockedBy: []int{1}},
		{ID: 3, BlockedBy: []int{1, 2}},
	}
	require.Nil(t, findCycle(jobs))
}

func TestValidateErrorTypesAreAsable(t *testing.T) {
	cfg := baseConfig()
	cfg.Jobs = []model.Job{{ID: 1, Command: "true", BlockedBy: []int{42}}}
	err := Validate(cfg)
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok)

	var blocker *jadeerrors.ErrJobReferencesUnknownBlocker
	found := false
	for _, e := range merr.Errors {
		if errors.As(e, &blocker) {
			found = true
		}
	}
	require.True(t, found)
}
