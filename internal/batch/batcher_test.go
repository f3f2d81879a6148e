package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NREL/jade/internal/model"
)

func intPtr(v int) *int { return &v }

func makeJobs(n int) []model.Job {
	jobs := make([]model.Job, n)
	for i := range jobs {
		jobs[i] = model.Job{ID: i + 1, Name: "job" + string(rune('a'+i)), Command: "true"}
	}
	return jobs
}

func TestPackCountBased(t *testing.T) {
	group := &model.SubmissionGroup{Name: "g", PerNodeBatchSize: 3}
	cfg := &model.Configuration{SubmissionGroups: []model.SubmissionGroup{*group}}
	jobs := makeJobs(7)
	cfg.Jobs = jobs

	plan := Pack(cfg, group, jobs, 4, 0)
	require.Len(t, plan.Batches, 3)
	require.Len(t, plan.Batches[0], 3)
	require.Len(t, plan.Batches[1], 3)
	require.Len(t, plan.Batches[2], 1)
}

func TestPackRespectsMaxBatches(t *testing.T) {
	group := &model.SubmissionGroup{Name: "g", PerNodeBatchSize: 2}
	cfg := &model.Configuration{SubmissionGroups: []model.SubmissionGroup{*group}}
	jobs := makeJobs(6)
	cfg.Jobs = jobs

	plan := Pack(cfg, group, jobs, 4, 2)
	require.Len(t, plan.Batches, 2)
}

func TestPackLeavesBlockedJobsOutByDefault(t *testing.T) {
	group := &model.SubmissionGroup{Name: "g", PerNodeBatchSize: 5}
	jobs := []model.Job{
		{ID: 1, Name: "a", Command: "true"},
		{ID: 2, Name: "b", Command: "true", BlockedBy: []int{1}},
	}
	cfg := &model.Configuration{Jobs: jobs, SubmissionGroups: []model.SubmissionGroup{*group}}

	plan := Pack(cfg, group, jobs, 4, 0)
	require.Len(t, plan.Batches, 1)
	require.Len(t, plan.Batches[0], 1)
	require.Equal(t, 1, plan.Batches[0][0].ID)
	require.Len(t, plan.BlockedJobs, 1)
	require.Equal(t, 2, plan.BlockedJobs[0].ID)
}

func TestPackAdmitsBlockedJobWhenTryAddBlockedJobsSet(t *testing.T) {
	group := &model.SubmissionGroup{Name: "g", PerNodeBatchSize: 5, TryAddBlockedJobs: true}
	jobs := []model.Job{
		{ID: 1, Name: "a", Command: "true"},
		{ID: 2, Name: "b", Command: "true", BlockedBy: []int{1}},
	}
	cfg := &model.Configuration{Jobs: jobs, SubmissionGroups: []model.SubmissionGroup{*group}}

	plan := Pack(cfg, group, jobs, 4, 0)
	require.Len(t, plan.Batches, 1)
	require.Len(t, plan.Batches[0], 2)
	require.Empty(t, plan.BlockedJobs)
}

func TestPackTimeBased(t *testing.T) {
	group := &model.SubmissionGroup{
		Name:                        "g",
		TimeBasedBatching:           true,
		NumParallelProcessesPerNode: 1,
		HpcConfig:                   model.HpcConfig{Walltime: "01:00:00"},
	}
	cfg := &model.Configuration{SubmissionGroups: []model.SubmissionGroup{*group}}
	jobs := []model.Job{
		{ID: 1, Name: "a", Command: "true", EstimatedRunMinutes: intPtr(20)},
		{ID: 2, Name: "b", Command: "true", EstimatedRunMinutes: intPtr(20)},
		{ID: 3, Name: "c", Command: "true", EstimatedRunMinutes: intPtr(20)},
	}
	cfg.Jobs = jobs

	SortByEstimatedRunMinutes(jobs)
	plan := Pack(cfg, group, jobs, 1, 0)
	// walltime 60m minus 5m safety margin = 55m budget; three 20m jobs
	// (60m) don't all fit in one batch.
	require.Len(t, plan.Batches, 2)
	require.Len(t, plan.Batches[0], 2)
	require.Len(t, plan.Batches[1], 1)
}

func TestSortByEstimatedRunMinutesTreatsNilAsZero(t *testing.T) {
	jobs := []model.Job{
		{ID: 1, EstimatedRunMinutes: intPtr(10)},
		{ID: 2},
		{ID: 3, EstimatedRunMinutes: intPtr(5)},
	}
	SortByEstimatedRunMinutes(jobs)
	require.Equal(t, []int{2, 3, 1}, []int{jobs[0].ID, jobs[1].ID, jobs[2].ID})
}
