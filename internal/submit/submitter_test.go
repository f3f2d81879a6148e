package submit

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/NREL/jade/internal/hpc"
	"github.com/NREL/jade/internal/model"
)

type stubAdapter struct {
	submittedBatches []int
	numCPUs          int
}

func (s *stubAdapter) Submit(batch model.BatchSpec, group model.SubmissionGroup, runScript, outputDir string) (string, error) {
	s.submittedBatches = append(s.submittedBatches, batch.BatchID)
	return "hpc-job", nil
}
func (s *stubAdapter) Cancel(string) error                              { return nil }
func (s *stubAdapter) CheckStatus(string) (hpc.JobInfo, error)          { return hpc.JobInfo{}, nil }
func (s *stubAdapter) CheckStatuses() (map[string]hpc.JobStatus, error) { return nil, nil }
func (s *stubAdapter) ListActiveNodes(string) ([]string, error)         { return nil, nil }
func (s *stubAdapter) NumCPUs() int {
	if s.numCPUs > 0 {
		return s.numCPUs
	}
	return 4
}

func testEntry() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

func TestRunSubmitsUpToMaxNodes(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{
			Name: "g", PerNodeBatchSize: 1, MaxNodes: 2,
			HpcConfig: model.HpcConfig{HpcType: model.HpcTypeFake},
		}},
		Jobs: []model.Job{
			{ID: 1, Command: "true"},
			{ID: 2, Command: "true"},
			{ID: 3, Command: "true"},
		},
	}
	adapter := &stubAdapter{}
	s := New(cfg, map[model.HpcType]hpc.Adapter{model.HpcTypeFake: adapter}, dir, filepath.Join(dir, "jade_config.json"), testEntry())

	state := model.NewClusterState("cfg1")
	numSubmitted, err := s.Run(state)
	require.NoError(t, err)
	require.Equal(t, 2, numSubmitted)
	require.Len(t, state.ActiveBatches, 2)
	require.Len(t, adapter.submittedBatches, 2)
	require.True(t, state.IsSubmitted(1))
	require.True(t, state.IsSubmitted(2))
	require.False(t, state.IsSubmitted(3))
}

func TestRunWritesPerBatchConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{
			Name: "g", PerNodeBatchSize: 5, MaxNodes: 4,
			HpcConfig: model.HpcConfig{HpcType: model.HpcTypeFake},
		}},
		Jobs: []model.Job{{ID: 1, Command: "true"}},
	}
	adapter := &stubAdapter{}
	s := New(cfg, map[model.HpcType]hpc.Adapter{model.HpcTypeFake: adapter}, dir, filepath.Join(dir, "jade_config.json"), testEntry())

	state := model.NewClusterState("cfg1")
	_, err := s.Run(state)
	require.NoError(t, err)

	batchConfig := filepath.Join(dir, "batch_1", "config.json")
	require.FileExists(t, batchConfig)
	require.FileExists(t, filepath.Join(dir, "batch_1", "run.sh"))
}

func TestRunRespectsFinalizedBatchesFreeingCapacity(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{
			Name: "g", PerNodeBatchSize: 1, MaxNodes: 1,
			HpcConfig: model.HpcConfig{HpcType: model.HpcTypeFake},
		}},
		Jobs: []model.Job{
			{ID: 1, Command: "true"},
			{ID: 2, Command: "true"},
		},
	}
	adapter := &stubAdapter{}
	s := New(cfg, map[model.HpcType]hpc.Adapter{model.HpcTypeFake: adapter}, dir, filepath.Join(dir, "jade_config.json"), testEntry())

	state := model.NewClusterState("cfg1")
	numSubmitted, err := s.Run(state)
	require.NoError(t, err)
	require.Equal(t, 1, numSubmitted)
	require.True(t, state.IsSubmitted(1))
	require.False(t, state.IsSubmitted(2))

	// No capacity freed yet: a second Run should submit nothing more.
	numSubmitted, err = s.Run(state)
	require.NoError(t, err)
	require.Equal(t, 0, numSubmitted)

	for _, active := range state.ActiveBatches {
		active.State = model.BatchFinalized
	}

	numSubmitted, err = s.Run(state)
	require.NoError(t, err)
	require.Equal(t, 1, numSubmitted)
	require.True(t, state.IsSubmitted(2))
}

func TestRunErrorsWithoutAdapterForGroupType(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{
			Name: "g", PerNodeBatchSize: 1, MaxNodes: 1,
			HpcConfig: model.HpcConfig{HpcType: model.HpcTypeSlurm},
		}},
		Jobs: []model.Job{{ID: 1, Command: "true"}},
	}
	s := New(cfg, map[model.HpcType]hpc.Adapter{}, dir, filepath.Join(dir, "jade_config.json"), testEntry())

	state := model.NewClusterState("cfg1")
	_, err := s.Run(state)
	require.Error(t, err)
}
