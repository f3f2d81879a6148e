package cancel

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/NREL/jade/internal/cluster"
	"github.com/NREL/jade/internal/hpc"
	"github.com/NREL/jade/internal/model"
)

type stubAdapter struct {
	canceled []string
	failOn   string
}

func (s *stubAdapter) Submit(model.BatchSpec, model.SubmissionGroup, string, string) (string, error) {
	return "", nil
}
func (s *stubAdapter) Cancel(hpcJobID string) error {
	if hpcJobID == s.failOn {
		return fmt.Errorf("scancel failed for %s", hpcJobID)
	}
	s.canceled = append(s.canceled, hpcJobID)
	return nil
}
func (s *stubAdapter) CheckStatus(string) (hpc.JobInfo, error)          { return hpc.JobInfo{}, nil }
func (s *stubAdapter) CheckStatuses() (map[string]hpc.JobStatus, error) { return nil, nil }
func (s *stubAdapter) ListActiveNodes(string) ([]string, error)         { return nil, nil }
func (s *stubAdapter) NumCPUs() int                                     { return 1 }

func testEntry() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func newStore(t *testing.T, state *model.ClusterState) *cluster.Store {
	t.Helper()
	dir := t.TempDir()
	store := cluster.New(dir, time.Second, testEntry())
	require.NoError(t, store.Create(state.ConfigID))
	require.NoError(t, store.WithLock(func(s *model.ClusterState) error {
		*s = *state
		return nil
	}))
	return store
}

func TestRunCancelsActiveBatches(t *testing.T) {
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{Name: "g", HpcConfig: model.HpcConfig{HpcType: model.HpcTypeFake}}},
	}
	state := model.NewClusterState("cfg1")
	state.ActiveBatches[1] = &model.ActiveBatch{HpcJobID: "100", SubmissionGroup: "g", State: model.BatchSubmitted}
	state.ActiveBatches[2] = &model.ActiveBatch{HpcJobID: "200", SubmissionGroup: "g", State: model.BatchFinalized}
	store := newStore(t, state)

	adapter := &stubAdapter{}
	adapters := map[model.HpcType]hpc.Adapter{model.HpcTypeFake: adapter}

	c := New(store, adapters, cfg, testEntry())
	result, err := c.Run()
	require.NoError(t, err)
	require.False(t, result.AlreadyComplete)
	require.Equal(t, 1, result.NumBatchesKilled)
	require.Equal(t, []string{"100"}, adapter.canceled)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.True(t, loaded.Canceled)
}

func TestRunShortCircuitsWhenAlreadyComplete(t *testing.T) {
	cfg := &model.Configuration{SubmissionGroups: []model.SubmissionGroup{{Name: "g"}}}
	state := model.NewClusterState("cfg1")
	state.IsComplete = true
	store := newStore(t, state)

	c := New(store, map[model.HpcType]hpc.Adapter{}, cfg, testEntry())
	result, err := c.Run()
	require.NoError(t, err)
	require.True(t, result.AlreadyComplete)
	require.Zero(t, result.NumBatchesKilled)
}

func TestRunToleratesCancelFailureOnOneBatch(t *testing.T) {
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{Name: "g", HpcConfig: model.HpcConfig{HpcType: model.HpcTypeFake}}},
	}
	state := model.NewClusterState("cfg1")
	state.ActiveBatches[1] = &model.ActiveBatch{HpcJobID: "100", SubmissionGroup: "g", State: model.BatchSubmitted}
	state.ActiveBatches[2] = &model.ActiveBatch{HpcJobID: "200", SubmissionGroup: "g", State: model.BatchSubmitted}
	store := newStore(t, state)

	adapter := &stubAdapter{failOn: "100"}
	adapters := map[model.HpcType]hpc.Adapter{model.HpcTypeFake: adapter}

	c := New(store, adapters, cfg, testEntry())
	result, err := c.Run()
	require.NoError(t, err)
	require.Equal(t, 1, result.NumBatchesKilled)
	require.Equal(t, []string{"200"}, adapter.canceled)
}

func TestRunErrorsWhenAdapterMissing(t *testing.T) {
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{Name: "g", HpcConfig: model.HpcConfig{HpcType: model.HpcTypeSlurm}}},
	}
	state := model.NewClusterState("cfg1")
	state.ActiveBatches[1] = &model.ActiveBatch{HpcJobID: "100", SubmissionGroup: "g", State: model.BatchSubmitted}
	store := newStore(t, state)

	c := New(store, map[model.HpcType]hpc.Adapter{}, cfg, testEntry())
	_, err := c.Run()
	require.Error(t, err)
}
