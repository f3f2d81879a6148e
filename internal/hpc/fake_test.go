package hpc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NREL/jade/internal/model"
)

func TestFakeAdapterSubmitReturnsImmediatelyAndTracksCompletion(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\nsleep 0.1\n"), 0o755))

	adapter := NewFakeAdapter(testEntry())
	id, err := adapter.Submit(model.BatchSpec{BatchID: 1}, model.SubmissionGroup{}, script, dir)
	require.NoError(t, err)
	require.Equal(t, "1", id)

	info, err := adapter.CheckStatus(id)
	require.NoError(t, err)
	require.Equal(t, StatusRunning, info.Status)

	require.Eventually(t, func() bool {
		info, err := adapter.CheckStatus(id)
		return err == nil && info.Status == StatusDone
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFakeAdapterCheckStatusUnknownJobIsNone(t *testing.T) {
	adapter := NewFakeAdapter(testEntry())
	info, err := adapter.CheckStatus("nope")
	require.NoError(t, err)
	require.Equal(t, StatusNone, info.Status)
}

func TestFakeAdapterAssignsIncrementingIDs(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\ntrue\n"), 0o755))

	adapter := NewFakeAdapter(testEntry())
	id1, err := adapter.Submit(model.BatchSpec{BatchID: 1}, model.SubmissionGroup{}, script, dir)
	require.NoError(t, err)
	id2, err := adapter.Submit(model.BatchSpec{BatchID: 2}, model.SubmissionGroup{}, script, dir)
	require.NoError(t, err)
	require.Equal(t, "1", id1)
	require.Equal(t, "2", id2)
}

func TestNewReturnsAdapterPerType(t *testing.T) {
	for _, typ := range []model.HpcType{model.HpcTypeSlurm, model.HpcTypeFake, model.HpcTypeLocal} {
		adapter, err := New(typ, testEntry())
		require.NoError(t, err)
		require.NotNil(t, adapter)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(model.HpcType("bogus"), testEntry())
	require.Error(t, err)
}
