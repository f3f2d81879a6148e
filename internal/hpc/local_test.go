package hpc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/NREL/jade/internal/model"
)

func testEntry() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestLocalAdapterSubmitRunsScriptInline(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\ntouch "+marker+"\n"), 0o755))

	adapter := NewLocalAdapter(testEntry())
	id, err := adapter.Submit(model.BatchSpec{BatchID: 7}, model.SubmissionGroup{}, script, dir)
	require.NoError(t, err)
	require.Equal(t, "7", id)

	_, statErr := os.Stat(marker)
	require.NoError(t, statErr, "script should have run synchronously before Submit returned")
}

func TestLocalAdapterSubmitToleratesNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\nexit 1\n"), 0o755))

	adapter := NewLocalAdapter(testEntry())
	_, err := adapter.Submit(model.BatchSpec{BatchID: 1}, model.SubmissionGroup{}, script, dir)
	require.NoError(t, err, "a failing script is not an adapter error; job failure is recorded via the result, not Submit's error")
}

func TestLocalAdapterCancelIsNoOp(t *testing.T) {
	adapter := NewLocalAdapter(testEntry())
	require.NoError(t, adapter.Cancel("anything"))
}

func TestLocalAdapterCheckStatusReportsNone(t *testing.T) {
	adapter := NewLocalAdapter(testEntry())
	info, err := adapter.CheckStatus("1")
	require.NoError(t, err)
	require.Equal(t, StatusNone, info.Status)
}
