package hpc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NREL/jade/internal/model"
)

func TestSbatchJobIDPattern(t *testing.T) {
	match := sbatchJobIDPattern.FindStringSubmatch("Submitted batch job 123456\n")
	require.NotNil(t, match)
	require.Equal(t, "123456", match[1])

	require.Nil(t, sbatchJobIDPattern.FindStringSubmatch("sbatch: error: something went wrong"))
}

func TestWriteSlurmSubmissionScriptIncludesRequiredDirectives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch_1_sbatch.sh")
	cfg := model.HpcConfig{Account: "acct1", Walltime: "04:00:00", Mem: "16G", Nodes: 1, Partition: "standard"}

	err := writeSlurmSubmissionScript(path, "batch_1", "/out/run.sh", "/out", cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	require.True(t, strings.HasPrefix(contents, "#!/bin/bash\n"))
	require.Contains(t, contents, "#SBATCH --account=acct1")
	require.Contains(t, contents, "#SBATCH --job-name=batch_1")
	require.Contains(t, contents, "#SBATCH --time=04:00:00")
	require.Contains(t, contents, "#SBATCH --mem=16G")
	require.Contains(t, contents, "#SBATCH --nodes=1")
	require.Contains(t, contents, "#SBATCH --partition=standard")
	require.Contains(t, contents, "srun /out/run.sh")
}

func TestWriteSlurmSubmissionScriptOmitsUnsetOptionalFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sbatch.sh")
	cfg := model.HpcConfig{Account: "acct1", Walltime: "01:00:00"}

	require.NoError(t, writeSlurmSubmissionScript(path, "b", "/out/run.sh", "/out", cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	require.NotContains(t, contents, "--mem=")
	require.NotContains(t, contents, "--nodes=")
	require.NotContains(t, contents, "--partition=")
	require.NotContains(t, contents, "--gres=")
}

func TestIntOrEmpty(t *testing.T) {
	require.Equal(t, "", intOrEmpty(0))
	require.Equal(t, "4", intOrEmpty(4))
}

func TestSlurmAdapterNumCPUsFallsBackToRuntime(t *testing.T) {
	t.Setenv("SLURM_CPUS_ON_NODE", "")
	adapter := NewSlurmAdapter(testEntry())
	require.Greater(t, adapter.NumCPUs(), 0)
}

func TestSlurmAdapterNumCPUsReadsEnv(t *testing.T) {
	t.Setenv("SLURM_CPUS_ON_NODE", "16")
	adapter := NewSlurmAdapter(testEntry())
	require.Equal(t, 16, adapter.NumCPUs())
}
