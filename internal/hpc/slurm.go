package hpc

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/model"
)

var sbatchJobIDPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

var slurmStatuses = map[string]JobStatus{
	"PENDING":     StatusQueued,
	"CONFIGURING": StatusQueued,
	"RUNNING":     StatusRunning,
	"COMPLETING":  StatusDone,
}

// slurmRetryAttempts/slurmRetryDelay bound squeue/sbatch retries to
// about a minute of tolerance for transient scheduler errors, matching
// slurm_manager.py's num_retries=6, retry_delay_s=10. scancel and
// scontrol are run once, without retries.
const (
	slurmRetryAttempts = 6
	slurmRetryDelay    = 10 * time.Second
)

// SlurmAdapter submits and tracks jobs through Slurm's sbatch/squeue/scancel
// commands. Grounded on slurm_manager.py's SlurmManager.
type SlurmAdapter struct {
	user string
	log  *logrus.Entry
}

func NewSlurmAdapter(log *logrus.Entry) *SlurmAdapter {
	user := os.Getenv("USER")
	return &SlurmAdapter{user: user, log: log}
}

func (a *SlurmAdapter) Submit(batch model.BatchSpec, group model.SubmissionGroup, runScript string, outputDir string) (string, error) {
	sbatchScript := strings.TrimSuffix(runScript, ".sh") + "_sbatch.sh"
	name := group.HpcConfig.JobPrefix + "_batch_" + strconv.Itoa(batch.BatchID)
	if err := writeSlurmSubmissionScript(sbatchScript, name, runScript, outputDir, group.HpcConfig); err != nil {
		return "", err
	}
	res, err := runCommand("sbatch", []string{sbatchScript}, slurmRetryAttempts, slurmRetryDelay)
	if err != nil {
		return "", fmt.Errorf("sbatch failed for batch %d: %w", batch.BatchID, err)
	}
	match := sbatchJobIDPattern.FindStringSubmatch(res.Stdout)
	if match == nil {
		return "", fmt.Errorf("could not parse sbatch output for batch %d: %q", batch.BatchID, res.Stdout)
	}
	a.log.Debugf("submitted batch %d as slurm job %s", batch.BatchID, match[1])
	return match[1], nil
}

func (a *SlurmAdapter) Cancel(hpcJobID string) error {
	_, err := runCommand("scancel", []string{hpcJobID}, 1, 0)
	return err
}

func (a *SlurmAdapter) CheckStatus(hpcJobID string) (JobInfo, error) {
	args := []string{"-u", a.user, "--Format", "jobid,name,state", "-h", "-j", hpcJobID}
	res, err := runCommand("squeue", args, slurmRetryAttempts, slurmRetryDelay)
	if err != nil {
		if strings.Contains(res.Stderr, "Invalid job id specified") {
			return JobInfo{Status: StatusNone}, nil
		}
		return JobInfo{}, fmt.Errorf("squeue failed: %w", err)
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return JobInfo{Status: StatusNone}, nil
	}
	if len(fields) != 3 {
		return JobInfo{}, fmt.Errorf("unexpected squeue output: %q", res.Stdout)
	}
	status, ok := slurmStatuses[fields[2]]
	if !ok {
		status = StatusUnknown
	}
	return JobInfo{HpcJobID: fields[0], Name: fields[1], Status: status}, nil
}

func (a *SlurmAdapter) CheckStatuses() (map[string]JobStatus, error) {
	args := []string{"-u", a.user, "--Format", "jobid,state", "-h"}
	res, err := runCommand("squeue", args, slurmRetryAttempts, slurmRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("squeue failed: %w", err)
	}
	statuses := map[string]JobStatus{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("unexpected squeue line: %q", line)
		}
		status, ok := slurmStatuses[fields[1]]
		if !ok {
			status = StatusUnknown
		}
		statuses[fields[0]] = status
	}
	return statuses, nil
}

func (a *SlurmAdapter) ListActiveNodes(hpcJobID string) ([]string, error) {
	res, err := runCommand("squeue", []string{"-j", hpcJobID, "--format=%D %500N", "-h"}, slurmRetryAttempts, slurmRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("squeue failed: %w", err)
	}
	fields := strings.Fields(strings.TrimSpace(res.Stdout))
	if len(fields) != 2 {
		return nil, fmt.Errorf("unexpected squeue output: %q", res.Stdout)
	}
	numNodes, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("parsing node count: %w", err)
	}
	expand, err := runCommand("scontrol", []string{"show", "hostnames", fields[1]}, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("scontrol failed: %w", err)
	}
	var nodes []string
	for _, n := range strings.Split(expand.Stdout, "\n") {
		if n != "" {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) != numNodes {
		return nil, fmt.Errorf("expected %d nodes, parsed %d", numNodes, len(nodes))
	}
	return nodes, nil
}

func (a *SlurmAdapter) NumCPUs() int {
	if v := os.Getenv("SLURM_CPUS_ON_NODE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return runtime.NumCPU()
}

// writeSlurmSubmissionScript renders the sbatch script wrapping runScript,
// matching slurm_manager.py's _create_submission_script_text.
func writeSlurmSubmissionScript(path, name, runScript, outputDir string, cfg model.HpcConfig) error {
	lines := []string{
		"#!/bin/bash",
		"#SBATCH --account=" + cfg.Account,
		"#SBATCH --job-name=" + name,
		"#SBATCH --time=" + cfg.Walltime,
		"#SBATCH --output=" + outputDir + "/job_output_%j.o",
		"#SBATCH --error=" + outputDir + "/job_output_%j.e",
	}
	optional := [][2]string{
		{"mem", cfg.Mem},
		{"nodes", intOrEmpty(cfg.Nodes)},
		{"ntasks", intOrEmpty(cfg.NTasks)},
		{"ntasks-per-node", intOrEmpty(cfg.NTasksPerNode)},
		{"partition", cfg.Partition},
		{"qos", cfg.QOS},
		{"tmp", cfg.Tmp},
		{"gres", cfg.Gres},
	}
	for _, kv := range optional {
		if kv[1] != "" {
			lines = append(lines, fmt.Sprintf("#SBATCH --%s=%s", kv[0], kv[1]))
		}
	}
	lines = append(lines, "", "srun "+runScript, "")
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o755)
}

func intOrEmpty(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
