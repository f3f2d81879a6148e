package hpc

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/model"
)

// LocalAdapter treats the current machine as a single-node allocation.
// Unlike SlurmAdapter and FakeAdapter, which hand the script to something
// else and return immediately, Submit here runs the script inline and
// blocks until it exits: there is no scheduler to poll, so the jobs must
// be done by the time Submit returns. Grounded on local_manager.py's
// LocalManager, whose submit() is itself a no-op because the real JADE
// CLI never routes a local run through the scheduler-submission path at
// all; this adapter exists so this module's single Adapter interface
// still has a usable local implementation.
type LocalAdapter struct {
	log *logrus.Entry
}

func NewLocalAdapter(log *logrus.Entry) *LocalAdapter {
	return &LocalAdapter{log: log}
}

func (a *LocalAdapter) Submit(batch model.BatchSpec, group model.SubmissionGroup, runScript string, outputDir string) (string, error) {
	if err := os.Chmod(runScript, 0o755); err != nil {
		return "", err
	}
	cmd := exec.Command(runScript)
	cmd.Dir = outputDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		a.log.Warnf("local run of batch %d exited with error: %s", batch.BatchID, err)
	}
	return strconv.Itoa(batch.BatchID), nil
}

func (a *LocalAdapter) Cancel(hpcJobID string) error {
	return nil
}

func (a *LocalAdapter) CheckStatus(hpcJobID string) (JobInfo, error) {
	return JobInfo{Status: StatusNone}, nil
}

func (a *LocalAdapter) CheckStatuses() (map[string]JobStatus, error) {
	return map[string]JobStatus{}, nil
}

func (a *LocalAdapter) ListActiveNodes(hpcJobID string) ([]string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return []string{hostname}, nil
}

func (a *LocalAdapter) NumCPUs() int {
	return runtime.NumCPU()
}
