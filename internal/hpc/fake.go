package hpc

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/model"
)

// FakeAdapter simulates an HPC scheduler by running the batch script as a
// plain subprocess, used in tests and local dry runs without a real
// scheduler. Grounded on fake_manager.py's FakeManager.
type FakeAdapter struct {
	log *logrus.Entry

	mu      sync.Mutex
	nextID  int
	running map[string]*exec.Cmd
}

func NewFakeAdapter(log *logrus.Entry) *FakeAdapter {
	return &FakeAdapter{log: log, nextID: 1, running: map[string]*exec.Cmd{}}
}

func (a *FakeAdapter) Submit(batch model.BatchSpec, group model.SubmissionGroup, runScript string, outputDir string) (string, error) {
	if err := os.Chmod(runScript, 0o755); err != nil {
		return "", err
	}
	cmd := exec.Command(runScript)
	cmd.Dir = outputDir
	if err := cmd.Start(); err != nil {
		return "", err
	}

	a.mu.Lock()
	id := strconv.Itoa(a.nextID)
	a.nextID++
	a.running[id] = cmd
	a.mu.Unlock()

	go func() {
		_ = cmd.Wait()
	}()
	return id, nil
}

func (a *FakeAdapter) Cancel(hpcJobID string) error {
	a.mu.Lock()
	cmd := a.running[hpcJobID]
	a.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func (a *FakeAdapter) CheckStatus(hpcJobID string) (JobInfo, error) {
	a.mu.Lock()
	cmd := a.running[hpcJobID]
	a.mu.Unlock()
	if cmd == nil {
		return JobInfo{Status: StatusNone}, nil
	}
	if cmd.ProcessState == nil {
		return JobInfo{HpcJobID: hpcJobID, Status: StatusRunning}, nil
	}
	return JobInfo{HpcJobID: hpcJobID, Status: StatusDone}, nil
}

func (a *FakeAdapter) CheckStatuses() (map[string]JobStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	statuses := map[string]JobStatus{}
	for id, cmd := range a.running {
		if cmd.ProcessState == nil {
			statuses[id] = StatusRunning
		} else {
			statuses[id] = StatusDone
		}
	}
	return statuses, nil
}

func (a *FakeAdapter) ListActiveNodes(hpcJobID string) ([]string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return []string{hostname}, nil
}

func (a *FakeAdapter) NumCPUs() int {
	return runtime.NumCPU()
}
