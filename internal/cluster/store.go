// Package cluster coordinates the shared ClusterState document across every
// submitter and worker process operating on one run, using advisory file
// locking rather than a daemon or consensus store. Grounded on
// _examples/original_source/jade/jobs/cluster.py's Cluster, which does the
// same coordination with filelock.SoftFileLock over a Lustre filesystem.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/common/jadeerrors"
	"github.com/NREL/jade/internal/model"
)

const (
	stateFileName = "cluster_config.json"
	lockFileName  = "cluster_config.json.lock"
)

// Store reads and atomically rewrites the ClusterState document under dir,
// serializing concurrent access with an advisory file lock.
type Store struct {
	dir      string
	timeout  time.Duration
	log      *logrus.Entry
	instance uuid.UUID
}

// New returns a Store with a fresh random instance id, used only to make
// WithLock's contention logging distinguishable across the several jade
// processes (submit-jobs, try-submit-jobs, run-jobs, cancel-jobs) that may
// be contending for the same lock at once.
func New(dir string, timeout time.Duration, log *logrus.Entry) *Store {
	return &Store{dir: dir, timeout: timeout, log: log, instance: uuid.New()}
}

func (s *Store) statePath() string { return filepath.Join(s.dir, stateFileName) }
func (s *Store) lockPath() string  { return filepath.Join(s.dir, lockFileName) }

// Create writes the initial ClusterState document. Callers must not call
// this if a state file already exists; use Load to resume a run instead.
func (s *Store) Create(configID string) error {
	state := model.NewClusterState(configID)
	return s.writeAtomic(state)
}

// Load reads the current state without acquiring the lock. Safe for
// read-only inspection (status queries); mutation must go through WithLock.
func (s *Store) Load() (*model.ClusterState, error) {
	return s.read()
}

// WithLock acquires the advisory lock, reads the current state, lets fn
// mutate it in place, and atomically rewrites the document before
// releasing the lock. Grounded on cluster.py's do_action_under_lock: the
// read-modify-write unit must hold the lock the entire time to stay
// consistent across processes on a shared filesystem.
func (s *Store) WithLock(fn func(*model.ClusterState) error) error {
	lock := flock.New(s.lockPath())

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("acquiring cluster lock %s: %w", s.lockPath(), err)
	}
	if !locked {
		s.log.Debugf("instance %s timed out waiting for cluster lock", s.instance)
		return &jadeerrors.ErrLockTimeout{Path: s.lockPath(), Timeout: s.timeout.String()}
	}
	s.log.Debugf("instance %s acquired cluster lock", s.instance)
	defer lock.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	state.Version++
	return s.writeAtomic(state)
}

func (s *Store) read() (*model.ClusterState, error) {
	data, err := os.ReadFile(s.statePath())
	if err != nil {
		return nil, fmt.Errorf("reading cluster state: %w", err)
	}
	var state model.ClusterState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &jadeerrors.ErrClusterStateCorrupt{Path: s.statePath(), Err: err}
	}
	return &state, nil
}

// writeAtomic writes to a temp file in the same directory and renames it
// over the target, so a reader never observes a partially written document.
func (s *Store) writeAtomic(state *model.ClusterState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cluster state: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, stateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.statePath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp state file: %w", err)
	}
	return nil
}
