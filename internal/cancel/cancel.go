// Package cancel marks a run canceled and tears down whatever batches are
// currently active on the scheduler. Grounded on
// _examples/original_source/jade/cli/cancel_jobs.py's cancel_jobs command.
package cancel

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/cluster"
	"github.com/NREL/jade/internal/hpc"
	"github.com/NREL/jade/internal/model"
)

// Canceller cancels every active batch of one run under the cluster lock.
type Canceller struct {
	store    *cluster.Store
	adapters map[model.HpcType]hpc.Adapter
	groups   map[string]model.SubmissionGroup
	log      *logrus.Entry
}

func New(store *cluster.Store, adapters map[model.HpcType]hpc.Adapter, cfg *model.Configuration, log *logrus.Entry) *Canceller {
	groups := make(map[string]model.SubmissionGroup, len(cfg.SubmissionGroups))
	for _, g := range cfg.SubmissionGroups {
		groups[g.Name] = g
	}
	return &Canceller{store: store, adapters: adapters, groups: groups, log: log}
}

// Result summarizes what Run did.
type Result struct {
	AlreadyComplete  bool
	NumBatchesKilled int
}

// Run sets ClusterState.Canceled and calls Adapter.Cancel for every batch
// still recorded as active, so the worker-side poll (Pool.RunBatch's
// isCanceled) and the next loop iteration both observe the cancellation.
// A batch the scheduler has already finished is left alone; scancel on an
// unknown job id is not treated as fatal.
func (c *Canceller) Run() (Result, error) {
	var result Result
	err := c.store.WithLock(func(state *model.ClusterState) error {
		if state.IsComplete {
			result.AlreadyComplete = true
			return nil
		}

		state.Canceled = true
		for batchID, active := range state.ActiveBatches {
			if active.State == model.BatchFinalized {
				continue
			}
			group, ok := c.groups[active.SubmissionGroup]
			if !ok {
				c.log.Warnf("batch %d references unknown submission group %q, skipping cancel", batchID, active.SubmissionGroup)
				continue
			}
			adapter, ok := c.adapters[group.HpcConfig.HpcType]
			if !ok {
				return fmt.Errorf("no hpc adapter configured for type %q", group.HpcConfig.HpcType)
			}
			if err := adapter.Cancel(active.HpcJobID); err != nil {
				c.log.Warnf("canceling hpc job %s (batch %d): %s", active.HpcJobID, batchID, err)
				continue
			}
			result.NumBatchesKilled++
			c.log.Infof("canceled hpc job %s (batch %d)", active.HpcJobID, batchID)
		}
		return nil
	})
	return result, err
}
