// Package apprun provides process-lifetime helpers shared by every JADE
// entrypoint, adapted from armada's internal/common/app.
package apprun

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithShutdownSignal returns a context that is canceled when the process
// receives SIGINT or SIGTERM. run-jobs uses this as Pool.RunBatch's root
// context, so an operator's Ctrl-C or the HPC scheduler's walltime-kill
// signal reaches runOne's SIGTERM-then-grace-period-then-SIGKILL path
// instead of leaving orphaned subprocesses behind.
func WithShutdownSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
