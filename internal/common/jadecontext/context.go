// Package jadecontext extends context.Context with a contextual logger, the
// way armadacontext.Context does for armada. The worker pool's subprocess
// runs (worker.Pool.RunBatch) take a *Context, so a job's wait observes the
// caller's cancellation and its logging can carry fields the caller has
// attached. Cluster lock acquisition and HPC adapter calls do not take one.
package jadecontext

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context pairs a context.Context with a *logrus.Entry.
type Context struct {
	context.Context
	Log *logrus.Entry
}

// Background returns an empty Context with a default logger.
func Background() *Context {
	return &Context{Context: context.Background(), Log: logrus.NewEntry(logrus.StandardLogger())}
}

// New wraps an existing context.Context and logger.
func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{Context: ctx, Log: log}
}

// WithCancel is analogous to context.WithCancel.
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithTimeout is analogous to context.WithTimeout.
func WithTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(parent.Context, timeout)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithField returns a copy of parent with key=val added to the logger.
func WithField(parent *Context, key string, val interface{}) *Context {
	return &Context{Context: parent.Context, Log: parent.Log.WithField(key, val)}
}

// WithFields returns a copy of parent with fields added to the logger.
func WithFields(parent *Context, fields logrus.Fields) *Context {
	return &Context{Context: parent.Context, Log: parent.Log.WithFields(fields)}
}

// ErrGroup returns an errgroup.Group and a derived Context, analogous to
// errgroup.WithContext, retaining the parent's logger.
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, goctx := errgroup.WithContext(ctx.Context)
	return group, &Context{Context: goctx, Log: ctx.Log}
}
