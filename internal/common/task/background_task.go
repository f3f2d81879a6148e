// Package task runs recurring background functions on a fixed interval,
// each instrumented with a latency histogram. Adapted from armada's
// internal/common/task.BackgroundTaskManager; JADE uses it for the
// cancellation-flag poll ticker inside the worker pool and for the
// resource-sampler wake cadence.
package task

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type recurring struct {
	function    func()
	interval    time.Duration
	name        string
	stopChannel chan struct{}
}

// Manager runs a set of registered functions on their own goroutines at
// fixed intervals until StopAll is called. It is not safe for concurrent
// use of Register/StopAll from multiple goroutines.
//
// Each Manager owns a private prometheus.Registry rather than registering
// into prometheus.DefaultRegisterer: JADE creates one Manager per batch
// (internal/worker.Pool), and the default registerer panics on the second
// registration of a metric with the same name, which a shared registerer
// would hit the moment a process runs a second batch.
type Manager struct {
	metricsPrefix string
	registry      *prometheus.Registry
	tasks         []*recurring
	wg            sync.WaitGroup
}

func NewManager(metricsPrefix string) *Manager {
	return &Manager{metricsPrefix: metricsPrefix, registry: prometheus.NewRegistry()}
}

// Register starts running fn every interval in its own goroutine.
func (m *Manager) Register(name string, fn func(), interval time.Duration) {
	t := &recurring{function: fn, interval: interval, name: name, stopChannel: make(chan struct{})}
	m.tasks = append(m.tasks, t)
	m.start(t)
}

func (m *Manager) start(t *recurring) {
	factory := promauto.With(m.registry)
	histogram := factory.NewHistogram(prometheus.HistogramOpts{
		Name:    m.metricsPrefix + "_" + t.name + "_latency_seconds",
		Help:    "Background loop " + t.name + " latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stopChannel:
				return
			case <-ticker.C:
				start := time.Now()
				t.function()
				histogram.Observe(time.Since(start).Seconds())
			}
		}
	}()
}

// StopAll signals every registered task to stop and waits up to timeout for
// them to exit, returning true if they all did.
func (m *Manager) StopAll(timeout time.Duration) bool {
	for _, t := range m.tasks {
		close(t.stopChannel)
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
