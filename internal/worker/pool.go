// Package worker runs one batch's jobs on a node: a bounded-concurrency
// subprocess pool that honors in-batch blocked_by ordering, cascades
// cancellation to dependents of a failed job, and returns every job's
// result once the whole batch is done. Results are not written one job at
// a time: run-jobs appends them to the run's CSV after the batch finishes.
// Grounded on
// _examples/original_source/jade/jobs/{job_queue,dispatchable_job,
// job_runner}.py.
package worker

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/NREL/jade/internal/common/jadecontext"
	"github.com/NREL/jade/internal/common/task"
	"github.com/NREL/jade/internal/model"
)

// Pool runs the jobs of a single batch with execution constrained to
// group.ResolvedParallelism concurrent subprocesses.
type Pool struct {
	group         *model.SubmissionGroup
	batchDir      string
	runtimeOutput string
	nodeNames     []string
	batchID       int
	gracePeriod   time.Duration
	pollInterval  time.Duration
	log           *logrus.Entry
}

// New builds a Pool for one batch. batchDir is the batch's own scratch
// directory (holds config.json/run.sh and is used as the job's working
// directory); runtimeOutput is the run's top-level output directory,
// which is what JADE_RUNTIME_OUTPUT names and where job-stdio/ lives.
// nodeNames, when non-empty, names every node participating in the
// batch's HPC allocation, surfaced to jobs as JADE_COMPUTE_NODE_NAMES.
func New(group *model.SubmissionGroup, batchDir, runtimeOutput string, batchID int, nodeNames []string, log *logrus.Entry) *Pool {
	grace := time.Duration(model.DefaultGracePeriodSeconds) * time.Second
	poll := time.Duration(model.DefaultPollIntervalSeconds) * time.Second
	if group.PollIntervalSeconds > 0 {
		poll = time.Duration(group.PollIntervalSeconds) * time.Second
	}
	return &Pool{
		group: group, batchDir: batchDir, runtimeOutput: runtimeOutput, nodeNames: nodeNames,
		batchID: batchID, gracePeriod: grace, pollInterval: poll, log: log,
	}
}

// pending tracks one job's position in the in-batch dependency queue.
type pending struct {
	job       model.Job
	blockedBy map[int]bool
	canceled  bool
}

// RunBatch executes every job in jobs, respecting blocked_by ordering
// within the batch, and returns one JobResult per job. priorCompleted
// names jobs (by ID) that already finished in an earlier batch, so a
// blocker listed here is immediately satisfied. isCanceled is polled on
// pollInterval; when it reports true, every job not yet started is
// recorded as StatusCanceled and running jobs are sent SIGTERM.
func (p *Pool) RunBatch(ctx *jadecontext.Context, jobs []model.Job, priorCompleted map[int]bool, isCanceled func() bool) []model.JobResult {
	if err := p.runNodeSetup(); err != nil {
		p.log.Errorf("node setup command failed, aborting batch %d: %s", p.batchID, err)
		aborted := make([]model.JobResult, len(jobs))
		for i, j := range jobs {
			aborted[i] = model.JobResult{
				Name: j.DisplayName(), JobID: j.ID, ReturnCode: 1,
				Status: model.StatusFinished, BatchID: p.batchID, OutputDir: p.batchDir,
				CompletionTime: time.Now(),
			}
		}
		return aborted
	}
	defer p.runNodeTeardown()

	if err := os.MkdirAll(filepath.Join(p.runtimeOutput, "job-stdio"), 0o755); err != nil {
		p.log.Errorf("creating job-stdio directory: %s", err)
	}

	queue := make(map[int]*pending, len(jobs))
	for _, j := range jobs {
		blockers := map[int]bool{}
		for _, b := range j.BlockedBy {
			if !priorCompleted[b] {
				blockers[b] = true
			}
		}
		queue[j.ID] = &pending{job: j, blockedBy: blockers}
	}

	ctx, cancel := jadecontext.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(p.group.ResolvedParallelism(runtime.NumCPU())))
	results := make(chan model.JobResult, len(jobs))
	var wg sync.WaitGroup

	var mu sync.Mutex
	done := map[int]bool{}
	failed := map[int]bool{}

	var launch func()
	launch = func() {
		mu.Lock()
		defer mu.Unlock()

		canceled := isCanceled()
		if canceled {
			cancel()
		}
		for id, pend := range queue {
			if pend == nil || pend.canceled {
				continue
			}
			if canceled {
				pend.canceled = true
				results <- model.JobResult{
					Name: pend.job.DisplayName(), JobID: id, Status: model.StatusCanceled,
					BatchID: p.batchID, OutputDir: p.batchDir,
				}
				queue[id] = nil
				continue
			}
			for b := range pend.blockedBy {
				if failed[b] && pend.job.CancelOnBlockingJobFailure {
					pend.canceled = true
					results <- model.JobResult{
						Name: pend.job.DisplayName(), JobID: id, Status: model.StatusCanceled,
						BatchID: p.batchID, OutputDir: p.batchDir,
					}
					queue[id] = nil
					break
				}
				if done[b] {
					delete(pend.blockedBy, b)
				}
			}
			if pend.canceled || len(pend.blockedBy) > 0 {
				continue
			}
			if !sem.TryAcquire(1) {
				continue
			}

			queue[id] = nil
			wg.Add(1)
			go func(j model.Job) {
				defer wg.Done()
				defer sem.Release(1)
				result := p.runOne(ctx, j)
				mu.Lock()
				done[j.ID] = true
				if result.ReturnCode != 0 {
					failed[j.ID] = true
				}
				mu.Unlock()
				results <- result
			}(pend.job)
		}
	}

	tasks := task.NewManager("jade_worker_pool_batch_" + strconv.Itoa(p.batchID))
	tasks.Register("cancellation_poll", launch, p.pollInterval)
	if p.group.ResourceMonitorIntervalSeconds > 0 {
		// The sampler itself is out of scope; this registers the cadence
		// it would be woken on so the field has a concrete consumer.
		tasks.Register("resource_monitor", func() {}, time.Duration(p.group.ResourceMonitorIntervalSeconds)*time.Second)
	}
	defer tasks.StopAll(p.gracePeriod)

	launch()
	collected := make([]model.JobResult, 0, len(jobs))
	for len(collected) < len(jobs) {
		r := <-results
		collected = append(collected, r)
		launch()
	}
	wg.Wait()
	return collected
}

// runOne executes one job's command as a subprocess, honoring ctx
// cancellation by sending SIGTERM and waiting up to the pool's grace
// period before SIGKILL. Mirrors dispatchable_job.py's run/_complete pair.
func (p *Pool) runOne(ctx *jadecontext.Context, job model.Job) model.JobResult {
	argv := job.Argv()
	if len(argv) == 0 {
		return model.JobResult{
			Name: job.DisplayName(), JobID: job.ID, ReturnCode: 1,
			Status: model.StatusFinished, BatchID: p.batchID, OutputDir: p.batchDir,
			CompletionTime: time.Now(),
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = p.batchDir
	cmd.Env = p.jobEnv(job)

	stdout, stderr, err := p.openJobStdio(job)
	if err != nil {
		p.log.Errorf("opening stdio files for job %s: %s", job.DisplayName(), err)
	} else {
		defer stdout.Close()
		defer stderr.Close()
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return model.JobResult{
			Name: job.DisplayName(), JobID: job.ID, ReturnCode: 1,
			Status: model.StatusMissing, BatchID: p.batchID, OutputDir: p.batchDir,
			CompletionTime: time.Now(), ExecTimeSecond: time.Since(start).Seconds(),
		}
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitDone:
	case <-ctx.Done():
		cmd.Process.Signal(syscall.SIGTERM)
		select {
		case waitErr = <-waitDone:
		case <-time.After(p.gracePeriod):
			cmd.Process.Kill()
			waitErr = <-waitDone
		}
	}

	returnCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			returnCode = exitErr.ExitCode()
		} else {
			returnCode = 1
		}
	}

	return model.JobResult{
		Name: job.DisplayName(), JobID: job.ID, ReturnCode: returnCode,
		Status: model.StatusFinished, BatchID: p.batchID, OutputDir: p.batchDir,
		ExecTimeSecond: time.Since(start).Seconds(), CompletionTime: time.Now(),
	}
}

// jobEnv builds the environment a job's command runs with: the process's
// own environment plus the stable JADE_* variables documented as part of
// the external interface.
func (p *Pool) jobEnv(job model.Job) []string {
	env := append(os.Environ(),
		"JADE_RUNTIME_OUTPUT="+p.runtimeOutput,
		"JADE_JOB_NAME="+job.DisplayName(),
		"JADE_SUBMISSION_GROUP="+p.group.Name,
	)
	if len(p.nodeNames) > 0 {
		env = append(env,
			"JADE_OUTPUT_DIR="+p.runtimeOutput,
			"JADE_COMPUTE_NODE_NAMES="+strings.Join(p.nodeNames, " "),
		)
	}
	return env
}

// openJobStdio opens <runtimeOutput>/job-stdio/<job.name>.{o,e}, truncating
// any file left over from a prior attempt at this job.
func (p *Pool) openJobStdio(job model.Job) (stdout, stderr *os.File, err error) {
	dir := filepath.Join(p.runtimeOutput, "job-stdio")
	stdout, err = os.Create(filepath.Join(dir, job.DisplayName()+".o"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening stdout file: %w", err)
	}
	stderr, err = os.Create(filepath.Join(dir, job.DisplayName()+".e"))
	if err != nil {
		stdout.Close()
		return nil, nil, fmt.Errorf("opening stderr file: %w", err)
	}
	return stdout, stderr, nil
}

// runNodeSetup runs group.NodeSetupCommand synchronously before any
// worker starts, in the batch directory with the same JADE_RUNTIME_OUTPUT/
// JADE_SUBMISSION_GROUP environment jobs get. A non-zero exit aborts the
// whole batch.
func (p *Pool) runNodeSetup() error {
	if p.group.NodeSetupCommand == "" {
		return nil
	}
	cmd := exec.Command("sh", "-c", p.group.NodeSetupCommand)
	cmd.Dir = p.batchDir
	cmd.Env = append(os.Environ(),
		"JADE_RUNTIME_OUTPUT="+p.runtimeOutput,
		"JADE_SUBMISSION_GROUP="+p.group.Name,
	)
	return cmd.Run()
}

// runNodeTeardown runs group.NodeTeardownCommand after the batch's last
// worker finishes, even if the batch was canceled. Its failure is logged
// but does not affect the batch's results.
func (p *Pool) runNodeTeardown() {
	if p.group.NodeTeardownCommand == "" {
		return
	}
	cmd := exec.Command("sh", "-c", p.group.NodeTeardownCommand)
	cmd.Dir = p.batchDir
	cmd.Env = append(os.Environ(),
		"JADE_RUNTIME_OUTPUT="+p.runtimeOutput,
		"JADE_SUBMISSION_GROUP="+p.group.Name,
	)
	if err := cmd.Run(); err != nil {
		p.log.Errorf("node teardown command failed: %s", err)
	}
}
