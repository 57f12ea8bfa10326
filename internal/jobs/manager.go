package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bio-mcp/interprod/internal/executor"
	"github.com/bio-mcp/interprod/internal/notify"
	"github.com/bio-mcp/interprod/internal/workspace"
)

// Tool translates a request into an external command invocation and knows
// which output files a successful run must leave behind.
type Tool interface {
	ValidateRequest(req Request) error
	Command(req Request, inputPath, outDir string) executor.CommandSpec
	Outputs(outDir string) ([]string, error)
}

type ManagerConfig struct {
	// Slots is the number of concurrent external tool invocations.
	Slots int
	// Timeout is the wall-clock limit for one invocation.
	Timeout time.Duration
	// MaxFileSize is the input file ceiling in bytes.
	MaxFileSize int64
	// ResultDir is durable storage for completed result artifacts.
	ResultDir string
	// QueueCapacity bounds the number of admitted-but-not-started jobs.
	QueueCapacity int
}

// Manager owns the job lifecycle: it admits requests, runs them through a
// fixed pool of execution slots, and answers status, result, list and
// cancel queries. The store is the single source of truth; the manager is
// the only writer of state transitions apart from Cancel on pending jobs.
type Manager struct {
	cfg        ManagerConfig
	store      Store
	queue      *Queue
	runner     executor.Runner
	workspaces *workspace.Manager
	tool       Tool
	sender     notify.Sender
	streamer   *ProgressStreamer
	sizeLimit  executor.SizeLimit

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
	notifyWG   sync.WaitGroup
	stopped    atomic.Bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

var errNotRunnable = errors.New("job is not pending")

func NewManager(cfg ManagerConfig, store Store, runner executor.Runner, workspaces *workspace.Manager, tool Tool, sender notify.Sender, streamer *ProgressStreamer) (*Manager, error) {
	if cfg.Slots <= 0 {
		return nil, errors.New("slots must be > 0")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if err := os.MkdirAll(cfg.ResultDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating result dir: %w", err)
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		store:      store,
		queue:      NewQueue(cfg.QueueCapacity),
		runner:     runner,
		workspaces: workspaces,
		tool:       tool,
		sender:     sender,
		streamer:   streamer,
		sizeLimit:  executor.SizeLimit{Max: cfg.MaxFileSize},
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
		cancels:    make(map[string]context.CancelFunc),
	}
	for i := 0; i < cfg.Slots; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				id, ok := m.queue.Pop()
				if !ok {
					return
				}
				m.execute(id)
			}
		}()
	}
	return m, nil
}

// Stop closes the queue, interrupts in-flight executions and waits for the
// workers and any pending notifications to wind down.
func (m *Manager) Stop() {
	if m.stopped.Swap(true) {
		return
	}
	m.queue.Close()
	m.cancelBase()
	m.wg.Wait()
	m.notifyWG.Wait()
}

// Submit validates the request, records a pending job and enqueues it.
// It returns as soon as the job is admitted; execution happens on the
// worker pool's schedule. No record is created when validation fails.
func (m *Manager) Submit(ctx context.Context, req Request) (string, error) {
	if m.stopped.Load() {
		return "", ErrStopped
	}
	if req.Priority == 0 {
		req.Priority = DefaultPriority
	}
	if req.Priority < MinPriority || req.Priority > MaxPriority {
		return "", fmt.Errorf("%w: got %d", ErrInvalidPriority, req.Priority)
	}
	if req.InputFile == "" {
		return "", fmt.Errorf("%w: input_file is required", ErrInvalidRequest)
	}
	if err := m.tool.ValidateRequest(req); err != nil {
		return "", err
	}
	if _, err := m.sizeLimit.Validate(req.InputFile); err != nil {
		if errors.Is(err, executor.ErrSizeLimitExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	job := &Job{
		ID:          uuid.NewString(),
		State:       StatePending,
		Priority:    req.Priority,
		SubmittedAt: time.Now().UTC(),
		Request:     req,
	}
	if err := m.store.Create(job); err != nil {
		return "", err
	}
	if err := m.queue.Push(job.ID, job.Priority, job.SubmittedAt); err != nil {
		_ = m.store.Delete(job.ID)
		return "", err
	}
	jobsSubmittedTotal.Inc()
	queueDepth.Set(float64(m.queue.Len()))
	slog.Info("job submitted", "job_id", job.ID, "priority", job.Priority, "input", req.InputFile)
	return job.ID, nil
}

// Status returns a snapshot of the job record.
func (m *Manager) Status(id string) (*Job, error) {
	return m.store.Get(id)
}

// Result returns the completed job with its result reference, or the
// recorded failure for jobs that ended badly.
func (m *Manager) Result(id string) (*Job, error) {
	job, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	switch job.State {
	case StateCompleted:
		return job, nil
	case StateFailed, StateTimedOut:
		return nil, job.Error
	case StateCancelled:
		return nil, fmt.Errorf("%w: %s", ErrJobCancelled, id)
	default:
		return nil, fmt.Errorf("%w: job is %s", ErrResultNotReady, job.State)
	}
}

// List returns recent job snapshots, most recently submitted first.
func (m *Manager) List(f Filter) []*Job {
	return m.store.List(f)
}

// Cancel is idempotent. A pending job transitions to cancelled immediately
// and never runs; a running job has its process killed on the executor's
// schedule. Cancelling a terminal job is a no-op, not an error.
func (m *Manager) Cancel(id string) error {
	cancelledNow := false
	job, err := m.store.Update(id, func(j *Job) error {
		if j.State.Terminal() {
			return nil
		}
		j.CancelRequested = true
		if j.State == StatePending {
			now := time.Now().UTC()
			j.State = StateCancelled
			j.FinishedAt = &now
			cancelledNow = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if cancelledNow {
		jobsCancelledTotal.Inc()
		slog.Info("job cancelled before start", "job_id", id)
		m.notifyTerminal(job)
		return nil
	}
	if job.State == StateRunning {
		m.mu.Lock()
		if cancel, ok := m.cancels[id]; ok {
			cancel()
		}
		m.mu.Unlock()
		slog.Info("cancellation requested for running job", "job_id", id)
	}
	return nil
}

func (m *Manager) execute(id string) {
	if m.stopped.Load() {
		// Shutting down; leave the record pending rather than starting
		// work that would be killed immediately.
		return
	}
	queueDepth.Set(float64(m.queue.Len()))

	started := time.Now().UTC()
	job, err := m.store.Update(id, func(j *Job) error {
		if j.State != StatePending {
			return errNotRunnable
		}
		j.State = StateRunning
		j.StartedAt = &started
		return nil
	})
	if err != nil {
		// Cancelled while queued, or pruned by retention.
		if !errors.Is(err, errNotRunnable) && !errors.Is(err, ErrJobNotFound) {
			slog.Warn("dequeued job could not start", "job_id", id, "error", err)
		}
		return
	}
	jobsRunning.Inc()
	defer jobsRunning.Dec()
	slog.Info("job started", "job_id", id)

	jobCtx, cancel := context.WithCancel(m.baseCtx)
	m.mu.Lock()
	m.cancels[id] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
		cancel()
	}()

	// A cancel may have slipped in between the transition above and the
	// registration of the cancel func.
	if cur, err := m.store.Get(id); err == nil && cur.CancelRequested {
		cancel()
	}

	resultPath, execErr := m.runJob(jobCtx, job)

	finished := time.Now().UTC()
	final, err := m.store.Update(id, func(j *Job) error {
		j.FinishedAt = &finished
		j.WorkspacePath = ""
		switch {
		case j.CancelRequested:
			j.State = StateCancelled
		case execErr == nil:
			j.State = StateCompleted
			j.ResultPath = resultPath
		case execErr.Kind == ErrKindTimeout:
			j.State = StateTimedOut
			j.Error = execErr
		default:
			j.State = StateFailed
			j.Error = execErr
		}
		return nil
	})
	if err != nil {
		slog.Error("finalizing job failed", "job_id", id, "error", err)
		return
	}

	// Cancellation supersedes any result; drop artifacts that were
	// collected before the flag was observed.
	if final.State == StateCancelled && resultPath != "" {
		_ = os.RemoveAll(resultPath)
	}

	switch final.State {
	case StateCompleted:
		jobsCompletedTotal.Inc()
	case StateTimedOut:
		jobsTimedOutTotal.Inc()
	case StateCancelled:
		jobsCancelledTotal.Inc()
	default:
		jobsFailedTotal.Inc()
	}
	slog.Info("job finished",
		"job_id", id,
		"state", final.State,
		"duration", finished.Sub(started).String(),
	)

	m.streamer.Close(id)
	m.notifyTerminal(final)
}

// runJob drives one execution: re-validate size, acquire and stage a
// workspace, invoke the tool under the wall-clock timeout, and move result
// artifacts to durable storage. The workspace is released on every path.
func (m *Manager) runJob(ctx context.Context, job *Job) (string, *ExecError) {
	if _, err := m.sizeLimit.Validate(job.Request.InputFile); err != nil {
		return "", &ExecError{Kind: ErrKindRejected, Message: err.Error()}
	}

	ws, err := m.workspaces.Acquire(job.ID)
	if err != nil {
		return "", &ExecError{Kind: ErrKindWorkspace, Message: err.Error()}
	}
	defer func() {
		if err := ws.Release(); err != nil {
			slog.Error("workspace release failed", "job_id", job.ID, "path", ws.Path, "error", err)
		}
	}()
	_, _ = m.store.Update(job.ID, func(j *Job) error {
		j.WorkspacePath = ws.Path
		return nil
	})

	staged, err := ws.Stage(job.Request.InputFile)
	if err != nil {
		return "", &ExecError{Kind: ErrKindWorkspace, Message: err.Error()}
	}

	spec := m.tool.Command(job.Request, staged, ws.OutDir)

	runCtx, cancelRun := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancelRun()

	res, runErr := m.runner.Run(runCtx, job.ID, spec, &progressWriter{m: m, jobID: job.ID})
	if runErr != nil {
		var tail string
		if res != nil {
			tail = res.StderrTail
		}
		switch {
		case errors.Is(runErr, context.DeadlineExceeded):
			return "", &ExecError{
				Kind:       ErrKindTimeout,
				Message:    fmt.Sprintf("timed out after %s", m.cfg.Timeout),
				StderrTail: tail,
			}
		case errors.Is(runErr, context.Canceled):
			return "", &ExecError{Kind: ErrKindInterrupted, Message: "execution interrupted", StderrTail: tail}
		default:
			return "", &ExecError{Kind: ErrKindToolFailed, Message: runErr.Error()}
		}
	}
	if res.ExitCode != 0 {
		return "", &ExecError{
			Kind:       ErrKindToolFailed,
			ExitCode:   res.ExitCode,
			Message:    "analysis tool exited with an error",
			StderrTail: res.StderrTail,
		}
	}

	outputs, err := m.tool.Outputs(ws.OutDir)
	if err != nil {
		return "", &ExecError{Kind: ErrKindWorkspace, Message: err.Error()}
	}
	if len(outputs) == 0 {
		return "", &ExecError{
			Kind:       ErrKindToolFailed,
			Message:    "tool exited 0 but produced no output files",
			StderrTail: res.StderrTail,
		}
	}

	resultPath, err := m.collectResults(job.ID, outputs)
	if err != nil {
		return "", &ExecError{Kind: ErrKindWorkspace, Message: err.Error()}
	}
	return resultPath, nil
}

// collectResults copies output artifacts out of the workspace into durable
// result storage before the workspace is released.
func (m *Manager) collectResults(jobID string, outputs []string) (string, error) {
	dir := filepath.Join(m.cfg.ResultDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating result dir: %w", err)
	}
	for _, src := range outputs {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("collecting %s: %w", filepath.Base(src), err)
		}
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// notifyTerminal fires the completion callback without blocking the state
// machine; delivery failure is logged and never changes job state.
func (m *Manager) notifyTerminal(job *Job) {
	target := job.Request.NotifyURL
	if target == "" || m.sender == nil {
		return
	}
	m.notifyWG.Add(1)
	go func() {
		defer m.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		event := notify.Event{
			JobID:      job.ID,
			State:      string(job.State),
			ResultPath: job.ResultPath,
			Timestamp:  time.Now().UTC(),
			Metadata:   job.Request.Metadata,
		}
		if job.Error != nil {
			event.Error = job.Error.Error()
		}
		if err := m.sender.Notify(ctx, target, event); err != nil {
			slog.Warn("completion notification failed", "job_id", job.ID, "target", target, "error", err)
		}
	}()
}

// progressWriter receives one stderr line per write from the runner and
// publishes it as the job's progress hint.
type progressWriter struct {
	m     *Manager
	jobID string
}

func (w *progressWriter) Write(p []byte) (int, error) {
	line := string(p)
	w.m.streamer.Broadcast(w.jobID, p)
	_, _ = w.m.store.Update(w.jobID, func(j *Job) error {
		j.Progress = line
		return nil
	})
	return len(p), nil
}
