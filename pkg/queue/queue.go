// Package queue runs background jobs off the request path.
//
// Jobs are JSON-encoded into an envelope naming their registered type and
// pushed to a Driver (in-process channel or a Redis list). Workers pop,
// decode through the registered factory, and call Handle with retries.
// Jobs that exhaust their retries are kept in memory and, when a database
// is attached, written to the failed-jobs table.
//
//	m := queue.New(queue.NewMemoryDriver())
//	m.Register(jobs.ExportListingName, func() queue.Job { return jobs.NewExportListing(repo, disk) })
//	_ = m.Dispatch(ctx, &jobs.ExportListing{ProjectID: id})
//	go m.Work(ctx, 2)
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/metrics"
)

// Job is the interface every queued job must satisfy.
type Job interface {
	Handle(ctx context.Context) error
}

// Named lets a job choose its registry name. Without it the Go type name
// is used.
type Named interface {
	JobName() string
}

// FailedJob holds information about a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend. Pop may return (nil, nil) when it
// timed out without a job.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

// Delayer is implemented by drivers that can hold a job until a later time.
type Delayer interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// Manager is the central queue hub.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration
	db       *gorm.DB
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxRetry sets how many attempts a job gets before it is failed.
func WithMaxRetry(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxRetry = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n×d.
func WithBackoff(d time.Duration) Option {
	return func(m *Manager) { m.backoff = d }
}

// WithFailedStore persists failed jobs to db. The table is created by the
// failed_jobs migration.
func WithFailedStore(db *gorm.DB) Option {
	return func(m *Manager) { m.db = db }
}

func New(d Driver, opts ...Option) *Manager {
	m := &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register makes a job type available for decoding by name.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

// ─── Dispatch ────────────────────────────────────────────────────────────────

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func jobName(job Job) string {
	if n, ok := job.(Named); ok {
		return n.JobName()
	}
	return fmt.Sprintf("%T", job)
}

func encode(job Job) ([]byte, error) {
	typeName := jobName(job)
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", typeName, err)
	}
	env, err := json.Marshal(envelope{Type: typeName, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

// Dispatch pushes job onto the queue immediately.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	return m.driver.Push(ctx, env)
}

// DispatchAfter pushes job after delay. Drivers without delay support get
// an in-process timer, which does not survive a restart.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	if d, ok := m.driver.(Delayer); ok {
		return d.PushDelayed(ctx, env, delay)
	}

	ctx = context.WithoutCancel(ctx)
	time.AfterFunc(delay, func() {
		if err := m.driver.Push(ctx, env); err != nil {
			logger.Error("queue: delayed dispatch failed", "type", jobName(job), "error", err)
		}
	})
	return nil
}

// ─── Worker ──────────────────────────────────────────────────────────────────

// Work runs n workers until ctx is cancelled and returns once they exit.
func (m *Manager) Work(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	logger.Info("queue: workers started", "count", n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.work(ctx)
		}()
	}
	wg.Wait()
	logger.Info("queue: workers stopped")
}

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		raw, err := m.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}
		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}

	m.runWithRetry(ctx, job, env.Type)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, typeName string) {
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= m.maxRetry; attempt++ {
		if lastErr = job.Handle(ctx); lastErr == nil {
			logger.Info("queue: job processed", "type", typeName, "attempt", attempt)
			metrics.RecordQueueJob(typeName, "success", start)
			return
		}
		logger.Warn("queue: job failed", "type", typeName, "attempt", attempt, "error", lastErr)
		if attempt < m.maxRetry && !sleep(ctx, time.Duration(attempt)*m.backoff) {
			break
		}
	}

	metrics.RecordQueueJob(typeName, "failed", start)
	m.persistFailed(ctx, job, typeName, lastErr, m.maxRetry)
	logger.Error("queue: job exhausted retries", "type", typeName, "error", lastErr)
}

// FailedJobs returns a snapshot of the failures seen by this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

// sleep waits for d or ctx, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
