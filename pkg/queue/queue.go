// Package queue runs background jobs outside the request path.
//
// Usage:
//
//	type PublishOrderPlaced struct{ OrderID string }
//	func (PublishOrderPlaced) Name() string { return "orders.publish_placed" }
//	func (j *PublishOrderPlaced) Handle(ctx context.Context) error { ... }
//
//	queue.Register(func() queue.Job { return &PublishOrderPlaced{} })
//	queue.Dispatch(ctx, &PublishOrderPlaced{OrderID: id})
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// Job is the interface every queued job must satisfy. Jobs are serialised
// as JSON, so their exported fields are the payload.
type Job interface {
	Name() string
	Handle(ctx context.Context) error
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is available. A nil payload with nil error
	// means the driver timed out and the caller should poll again.
	Pop(ctx context.Context) ([]byte, error)
}

// FailedJob holds information about a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Payload  []byte
	Err      error
	FailedAt time.Time
	Attempts int
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Manager is the central queue hub.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration

	workers sync.WaitGroup
}

// NewManager returns a manager on d with three attempts per job.
func NewManager(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  time.Second,
	}
}

var defaultManager = NewManager(NewMemoryDriver())

// Default returns the process-wide manager.
func Default() *Manager { return defaultManager }

// SetDriver swaps the underlying queue driver (e.g. Redis).
func SetDriver(d Driver) { defaultManager.SetDriver(d) }

// SetMaxRetry sets how many attempts a failing job gets.
func SetMaxRetry(n int) { defaultManager.SetRetry(n, defaultManager.backoff) }

// Register makes a job type available for decoding by its Name.
func Register(factory func() Job) { defaultManager.Register(factory) }

// Dispatch pushes job onto the default queue.
func Dispatch(ctx context.Context, job Job) error { return defaultManager.Dispatch(ctx, job) }

// Shutdown waits for the default manager's workers and drains its
// in-memory backlog.
func Shutdown(ctx context.Context) (int, error) { return defaultManager.Shutdown(ctx) }

// StartWorkers launches n workers on the default manager.
func StartWorkers(ctx context.Context, n int) { defaultManager.StartWorkers(ctx, n) }

// FailedJobs returns a snapshot of the default manager's failures.
func FailedJobs() []FailedJob { return defaultManager.FailedJobs() }

func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	m.driver = d
	m.mu.Unlock()
}

// SetRetry configures attempts per job and the linear backoff step.
func (m *Manager) SetRetry(attempts int, backoff time.Duration) {
	m.mu.Lock()
	if attempts < 1 {
		attempts = 1
	}
	m.maxRetry = attempts
	m.backoff = backoff
	m.mu.Unlock()
}

func (m *Manager) Register(factory func() Job) {
	name := factory().Name()
	m.mu.Lock()
	m.registry[name] = factory
	m.mu.Unlock()
}

func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", job.Name(), err)
	}

	env, err := json.Marshal(envelope{Type: job.Name(), Payload: payload})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	return m.currentDriver().Push(ctx, env)
}

func (m *Manager) currentDriver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

// StartWorkers launches n goroutines that process jobs until ctx is cancelled.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		m.workers.Add(1)
		go func() {
			defer m.workers.Done()
			m.work(ctx)
		}()
	}
	logger.Info("queue: workers started", "count", n)
}

func (m *Manager) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := m.WorkOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
		}
	}
}

// Shutdown waits for workers whose context has been cancelled to return,
// then runs whatever is still buffered in a driver that reports its
// length (the memory driver). Durable drivers keep their backlog for the
// next process. It returns the number of drained jobs.
func (m *Manager) Shutdown(ctx context.Context) (int, error) {
	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return 0, fmt.Errorf("queue: workers still running: %w", ctx.Err())
	}

	buffered, ok := m.currentDriver().(interface{ Len() int })
	if !ok {
		return 0, nil
	}
	n := 0
	for buffered.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return n, fmt.Errorf("queue: %d jobs left undrained: %w", buffered.Len(), err)
		}
		if err := m.WorkOnce(ctx); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// WorkOnce pops and runs a single job. It returns only driver errors; job
// failures are retried and then recorded as failed jobs.
func (m *Manager) WorkOnce(ctx context.Context) error {
	raw, err := m.currentDriver().Pop(ctx)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	m.process(ctx, raw)
	return nil
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
		m.persistFailed(ctx, env.Type, env.Payload, errors.New("unregistered job type"), 0)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		m.persistFailed(ctx, env.Type, env.Payload, err, 0)
		return
	}

	m.runWithRetry(ctx, job, env.Payload)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, payload []byte) {
	m.mu.RLock()
	attempts, backoff := m.maxRetry, m.backoff
	m.mu.RUnlock()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err := job.Handle(ctx)
		if err == nil {
			metrics.RecordQueueJob(job.Name(), "success", start)
			logger.Debug("queue: job processed", "type", job.Name())
			return
		}

		lastErr = err
		metrics.RecordQueueJob(job.Name(), "retry", start)
		logger.Warn("queue: job failed", "type", job.Name(), "attempt", attempt, "error", err)

		if attempt < attempts && backoff > 0 {
			select {
			case <-ctx.Done():
				attempts = attempt
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
	}

	metrics.QueueJobsProcessed.WithLabelValues(job.Name(), "failed").Inc()
	m.persistFailed(ctx, job.Name(), payload, lastErr, attempts)
	logger.Error("queue: job exhausted retries", "type", job.Name(), "error", lastErr)
}

// FailedJobs returns a snapshot of all failed jobs.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FailedJob(nil), m.failed...)
}
