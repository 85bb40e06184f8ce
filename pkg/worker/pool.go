// Package worker provides an asynchronous worker pool for recording decoded
// stream sessions using the provided storage.Driver and publishing their
// events using the provided eventstream.Publisher.
//
// The pool decouples persistence from decoding so that a slow database or
// broker never stalls a live stream. Jobs are sharded by session ID: every
// job of one session is handled by the same worker, in submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/eventstream"
	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/stream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("worker pool closed")

// JobKind selects what a Job records.
type JobKind int

const (
	// JobSessionStart creates the session row.
	JobSessionStart JobKind = iota

	// JobLine records a raw stream line.
	JobLine

	// JobEvent records and publishes a decoded event.
	JobEvent

	// JobSessionEnd stores the final session counters.
	JobSessionEnd
)

func (k JobKind) String() string {
	switch k {
	case JobSessionStart:
		return "session_start"
	case JobLine:
		return "line"
	case JobEvent:
		return "event"
	case JobSessionEnd:
		return "session_end"
	default:
		return "unknown"
	}
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Kind      JobKind
	SessionID string
	Index     int

	// Session is set for JobSessionStart.
	Session *storage.Session

	// Line is set for JobLine.
	Line string

	// Event is set for JobEvent.
	Event stream.Event

	// Completion is set for JobSessionEnd.
	Completion storage.Completion
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the optional storage backend for recording sessions.
	Driver storage.Driver

	// Publisher is the optional event stream backend for decoded events.
	Publisher eventstream.Publisher

	// Source is attached to published events.
	Source string

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of each worker's buffered job channel
	// (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes recording jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queues []chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queues: make([]chan Job, c.NumWorkers),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		wp.queues[i] = make(chan Job, c.QueueSize)
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed, job dropped",
			zap.String("session_id", job.SessionID),
			zap.Stringer("kind", job.Kind),
		)
		return false
	}

	select {
	case p.queueFor(job.SessionID) <- job:
		p.logger.Debug("job queued",
			zap.String("session_id", job.SessionID),
			zap.Stringer("kind", job.Kind),
			zap.Int("index", job.Index),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("session_id", job.SessionID),
			zap.Stringer("kind", job.Kind),
			zap.Int("index", job.Index),
		)
		return false
	}
}

// Submit is like Enqueue but waits for queue capacity instead of dropping the
// job. It returns ctx.Err() if ctx ends first.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.queueFor(job.SessionID) <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown once producers have stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) queueFor(sessionID string) chan Job {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return p.queues[h.Sum32()%uint32(len(p.queues))]
}

// worker is the inner worker thread that continuously pulls jobs off its queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queues[id] {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

// processJob records a Job and, for events, publishes it. Failures are logged
// and never stop the worker.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.store(ctx, job); err != nil {
		p.logger.Error("async session storage failed",
			zap.String("session_id", job.SessionID),
			zap.Stringer("kind", job.Kind),
			zap.Int("index", job.Index),
			zap.Error(err),
		)
	}

	if job.Kind == JobEvent && p.config.Publisher != nil {
		if err := p.publish(ctx, job); err != nil {
			p.logger.Warn("failed to publish event",
				zap.String("session_id", job.SessionID),
				zap.Int("index", job.Index),
				zap.Error(err),
			)
		}
	}
}

func (p *Pool) store(ctx context.Context, job Job) error {
	driver := p.config.Driver
	if driver == nil {
		return nil
	}

	switch job.Kind {
	case JobSessionStart:
		if job.Session == nil {
			return errors.New("session start job without session")
		}
		return driver.CreateSession(ctx, job.Session)

	case JobLine:
		return driver.AppendLine(ctx, &storage.Line{
			SessionID: job.SessionID,
			Index:     job.Index,
			Text:      job.Line,
		})

	case JobEvent:
		record, err := storage.NewRecord(job.SessionID, job.Index, job.Event)
		if err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
		return driver.AppendRecord(ctx, record)

	case JobSessionEnd:
		if err := driver.CompleteSession(ctx, job.SessionID, job.Completion); err != nil {
			return err
		}
		p.logger.Info("session stored",
			zap.String("session_id", job.SessionID),
			zap.Int("lines", job.Completion.LineCount),
			zap.Int("events", job.Completion.EventCount),
		)
		return nil

	default:
		return fmt.Errorf("unknown job kind %d", job.Kind)
	}
}

func (p *Pool) publish(ctx context.Context, job Job) error {
	event, err := eventstream.NewEventDecoded(job.SessionID, p.config.Source, job.Index, job.Event)
	if err != nil {
		return err
	}
	return p.config.Publisher.PublishEvent(ctx, event)
}
