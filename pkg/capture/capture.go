// Package capture runs one decoding session: it reads stream lines from a
// source, decodes them, hands every event to the configured sinks and,
// optionally, records the session through a worker pool.
package capture

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/sse"
	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/stream"
	"github.com/papercomputeco/runstream/pkg/worker"
)

// Sink consumes decoded events in order.
type Sink interface {
	Handle(ev stream.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev stream.Event) error

func (f SinkFunc) Handle(ev stream.Event) error {
	return f(ev)
}

// Config configures a capture run.
type Config struct {
	// Source describes where lines come from, e.g. "stdin" or a URL.
	Source string

	// SessionID names the recorded session. A random one is used when empty.
	SessionID string

	// Sinks receive every event.
	Sinks []Sink

	// Record receives a verbatim copy of every line read.
	Record io.Writer

	// Pool records the session when set.
	Pool *worker.Pool

	// BestEffort drops recording jobs when the pool is saturated instead of
	// waiting for it. Live relays set it so a slow database never stalls the
	// client.
	BestEffort bool

	Logger *zap.Logger
}

// Summary describes a finished capture run.
type Summary struct {
	SessionID   string
	Lines       int
	Events      int
	ParseErrors int
	Counts      map[stream.Kind]int
	Duration    time.Duration
}

// Run decodes src until it is exhausted or ctx is cancelled. A sink error
// stops the run and is returned. Cancellation returns ctx.Err() without a
// StreamEnd being delivered.
func Run(ctx context.Context, src io.Reader, cfg Config) (*Summary, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	session := storage.NewSession(cfg.Source)
	if cfg.SessionID != "" {
		session.ID = cfg.SessionID
	}
	summary := &Summary{
		SessionID: session.ID,
		Counts:    make(map[stream.Kind]int),
	}

	rec := newRecorder(ctx, cfg.Pool, session.ID, logger)
	rec.bestEffort = cfg.BestEffort
	if err := rec.submit(worker.Job{Kind: worker.JobSessionStart, Session: session}); err != nil {
		return summary, err
	}

	reader := sse.NewTeeReader(src, cfg.Record)

	// lines feeds the decoder and records each raw line as it is pulled.
	lines := func(yield func(string) bool) {
		for line := range reader.Lines() {
			if ctx.Err() != nil {
				return
			}
			if err := rec.submit(worker.Job{Kind: worker.JobLine, Index: reader.Count() - 1, Line: line}); err != nil {
				return
			}
			if !yield(line) {
				return
			}
		}
	}

	logger.Debug("capture started",
		zap.String("session_id", session.ID),
		zap.String("source", cfg.Source),
	)

	decoder := stream.NewDecoder()
	var runErr error
	for ev := range decoder.Decode(lines) {
		if ctx.Err() != nil {
			break
		}

		if err := rec.submit(worker.Job{Kind: worker.JobEvent, Index: summary.Events, Event: ev}); err != nil {
			break
		}

		summary.Events++
		summary.Counts[ev.Kind()]++
		if ev.Kind() == stream.KindParseError {
			summary.ParseErrors++
			logger.Debug("parse error in stream", zap.String("error", ev.(stream.ParseError).ErrorMessage))
		}

		if runErr = dispatch(cfg.Sinks, ev); runErr != nil {
			break
		}
	}

	summary.Lines = reader.Count()
	summary.Duration = time.Since(session.StartedAt)

	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr == nil {
		runErr = rec.err
	}
	if runErr == nil {
		if err := reader.Err(); err != nil {
			runErr = fmt.Errorf("reading stream: %w", err)
		}
	}

	// Completion is recorded even for interrupted runs so the stored session
	// reflects what was captured.
	endErr := rec.complete(storage.Completion{
		EndedAt:     time.Now().UTC(),
		LineCount:   summary.Lines,
		EventCount:  summary.Events,
		ParseErrors: summary.ParseErrors,
	})

	logger.Debug("capture finished",
		zap.String("session_id", session.ID),
		zap.Int("lines", summary.Lines),
		zap.Int("events", summary.Events),
		zap.Int("parse_errors", summary.ParseErrors),
	)

	if runErr != nil {
		return summary, runErr
	}
	return summary, endErr
}

// Decode decodes all of src in memory. It is meant for bounded inputs such as
// request bodies.
func Decode(src io.Reader) ([]stream.Event, error) {
	reader := sse.NewReader(src)

	var events []stream.Event
	for ev := range stream.NewDecoder().Decode(reader.Lines()) {
		events = append(events, ev)
	}

	if err := reader.Err(); err != nil {
		return events, fmt.Errorf("reading stream: %w", err)
	}
	return events, nil
}

func dispatch(sinks []Sink, ev stream.Event) error {
	for _, sink := range sinks {
		if err := sink.Handle(ev); err != nil {
			return fmt.Errorf("handling %s event: %w", ev.Kind(), err)
		}
	}
	return nil
}

// recorder forwards jobs of one session to the worker pool, if any.
type recorder struct {
	ctx        context.Context
	pool       *worker.Pool
	sessionID  string
	logger     *zap.Logger
	bestEffort bool
	err        error
}

func newRecorder(ctx context.Context, pool *worker.Pool, sessionID string, logger *zap.Logger) *recorder {
	return &recorder{ctx: ctx, pool: pool, sessionID: sessionID, logger: logger}
}

func (r *recorder) submit(job worker.Job) error {
	if r.pool == nil || r.err != nil {
		return r.err
	}

	job.SessionID = r.sessionID
	if r.bestEffort {
		// Enqueue logs dropped jobs itself.
		r.pool.Enqueue(job)
		return nil
	}

	if err := r.pool.Submit(r.ctx, job); err != nil {
		r.logger.Error("failed to submit capture job",
			zap.String("session_id", r.sessionID),
			zap.Stringer("kind", job.Kind),
			zap.Error(err),
		)
		r.err = err
		return err
	}
	return nil
}

// complete records the final counters. It uses a background context so that
// a cancelled run still closes its session.
func (r *recorder) complete(c storage.Completion) error {
	if r.pool == nil {
		return nil
	}

	job := worker.Job{Kind: worker.JobSessionEnd, SessionID: r.sessionID, Completion: c}
	if err := r.pool.Submit(context.Background(), job); err != nil {
		return fmt.Errorf("recording session end: %w", err)
	}
	return nil
}
