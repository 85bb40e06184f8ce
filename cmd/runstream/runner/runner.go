// Package runner wires the capture pipeline for the commands that decode a
// stream: the output sink, the optional raw capture file and the recording
// backends.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/pkg/capture"
	"github.com/papercomputeco/runstream/pkg/cliui"
	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/dotdir"
	"github.com/papercomputeco/runstream/pkg/render"
)

// Options configures one decoding run.
type Options struct {
	// Format is config.OutputPretty or config.OutputJSON.
	Format     string
	ShowChunks bool
	Markdown   bool

	// RecordPath receives a verbatim copy of the stream when set.
	RecordPath string

	SQLitePath   string
	PostgresDSN  string
	KafkaBrokers string
	KafkaTopic   string

	// ConfigDir overrides the .runstream directory used for the last
	// session pointer.
	ConfigDir string

	// Out receives decoded events, Err the run summary.
	Out io.Writer
	Err io.Writer

	Logger *zap.Logger
}

// NewSink returns the event sink for format.
func NewSink(w io.Writer, format string, opts render.Options) (capture.Sink, error) {
	switch format {
	case "", config.OutputPretty:
		return render.NewPretty(w, opts), nil
	case config.OutputJSON:
		return render.NewJSON(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected pretty or json)", format)
	}
}

// Run decodes src to o.Out and records it when a backend is configured.
// Cancelling ctx stops the run; the partial session is still recorded and
// no error is returned for it.
func Run(ctx context.Context, src io.Reader, source string, o Options) (*capture.Summary, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}

	sink, err := NewSink(o.Out, o.Format, render.Options{
		ShowChunks: o.ShowChunks,
		Markdown:   o.Markdown,
	})
	if err != nil {
		return nil, err
	}

	backends, err := OpenBackends(ctx, o, source, logger)
	if err != nil {
		return nil, err
	}
	defer backends.Close()
	recording := backends.Driver != nil

	var record io.Writer
	if o.RecordPath != "" {
		f, err := os.Create(o.RecordPath)
		if err != nil {
			return nil, fmt.Errorf("creating capture file: %w", err)
		}
		defer f.Close()
		record = f
	}

	summary, runErr := capture.Run(ctx, src, capture.Config{
		Source: source,
		Sinks:  []capture.Sink{sink},
		Record: record,
		Pool:   backends.Pool,
		Logger: logger,
	})
	if errors.Is(runErr, context.Canceled) {
		logger.Debug("run interrupted", zap.String("source", source))
		runErr = nil
	}

	// Drain the pool before pointing at the session.
	if err := backends.Close(); err != nil {
		logger.Warn("failed to close recording backends", zap.Error(err))
	}

	if recording && summary != nil {
		err := dotdir.NewManager().SaveLastSession(&dotdir.LastSession{
			ID:         summary.SessionID,
			Source:     source,
			Database:   backends.Database,
			RecordedAt: time.Now().UTC(),
		}, o.ConfigDir)
		if err != nil {
			logger.Warn("failed to save last session", zap.Error(err))
		}

		if o.Format != config.OutputJSON {
			printSummary(o.Err, summary)
		}
	}

	return summary, runErr
}

func printSummary(w io.Writer, s *capture.Summary) {
	fmt.Fprintf(w, "\n  %s Recorded session %s\n", cliui.SuccessMark, cliui.HashStyle.Render(s.SessionID))
	cliui.KeyValues(w, [][2]string{
		{"lines", strconv.Itoa(s.Lines)},
		{"events", strconv.Itoa(s.Events)},
		{"parse errors", strconv.Itoa(s.ParseErrors)},
		{"duration", cliui.FormatDuration(s.Duration)},
	})
}
