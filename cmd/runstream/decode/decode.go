// Package decodecmder provides the decode command for decoding captured run
// streams from files or stdin.
package decodecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/runstream/cmd/runstream/runner"
	"github.com/papercomputeco/runstream/pkg/logger"
	"github.com/papercomputeco/runstream/pkg/sse"
)

type decodeCommander struct {
	flags  runner.Flags
	follow bool
	debug  bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

const decodeLongDesc string = `Decode a captured agent run stream.

Reads stream lines from a file, or from stdin when the file is "-" or
omitted, and prints the decoded events. With --follow the file is watched
and decoded as it grows, like "tail -f".

Examples:
  runstream decode run.sse
  curl -N https://agents.example.com/api/agent-run/abc/stream | runstream decode
  runstream decode --follow --chunks run.sse
  runstream decode --json run.sse | jq .
  runstream decode --save run.sse`

const decodeShortDesc string = "Decode a captured run stream"

func NewDecodeCmd() *cobra.Command {
	cmder := &decodeCommander{}

	cmd := &cobra.Command{
		Use:   "decode [file|-]",
		Short: decodeShortDesc,
		Long:  decodeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmder.flags.Resolve(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.stdout = cmd.OutOrStdout()
			cmder.stderr = cmd.ErrOrStderr()
			cmder.stdin = cmd.InOrStdin()

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return cmder.run(cmd.Context(), path)
		},
	}

	runner.AddFlags(cmd, &cmder.flags)
	cmd.Flags().BoolVarP(&cmder.follow, "follow", "F", false, "Keep decoding as the file grows")

	return cmd
}

func (c *decodeCommander) run(ctx context.Context, path string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, source, err := c.open(ctx, path)
	if err != nil {
		return err
	}
	defer src.Close()

	opts := c.flags.Options
	opts.Out = c.stdout
	opts.Err = c.stderr
	opts.Logger = c.logger

	_, err = runner.Run(ctx, src, source, opts)
	return err
}

func (c *decodeCommander) open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	if path == "-" {
		if c.follow {
			return nil, "", errors.New("--follow needs a file")
		}
		if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, "", errors.New("no input: pass a capture file or pipe a stream into stdin")
		}
		return io.NopCloser(c.stdin), "stdin", nil
	}

	source := "file:" + path
	if c.follow {
		follower, err := sse.Follow(ctx, path)
		if err != nil {
			return nil, "", err
		}
		return follower, source, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening capture file: %w", err)
	}
	return f, source, nil
}
