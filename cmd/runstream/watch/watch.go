// Package watchcmder provides the watch command for decoding a live agent run
// stream.
package watchcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/cmd/runstream/runner"
	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/credentials"
	"github.com/papercomputeco/runstream/pkg/logger"
	"github.com/papercomputeco/runstream/pkg/sse"
)

type watchCommander struct {
	flags   runner.Flags
	baseURL string
	headers []string
	debug   bool

	client *http.Client
	stdout io.Writer
	stderr io.Writer

	logger *zap.Logger
}

const watchLongDesc string = `Decode a live agent run.

Connects to the run's event stream and prints decoded events as they arrive.
The argument is either a run ID, resolved against the stream base URL as
<base-url>/agent-run/<run-id>/stream, or a full http(s) URL.

Press Ctrl+C to stop watching. Recorded sessions keep everything received
up to that point.

Examples:
  runstream watch 3f2a9c
  runstream watch 3f2a9c --base-url https://agents.example.com/api
  runstream watch https://agents.example.com/api/agent-run/3f2a9c/stream \
    -H "Authorization: Bearer $TOKEN"
  runstream watch 3f2a9c --record run.sse --save`

const watchShortDesc string = "Decode a live agent run"

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <run-id|url>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := cmder.flags.Resolve(cmd)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagBaseURL})
			cmder.baseURL = v.GetString("stream.base_url")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.stdout = cmd.OutOrStdout()
			cmder.stderr = cmd.ErrOrStderr()
			return cmder.run(cmd.Context(), args[0])
		},
	}

	runner.AddFlags(cmd, &cmder.flags)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	cmd.Flags().StringArrayVarP(&cmder.headers, "header", "H", nil, `Extra request header as "Key: Value" (repeatable)`)

	return cmd
}

func (c *watchCommander) run(ctx context.Context, target string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	headers, err := sse.ParseHeaders(c.headers)
	if err != nil {
		return err
	}

	url, err := c.streamURL(target)
	if err != nil {
		return err
	}

	if headers.Get("Authorization") == "" {
		auth, err := c.authorization(url)
		if err != nil {
			return err
		}
		if auth != "" {
			headers.Set("Authorization", auth)
		}
	}

	c.logger.Debug("opening run stream", zap.String("url", url))

	body, err := sse.Open(ctx, c.client, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()

	opts := c.flags.Options
	opts.Out = c.stdout
	opts.Err = c.stderr
	opts.Logger = c.logger

	_, err = runner.Run(ctx, body, url, opts)
	return err
}

// streamURL resolves a run ID or URL argument to the stream endpoint.
func (c *watchCommander) streamURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if target == "" {
		return "", errors.New("run ID cannot be empty")
	}
	if c.baseURL == "" {
		return "", errors.New("no stream base URL configured; pass --base-url or set stream.base_url")
	}
	return sse.RunStreamURL(c.baseURL, target), nil
}

func (c *watchCommander) authorization(url string) (string, error) {
	mgr, err := credentials.NewManager(c.flags.ConfigDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	return mgr.AuthorizationFor(url)
}
