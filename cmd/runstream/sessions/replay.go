package sessionscmder

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/runstream/cmd/runstream/runner"
	"github.com/papercomputeco/runstream/pkg/capture"
	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/render"
)

const replayLongDesc string = `Decode a recorded session again.

Feeds the raw lines recorded for the session through a fresh decoder and
prints the result, as if the stream were arriving live. Without an ID the
last recorded session is replayed.

Examples:
  runstream sessions replay
  runstream sessions replay 0b7c5e1a-... --chunks`

const replayShortDesc string = "Decode a recorded session again"

func newReplayCmd() *cobra.Command {
	var (
		flags storeFlags
		opts  render.Options
	)

	cmd := &cobra.Command{
		Use:   "replay [id]",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout(), &flags, args, opts)
		},
	}

	addStoreFlags(cmd, &flags)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdown, &opts.Markdown)
	cmd.Flags().BoolVarP(&opts.ShowChunks, "chunks", "c", false, "Stream assistant text as it arrives")

	return cmd
}

func runReplay(ctx context.Context, w io.Writer, flags *storeFlags, args []string, opts render.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	id, database, err := flags.target(args)
	if err != nil {
		return err
	}

	log := flags.newLogger()
	defer func() { _ = log.Sync() }()

	driver, err := flags.open(ctx, database, log)
	if err != nil {
		return err
	}
	defer driver.Close()

	lines, err := driver.Lines(ctx, id)
	if err != nil {
		return notFound(err, id)
	}

	text := make([]string, 0, len(lines))
	for _, line := range lines {
		text = append(text, line.Text)
	}

	sink, err := runner.NewSink(w, flags.format, opts)
	if err != nil {
		return err
	}

	_, err = capture.Run(ctx, strings.NewReader(strings.Join(text, "\n")), capture.Config{
		Source: "session:" + id,
		Sinks:  []capture.Sink{sink},
		Logger: log,
	})
	return err
}
