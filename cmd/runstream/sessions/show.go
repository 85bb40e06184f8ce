package sessionscmder

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/runstream/cmd/runstream/runner"
	"github.com/papercomputeco/runstream/pkg/cliui"
	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/render"
	"github.com/papercomputeco/runstream/pkg/storage"
)

const showLongDesc string = `Print a recorded session.

Prints the events exactly as they were decoded when the session was
recorded. Without an ID the last recorded session is shown.

Examples:
  runstream sessions show
  runstream sessions show 0b7c5e1a-... --json`

const showShortDesc string = "Print a recorded session"

func newShowCmd() *cobra.Command {
	var (
		flags    storeFlags
		markdown bool
	)

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), cmd.OutOrStdout(), &flags, args, render.Options{Markdown: markdown})
		},
	}

	addStoreFlags(cmd, &flags)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdown, &markdown)

	return cmd
}

func runShow(ctx context.Context, w io.Writer, flags *storeFlags, args []string, opts render.Options) error {
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

	session, err := driver.GetSession(ctx, id)
	if err != nil {
		return notFound(err, id)
	}

	records, err := driver.Records(ctx, id)
	if err != nil {
		return notFound(err, id)
	}

	sink, err := runner.NewSink(w, flags.format, opts)
	if err != nil {
		return err
	}

	if flags.format != config.OutputJSON {
		printHeader(w, session)
	}

	for _, record := range records {
		ev, err := record.Event()
		if err != nil {
			return fmt.Errorf("decoding stored event %d: %w", record.Index, err)
		}
		if err := sink.Handle(ev); err != nil {
			return err
		}
	}

	return nil
}

func printHeader(w io.Writer, s *storage.Session) {
	fmt.Fprintf(w, "\n  %s %s\n", cliui.KeyStyle.Render("Session"), cliui.HashStyle.Render(s.ID))

	rows := [][2]string{
		{"source", s.Source},
		{"started", s.StartedAt.Local().Format(time.DateTime)},
	}
	if s.EndedAt != nil {
		rows = append(rows,
			[2]string{"duration", cliui.FormatDuration(s.EndedAt.Sub(s.StartedAt))},
			[2]string{"lines", strconv.Itoa(s.LineCount)},
			[2]string{"events", strconv.Itoa(s.EventCount)},
			[2]string{"parse errors", strconv.Itoa(s.ParseErrors)},
		)
	} else {
		rows = append(rows, [2]string{"status", "recording"})
	}
	cliui.KeyValues(w, rows)
	fmt.Fprintln(w)
}
