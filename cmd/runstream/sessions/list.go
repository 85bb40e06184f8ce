package sessionscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/runstream/pkg/cliui"
	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/utils"
)

const listLongDesc string = `List recorded sessions, newest first.

Examples:
  runstream sessions list
  runstream sessions list --limit 5
  runstream sessions list --sqlite ./runstream.db --json`

const listShortDesc string = "List recorded sessions"

func newListCmd() *cobra.Command {
	var (
		flags storeFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), &flags, limit)
		},
	}

	addStoreFlags(cmd, &flags)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list (0 for all)")

	return cmd
}

func runList(ctx context.Context, w io.Writer, flags *storeFlags, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit < 0 {
		return fmt.Errorf("invalid limit %d", limit)
	}

	log := flags.newLogger()
	defer func() { _ = log.Sync() }()

	driver, err := flags.open(ctx, "", log)
	if err != nil {
		return err
	}
	defer driver.Close()

	sessions, err := driver.ListSessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if flags.format == config.OutputJSON {
		enc := json.NewEncoder(w)
		for _, s := range sessions {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	}

	if len(sessions) == 0 {
		fmt.Fprintf(w, "  %s No sessions recorded yet.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintln(w)
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			cliui.HashStyle.Render(s.ID),
			cliui.DimStyle.Render(s.StartedAt.Local().Format(time.DateTime)),
			cliui.ValueStyle.Render(sessionCounts(s)),
			cliui.NameStyle.Render(utils.Truncate(s.Source, 60)),
		)
	}
	fmt.Fprintln(w)

	return nil
}

func sessionCounts(s *storage.Session) string {
	if s.EndedAt == nil {
		return "recording"
	}

	counts := strconv.Itoa(s.EventCount) + " events"
	if s.ParseErrors > 0 {
		counts += ", " + strconv.Itoa(s.ParseErrors) + " parse errors"
	}
	return counts
}
