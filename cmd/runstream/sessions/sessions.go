// Package sessionscmder provides the sessions command for inspecting recorded
// stream sessions.
package sessionscmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/cmd/runstream/runner"
	"github.com/papercomputeco/runstream/cmd/runstream/sqlitepath"
	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/dotdir"
	"github.com/papercomputeco/runstream/pkg/logger"
	"github.com/papercomputeco/runstream/pkg/storage"
)

const sessionsLongDesc string = `Inspect recorded stream sessions.

Sessions are recorded by "decode" and "watch" when a database is configured
(--sqlite, --postgres or --save). The show and replay subcommands default to
the most recently recorded session.

Use subcommands to list, show, or replay sessions:
  runstream sessions list           List recorded sessions
  runstream sessions show [id]      Print the events decoded at record time
  runstream sessions replay [id]    Decode the recorded lines again

Examples:
  runstream sessions list --limit 5
  runstream sessions show
  runstream sessions replay 0b7c5e1a-... --json`

const sessionsShortDesc string = "Inspect recorded sessions"

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   sessionsShortDesc,
		Long:    sessionsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newReplayCmd())

	return cmd
}

// storeFlags selects the session database and output format shared by the
// sessions subcommands.
type storeFlags struct {
	sqlitePath  string
	postgresDSN string
	format      string
	json        bool
	configDir   string
	debug       bool
}

var storeKeys = []string{
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagOutputFormat,
}

func addStoreFlags(cmd *cobra.Command, f *storeFlags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagOutputFormat, &f.format)
	cmd.Flags().BoolVar(&f.json, "json", false, "Shortcut for --format json")
}

func (f *storeFlags) resolve(cmd *cobra.Command) error {
	f.configDir, _ = cmd.Flags().GetString("config-dir")
	f.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(f.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, storeKeys)

	f.sqlitePath = v.GetString("storage.sqlite_path")
	f.postgresDSN = v.GetString("storage.postgres_dsn")
	f.format = v.GetString("output.format")
	if f.json {
		f.format = config.OutputJSON
	}
	if !config.IsValidOutputFormat(f.format) {
		return fmt.Errorf("invalid output format %q (expected pretty or json)", f.format)
	}
	return nil
}

// open opens the session database. database is the store a session was
// recorded to and is used when no store is configured explicitly.
func (f *storeFlags) open(ctx context.Context, database string, log *zap.Logger) (storage.Driver, error) {
	if f.sqlitePath == "" && f.postgresDSN != "" {
		return runner.OpenDriver(ctx, runner.Options{PostgresDSN: f.postgresDSN}, log)
	}

	override := f.sqlitePath
	if override == "" {
		override = database
	}

	path, err := sqlitepath.ResolveSQLitePath(override, f.configDir)
	if err != nil {
		return nil, err
	}
	return runner.OpenDriver(ctx, runner.Options{SQLitePath: path}, log)
}

// target returns the session to inspect: the given ID, or the last recorded
// session along with the store it was recorded to.
func (f *storeFlags) target(args []string) (id, database string, err error) {
	if len(args) == 1 {
		return args[0], "", nil
	}

	last, err := dotdir.NewManager().LoadLastSession(f.configDir)
	if err != nil {
		return "", "", fmt.Errorf("loading last session: %w", err)
	}
	if last == nil {
		return "", "", errors.New("no session ID given and no session recorded yet")
	}
	return last.ID, last.Database, nil
}

func (f *storeFlags) newLogger() *zap.Logger {
	return logger.NewLogger(f.debug)
}

func notFound(err error, id string) error {
	var nf storage.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Errorf("session not found: %s", id)
	}
	return err
}
