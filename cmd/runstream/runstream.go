// Package runstreamcmder is the root runstream command.
package runstreamcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/runstream/cmd/runstream/auth"
	configcmder "github.com/papercomputeco/runstream/cmd/runstream/config"
	decodecmder "github.com/papercomputeco/runstream/cmd/runstream/decode"
	initcmder "github.com/papercomputeco/runstream/cmd/runstream/init"
	servecmder "github.com/papercomputeco/runstream/cmd/runstream/serve"
	sessionscmder "github.com/papercomputeco/runstream/cmd/runstream/sessions"
	versioncmder "github.com/papercomputeco/runstream/cmd/runstream/version"
	watchcmder "github.com/papercomputeco/runstream/cmd/runstream/watch"
)

const runstreamLongDesc string = `Runstream decodes agent run event streams.

An agent run streams lines of "data: {...}" JSON. Runstream turns them into
typed events (status updates, streamed text, tool invocations, tool results
and final messages), prints them, and optionally records every session to
SQLite or PostgreSQL and publishes the events to Kafka.

  runstream decode run.sse      Decode a captured stream
  runstream watch <run-id>      Decode a live agent run
  runstream sessions list       List recorded sessions
  runstream serve               Run the API and MCP server
  runstream auth <host>         Store a token for an agent API`

const runstreamShortDesc string = "Runstream - agent run stream decoder"

func NewRunstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "runstream",
		Short:         runstreamShortDesc,
		Long:          runstreamLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .runstream directory")

	cmd.AddCommand(decodecmder.NewDecodeCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
