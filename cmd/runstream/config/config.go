// Package configcmder provides the config command for managing persistent
// runstream configuration stored in the .runstream/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/runstream/pkg/config"
)

const configLongDesc string = `Manage persistent runstream configuration.

Configuration is stored as config.toml in the .runstream/ directory and
provides default values for command flags. CLI flags and RUNSTREAM_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  stream.base_url,
  storage.sqlite_path, storage.postgres_dsn,
  api.listen,
  publisher.kafka_brokers, publisher.kafka_topic,
  output.format, output.markdown

Use subcommands to get, set, or list configuration values:
  runstream config set <key> <value>    Set a configuration value
  runstream config get <key>            Get a configuration value
  runstream config list                 List all configuration values

Examples:
  runstream config set stream.base_url https://agents.example.com/api
  runstream config set output.format json
  runstream config get storage.sqlite_path
  runstream config list`

const configShortDesc string = "Manage persistent runstream configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
