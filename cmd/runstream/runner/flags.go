package runner

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/dotdir"
)

// registryKeys are the config-backed flags shared by the decoding commands.
var registryKeys = []string{
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagOutputFormat,
	config.FlagMarkdown,
}

// Flags holds the values of the shared decoding flags.
type Flags struct {
	Options

	json bool
	save bool
}

// AddFlags registers the output, capture and recording flags on cmd.
func AddFlags(cmd *cobra.Command, f *Flags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagOutputFormat, &f.Format)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdown, &f.Markdown)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.PostgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &f.KafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.KafkaTopic)

	cmd.Flags().BoolVar(&f.json, "json", false, "Shortcut for --format json")
	cmd.Flags().BoolVarP(&f.ShowChunks, "chunks", "c", false, "Stream assistant text as it arrives")
	cmd.Flags().StringVarP(&f.RecordPath, "record", "r", "", "Write a verbatim copy of the stream to this file")
	cmd.Flags().BoolVar(&f.save, "save", false, "Record the session to the default database in the .runstream directory")
}

// Resolve fills f from flags, environment and config.toml, in that order of
// precedence, and returns the viper instance for further keys. Call it from
// PreRunE.
func (f *Flags) Resolve(cmd *cobra.Command) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	f.ConfigDir = configDir

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, registryKeys)

	f.Format = v.GetString("output.format")
	f.Markdown = v.GetBool("output.markdown")
	f.SQLitePath = v.GetString("storage.sqlite_path")
	f.PostgresDSN = v.GetString("storage.postgres_dsn")
	f.KafkaBrokers = v.GetString("publisher.kafka_brokers")
	f.KafkaTopic = v.GetString("publisher.kafka_topic")

	if f.json {
		f.Format = config.OutputJSON
	}
	if !config.IsValidOutputFormat(f.Format) {
		return nil, fmt.Errorf("invalid output format %q (expected pretty or json)", f.Format)
	}

	if f.save && f.SQLitePath == "" && f.PostgresDSN == "" {
		path, err := dotdir.NewManager().DatabasePath(configDir)
		if err != nil {
			return nil, err
		}
		f.SQLitePath = path
	}

	return v, nil
}
