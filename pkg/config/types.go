package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent runstream configuration stored as
// config.toml in the .runstream/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Stream    StreamConfig    `toml:"stream"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Publisher PublisherConfig `toml:"publisher"`
	Output    OutputConfig    `toml:"output"`
}

// StreamConfig holds settings for reading live agent run streams.
type StreamConfig struct {
	// BaseURL is the API root that "runstream watch <run-id>" resolves
	// run IDs against.
	BaseURL string `toml:"base_url,omitempty"`
}

// StorageConfig holds the session recording backends. At most one of them is
// used; SQLite wins when both are set.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// PublisherConfig holds settings for publishing decoded events to Kafka.
type PublisherConfig struct {
	// KafkaBrokers is a comma separated list of host:port pairs.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// OutputConfig controls how decoded events are printed.
type OutputConfig struct {
	// Format is "pretty" or "json".
	Format   string `toml:"format,omitempty"`
	Markdown bool   `toml:"markdown,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"stream.base_url": {
		get: func(c *Config) string { return c.Stream.BaseURL },
		set: func(c *Config, v string) error { c.Stream.BaseURL = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"publisher.kafka_brokers": {
		get: func(c *Config) string { return c.Publisher.KafkaBrokers },
		set: func(c *Config, v string) error { c.Publisher.KafkaBrokers = v; return nil },
	},
	"publisher.kafka_topic": {
		get: func(c *Config) string { return c.Publisher.KafkaTopic },
		set: func(c *Config, v string) error { c.Publisher.KafkaTopic = v; return nil },
	},
	"output.format": {
		get: func(c *Config) string { return c.Output.Format },
		set: func(c *Config, v string) error {
			if !IsValidOutputFormat(v) {
				return fmt.Errorf("invalid value for output.format: %q (expected pretty or json)", v)
			}
			c.Output.Format = v
			return nil
		},
	},
	"output.markdown": {
		get: func(c *Config) string { return strconv.FormatBool(c.Output.Markdown) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for output.markdown: %w", err)
			}
			c.Output.Markdown = b
			return nil
		},
	},
}

// IsValidOutputFormat reports whether format is a supported output.format.
func IsValidOutputFormat(format string) bool {
	return format == OutputPretty || format == OutputJSON
}
