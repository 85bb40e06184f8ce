package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/runstream/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[stream]
base_url = "https://agents.example.com/api"

[storage]
sqlite_path = "/tmp/runstream.db"
postgres_dsn = "postgres://localhost/runstream"

[api]
listen = ":9091"

[publisher]
kafka_brokers = "kafka-1:9092,kafka-2:9092"
kafka_topic = "agent.events"

[output]
format = "json"
markdown = true
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Stream.BaseURL).To(Equal("https://agents.example.com/api"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/runstream.db"))
			Expect(cfg.Storage.PostgresDSN).To(Equal("postgres://localhost/runstream"))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.Publisher.KafkaBrokers).To(Equal("kafka-1:9092,kafka-2:9092"))
			Expect(cfg.Publisher.KafkaTopic).To(Equal("agent.events"))
			Expect(cfg.Output.Format).To(Equal("json"))
			Expect(cfg.Output.Markdown).To(BeTrue())
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[storage]
sqlite_path = "/tmp/partial.db"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/partial.db"))
			Expect(cfg.Stream.BaseURL).To(Equal(defaults.Stream.BaseURL))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Publisher.KafkaTopic).To(Equal(defaults.Publisher.KafkaTopic))
			Expect(cfg.Output.Format).To(Equal(config.OutputPretty))
		})

		It("returns error for malformed TOML", func() {
			writeConfig(`[stream
base_url = `)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 99"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.SQLitePath = "/data/runstream.db"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`sqlite_path = "/data/runstream.db"`))
			Expect(string(data)).To(ContainSubstring("[stream]"))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue", func() {
		It("sets a string config key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("stream.base_url", "https://agents.example.com/api")).To(Succeed())

			value, err := c.GetConfigValue("stream.base_url")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("https://agents.example.com/api"))
		})

		It("sets a bool config key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("output.markdown", "true")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Output.Markdown).To(BeTrue())
		})

		It("returns error for invalid bool value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("output.markdown", "sometimes")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid value for output.markdown"))
		})

		It("rejects unknown output formats", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("output.format", "yaml")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid value for output.format"))
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = c.SetConfigValue("proxy.upstream", "http://localhost")
			Expect(err).To(MatchError(`unknown config key: "proxy.upstream"`))
		})

		It("preserves existing values when setting a new key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("storage.sqlite_path", "/tmp/a.db")).To(Succeed())
			Expect(c.SetConfigValue("publisher.kafka_brokers", "localhost:9092")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/a.db"))
			Expect(cfg.Publisher.KafkaBrokers).To(Equal("localhost:9092"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(config.NewDefaultConfig().API.Listen))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("storage.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("embedding.model")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns all keys in section order", func() {
			Expect(config.ValidConfigKeys()).To(Equal([]string{
				"stream.base_url",
				"storage.sqlite_path",
				"storage.postgres_dsn",
				"api.listen",
				"publisher.kafka_brokers",
				"publisher.kafka_topic",
				"output.format",
				"output.markdown",
			}))
		})

		It("agrees with IsValidConfigKey", func() {
			for _, key := range config.ValidConfigKeys() {
				Expect(config.IsValidConfigKey(key)).To(BeTrue(), key)
			}
			Expect(config.IsValidConfigKey("sqlite_path")).To(BeFalse())
		})
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(*cfg).To(Equal(config.Config{}))
	})

	It("rejects unsupported config version", func() {
		_, err := config.ParseConfigTOML([]byte("version = 2\n"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("returns fully-populated defaults", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Stream.BaseURL).To(Equal("http://localhost:8000/api"))
		Expect(cfg.API.Listen).To(Equal(":8082"))
		Expect(cfg.Publisher.KafkaTopic).To(Equal("runstream.events"))
		Expect(cfg.Output.Format).To(Equal(config.OutputPretty))
		Expect(cfg.Output.Markdown).To(BeFalse())
		Expect(cfg.Storage.SQLitePath).To(BeEmpty())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("stream.base_url")).To(Equal(defaults.Stream.BaseURL))
		Expect(v.GetString("api.listen")).To(Equal(defaults.API.Listen))
		Expect(v.GetString("output.format")).To(Equal(defaults.Output.Format))
	})

	It("reads config file values over defaults", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[api]
listen = ":5555"
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("api.listen")).To(Equal(":5555"))
		Expect(v.GetString("publisher.kafka_topic")).To(Equal("runstream.events"))
	})

	It("env vars take precedence over config file values", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[stream]
base_url = "http://from-file/api"
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		os.Setenv("RUNSTREAM_STREAM_BASE_URL", "http://from-env/api")
		defer os.Unsetenv("RUNSTREAM_STREAM_BASE_URL")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("stream.base_url")).To(Equal("http://from-env/api"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})

		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[output]
markdown = true
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var markdown bool
		config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdown, &markdown)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagMarkdown})

		Expect(v.GetBool("output.markdown")).To(BeTrue())
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("api.listen")).To(Equal(config.NewDefaultConfig().API.Listen))
	})

	It("AddStringFlag pulls name, shorthand, and default from the FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var format string
		config.AddStringFlag(cmd, config.Flags, config.FlagOutputFormat, &format)

		f := cmd.Flags().Lookup("format")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("f"))
		Expect(f.DefValue).To(Equal(config.OutputPretty))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagOutputFormat].Description))
	})

	It("ignores registry keys missing from the FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.FlagSet{}, config.FlagSQLite, &target)
		Expect(cmd.Flags().Lookup("sqlite")).To(BeNil())
	})
})
