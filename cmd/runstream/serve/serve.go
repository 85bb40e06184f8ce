// Package servecmder provides the serve command for running the runstream
// API and MCP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/runstream/api"
	"github.com/papercomputeco/runstream/cmd/runstream/runner"
	"github.com/papercomputeco/runstream/pkg/config"
	"github.com/papercomputeco/runstream/pkg/eventstream"
	"github.com/papercomputeco/runstream/pkg/logger"
	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/storage/inmemory"
	"github.com/papercomputeco/runstream/pkg/worker"
)

type serveCommander struct {
	listen       string
	baseURL      string
	sqlitePath   string
	postgresDSN  string
	kafkaBrokers string
	kafkaTopic   string
	noMCP        bool
	debug        bool

	logger *zap.Logger
}

const serveLongDesc string = `Run the runstream API server.

The server exposes recorded sessions over HTTP, decodes posted stream text,
and relays live agent runs while recording them:

  GET  /v1/sessions                 List sessions
  GET  /v1/sessions/:id             Get a session
  GET  /v1/sessions/:id/events      Decoded events of a session
  GET  /v1/sessions/:id/replay      Raw lines of a session
  POST /v1/decode                   Decode stream text
  GET  /v1/runs/:id/stream          Relay and record a live run
  *    /mcp                         MCP tools (decode_stream, list_sessions, get_session)

Sessions are kept in memory unless --sqlite or --postgres is given. Decoded
events of relayed runs are published to Kafka when --kafka-brokers is set.

Examples:
  runstream serve
  runstream serve --listen :9000 --sqlite ./runstream.db
  runstream serve --base-url https://agents.example.com/api --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the API server"

var serveKeys = []string{
	config.FlagAPIListen,
	config.FlagBaseURL,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveKeys)

			cmder.listen = v.GetString("api.listen")
			cmder.baseURL = v.GetString("stream.base_url")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			cmder.kafkaBrokers = v.GetString("publisher.kafka_brokers")
			cmder.kafkaTopic = v.GetString("publisher.kafka_topic")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP tools at /mcp")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	server, closeServer, err := c.newServer(context.Background())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeServer(); err != nil {
			c.logger.Warn("failed to close server backends", zap.Error(err))
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

// newServer opens the storage driver, the optional publisher and the
// recording pool, and builds the API server on top of them. The returned
// func drains the pool and releases the backends.
func (c *serveCommander) newServer(ctx context.Context) (*api.Server, func() error, error) {
	opts := runner.Options{
		SQLitePath:   c.sqlitePath,
		PostgresDSN:  c.postgresDSN,
		KafkaBrokers: c.kafkaBrokers,
		KafkaTopic:   c.kafkaTopic,
	}

	driver, err := runner.OpenDriver(ctx, opts, c.logger)
	if err != nil {
		return nil, nil, err
	}
	if driver == nil {
		c.logger.Info("using in-memory storage")
		driver = inmemory.NewDriver()
	}

	publisher, err := runner.OpenPublisher(opts, c.logger)
	if err != nil {
		_ = driver.Close()
		return nil, nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Source:    "api",
		Logger:    c.logger,
	})
	if err != nil {
		_ = closeBackends(nil, publisher, driver)
		return nil, nil, err
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: c.listen,
		BaseURL:    c.baseURL,
		Pool:       pool,
		NoMCP:      c.noMCP,
	}, driver, c.logger)
	if err != nil {
		_ = closeBackends(pool, publisher, driver)
		return nil, nil, fmt.Errorf("creating API server: %w", err)
	}

	return server, func() error {
		return closeBackends(pool, publisher, driver)
	}, nil
}

func closeBackends(pool *worker.Pool, publisher eventstream.Publisher, driver storage.Driver) error {
	if pool != nil {
		pool.Close()
	}

	var errs []error
	if publisher != nil {
		errs = append(errs, publisher.Close())
	}
	errs = append(errs, driver.Close())
	return errors.Join(errs...)
}
