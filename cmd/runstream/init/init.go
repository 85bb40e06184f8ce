// Package initcmder provides the init command for initializing a local
// .runstream directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/runstream/pkg/cliui"
	"github.com/papercomputeco/runstream/pkg/config"
)

const (
	dirName    = ".runstream"
	configFile = "config.toml"

	maxRemoteConfigSize = 1 << 20
	remoteConfigTimeout = 30 * time.Second
)

const initLongDesc string = `Initialize a new .runstream/ directory in the current working directory.

Creates a local .runstream/ directory that takes precedence over the default
~/.runstream/ directory for configuration, the session database and the last
session pointer. A config.toml with default values is written unless one
already exists.

With --from, the config.toml is taken from a file or an http(s) URL instead,
which lets a team share one stream base URL and storage setup.

Examples:
  runstream init
  runstream init --from https://example.com/runstream/config.toml
  runstream init --from ../shared/config.toml`

const initShortDesc string = "Initialize a local .runstream/ directory"

func NewInitCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), from)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Copy config.toml from a file or http(s) URL")

	return cmd
}

func runInit(w io.Writer, from string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .runstream directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if from != "" {
		var cfg *config.Config
		err := cliui.Step(w, "Loading config from "+from, func() error {
			var loadErr error
			cfg, loadErr = loadConfig(from)
			return loadErr
		})
		if err != nil {
			return err
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(w, "Initialized .runstream directory from %s: %s\n", from, dir)
		return nil
	}

	if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	}

	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return err
	}

	fmt.Fprintf(w, "Initialized .runstream directory: %s\n", dir)
	return nil
}

// loadConfig reads and validates a config.toml from a file path or URL.
func loadConfig(from string) (*config.Config, error) {
	var (
		data []byte
		err  error
	)

	if strings.HasPrefix(from, "http://") || strings.HasPrefix(from, "https://") {
		data, err = fetch(from)
	} else {
		data, err = os.ReadFile(from)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", from, err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config from %s: %w", from, err)
	}
	return cfg, nil
}

func fetch(url string) ([]byte, error) {
	client := &http.Client{Timeout: remoteConfigTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteConfigSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxRemoteConfigSize {
		return nil, errors.New("config exceeds 1 MiB")
	}
	return data, nil
}
