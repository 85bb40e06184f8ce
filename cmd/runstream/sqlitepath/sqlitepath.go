// Package sqlitepath finds the session database for commands that read
// recorded sessions.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/runstream/pkg/dotdir"
)

// EnvDB names an explicit database path.
const EnvDB = "RUNSTREAM_DB"

// ResolveSQLitePath returns override when set, then $RUNSTREAM_DB, then the
// first existing candidate database: the config dir's runstream.db, the
// XDG data dir, the home dir and finally the working directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv(EnvDB)); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates(configDir) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find a runstream session database; pass --sqlite or record a session first")
}

func sqliteCandidates(configDir string) []string {
	candidates := []string{
		dotdir.DatabaseFile,
		filepath.Join(".runstream", dotdir.DatabaseFile),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".runstream", dotdir.DatabaseFile),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "runstream", dotdir.DatabaseFile),
		}, candidates...)
	}

	if configDir != "" {
		candidates = append([]string{
			filepath.Join(configDir, dotdir.DatabaseFile),
		}, candidates...)
	}

	return candidates
}
