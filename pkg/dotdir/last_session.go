package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lastSessionFile = "last_session.json"
)

// LastSession points at the most recently recorded session so that session
// commands can default to it.
type LastSession struct {
	// ID is the session ID.
	ID string `json:"id"`

	// Source describes where the session was read from.
	Source string `json:"source"`

	// Database is the store the session was recorded to, e.g. a SQLite path.
	Database string `json:"database,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// LoadLastSession loads the pointer from a target .runstream/last_session.json.
// Returns nil, nil if no session has been recorded yet.
func (m *Manager) LoadLastSession(overrideDir string) (*LastSession, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, lastSessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last session: %w", err)
	}

	last := &LastSession{}
	if err := json.Unmarshal(data, last); err != nil {
		return nil, fmt.Errorf("parsing last session: %w", err)
	}

	return last, nil
}

// SaveLastSession persists the pointer to a target .runstream/last_session.json.
func (m *Manager) SaveLastSession(last *LastSession, overrideDir string) error {
	if last == nil {
		return errors.New("cannot save nil last session")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last session: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, lastSessionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing last session: %w", err)
	}

	return nil
}
