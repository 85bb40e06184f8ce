// Package credentials stores bearer tokens for agent APIs in the
// .runstream/ directory.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/runstream/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// EnvToken is a token used for every host without a stored credential.
const EnvToken = "RUNSTREAM_TOKEN"

// Manager manages reading and writing credentials.toml in the .runstream/
// directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .runstream/ directory; otherwise the standard dotdir resolution
// applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Hosts:   make(map[string]HostCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Hosts == nil {
		creds.Hosts = make(map[string]HostCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetToken stores a bearer token for host. host may be a bare host name or
// a URL.
func (m *Manager) SetToken(host, token string) error {
	key, err := NormalizeHost(host)
	if err != nil {
		return err
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Hosts[key] = HostCredential{Token: token}

	return m.Save(creds)
}

// Token returns the stored token for host, or an empty string.
func (m *Manager) Token(host string) (string, error) {
	key, err := NormalizeHost(host)
	if err != nil {
		return "", err
	}

	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Hosts[key].Token, nil
}

// RemoveToken deletes the stored credential for host.
func (m *Manager) RemoveToken(host string) error {
	key, err := NormalizeHost(host)
	if err != nil {
		return err
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Hosts, key)

	return m.Save(creds)
}

// ListHosts returns the hosts that have stored credentials.
func (m *Manager) ListHosts() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(creds.Hosts))
	for name := range creds.Hosts {
		hosts = append(hosts, name)
	}

	sort.Strings(hosts)

	return hosts, nil
}

// AuthorizationFor returns the Authorization header value for a request to
// target: the stored token for its host, else $RUNSTREAM_TOKEN. It returns
// an empty string when neither is set.
func (m *Manager) AuthorizationFor(target string) (string, error) {
	token, err := m.Token(target)
	if err != nil {
		return "", err
	}
	if token == "" {
		token = strings.TrimSpace(os.Getenv(EnvToken))
	}
	if token == "" {
		return "", nil
	}
	return "Bearer " + token, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// NormalizeHost reduces a host name or URL to its lower-cased host[:port].
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", errors.New("host cannot be empty")
	}

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("parsing host %q: %w", host, err)
		}
		host = u.Host
	} else if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}

	if host == "" {
		return "", errors.New("host cannot be empty")
	}
	return strings.ToLower(host), nil
}
