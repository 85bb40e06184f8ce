package credentials

// Credentials represents the stored agent API tokens in credentials.toml.
type Credentials struct {
	Version int                       `toml:"version"`
	Hosts   map[string]HostCredential `toml:"hosts"`
}

// HostCredential holds the bearer token for a single agent API host.
type HostCredential struct {
	Token string `toml:"token"`
}
