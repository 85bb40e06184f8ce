package config

// Output formats.
const (
	OutputPretty = "pretty"
	OutputJSON   = "json"
)

const (
	defaultBaseURL    = "http://localhost:8000/api"
	defaultAPIListen  = ":8082"
	defaultKafkaTopic = "runstream.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Stream: StreamConfig{
			BaseURL: defaultBaseURL,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Publisher: PublisherConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Output: OutputConfig{
			Format: OutputPretty,
		},
	}
}
