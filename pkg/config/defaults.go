package config

const (
	defaultUpstream    = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultRelayListen = ":8080"
	defaultAPIListen   = ":8081"

	defaultClientRelayTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"
	defaultTickMs            = 10

	defaultEventTopic = "quill.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:   defaultRelayListen,
			Upstream: defaultUpstream,
			Model:    defaultModel,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			APITarget:   defaultClientAPITarget,
			TickMs:      defaultTickMs,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventTopic,
		},
	}
}
