package generation

// DefaultModel is the model identifier sent with every request.
const DefaultModel = "video-gen-1"

// Config holds lifecycle configuration.
type Config struct {
	// APIKey is the bearer credential. Empty means not configured.
	APIKey string

	// Model is the fixed model identifier sent to the API.
	Model string
}

// DefaultConfig returns default lifecycle configuration without a credential.
func DefaultConfig() *Config {
	return &Config{
		Model: DefaultModel,
	}
}
