package config

// ProviderConfig configures the Completion Provider contract's two
// concrete implementations: a local stub (always available, used for
// the cheap/simple routing tier and the startup self-test) and a
// genai-backed remote provider for everything the Model Router escalates.
type ProviderConfig struct {
	Local  LocalProviderConfig  `yaml:"local" json:"local"`
	Remote RemoteProviderConfig `yaml:"remote" json:"remote"`
}

// LocalProviderConfig names the local model the stub provider reports
// using, for Budget Ledger pricing-table lookups and router decisions.
type LocalProviderConfig struct {
	Model string `yaml:"model" json:"model"`
}

// RemoteProviderConfig configures the genai-backed remote provider.
// APIKey and BaseURL are normally supplied via ARCHI_REMOTE_API_KEY /
// ARCHI_REMOTE_BASE_URL rather than committed to the config file.
type RemoteProviderConfig struct {
	Kind    string `yaml:"kind" json:"kind"` // e.g. "gemini"
	Model   string `yaml:"model" json:"model"`
	APIKey  string `yaml:"api_key,omitempty" json:"-"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// DefaultProviderConfig returns the default provider configuration.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Local: LocalProviderConfig{
			Model: "local/stub",
		},
		Remote: RemoteProviderConfig{
			Kind:  "gemini",
			Model: "gemini-2.0-flash",
		},
	}
}
