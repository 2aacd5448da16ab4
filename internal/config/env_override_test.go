package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Provider(t *testing.T) {
	t.Run("ARCHI_REMOTE_API_KEY sets remote key", func(t *testing.T) {
		t.Setenv("ARCHI_REMOTE_API_KEY", "remote-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "remote-key", cfg.Provider.Remote.APIKey)
	})

	t.Run("ARCHI_REMOTE_BASE_URL overrides base url", func(t *testing.T) {
		t.Setenv("ARCHI_REMOTE_BASE_URL", "https://example.test/v1")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "https://example.test/v1", cfg.Provider.Remote.BaseURL)
	})

	t.Run("empty env leaves config untouched", func(t *testing.T) {
		cfg := &Config{Provider: ProviderConfig{Remote: RemoteProviderConfig{APIKey: "existing"}}}
		cfg.applyEnvOverrides()
		assert.Equal(t, "existing", cfg.Provider.Remote.APIKey)
	})
}

func TestEnvOverrides_DataDir(t *testing.T) {
	t.Setenv("ARCHI_DATA_DIR", "/tmp/archi-data")

	cfg := &Config{DataDir: "./data"}
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/archi-data", cfg.DataDir)
}
