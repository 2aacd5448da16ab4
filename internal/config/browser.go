package config

// BrowserConfig configures the headless browser-control tools.
type BrowserConfig struct {
	DefaultTimeoutMs    int `yaml:"default_timeout_ms" json:"default_timeout_ms"`
	NavigationTimeoutMs int `yaml:"navigation_timeout_ms" json:"navigation_timeout_ms"`
}
