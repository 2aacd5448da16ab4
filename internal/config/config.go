package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"archi/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config holds all Archi configuration, loaded from a single YAML file at
// startup and consulted by every component: Budget Ledger thresholds,
// Activity Scheduler heartbeat cooldowns, Dream Cycle polling, the
// dashboard/chat ports, and the Completion Provider credentials.
type Config struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	Budget     BudgetConfig     `yaml:"budget" json:"budget"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat" json:"heartbeat"`
	Ports      PortsConfig      `yaml:"ports" json:"ports"`
	Browser    BrowserConfig    `yaml:"browser" json:"browser"`
	Dream      DreamConfig      `yaml:"dream" json:"dream"`
	Provider   ProviderConfig   `yaml:"provider" json:"provider"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Safety     SafetyConfig     `yaml:"safety" json:"safety"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",

		Monitoring: MonitoringConfig{
			CPUThreshold:     80,
			MemoryThreshold:  90,
			DiskThreshold:    90,
			TempThreshold:    80,
			BudgetWarningPct: 0.8,
		},

		Budget: BudgetConfig{
			HardStopUSD:        10.0,
			MonthlyHardStopUSD: 200.0,
		},

		Heartbeat: HeartbeatConfig{
			CommandMode: CommandModeConfig{
				CooldownSeconds: 10,
				DurationSeconds: 120,
			},
			MonitoringMode: MonitoringModeConfig{
				CooldownSeconds:      60,
				IdleThresholdSeconds: 600,
			},
			DeepSleepMode: DeepSleepModeConfig{
				CooldownSeconds:    600,
				MaxCooldownSeconds: 1800,
			},
			TimeAwareness: TimeAwarenessConfig{
				Enabled: true,
				NightMode: TimeWindow{
					StartHour:       23,
					EndHour:         6,
					CooldownSeconds: 1800,
				},
				WorkHours: TimeWindow{
					StartHour:  9,
					EndHour:    17,
					Multiplier: 1.0,
				},
				Evening: TimeWindow{
					StartHour:  18,
					EndHour:    22,
					Multiplier: 1.5,
				},
			},
		},

		Ports: PortsConfig{
			Dashboard: 8780,
			WebChat:   8781,
		},

		Browser: BrowserConfig{
			DefaultTimeoutMs:    30000,
			NavigationTimeoutMs: 60000,
		},

		Dream: DreamConfig{
			PollIntervalSeconds:  30,
			IdleThresholdSeconds: 300,
			MaxTasksPerDream:     3,
			HistorySize:          50,
		},

		Provider: DefaultProviderConfig(),
		Safety:   DefaultSafetyConfig(),

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "archi.log",
		},
	}
}

// Load loads configuration from a YAML file. A missing or unparseable
// file is not an error: defaults are returned and logged as such, per
// spec.md's configuration-error taxonomy (logged, defaults substituted,
// never fatal at the core level). Any other read failure is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("Loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("Config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("Failed to parse config file %s, using defaults: %v", path, err)
		cfg = DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	cfg.applyEnvOverrides()
	logging.Boot("Config loaded: data_dir=%s provider=%s", cfg.DataDir, cfg.Provider.Remote.Kind)

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides, in priority
// order over values loaded from the YAML file.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("ARCHI_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if key := os.Getenv("ARCHI_REMOTE_API_KEY"); key != "" {
		c.Provider.Remote.APIKey = key
	}
	if base := os.Getenv("ARCHI_REMOTE_BASE_URL"); base != "" {
		c.Provider.Remote.BaseURL = base
	}
}

// Validate checks the configuration for invalid values, collecting every
// problem found rather than failing on the first, matching the
// collect-all-errors-then-join shape spec.md's error taxonomy expects of
// configuration validation.
func (c *Config) Validate() error {
	var errs []error

	if c.Monitoring.CPUThreshold < 0 || c.Monitoring.CPUThreshold > 100 {
		errs = append(errs, fmt.Errorf("monitoring.cpu_threshold must be between 0 and 100"))
	}
	if c.Monitoring.MemoryThreshold < 0 || c.Monitoring.MemoryThreshold > 100 {
		errs = append(errs, fmt.Errorf("monitoring.memory_threshold must be between 0 and 100"))
	}
	if c.Monitoring.DiskThreshold < 0 || c.Monitoring.DiskThreshold > 100 {
		errs = append(errs, fmt.Errorf("monitoring.disk_threshold must be between 0 and 100"))
	}
	if c.Monitoring.BudgetWarningPct < 0 || c.Monitoring.BudgetWarningPct > 1 {
		errs = append(errs, fmt.Errorf("monitoring.budget_warning_pct must be between 0 and 1"))
	}

	if c.Budget.HardStopUSD < 0 {
		errs = append(errs, fmt.Errorf("budget.hard_stop_usd must be >= 0"))
	}
	if c.Budget.MonthlyHardStopUSD < 0 {
		errs = append(errs, fmt.Errorf("budget.monthly_hard_stop_usd must be >= 0"))
	}
	if c.Budget.MonthlyHardStopUSD > 0 && c.Budget.HardStopUSD > c.Budget.MonthlyHardStopUSD {
		errs = append(errs, fmt.Errorf("budget.hard_stop_usd must not exceed budget.monthly_hard_stop_usd"))
	}

	if c.Heartbeat.CommandMode.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("heartbeat.command_mode.cooldown must be >= 0"))
	}
	if c.Heartbeat.MonitoringMode.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("heartbeat.monitoring_mode.cooldown must be >= 0"))
	}
	if c.Heartbeat.DeepSleepMode.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("heartbeat.deep_sleep_mode.cooldown must be >= 0"))
	}
	if c.Heartbeat.DeepSleepMode.MaxCooldownSeconds < c.Heartbeat.DeepSleepMode.CooldownSeconds {
		errs = append(errs, fmt.Errorf("heartbeat.deep_sleep_mode.max_cooldown must be >= cooldown"))
	}

	if c.Ports.Dashboard == c.Ports.WebChat {
		errs = append(errs, fmt.Errorf("ports.dashboard and ports.web_chat must not collide (both %d)", c.Ports.Dashboard))
	}
	if c.Ports.Dashboard < 0 || c.Ports.Dashboard > 65535 {
		errs = append(errs, fmt.Errorf("ports.dashboard out of range: %d", c.Ports.Dashboard))
	}
	if c.Ports.WebChat < 0 || c.Ports.WebChat > 65535 {
		errs = append(errs, fmt.Errorf("ports.web_chat out of range: %d", c.Ports.WebChat))
	}

	if c.Browser.DefaultTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("browser.default_timeout_ms must be >= 0"))
	}
	if c.Browser.NavigationTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("browser.navigation_timeout_ms must be >= 0"))
	}

	if c.Dream.PollIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("dream.poll_interval_seconds must be > 0"))
	}
	if c.Dream.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("dream.history_size must be >= 0"))
	}

	errs = append(errs, c.Safety.validate()...)

	return errors.Join(errs...)
}
