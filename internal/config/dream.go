package config

// DreamConfig configures the Dream Cycle: how often it polls for idle
// opportunities and how much of its activity history it retains.
type DreamConfig struct {
	PollIntervalSeconds  int `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
	IdleThresholdSeconds int `yaml:"idle_threshold_seconds" json:"idle_threshold_seconds"`
	MaxTasksPerDream     int `yaml:"max_tasks_per_dream" json:"max_tasks_per_dream"`
	HistorySize          int `yaml:"history_size" json:"history_size"`
}
