package config

// MonitoringConfig configures the system-resource thresholds the Agent
// Loop's SystemMonitor checks, plus the budget-warning fraction the
// Budget Ledger and Model Router read when deciding whether to escalate
// or suppress simple-query routing.
type MonitoringConfig struct {
	CPUThreshold     float64 `yaml:"cpu_threshold" json:"cpu_threshold"`
	MemoryThreshold  float64 `yaml:"memory_threshold" json:"memory_threshold"`
	DiskThreshold    float64 `yaml:"disk_threshold" json:"disk_threshold"`
	TempThreshold    float64 `yaml:"temp_threshold" json:"temp_threshold"`
	BudgetWarningPct float64 `yaml:"budget_warning_pct" json:"budget_warning_pct"`
}

// BudgetConfig configures the Budget Ledger's hard-stop thresholds.
type BudgetConfig struct {
	HardStopUSD        float64 `yaml:"hard_stop_usd" json:"hard_stop_usd"`
	MonthlyHardStopUSD float64 `yaml:"monthly_hard_stop_usd" json:"monthly_hard_stop_usd"`
}
