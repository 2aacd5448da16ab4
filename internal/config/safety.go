package config

import "fmt"

// RiskRequirement names how the Safety Controller must handle an action
// once its risk level is known.
type RiskRequirement string

const (
	RequirementAutonomous  RiskRequirement = "autonomous"
	RequirementNotifyLog   RiskRequirement = "notify_and_log"
	RequirementApproval    RiskRequirement = "human_approval"
	RequirementManualOnly  RiskRequirement = "manual_execute_only"
)

// RiskLevelConfig maps one action type to its risk requirement and the
// minimum router confidence needed to proceed autonomously.
type RiskLevelConfig struct {
	ActionType  string          `yaml:"action_type" json:"action_type"`
	Requirement RiskRequirement `yaml:"requirement" json:"requirement"`
	Threshold   float64         `yaml:"threshold" json:"threshold"`
}

// SafetyConfig configures the Safety Controller: which action types carry
// which risk requirement, which parameter-path actions are subject to
// workspace isolation, and the fallback behavior for action types the
// policy does not name.
type SafetyConfig struct {
	RiskLevels []RiskLevelConfig `yaml:"risk_levels" json:"risk_levels"`

	// ReadOnlyActions are exempt from workspace-path isolation even when
	// one of their parameters looks like a path.
	ReadOnlyActions []string `yaml:"read_only_actions" json:"read_only_actions"`

	// PathParamKeys are the argument names checked against the
	// workspace root for actions not listed in ReadOnlyActions.
	PathParamKeys []string `yaml:"path_param_keys" json:"path_param_keys"`

	// ProtectedPrefixes name workspace-relative paths that are always
	// off-limits to write actions, even when the resolved path stays
	// within the workspace root.
	ProtectedPrefixes []string `yaml:"protected_prefixes" json:"protected_prefixes"`
}

// DefaultSafetyConfig returns Archi's default risk policy.
func DefaultSafetyConfig() SafetyConfig {
	return SafetyConfig{
		RiskLevels: []RiskLevelConfig{
			{ActionType: "read_file", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "list_files", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "glob", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "grep", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "search_code", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "web_search", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "fetch_webpage", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "think", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "done", Requirement: RequirementAutonomous, Threshold: 0.0},
			{ActionType: "create_file", Requirement: RequirementNotifyLog, Threshold: 0.6},
			{ActionType: "edit_file", Requirement: RequirementNotifyLog, Threshold: 0.6},
			{ActionType: "append_file", Requirement: RequirementNotifyLog, Threshold: 0.6},
			{ActionType: "write_source", Requirement: RequirementNotifyLog, Threshold: 0.6},
			{ActionType: "delete_file", Requirement: RequirementApproval, Threshold: 0.85},
			{ActionType: "run_python", Requirement: RequirementApproval, Threshold: 0.85},
			{ActionType: "exec_cmd", Requirement: RequirementManualOnly, Threshold: 1.0},
			{ActionType: "send_email", Requirement: RequirementManualOnly, Threshold: 1.0},
			{ActionType: "external_api_call", Requirement: RequirementManualOnly, Threshold: 1.0},
			{ActionType: "financial_transaction", Requirement: RequirementManualOnly, Threshold: 1.0},
		},
		ReadOnlyActions: []string{
			"read_file", "list_files", "glob", "grep", "search_code",
			"web_search", "fetch_webpage", "think", "done",
		},
		PathParamKeys:     []string{"path", "file_path", "dest", "destination", "source", "target", "output_path", "input_path"},
		ProtectedPrefixes: []string{"archi.db", "archi.db-wal", "archi.db-shm", "config.yaml", "EMERGENCY_STOP"},
	}
}

// validate checks the safety policy for obvious misconfiguration.
func (c SafetyConfig) validate() []error {
	var errs []error
	seen := make(map[string]bool, len(c.RiskLevels))
	for _, rl := range c.RiskLevels {
		if rl.ActionType == "" {
			errs = append(errs, fmt.Errorf("safety.risk_levels entry missing action_type"))
			continue
		}
		if seen[rl.ActionType] {
			errs = append(errs, fmt.Errorf("safety.risk_levels has a duplicate action_type %q", rl.ActionType))
		}
		seen[rl.ActionType] = true
		switch rl.Requirement {
		case RequirementAutonomous, RequirementNotifyLog, RequirementApproval, RequirementManualOnly:
		default:
			errs = append(errs, fmt.Errorf("safety.risk_levels[%s] has unknown requirement %q", rl.ActionType, rl.Requirement))
		}
		if rl.Threshold < 0 || rl.Threshold > 1 {
			errs = append(errs, fmt.Errorf("safety.risk_levels[%s].threshold must be between 0 and 1", rl.ActionType))
		}
	}
	return errs
}
