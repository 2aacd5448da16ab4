// Package safety implements the Safety Controller: the gate every
// structured action passes through before the Tool Registry executes
// it. It enforces workspace-path isolation for write actions, looks up
// each action type's risk level and confidence threshold, and applies
// that risk level's requirement (autonomous, notify-and-log, human
// approval, or manual-only).
package safety

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"archi/internal/config"
	"archi/internal/logging"
)

// Action is the structured action a caller is asking the controller to
// authorize. Confidence is the Model Router's confidence in the action
// it proposed; RiskLevel is filled in by Authorize.
type Action struct {
	Type       string
	Parameters map[string]any
	Confidence float64
	Reasoning  string

	RiskLevel string
}

// ApprovalFunc requests a human decision for an action requiring
// human_approval. The default, used when no Interaction Source has
// registered one, always denies: an agent with no attached human cannot
// wait on a prompt that will never be answered.
type ApprovalFunc func(ctx context.Context, action Action) bool

// Decision is the result of Authorize.
type Decision struct {
	Allowed   bool
	Reason    string
	RiskLevel string
}

// Controller is the Safety Controller.
type Controller struct {
	cfg           config.SafetyConfig
	workspaceRoot string
	readOnly      map[string]bool
	risk          map[string]config.RiskLevelConfig

	mu       sync.Mutex
	eng      *engine
	approve  ApprovalFunc
	manualQ  []Action
}

// New builds a Controller whose write-action path checks are relative to
// workspaceRoot (normally the project root the Plan Executor also
// operates under).
func New(cfg config.SafetyConfig, workspaceRoot string) (*Controller, error) {
	eng, err := newEngine(policyProgram)
	if err != nil {
		return nil, fmt.Errorf("load safety policy program: %w", err)
	}

	readOnly := make(map[string]bool, len(cfg.ReadOnlyActions))
	for _, t := range cfg.ReadOnlyActions {
		readOnly[t] = true
	}
	risk := make(map[string]config.RiskLevelConfig, len(cfg.RiskLevels))
	for _, rl := range cfg.RiskLevels {
		risk[rl.ActionType] = rl
	}

	return &Controller{
		cfg:           cfg,
		workspaceRoot: filepath.Clean(workspaceRoot),
		readOnly:      readOnly,
		risk:          risk,
		eng:           eng,
		approve:       func(context.Context, Action) bool { return false },
	}, nil
}

// SetApprovalFunc registers the callback used for actions whose risk
// level requires human_approval. A chat-based Interaction Source is the
// expected caller.
func (c *Controller) SetApprovalFunc(fn ApprovalFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approve = fn
}

// ManualQueue returns and clears the actions queued for manual execution
// (risk level manual_execute_only). The caller is responsible for
// surfacing them to a human; Authorize never executes them itself.
func (c *Controller) ManualQueue() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.manualQ
	c.manualQ = nil
	return q
}

// Authorize decides whether action may proceed. It never executes the
// action itself; the caller (the Agent Loop's trigger dispatch) only
// calls the Tool Registry once Authorize returns Allowed.
func (c *Controller) Authorize(ctx context.Context, action *Action) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	isWrite := !c.readOnly[action.Type]

	violation, reason := c.checkPathPolicy(ctx, action.Type, action.Parameters, isWrite)
	if violation {
		logging.SafetyWarn("denied %s: %s", action.Type, reason)
		return Decision{Allowed: false, Reason: reason}
	}

	risk, ok := c.risk[action.Type]
	if !ok {
		logging.SafetyWarn("denied %s: unknown action type, deny by default", action.Type)
		return Decision{Allowed: false, Reason: "unknown action type"}
	}
	action.RiskLevel = string(risk.Requirement)

	if action.Confidence < risk.Threshold {
		logging.SafetyWarn("denied %s: confidence %.2f below threshold %.2f", action.Type, action.Confidence, risk.Threshold)
		return Decision{Allowed: false, Reason: "confidence below risk threshold", RiskLevel: action.RiskLevel}
	}

	switch risk.Requirement {
	case config.RequirementAutonomous:
		return Decision{Allowed: true, RiskLevel: action.RiskLevel}

	case config.RequirementNotifyLog:
		logging.Safety("notify_and_log: %s confidence=%.2f reasoning=%q", action.Type, action.Confidence, action.Reasoning)
		return Decision{Allowed: true, RiskLevel: action.RiskLevel}

	case config.RequirementApproval:
		if c.approve(ctx, *action) {
			logging.Safety("human approved %s", action.Type)
			return Decision{Allowed: true, RiskLevel: action.RiskLevel}
		}
		logging.SafetyWarn("denied %s: human approval withheld", action.Type)
		return Decision{Allowed: false, Reason: "human approval withheld", RiskLevel: action.RiskLevel}

	case config.RequirementManualOnly:
		c.manualQ = append(c.manualQ, *action)
		logging.Safety("queued %s for manual execution", action.Type)
		return Decision{Allowed: false, Reason: "requires manual execution", RiskLevel: action.RiskLevel}

	default:
		return Decision{Allowed: false, Reason: "unrecognized risk requirement", RiskLevel: action.RiskLevel}
	}
}

// checkPathPolicy evaluates the workspace-isolation and protected-prefix
// rules for every path-shaped parameter of a write action, via the
// Datalog program: Go resolves and classifies each path, asserts the
// resulting booleans, and the engine's path_violation rule combines them.
func (c *Controller) checkPathPolicy(ctx context.Context, actionType string, params map[string]any, isWrite bool) (bool, string) {
	c.eng.reset()
	if !isWrite {
		return false, ""
	}

	outside := false
	protected := false
	var offending string
	for _, key := range c.cfg.PathParamKeys {
		raw, ok := params[key]
		if !ok {
			continue
		}
		path, ok := raw.(string)
		if !ok || path == "" {
			continue
		}
		if c.pathEscapesWorkspace(path) {
			outside = true
			offending = path
		}
		if c.pathIsProtected(path) {
			protected = true
			offending = path
		}
	}

	facts := []fact{{predicate: "is_write_action", args: []any{actionID}}}
	if outside {
		facts = append(facts, fact{predicate: "outside_workspace", args: []any{actionID}})
	}
	if protected {
		facts = append(facts, fact{predicate: "protected_path_hit", args: []any{actionID}})
	}
	if err := c.eng.assert(facts...); err != nil {
		logging.SafetyWarn("policy evaluation failed, denying: %v", err)
		return true, fmt.Sprintf("policy evaluation error: %v", err)
	}

	violated, err := c.eng.holds(ctx, "path_violation", actionID)
	if err != nil {
		logging.SafetyWarn("policy query failed, denying: %v", err)
		return true, fmt.Sprintf("policy query error: %v", err)
	}
	if !violated {
		return false, ""
	}
	if outside {
		return true, fmt.Sprintf("path %q escapes the workspace", offending)
	}
	return true, fmt.Sprintf("path %q is protected", offending)
}

func (c *Controller) pathEscapesWorkspace(path string) bool {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(c.workspaceRoot, full)
	}
	full = filepath.Clean(full)
	return full != c.workspaceRoot && !strings.HasPrefix(full, c.workspaceRoot+string(filepath.Separator))
}

func (c *Controller) pathIsProtected(path string) bool {
	rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
	for _, prefix := range c.cfg.ProtectedPrefixes {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") || strings.HasSuffix(rel, "/"+prefix) {
			return true
		}
	}
	return false
}
