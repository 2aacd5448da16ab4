// Package agentloop implements the Agent Loop: the top-level coordinator
// that ticks at intervals governed by the Activity Scheduler, checks for
// emergency stop and system throttling, dispatches the mandatory
// heartbeat trigger, lets the Dream Cycle run autonomous work while
// idle, and shuts everything down gracefully on cancellation.
package agentloop

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"archi/internal/budget"
	"archi/internal/cache"
	"archi/internal/config"
	"archi/internal/dream"
	"archi/internal/goals"
	"archi/internal/logging"
	"archi/internal/router"
	"archi/internal/safety"
	"archi/internal/store"
	"archi/internal/tools"
)

// throttleFactor multiplies the scheduler's sleep duration when system
// health is over threshold.
const throttleFactor = 5.0

// heartbeatInterval is the mandatory trigger period, independent of the
// Activity Scheduler's sleep duration.
const heartbeatInterval = 60 * time.Second

// Trigger is an injected action trigger, queued by an Interaction Source
// or a timer outside the loop. A Trigger with an empty ToolName is a
// bare notification (nothing to dispatch through the Tool Registry).
type Trigger struct {
	Source     string
	ToolName   string
	Args       map[string]any
	Confidence float64
	Reasoning  string
}

// Loop is the Agent Loop (H).
type Loop struct {
	cfg config.Config

	scheduler scheduler
	dreamer   *dream.Dreamer
	goalStore *goals.Store
	router    *router.Router
	ledger    *budget.Ledger
	cache     *cache.Cache
	registry  *tools.Registry
	safety    *safety.Controller
	monitor   *SystemMonitor
	estop     *EmergencyStop
	actionLog *logging.ActionLog
	store     *store.Store

	triggers chan Trigger

	lastHeartbeat        time.Time
	lastDiscoveredTaskID string
	iteration            int
}

// scheduler is the narrow surface Loop needs from the Activity Scheduler,
// named locally so this package does not import internal/scheduler's
// exported Mode type into its own API.
type scheduler interface {
	RecordSystemEvent()
	GetSleepDuration() time.Duration
}

// Deps bundles the already-constructed components Loop coordinates. All
// fields are required except Store, which may be nil if the Typed
// Persistent Store was not configured.
type Deps struct {
	Scheduler scheduler
	Dreamer   *dream.Dreamer
	GoalStore *goals.Store
	Router    *router.Router
	Ledger    *budget.Ledger
	Cache     *cache.Cache
	Registry  *tools.Registry
	Safety    *safety.Controller
	Store     *store.Store
}

// New assembles the Agent Loop from cfg and deps. It builds its own
// SystemMonitor and EmergencyStop from cfg.
func New(cfg config.Config, deps Deps) (*Loop, error) {
	actionLog, err := logging.NewActionLog(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create action log: %w", err)
	}

	monitor := NewSystemMonitor(cfg.Monitoring, cfg.DataDir)
	estop := NewEmergencyStop(filepath.Join(cfg.DataDir, "EMERGENCY_STOP"))

	return &Loop{
		cfg:       cfg,
		scheduler: deps.Scheduler,
		dreamer:   deps.Dreamer,
		goalStore: deps.GoalStore,
		router:    deps.Router,
		ledger:    deps.Ledger,
		cache:     deps.Cache,
		registry:  deps.Registry,
		safety:    deps.Safety,
		monitor:   monitor,
		estop:     estop,
		actionLog: actionLog,
		store:     deps.Store,
		triggers:  make(chan Trigger, 64),
	}, nil
}

// Inject enqueues a trigger for the next tick's trigger-evaluation step.
// Interaction Sources call this to ask the loop to dispatch a structured
// action without waiting for the mandatory heartbeat. The call is
// non-blocking; a full queue drops the trigger and logs a warning.
func (l *Loop) Inject(t Trigger) {
	select {
	case l.triggers <- t:
	default:
		logging.AgentLoopWarn("trigger queue full, dropping trigger from %s", t.Source)
	}
}

// Run executes startup recovery, starts the Dream Cycle monitor, and
// ticks until ctx is cancelled, then shuts down gracefully.
func (l *Loop) Run(ctx context.Context) error {
	l.startupRecovery(ctx)

	l.dreamer.StartMonitoring()
	defer l.shutdown()

	l.actionLog.Log(logging.ActionEntry{ActionType: "system_start", Result: "started"})

	for {
		select {
		case <-ctx.Done():
			logging.AgentLoop("shutdown requested")
			return nil
		default:
		}

		l.iteration++

		if l.estop.Check() {
			logging.AgentLoopError("exiting due to emergency stop")
			return nil
		}

		throttle := 1.0
		if l.monitor.ShouldThrottle(ctx) {
			throttle = throttleFactor
		}

		l.tick(ctx)

		sleep := time.Duration(float64(l.scheduler.GetSleepDuration()) * throttle)
		if !sleepChunked(ctx, sleep) {
			logging.AgentLoop("shutdown requested during sleep")
			return nil
		}
	}
}

// tick evaluates the mandatory heartbeat trigger plus any injected
// triggers, dispatching structured actions through the Tool Registry.
// When nothing fires, it logs (but does not execute) the next ready
// task — actual execution happens only inside Dream Cycle runs.
func (l *Loop) tick(ctx context.Context) {
	fired := l.fireHeartbeat()
	fired = l.drainTriggers(ctx) || fired

	if !fired {
		l.logIdleTask()
	}
}

func (l *Loop) fireHeartbeat() bool {
	now := time.Now()
	if now.Sub(l.lastHeartbeat) < heartbeatInterval {
		return false
	}
	l.lastHeartbeat = now
	l.scheduler.RecordSystemEvent()

	start := time.Now()
	l.actionLog.Log(logging.ActionEntry{
		ActionType: "heartbeat",
		Parameters: map[string]any{"iteration": l.iteration},
		ModelUsed:  "system",
		Confidence: 1.0,
		Result:     "success",
		DurationMs: time.Since(start).Milliseconds(),
	})
	l.storeAction("heartbeat", map[string]any{"iteration": l.iteration}, true)
	return true
}

// drainTriggers dispatches every trigger currently queued. Structured
// actions (non-empty ToolName) pass through the Safety Controller and,
// if authorized, the Tool Registry; bare notifications are just logged.
func (l *Loop) drainTriggers(ctx context.Context) bool {
	dispatched := false
	for {
		select {
		case t := <-l.triggers:
			dispatched = true
			l.dispatchTrigger(ctx, t)
		default:
			return dispatched
		}
	}
}

func (l *Loop) dispatchTrigger(ctx context.Context, t Trigger) {
	if t.ToolName == "" {
		logging.AgentLoop("trigger from %s", t.Source)
		l.storeAction("trigger", map[string]any{"source": t.Source}, true)
		return
	}

	action := safety.Action{
		Type:       t.ToolName,
		Parameters: t.Args,
		Confidence: t.Confidence,
		Reasoning:  t.Reasoning,
	}
	decision := l.safety.Authorize(ctx, &action)
	if !decision.Allowed {
		logging.AgentLoopWarn("trigger %s from %s denied: %s", t.ToolName, t.Source, decision.Reason)
		l.actionLog.Log(logging.ActionEntry{
			ActionType: t.ToolName,
			Parameters: t.Args,
			Result:     "denied",
			Error:      decision.Reason,
		})
		l.storeAction(t.ToolName, map[string]any{"source": t.Source, "args": t.Args, "denied_reason": decision.Reason}, false)
		return
	}

	start := time.Now()
	result, err := l.registry.Execute(ctx, t.ToolName, t.Args)
	duration := time.Since(start).Milliseconds()

	entry := logging.ActionEntry{
		ActionType: t.ToolName,
		Parameters: t.Args,
		DurationMs: duration,
	}
	success := err == nil && (result == nil || result.IsSuccess())
	if err != nil {
		entry.Result = "error"
		entry.Error = err.Error()
		logging.AgentLoopWarn("trigger %s failed: %v", t.ToolName, err)
	} else if !result.IsSuccess() {
		entry.Result = "failed"
		entry.Error = result.Error.Error()
	} else {
		entry.Result = "success"
	}
	l.actionLog.Log(entry)
	l.storeAction(t.ToolName, map[string]any{"source": t.Source, "args": t.Args}, success)
}

// logIdleTask surfaces the next ready task's existence once per task,
// so an idle loop does not repeat the same log line every tick.
func (l *Loop) logIdleTask() {
	task := l.goalStore.GetNextTask()
	if task == nil {
		return
	}
	if task.ID != l.lastDiscoveredTaskID {
		logging.AgentLoop("idle: next task queued - %s: %s (dream cycle will execute after idle threshold)", task.ID, truncate(task.Description, 80))
		l.lastDiscoveredTaskID = task.ID
	}
	l.storeAction("goal_discovered", map[string]any{
		"task_id":     task.ID,
		"goal_id":     task.GoalID,
		"description": truncate(task.Description, 200),
	}, false)
}

func (l *Loop) storeAction(actionType string, params map[string]any, success bool) {
	if l.store == nil {
		return
	}
	if _, err := l.store.PutMemory(store.MemoryEntry{
		Kind:     "action",
		Content:  actionType,
		Metadata: mergeSuccess(params, success),
	}); err != nil {
		logging.AgentLoopDebug("store action failed: %v", err)
	}
}

func mergeSuccess(params map[string]any, success bool) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["success"] = success
	return out
}

// startupRecovery prunes duplicate goals, logs current goal status, and
// performs one self-test generate call against the Model Router so
// routing failures surface at startup rather than on the first real
// request.
func (l *Loop) startupRecovery(ctx context.Context) {
	logging.AgentLoop("running startup recovery check...")

	if pruned := l.goalStore.PruneDuplicates(); pruned > 0 {
		logging.AgentLoop("startup recovery: pruned %d duplicate goals", pruned)
	}

	status := l.goalStore.GetStatus()
	logging.AgentLoop("goals: %d active, %d pending tasks", status.ActiveGoals, status.PendingTasks)

	if l.router.LocalAvailable() {
		logging.AgentLoop("router: local provider ready")
	} else {
		logging.AgentLoop("router: API-only mode (local model not available)")
	}
	result := l.router.Generate(ctx, "What is 2+2? Answer with just the number.", 50, 0.0, router.Flags{PreferLocal: true, UseReasoning: false})
	logging.AgentLoop("router test: %s responded: %q (cost=$%.6f)", result.Model, truncate(result.Text, 80), result.CostUSD)

	logging.AgentLoop("startup recovery complete")
}

func (l *Loop) shutdown() {
	l.dreamer.StopMonitoring()
	if l.ledger != nil {
		l.ledger.Flush()
	}
	if l.cache != nil {
		stats := l.cache.Stats()
		logging.AgentLoop("cache at shutdown: size=%d hit_rate=%.1f%%", stats.Size, stats.HitRate)
	}
	l.actionLog.Log(logging.ActionEntry{
		ActionType: "system_stop",
		Parameters: map[string]any{"iteration": l.iteration},
		Result:     "stopped",
	})
	l.actionLog.Close()
	l.estop.Close()
	logging.AgentLoop("agent loop stopped")
}

// sleepChunked sleeps for d in <=1s chunks so ctx cancellation is
// observed promptly instead of blocking for the whole duration. It
// returns false if ctx was cancelled before the sleep completed.
func sleepChunked(ctx context.Context, d time.Duration) bool {
	remaining := d
	for remaining > 0 {
		chunk := remaining
		if chunk > time.Second {
			chunk = time.Second
		}
		timer := time.NewTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		remaining -= chunk
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
