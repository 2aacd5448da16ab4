// Package dream implements the Dream Cycle: an idle-triggered background
// worker that drains ready tasks from the Goal Store and runs each one
// through the Plan Executor, interruptible at the next task boundary by
// user activity.
package dream

import (
	"context"
	"sync"
	"time"

	"archi/internal/config"
	"archi/internal/executor"
	"archi/internal/goals"
	"archi/internal/logging"
)

// Cycle records the outcome of a single dream cycle for the bounded
// history exposed by Status.
type Cycle struct {
	StartedAt      time.Time
	DurationMs     int64
	TasksProcessed int
	Interrupted    bool
}

// Status is a point-in-time snapshot of the Dream Cycle's state.
type Status struct {
	IsDreaming    bool
	IsIdle        bool
	IdleSeconds   float64
	TotalDreams   int
	LastActivity  time.Time
	AutonomousMode bool
}

// Dreamer is the Dream Cycle (G).
type Dreamer struct {
	mu sync.Mutex

	cfg  config.DreamConfig
	now  func() time.Time

	lastActivity time.Time
	isDreaming   bool
	history      []Cycle

	goalStore *goals.Store
	planner   executor.Planner
	plan      *executor.Executor
	autonomous bool

	monitorStop chan struct{}
	monitorDone chan struct{}
	cancelDream chan struct{}
}

// New creates a Dreamer that checks for idleness using cfg's thresholds.
// plan is the Plan Executor used to run drained tasks.
func New(cfg config.DreamConfig, plan *executor.Executor) *Dreamer {
	return newWithClock(cfg, plan, time.Now)
}

// newWithClock is the test seam: it lets dream_test.go fix "now" to drive
// idle detection deterministically.
func newWithClock(cfg config.DreamConfig, plan *executor.Executor, now func() time.Time) *Dreamer {
	return &Dreamer{
		cfg:          cfg,
		now:          now,
		lastActivity: now(),
		plan:         plan,
	}
}

// MarkActivity resets the idle timer. If a dream is currently running, it
// signals cancellation; the dream stops at the next task boundary rather
// than mid-step, so no partial step state is lost.
func (d *Dreamer) MarkActivity() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActivity = d.now()
	if d.isDreaming && d.cancelDream != nil {
		logging.Dream("user activity detected, interrupting dream cycle")
		select {
		case <-d.cancelDream:
		default:
			close(d.cancelDream)
		}
	}
}

// IsIdle reports whether enough time has passed since the last recorded
// activity to justify starting a dream cycle.
func (d *Dreamer) IsIdle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isIdleLocked()
}

func (d *Dreamer) isIdleLocked() bool {
	idle := d.now().Sub(d.lastActivity).Seconds()
	return idle >= float64(d.cfg.IdleThresholdSeconds)
}

// EnableAutonomousMode wires up the task source and planner so dream
// cycles execute tasks instead of merely observing idleness.
func (d *Dreamer) EnableAutonomousMode(goalStore *goals.Store, planner executor.Planner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.goalStore = goalStore
	d.planner = planner
	d.autonomous = true
	logging.Dream("autonomous execution mode enabled")
}

// Status reports a snapshot of the Dreamer's current state.
func (d *Dreamer) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		IsDreaming:     d.isDreaming,
		IsIdle:         d.isIdleLocked(),
		IdleSeconds:    d.now().Sub(d.lastActivity).Seconds(),
		TotalDreams:    len(d.history),
		LastActivity:   d.lastActivity,
		AutonomousMode: d.autonomous,
	}
}

// StartMonitoring launches the background idle-check worker. It is a
// no-op if monitoring is already running.
func (d *Dreamer) StartMonitoring() {
	d.mu.Lock()
	if d.monitorStop != nil {
		d.mu.Unlock()
		logging.DreamWarn("dream monitoring already running")
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	d.monitorStop = stop
	d.monitorDone = done
	d.mu.Unlock()

	go d.runMonitorLoop(stop, done)
	logging.Dream("dream cycle monitoring started")
}

// StopMonitoring cancels the background worker and waits (briefly) for it
// to exit.
func (d *Dreamer) StopMonitoring() {
	d.mu.Lock()
	stop := d.monitorStop
	done := d.monitorDone
	d.monitorStop = nil
	d.monitorDone = nil
	d.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	logging.Dream("dream cycle monitoring stopped")
}

func (d *Dreamer) runMonitorLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := time.Duration(d.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.mu.Lock()
			idle := d.isIdleLocked() && !d.isDreaming
			d.mu.Unlock()
			if idle {
				logging.Dream("idle detected, starting dream cycle")
				d.runDreamCycle(stop)
			}
		}
	}
}

// runDreamCycle drains up to MaxTasksPerDream ready tasks and runs each
// through the Plan Executor, checking the cancellation signal between
// tasks (not mid-task) so a cancelled cycle always leaves a task in a
// clean terminal or in-progress-with-persisted-state position.
func (d *Dreamer) runDreamCycle(stop <-chan struct{}) {
	d.mu.Lock()
	d.isDreaming = true
	cancel := make(chan struct{})
	d.cancelDream = cancel
	d.mu.Unlock()

	start := d.now()
	processed := 0
	interrupted := false

	defer func() {
		duration := d.now().Sub(start)
		d.mu.Lock()
		d.isDreaming = false
		d.cancelDream = nil
		d.history = append(d.history, Cycle{
			StartedAt:      start,
			DurationMs:     duration.Milliseconds(),
			TasksProcessed: processed,
			Interrupted:    interrupted,
		})
		if max := d.cfg.HistorySize; max > 0 && len(d.history) > max {
			d.history = d.history[len(d.history)-max:]
		}
		d.mu.Unlock()
		logging.Dream("dream cycle ended (duration=%s, tasks=%d, interrupted=%v)", duration, processed, interrupted)
	}()

	logging.Dream("dream cycle start")

	d.mu.Lock()
	autonomous := d.autonomous
	goalStore := d.goalStore
	planner := d.planner
	d.mu.Unlock()

	if !autonomous || goalStore == nil || planner == nil {
		return
	}

	maxTasks := d.cfg.MaxTasksPerDream
	if maxTasks <= 0 {
		maxTasks = 3
	}

	for processed < maxTasks {
		select {
		case <-stop:
			interrupted = true
			return
		case <-cancel:
			interrupted = true
			return
		default:
		}

		task := goalStore.GetNextTask()
		if task == nil {
			logging.Dream("no ready tasks to execute")
			break
		}

		logging.Dream("autonomously executing: %s", task.Description)
		if err := goalStore.StartTask(task.ID); err != nil {
			logging.DreamWarn("could not start task %s: %v", task.ID, err)
			break
		}

		// Deliberately not wired to stop/cancel: interruption takes effect
		// at the next loop iteration's top-of-loop select, not mid-task.
		// A task that's already running is allowed to finish.
		result, err := d.plan.Execute(context.Background(), task, planner, nil)

		if err != nil {
			logging.DreamWarn("task execution failed: %v", err)
			_ = goalStore.FailTask(task.ID, err.Error())
			break
		}
		if !result.Success {
			_ = goalStore.FailTask(task.ID, result.Error)
		} else {
			_ = goalStore.CompleteTask(task.ID, map[string]interface{}{
				"summary":       result.Summary,
				"steps":         result.StepsExecuted,
				"created_files": result.CreatedFiles,
				"verification":  result.Verification,
			})
		}
		_ = goalStore.SaveState()

		processed++
		logging.Dream("task completed: %s", task.ID)
	}
}
