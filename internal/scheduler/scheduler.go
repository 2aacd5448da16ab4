// Package scheduler implements the Activity Scheduler: the component
// that decides how long the Agent Loop sleeps between ticks, adapting
// to recent user interaction, system events, idle duration, and the
// time of day.
package scheduler

import (
	"sync"
	"time"

	"archi/internal/config"
	"archi/internal/logging"
)

// Mode is the scheduler's current operating tier.
type Mode string

const (
	ModeCommand    Mode = "command"
	ModeMonitoring Mode = "monitoring"
	ModeDeepSleep  Mode = "deep_sleep"
)

// floorDuration is the minimum value GetSleepDuration ever returns.
const floorDuration = 100 * time.Millisecond

// Scheduler is the Activity Scheduler (F): a three-tier adaptive sleep
// duration calculator, mutex-guarded since the Agent Loop and any
// Interaction Source may both record activity concurrently.
type Scheduler struct {
	mu sync.Mutex

	cfg config.HeartbeatConfig
	now func() time.Time

	lastUserInteraction time.Time
	lastSystemEvent     time.Time
	mode                Mode
}

// New creates a Scheduler reading cooldowns and windows from cfg.
func New(cfg config.HeartbeatConfig) *Scheduler {
	return newWithClock(cfg, time.Now)
}

// newWithClock is the test seam: it lets scheduler_test.go fix "now" to
// exercise night-mode and work-hours windows deterministically.
func newWithClock(cfg config.HeartbeatConfig, now func() time.Time) *Scheduler {
	n := now()
	return &Scheduler{
		cfg:                 cfg,
		now:                 now,
		lastUserInteraction: n,
		lastSystemEvent:     n,
		mode:                ModeMonitoring,
	}
}

// RecordUserInteraction resets the command-mode clock and forces
// command mode; command mode always wins over night mode.
func (s *Scheduler) RecordUserInteraction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUserInteraction = s.now()
	s.mode = ModeCommand
	logging.Scheduler("entered command mode (cooldown=%ds for %ds)", s.cfg.CommandMode.CooldownSeconds, s.cfg.CommandMode.DurationSeconds)
}

// RecordSystemEvent resets the system-event clock, used for mode
// demotion decisions alongside user interaction.
func (s *Scheduler) RecordSystemEvent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSystemEvent = s.now()
}

// Mode reports the scheduler's current tier.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// GetSleepDuration returns the next tick interval, applying command
// mode, night-mode override, idle-threshold deep-sleep promotion, and
// the time-of-day multiplier in that priority order. One call can pass
// through more than one mode: once command mode has expired, an idle
// scheduler moves from command through monitoring to deep sleep.
func (s *Scheduler) GetSleepDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sinceInteraction := now.Sub(s.lastUserInteraction)
	sinceEvent := now.Sub(s.lastSystemEvent)
	idle := sinceInteraction
	if sinceEvent < idle {
		idle = sinceEvent
	}

	commandDuration := time.Duration(s.cfg.CommandMode.DurationSeconds) * time.Second
	if sinceInteraction < commandDuration {
		s.mode = ModeCommand
		return floor(time.Duration(s.cfg.CommandMode.CooldownSeconds) * time.Second)
	}

	if s.isNightTime(now) {
		if s.mode == ModeCommand {
			s.mode = ModeMonitoring
			logging.Scheduler("exited command mode -> night mode")
		}
		return floor(time.Duration(s.cfg.TimeAwareness.NightMode.CooldownSeconds) * time.Second)
	}

	if s.mode == ModeCommand {
		s.mode = ModeMonitoring
		logging.Scheduler("exited command mode -> monitoring")
	}

	idleThreshold := time.Duration(s.cfg.MonitoringMode.IdleThresholdSeconds) * time.Second
	var base time.Duration
	if idle >= idleThreshold {
		if s.mode != ModeDeepSleep {
			s.mode = ModeDeepSleep
			logging.Scheduler("entered deep sleep mode")
		}
		base = time.Duration(s.cfg.DeepSleepMode.CooldownSeconds) * time.Second
		maxCooldown := time.Duration(s.cfg.DeepSleepMode.MaxCooldownSeconds) * time.Second
		if base > maxCooldown {
			base = maxCooldown
		}
	} else {
		if s.mode == ModeDeepSleep {
			s.mode = ModeMonitoring
		}
		base = time.Duration(s.cfg.MonitoringMode.CooldownSeconds) * time.Second
	}

	mult := s.timeOfDayMultiplier(now)
	sleep := time.Duration(float64(base) * mult)
	return floor(sleep)
}

func floor(d time.Duration) time.Duration {
	if d < floorDuration {
		return floorDuration
	}
	return d
}

// isNightTime reports whether now falls inside the configured night
// window, when time awareness is enabled.
func (s *Scheduler) isNightTime(now time.Time) bool {
	if !s.cfg.TimeAwareness.Enabled {
		return false
	}
	return s.cfg.TimeAwareness.NightMode.Contains(now.Hour())
}

// timeOfDayMultiplier scales the base cooldown for work-hours (typically
// 1.0) and evening (typically 1.5) windows; outside both, the
// multiplier is 1.0.
func (s *Scheduler) timeOfDayMultiplier(now time.Time) float64 {
	if !s.cfg.TimeAwareness.Enabled {
		return 1.0
	}
	hour := now.Hour()
	if s.cfg.TimeAwareness.WorkHours.Contains(hour) {
		if m := s.cfg.TimeAwareness.WorkHours.Multiplier; m > 0 {
			return m
		}
		return 1.0
	}
	if s.cfg.TimeAwareness.Evening.Contains(hour) {
		if m := s.cfg.TimeAwareness.Evening.Multiplier; m > 0 {
			return m
		}
		return 1.0
	}
	return 1.0
}
