package scheduler

import (
	"testing"
	"time"

	"archi/internal/config"

	"github.com/stretchr/testify/assert"
)

func testConfig() config.HeartbeatConfig {
	return config.HeartbeatConfig{
		CommandMode: config.CommandModeConfig{
			CooldownSeconds: 10,
			DurationSeconds: 120,
		},
		MonitoringMode: config.MonitoringModeConfig{
			CooldownSeconds:      60,
			IdleThresholdSeconds: 600,
		},
		DeepSleepMode: config.DeepSleepModeConfig{
			CooldownSeconds:    600,
			MaxCooldownSeconds: 1800,
		},
		TimeAwareness: config.TimeAwarenessConfig{
			Enabled: true,
			NightMode: config.TimeWindow{
				StartHour:       23,
				EndHour:         6,
				CooldownSeconds: 1800,
			},
			WorkHours: config.TimeWindow{
				StartHour:  9,
				EndHour:    17,
				Multiplier: 1.0,
			},
			Evening: config.TimeWindow{
				StartHour:  18,
				EndHour:    22,
				Multiplier: 1.5,
			},
		},
	}
}

func TestScheduler_CommandModeImmediatelyAfterInteraction(t *testing.T) {
	clock := &fixedClock{t: mustParse("2026-07-30T12:00:00Z")}
	s := newWithClock(testConfig(), clock.Now)

	s.RecordUserInteraction()
	d := s.GetSleepDuration()
	assert.Equal(t, 10*time.Second, d)
	assert.Equal(t, ModeCommand, s.Mode())
}

func TestScheduler_ExitsCommandIntoMonitoring(t *testing.T) {
	clock := &fixedClock{t: mustParse("2026-07-30T12:00:00Z")}
	s := newWithClock(testConfig(), clock.Now)
	s.RecordUserInteraction()

	clock.t = clock.t.Add(121 * time.Second)
	d := s.GetSleepDuration()
	assert.Equal(t, 60*time.Second, d)
	assert.Equal(t, ModeMonitoring, s.Mode())
}

func TestScheduler_DeepSleepAfterIdleThreshold(t *testing.T) {
	clock := &fixedClock{t: mustParse("2026-07-30T12:00:00Z")}
	s := newWithClock(testConfig(), clock.Now)
	s.RecordUserInteraction()

	clock.t = clock.t.Add(700 * time.Second)
	d := s.GetSleepDuration()
	assert.Equal(t, 600*time.Second, d)
	assert.Equal(t, ModeDeepSleep, s.Mode())
}

func TestScheduler_DeepSleepCappedAtMaxCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.DeepSleepMode.CooldownSeconds = 2000
	cfg.DeepSleepMode.MaxCooldownSeconds = 1800
	clock := &fixedClock{t: mustParse("2026-07-30T12:00:00Z")}
	s := newWithClock(cfg, clock.Now)
	s.RecordUserInteraction()

	clock.t = clock.t.Add(700 * time.Second)
	d := s.GetSleepDuration()
	assert.Equal(t, 1800*time.Second, d)
}

func TestScheduler_NightModeOverridesMonitoring(t *testing.T) {
	clock := &fixedClock{t: mustParse("2026-07-30T01:00:00Z")} // 1am, inside 23-6 night window
	s := newWithClock(testConfig(), clock.Now)

	d := s.GetSleepDuration()
	assert.Equal(t, 1800*time.Second, d)
}

func TestScheduler_CommandModeWinsOverNight(t *testing.T) {
	clock := &fixedClock{t: mustParse("2026-07-30T01:00:00Z")}
	s := newWithClock(testConfig(), clock.Now)
	s.RecordUserInteraction()

	d := s.GetSleepDuration()
	assert.Equal(t, 10*time.Second, d, "recent user interaction must win even at night")
}

func TestScheduler_EveningMultiplier(t *testing.T) {
	clock := &fixedClock{t: mustParse("2026-07-30T19:00:00Z")} // 7pm, inside evening window
	s := newWithClock(testConfig(), clock.Now)
	s.RecordUserInteraction()

	clock.t = clock.t.Add(300 * time.Second) // exits command mode, stays below the idle threshold
	d := s.GetSleepDuration()
	assert.Equal(t, 90*time.Second, d, "monitoring cooldown (60s) * evening multiplier (1.5)")
}

func TestScheduler_FloorNeverBelowMinimum(t *testing.T) {
	cfg := testConfig()
	cfg.MonitoringMode.CooldownSeconds = 0
	clock := &fixedClock{t: mustParse("2026-07-30T12:00:00Z")}
	s := newWithClock(cfg, clock.Now)
	s.RecordUserInteraction()
	clock.t = clock.t.Add(121 * time.Second)

	d := s.GetSleepDuration()
	assert.GreaterOrEqual(t, d, floorDuration)
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
