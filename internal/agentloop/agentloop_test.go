package agentloop

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"archi/internal/budget"
	"archi/internal/cache"
	"archi/internal/config"
	"archi/internal/dream"
	"archi/internal/executor"
	"archi/internal/goals"
	"archi/internal/provider"
	"archi/internal/router"
	"archi/internal/safety"
	"archi/internal/store"
	"archi/internal/tools"
	"archi/internal/tools/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	sleep     time.Duration
	eventHits int32
}

func (f *fakeScheduler) RecordSystemEvent()              { atomic.AddInt32(&f.eventHits, 1) }
func (f *fakeScheduler) GetSleepDuration() time.Duration { return f.sleep }

func newTestLoop(t *testing.T) (*Loop, *fakeScheduler, string) {
	t.Helper()
	dataDir := t.TempDir()

	registry := tools.NewRegistry()
	registry.MustRegister(core.ReadFileTool())
	registry.MustRegister(core.WriteFileTool())

	execCfg := executor.DefaultConfig(dataDir, filepath.Join(dataDir, "plan_state"))
	plan := executor.New(execCfg, registry)

	goalStore := goals.New(filepath.Join(dataDir, "goals"))
	dreamer := dream.New(config.DreamConfig{
		PollIntervalSeconds:  1,
		IdleThresholdSeconds: 300,
		MaxTasksPerDream:     3,
		HistorySize:          10,
	}, plan)

	local := provider.NewLocalStub("local/stub")
	rtr := router.New(local, nil, cache.New(time.Minute, 100, nil), budget.New(10, 100, 0.8, nil))

	memStore, err := store.Open(filepath.Join(dataDir, "archi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { memStore.Close() })

	sched := &fakeScheduler{sleep: 50 * time.Millisecond}

	cfg := config.Config{DataDir: dataDir}
	cfg.Monitoring = config.MonitoringConfig{CPUThreshold: 80, MemoryThreshold: 90, DiskThreshold: 90, TempThreshold: 80}
	cfg.Safety = config.DefaultSafetyConfig()

	safetyCtl, err := safety.New(cfg.Safety, dataDir)
	require.NoError(t, err)

	loop, err := New(cfg, Deps{
		Scheduler: sched,
		Dreamer:   dreamer,
		GoalStore: goalStore,
		Router:    rtr,
		Ledger:    budget.New(10, 100, 0.8, nil),
		Cache:     cache.New(time.Minute, 100, nil),
		Registry:  registry,
		Safety:    safetyCtl,
		Store:     memStore,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		loop.estop.Close()
		loop.actionLog.Close()
	})
	return loop, sched, dataDir
}

func TestLoop_EmergencyStopExitsImmediately(t *testing.T) {
	loop, _, dataDir := newTestLoop(t)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "EMERGENCY_STOP"), []byte("stop"), 0o644))

	// Rebuild so the sentinel is observed at construction time (the
	// watcher may not have started its goroutine yet).
	loop.estop.Close()
	loop.estop = NewEmergencyStop(filepath.Join(dataDir, "EMERGENCY_STOP"))
	assert.True(t, loop.estop.Check())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := loop.Run(ctx)
	assert.NoError(t, err)
}

func TestLoop_ShouldThrottleWhenOverThreshold(t *testing.T) {
	loop, _, _ := newTestLoop(t)
	loop.monitor = NewSystemMonitor(config.MonitoringConfig{CPUThreshold: -1, MemoryThreshold: 1000, DiskThreshold: 1000, TempThreshold: 1000}, "/")
	assert.True(t, loop.monitor.ShouldThrottle(context.Background()))
}

func TestLoop_FireHeartbeatOnlyOncePerInterval(t *testing.T) {
	loop, sched, _ := newTestLoop(t)

	assert.True(t, loop.fireHeartbeat())
	assert.False(t, loop.fireHeartbeat())
	assert.Equal(t, int32(1), atomic.LoadInt32(&sched.eventHits))
}

func TestLoop_LogIdleTaskSuppressesRepeatedID(t *testing.T) {
	loop, _, _ := newTestLoop(t)

	goal := loop.goalStore.CreateGoal("write a file", "test", 5)
	goal.IsDecomposed = true
	goal.Tasks = append(goal.Tasks, &goals.Task{
		ID:          "task-1",
		GoalID:      goal.ID,
		Description: "do the thing",
		Priority:    5,
		Status:      goals.StatusPending,
	})

	loop.logIdleTask()
	assert.Equal(t, "task-1", loop.lastDiscoveredTaskID)

	loop.logIdleTask()
	assert.Equal(t, "task-1", loop.lastDiscoveredTaskID)
}

func TestLoop_InjectedTriggerDispatchesThroughRegistry(t *testing.T) {
	loop, _, dataDir := newTestLoop(t)

	target := filepath.Join(dataDir, "trigger_output.txt")
	loop.Inject(Trigger{
		Source:   "test",
		ToolName: "create_file",
		Args: map[string]any{
			"path":    target,
			"content": "hello from a trigger",
		},
		Confidence: 0.9,
	})

	dispatched := loop.drainTriggers(context.Background())
	assert.True(t, dispatched)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello from a trigger", string(data))
}

func TestLoop_RunStopsOnContextCancellation(t *testing.T) {
	loop, _, _ := newTestLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(75 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
