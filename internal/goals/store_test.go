package goals

import (
	"context"
	"testing"

	"archi/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlanner struct {
	response provider.Response
}

func (f *fakePlanner) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, stop []string) provider.Response {
	return f.response
}

func TestStore_CreateGoalAndPersist(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	goal := s.CreateGoal("write the quarterly report", "need it for the board meeting", 7)
	assert.Equal(t, "goal_1", goal.ID)
	assert.False(t, goal.IsDecomposed)

	s2 := New(dir)
	reloaded, ok := s2.goals["goal_1"]
	require.True(t, ok)
	assert.Equal(t, "write the quarterly report", reloaded.Description)
	assert.Equal(t, 7, reloaded.Priority)
}

func TestStore_DecomposeGoal(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	goal := s.CreateGoal("ship the release", "customers are waiting", 8)

	planner := &fakePlanner{response: provider.Response{
		Success: true,
		Text: `[
			{"description": "write changelog", "priority": 5, "dependencies": [], "estimated_duration_minutes": 15},
			{"description": "run test suite", "priority": 6, "dependencies": [0], "estimated_duration_minutes": 30},
			{"description": "tag release", "priority": 7, "dependencies": [0, 1], "estimated_duration_minutes": 5}
		]`,
	}}

	tasks, err := s.DecomposeGoal(context.Background(), goal.ID, planner)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, "task_1", tasks[0].ID)
	assert.Empty(t, tasks[0].Prerequisites)
	assert.Equal(t, []string{"task_1"}, tasks[1].Prerequisites)
	assert.Equal(t, []string{"task_1", "task_2"}, tasks[2].Prerequisites)

	// Decomposing again is a no-op that returns the existing tasks.
	tasks2, err := s.DecomposeGoal(context.Background(), goal.ID, planner)
	require.NoError(t, err)
	assert.Len(t, tasks2, 3)
}

func TestStore_DecomposeGoal_DropsForwardAndSelfReferences(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	goal := s.CreateGoal("explore mars", "curiosity", 5)

	planner := &fakePlanner{response: provider.Response{
		Success: true,
		Text: `[
			{"description": "first", "dependencies": [0, 1]},
			{"description": "second", "dependencies": ["task_99"]}
		]`,
	}}

	tasks, err := s.DecomposeGoal(context.Background(), goal.ID, planner)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Empty(t, tasks[0].Prerequisites, "self/forward references must be dropped")
	assert.Empty(t, tasks[1].Prerequisites, "unresolvable task_N reference must be dropped")
}

func TestStore_GetNextTask_PicksHighestPriorityReady(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	low := s.CreateGoal("low priority goal", "", 2)
	high := s.CreateGoal("high priority goal", "", 9)

	planner := &fakePlanner{response: provider.Response{Success: true, Text: `[{"description": "a", "priority": 5}]`}}
	_, err := s.DecomposeGoal(context.Background(), low.ID, planner)
	require.NoError(t, err)
	planner2 := &fakePlanner{response: provider.Response{Success: true, Text: `[{"description": "b", "priority": 5}]`}}
	_, err = s.DecomposeGoal(context.Background(), high.ID, planner2)
	require.NoError(t, err)

	next := s.GetNextTask()
	require.NotNil(t, next)
	assert.Equal(t, "b", next.Description, "ties on task priority break on goal priority")
}

func TestStore_TaskLifecycle(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	goal := s.CreateGoal("test lifecycle", "", 5)
	planner := &fakePlanner{response: provider.Response{Success: true, Text: `[{"description": "only task"}]`}}
	tasks, err := s.DecomposeGoal(context.Background(), goal.ID, planner)
	require.NoError(t, err)
	id := tasks[0].ID

	require.NoError(t, s.StartTask(id))
	require.NoError(t, s.CompleteTask(id, map[string]interface{}{"ok": true}))

	status := s.GetStatus()
	assert.Equal(t, 1, status.CompletedTasks)
	assert.Equal(t, 0, status.ActiveGoals, "a goal with all tasks completed is no longer active")
}

func TestStore_FailTask(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	goal := s.CreateGoal("might fail", "", 5)
	planner := &fakePlanner{response: provider.Response{Success: true, Text: `[{"description": "risky"}]`}}
	tasks, err := s.DecomposeGoal(context.Background(), goal.ID, planner)
	require.NoError(t, err)

	require.NoError(t, s.FailTask(tasks[0].ID, "boom"))
	status := s.GetStatus()
	assert.Equal(t, 1, status.ActiveGoals)
}

func TestStore_PruneDuplicates_SubstringAndJaccard(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	s.CreateGoal("write a blog post about go concurrency", "", 5)
	s.CreateGoal("write a blog post about go concurrency patterns", "", 5) // substring superset of first
	s.CreateGoal("write blog post on concurrency patterns in go", "", 5)   // high jaccard overlap
	s.CreateGoal("cook dinner for the family", "", 5)                     // unrelated, kept

	removed := s.PruneDuplicates()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, len(s.goals))
}

func TestStore_PruneDuplicates_SkipsDecomposedAndCompleted(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	kept := s.CreateGoal("organize the team offsite", "", 5)
	planner := &fakePlanner{response: provider.Response{Success: true, Text: `[{"description": "book venue"}]`}}
	_, err := s.DecomposeGoal(context.Background(), kept.ID, planner)
	require.NoError(t, err)

	s.CreateGoal("organize team offsite event", "", 5) // near-duplicate of a decomposed goal

	removed := s.PruneDuplicates()
	assert.Equal(t, 1, removed, "the later non-decomposed duplicate is removed, but the earlier decomposed goal it matches is never touched")
	assert.Equal(t, 1, len(s.goals))
	_, stillThere := s.goals[kept.ID]
	assert.True(t, stillThere)
}
