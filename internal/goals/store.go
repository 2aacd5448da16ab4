package goals

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"archi/internal/logging"
	"archi/internal/provider"
)

const stateVersion = 1

// stopWords are dropped from a goal description before duplicate
// comparison, so articles and prepositions never drive a false match.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"to": true, "for": true, "in": true, "of": true, "on": true,
	"with": true, "is": true, "by": true,
}

const duplicateJaccardThreshold = 0.6

// Planner is the narrow Completion Provider contract the Goal Store
// calls to decompose a goal into tasks.
type Planner interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, stop []string) provider.Response
}

// persistedState is the on-disk shape of goals_state.json.
type persistedState struct {
	Version    int     `json:"version"`
	NextGoalID int     `json:"next_goal_id"`
	NextTaskID int     `json:"next_task_id"`
	Goals      []*Goal `json:"goals"`
}

// Store is the Goal Store (D): a persistent priority queue of Goals,
// each with a Task DAG, that the Dream Cycle drains one ready task at
// a time. The store is serialized atomically to a single JSON file.
type Store struct {
	mu sync.RWMutex

	dataDir    string
	goals      map[string]*Goal
	nextGoalID int
	nextTaskID int

	pq *priorityQueue
}

// New creates a Goal Store rooted at dataDir, loading any existing
// goals_state.json found there.
func New(dataDir string) *Store {
	s := &Store{
		dataDir:    dataDir,
		goals:      make(map[string]*Goal),
		nextGoalID: 1,
		nextTaskID: 1,
		pq:         newPriorityQueue(),
	}
	s.loadState()
	return s
}

func (s *Store) statePath() string {
	return filepath.Join(s.dataDir, "goals_state.json")
}

// loadState reads goals_state.json if present. A corrupted file is
// logged and the store starts empty rather than failing construction.
func (s *Store) loadState() {
	data, err := os.ReadFile(s.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			logging.GoalsDebug("no existing goals state found at %s", s.statePath())
			return
		}
		logging.GoalsWarn("error reading goals state: %v", err)
		return
	}

	var saved persistedState
	if err := json.Unmarshal(data, &saved); err != nil {
		logging.GoalsWarn("error parsing goals state, starting empty: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if saved.NextGoalID > 0 {
		s.nextGoalID = saved.NextGoalID
	}
	if saved.NextTaskID > 0 {
		s.nextTaskID = saved.NextTaskID
	}
	for _, g := range saved.Goals {
		s.goals[g.ID] = g
	}
	logging.Goals("loaded %d goals from disk", len(s.goals))
}

// SaveState atomically serializes every goal and task to disk.
func (s *Store) SaveState() error {
	s.mu.RLock()
	state := persistedState{
		Version:    stateVersion,
		NextGoalID: s.nextGoalID,
		NextTaskID: s.nextTaskID,
		Goals:      make([]*Goal, 0, len(s.goals)),
	}
	for _, g := range s.goals {
		state.Goals = append(state.Goals, g)
	}
	s.mu.RUnlock()

	sort.Slice(state.Goals, func(i, j int) bool {
		return state.Goals[i].CreatedAt.Before(state.Goals[j].CreatedAt)
	})

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("create goal store directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal goals state: %w", err)
	}

	tmp := s.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write goals state: %w", err)
	}
	if err := os.Rename(tmp, s.statePath()); err != nil {
		return fmt.Errorf("rename goals state into place: %w", err)
	}
	logging.GoalsDebug("saved goal state to %s", s.statePath())
	return nil
}

// CreateGoal adds a new, undecomposed goal.
func (s *Store) CreateGoal(description, userIntent string, priority int) *Goal {
	s.mu.Lock()
	id := fmt.Sprintf("goal_%d", s.nextGoalID)
	s.nextGoalID++
	goal := &Goal{
		ID:          id,
		Description: description,
		UserIntent:  userIntent,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}
	s.goals[id] = goal
	s.mu.Unlock()

	logging.Goals("created goal: %s - %s", id, description)
	if err := s.SaveState(); err != nil {
		logging.GoalsWarn("failed to persist after create_goal: %v", err)
	}
	return goal
}

// decomposePrompt mirrors the planner prompt used to turn a goal
// description into a structured task list.
func decomposePrompt(g *Goal) string {
	return fmt.Sprintf(`Break down this goal into specific, actionable tasks.

Goal: %s
User Intent: %s

Create a task list with:
1. Clear, specific task descriptions
2. Estimated duration in minutes
3. Dependencies (use indices 0, 1, 2 for tasks that must complete first - 0 is first task)
4. Priority (1-10)

Return ONLY a JSON array of tasks:
[
  {
    "description": "Task description",
    "estimated_duration_minutes": 30,
    "dependencies": [],
    "priority": 5
  }
]

Be specific and actionable. Each task should be something that can be completed in one work session.`, g.Description, g.UserIntent)
}

// DecomposeGoal asks planner to break goalID into a task list, resolves
// each task's prerequisite references against earlier tasks in the same
// response, and persists the result. References can only point backward
// in decomposition order; forward or self references are dropped
// silently, which makes the resulting prerequisite graph acyclic by
// construction.
func (s *Store) DecomposeGoal(ctx context.Context, goalID string, planner Planner) ([]*Task, error) {
	s.mu.Lock()
	goal, ok := s.goals[goalID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("goal not found: %s", goalID)
	}
	if goal.IsDecomposed {
		tasks := goal.Tasks
		s.mu.Unlock()
		logging.GoalsWarn("goal %s already decomposed", goalID)
		return tasks, nil
	}
	s.mu.Unlock()

	logging.Goals("decomposing goal: %s", goal.Description)
	resp := planner.Generate(ctx, decomposePrompt(goal), 1000, 0.7, nil)
	if !resp.Success {
		return nil, fmt.Errorf("model generation failed: %s", resp.Error)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fmt.Errorf("model returned empty response")
	}

	taskData := extractJSONArray(text)
	if taskData == nil {
		return nil, fmt.Errorf("failed to parse task list from planner response")
	}

	s.mu.Lock()

	idToIndex := make(map[int]string, len(taskData))
	for idx, info := range taskData {
		taskID := fmt.Sprintf("task_%d", s.nextTaskID)
		s.nextTaskID++
		idToIndex[idx] = taskID

		var resolved []string
		for _, raw := range toSlice(info["dependencies"]) {
			if depIdx, ok := resolveDependencyIndex(raw, idx); ok {
				if depID, ok := idToIndex[depIdx]; ok {
					resolved = append(resolved, depID)
				}
			}
		}

		task := &Task{
			ID:                       taskID,
			GoalID:                   goalID,
			Description:              stringOr(info["description"], "Unnamed task"),
			Priority:                 intOr(info["priority"], 5),
			Prerequisites:            resolved,
			EstimatedDurationMinutes: intOr(info["estimated_duration_minutes"], 30),
			Status:                   StatusPending,
			CreatedAt:                time.Now(),
		}
		goal.Tasks = append(goal.Tasks, task)
		logging.GoalsDebug("  created task: %s - %s", taskID, task.Description)
	}

	goal.IsDecomposed = true
	logging.Goals("goal %s decomposed into %d tasks", goalID, len(goal.Tasks))
	tasks := goal.Tasks
	s.mu.Unlock()

	if err := s.SaveState(); err != nil {
		logging.GoalsWarn("failed to persist after decompose_goal: %v", err)
	}
	return tasks, nil
}

// resolveDependencyIndex parses a raw dependency reference (an int, a
// digit string, or "task_N") into the index it refers to, accepting it
// only if that index is strictly earlier than idx.
func resolveDependencyIndex(raw interface{}, idx int) (int, bool) {
	switch v := raw.(type) {
	case float64:
		di := int(v)
		if di >= 0 && di < idx {
			return di, true
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			if n >= 0 && n < idx {
				return n, true
			}
			return 0, false
		}
		if strings.HasPrefix(v, "task_") {
			if n, err := strconv.Atoi(strings.TrimPrefix(v, "task_")); err == nil {
				di := n - 1
				if di >= 0 && di < idx {
					return di, true
				}
			}
		}
	}
	return 0, false
}

func toSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intOr(v interface{}, fallback int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return fallback
}

// GetNextTask returns the highest-priority ready task across every
// non-complete goal, breaking ties by the parent goal's priority, or
// nil if nothing is ready.
func (s *Store) GetNextTask() *Task {
	s.mu.RLock()
	var candidates []candidate
	for _, g := range s.goals {
		if g.Complete() {
			continue
		}
		for _, t := range g.ReadyTasks() {
			candidates = append(candidates, candidate{task: t, goalPriority: g.Priority})
		}
	}
	s.mu.RUnlock()

	s.pq.reset(candidates)
	top, ok := s.pq.pop()
	if !ok {
		return nil
	}
	return top.task
}

// StartTask marks id in_progress.
func (s *Store) StartTask(id string) error {
	s.mu.Lock()
	task := s.findTask(id)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}
	now := time.Now()
	task.Status = StatusInProgress
	task.StartedAt = &now
	s.mu.Unlock()

	logging.Goals("started task: %s", id)
	return s.SaveState()
}

// CompleteTask marks id completed, records result, and recomputes the
// parent goal's completion percentage.
func (s *Store) CompleteTask(id string, result map[string]interface{}) error {
	s.mu.Lock()
	task := s.findTask(id)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}
	now := time.Now()
	task.Status = StatusCompleted
	task.CompletedAt = &now
	task.Result = result
	goal := s.goals[task.GoalID]
	goal.UpdateProgress()
	pct := goal.CompletionPercentage
	s.mu.Unlock()

	logging.Goals("completed task: %s (%.1f%% of goal)", id, pct)
	return s.SaveState()
}

// FailTask marks id failed and recomputes the parent goal's completion
// percentage (a failed task never counts as completed).
func (s *Store) FailTask(id, errMsg string) error {
	s.mu.Lock()
	task := s.findTask(id)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}
	task.Status = StatusFailed
	task.Error = errMsg
	goal := s.goals[task.GoalID]
	goal.UpdateProgress()
	s.mu.Unlock()

	logging.GoalsError("task failed: %s - %s", id, errMsg)
	return s.SaveState()
}

func (s *Store) findTask(id string) *Task {
	for _, g := range s.goals {
		for _, t := range g.Tasks {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// PruneDuplicates removes near-duplicate, not-yet-decomposed-or-complete
// goals, keeping the oldest of each group. A goal is a duplicate of an
// already-kept goal if one description contains the other verbatim, or
// if their stop-word-stripped word sets have Jaccard overlap above
// duplicateJaccardThreshold. Returns the number of goals removed.
func (s *Store) PruneDuplicates() int {
	s.mu.Lock()

	sorted := make([]*Goal, 0, len(s.goals))
	for _, g := range s.goals {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	type kept struct {
		desc string
		id   string
	}
	var keep []kept
	var toRemove []string

	for _, g := range sorted {
		descLower := strings.ToLower(strings.TrimSpace(g.Description))
		descWords := wordSet(descLower)

		isDup := false
		for _, k := range keep {
			kWords := wordSet(k.desc)
			if strings.Contains(descLower, k.desc) || strings.Contains(k.desc, descLower) {
				isDup = true
				break
			}
			if jaccard(descWords, kWords) > duplicateJaccardThreshold {
				isDup = true
				break
			}
		}

		if isDup && !g.IsDecomposed && !g.Complete() {
			toRemove = append(toRemove, g.ID)
		} else {
			keep = append(keep, kept{desc: descLower, id: g.ID})
		}
	}

	for _, id := range toRemove {
		delete(s.goals, id)
	}
	remaining := len(s.goals)
	s.mu.Unlock()

	if len(toRemove) > 0 {
		if err := s.SaveState(); err != nil {
			logging.GoalsWarn("failed to persist after prune_duplicates: %v", err)
		}
		logging.Goals("pruned %d duplicate goals (kept %d)", len(toRemove), remaining)
	}
	return len(toRemove)
}

func wordSet(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for w := range a {
		if b[w] {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

// StoreStatus is the Goal Store's aggregate snapshot across every goal.
type StoreStatus struct {
	TotalGoals      int     `json:"total_goals"`
	ActiveGoals     int     `json:"active_goals"`
	TotalTasks      int     `json:"total_tasks"`
	PendingTasks    int     `json:"pending_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	Goals           []*Goal `json:"goals"`
}

// GetStatus returns the overall status of every goal and task.
func (s *Store) GetStatus() StoreStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := StoreStatus{Goals: make([]*Goal, 0, len(s.goals))}
	for _, g := range s.goals {
		status.TotalGoals++
		if !g.Complete() {
			status.ActiveGoals++
		}
		for _, t := range g.Tasks {
			status.TotalTasks++
			switch t.Status {
			case StatusPending:
				status.PendingTasks++
			case StatusInProgress:
				status.InProgressTasks++
			case StatusCompleted:
				status.CompletedTasks++
			}
		}
		status.Goals = append(status.Goals, g)
	}
	return status
}

// priorityQueue is the dedicated, independently-locked structure the
// Goal Store uses to pick the next ready task: the store's own mutex
// guards the goals map, while this queue's interior lock guards only
// the heap used for ranking.
type priorityQueue struct {
	mu    sync.Mutex
	items readyHeap
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

// reset replaces the queue's contents with candidates, heapified by
// (task priority, goal priority) descending.
func (q *priorityQueue) reset(candidates []candidate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = readyHeap(candidates)
	heap.Init(&q.items)
}

func (q *priorityQueue) pop() (candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return candidate{}, false
	}
	return heap.Pop(&q.items).(candidate), true
}

// candidate pairs a ready task with its parent goal's priority so the
// heap can rank across goal boundaries without a second lookup.
type candidate struct {
	task         *Task
	goalPriority int
}

type readyHeap []candidate

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].goalPriority > h[j].goalPriority
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) {
	*h = append(*h, x.(candidate))
}
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
