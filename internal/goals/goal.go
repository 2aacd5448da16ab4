// Package goals implements the Goal Store: a persistent priority queue of
// Goals, each decomposed into a Task DAG, that the Dream Cycle and Plan
// Executor drain one ready task at a time.
package goals

import "time"

// Status is a Task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

// Task is a single actionable unit of work belonging to a Goal.
type Task struct {
	ID                        string                 `json:"task_id"`
	GoalID                    string                 `json:"goal_id"`
	Description               string                 `json:"description"`
	Priority                  int                    `json:"priority"`
	Prerequisites             []string               `json:"dependencies"`
	EstimatedDurationMinutes  int                    `json:"estimated_duration_minutes"`
	Status                    Status                 `json:"status"`
	CreatedAt                 time.Time              `json:"created_at"`
	StartedAt                 *time.Time             `json:"started_at,omitempty"`
	CompletedAt               *time.Time             `json:"completed_at,omitempty"`
	Result                    map[string]interface{} `json:"result,omitempty"`
	Error                     string                 `json:"error,omitempty"`
}

// Ready reports whether t can start: it is still pending and every
// prerequisite is in completedIDs.
func (t *Task) Ready(completedIDs map[string]bool) bool {
	if t.Status != StatusPending {
		return false
	}
	for _, dep := range t.Prerequisites {
		if !completedIDs[dep] {
			return false
		}
	}
	return true
}

// Goal is a high-level objective, decomposed into a Task DAG once a
// planner has been consulted.
type Goal struct {
	ID                   string    `json:"goal_id"`
	Description          string    `json:"description"`
	UserIntent           string    `json:"user_intent"`
	Priority             int       `json:"priority"`
	CreatedAt            time.Time `json:"created_at"`
	Tasks                []*Task   `json:"tasks"`
	IsDecomposed         bool      `json:"is_decomposed"`
	CompletionPercentage float64   `json:"completion_percentage"`
}

// ReadyTasks returns the subset of g's tasks that are pending with all
// prerequisites completed.
func (g *Goal) ReadyTasks() []*Task {
	completed := make(map[string]bool)
	for _, t := range g.Tasks {
		if t.Status == StatusCompleted {
			completed[t.ID] = true
		}
	}
	var ready []*Task
	for _, t := range g.Tasks {
		if t.Ready(completed) {
			ready = append(ready, t)
		}
	}
	return ready
}

// UpdateProgress recomputes CompletionPercentage from current task states.
func (g *Goal) UpdateProgress() {
	if len(g.Tasks) == 0 {
		g.CompletionPercentage = 0
		return
	}
	completed := 0
	for _, t := range g.Tasks {
		if t.Status == StatusCompleted {
			completed++
		}
	}
	g.CompletionPercentage = float64(completed) / float64(len(g.Tasks)) * 100.0
}

// Complete reports whether every task in the goal is completed. A goal
// with no tasks is never complete: it has not been decomposed yet.
func (g *Goal) Complete() bool {
	if len(g.Tasks) == 0 {
		return false
	}
	for _, t := range g.Tasks {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return true
}
