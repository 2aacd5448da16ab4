package executor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"archi/internal/logging"
)

// StepRecord is one executed step of a Plan Execution State.
type StepRecord struct {
	Index      int                    `json:"index"`
	ActionName string                 `json:"action_name"`
	Arguments  map[string]interface{} `json:"arguments,omitempty"`
	Reasoning  string                 `json:"reasoning,omitempty"`
	Result     string                 `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	At         time.Time              `json:"at"`
}

// planState is the Plan Execution State the Plan Executor exclusively
// owns for the task it is running: crash-recovery state persisted after
// every step so a restart resumes at the next unexecuted step instead
// of re-running the whole task.
type planState struct {
	TaskID       string       `json:"task_id"`
	NextStep     int          `json:"next_step"`
	Steps        []StepRecord `json:"steps"`
	CreatedFiles []string     `json:"created_files,omitempty"`
	Done         bool         `json:"done"`
	Summary      string       `json:"summary,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (e *Executor) statePath(taskID string) string {
	return filepath.Join(e.cfg.DataDir, "plan_state", taskID+".json")
}

// loadOrCreateState reads the task's prior Plan Execution State if
// present and not stale; stale or absent state starts fresh.
func (e *Executor) loadOrCreateState(taskID string) (*planState, error) {
	data, err := os.ReadFile(e.statePath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return &planState{TaskID: taskID}, nil
		}
		return nil, err
	}

	var state planState
	if err := json.Unmarshal(data, &state); err != nil {
		logging.ExecutorWarn("corrupt plan state for %s, starting fresh: %v", taskID, err)
		return &planState{TaskID: taskID}, nil
	}

	if e.cfg.MaxStateAge > 0 && time.Since(state.UpdatedAt) > e.cfg.MaxStateAge {
		logging.ExecutorWarn("plan state for %s is stale (age %v), discarding", taskID, time.Since(state.UpdatedAt))
		return &planState{TaskID: taskID}, nil
	}

	logging.Executor("resuming task %s from step %d", taskID, state.NextStep)
	return &state, nil
}

// saveState atomically persists state to disk. Errors are logged, not
// returned to the caller: a failed checkpoint should not abort a step
// that already executed successfully.
func (e *Executor) saveState(state *planState) {
	state.UpdatedAt = time.Now()

	dir := filepath.Join(e.cfg.DataDir, "plan_state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.ExecutorWarn("create plan_state directory: %v", err)
		return
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		logging.ExecutorWarn("marshal plan state for %s: %v", state.TaskID, err)
		return
	}

	path := e.statePath(state.TaskID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logging.ExecutorWarn("write plan state for %s: %v", state.TaskID, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		logging.ExecutorWarn("rename plan state for %s: %v", state.TaskID, err)
	}
}

// discardState deletes a task's Plan Execution State once it has
// completed successfully, per the persistence layout's "discarded on
// successful completion" rule.
func (e *Executor) discardState(taskID string) {
	if err := os.Remove(e.statePath(taskID)); err != nil && !os.IsNotExist(err) {
		logging.ExecutorWarn("discard plan state for %s: %v", taskID, err)
	}
}
