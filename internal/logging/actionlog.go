package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActionEntry is one append-only record of something the agent did.
// Required fields: timestamp, action_type, parameters, model_used,
// confidence, cost_usd, result, duration_ms.
type ActionEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	ActionType string         `json:"action_type"`
	Parameters map[string]any `json:"parameters"`
	ModelUsed  string         `json:"model_used"`
	Confidence float64        `json:"confidence"`
	CostUSD    float64        `json:"cost_usd"`
	Result     string         `json:"result"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

// ActionLog is an append-only JSONL log of agent actions, rotated by date.
// The Agent Loop owns one instance for the lifetime of the process.
type ActionLog struct {
	mu         sync.Mutex
	actionsDir string
	date       string
	file       *os.File
}

// NewActionLog creates logs/actions under dataDir, ready for Log calls.
func NewActionLog(dataDir string) (*ActionLog, error) {
	dir := filepath.Join(dataDir, "logs", "actions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create action log dir: %w", err)
	}
	return &ActionLog{actionsDir: dir}, nil
}

func (a *ActionLog) currentFile() (*os.File, error) {
	today := time.Now().UTC().Format("2006-01-02")
	if a.date != today {
		if a.file != nil {
			a.file.Close()
			a.file = nil
		}
		a.date = today
	}
	if a.file == nil {
		path := filepath.Join(a.actionsDir, today+".jsonl")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		a.file = f
	}
	return a.file, nil
}

// Log appends one entry, defaulting ModelUsed to "local" and stamping
// Timestamp if unset. Write failures are logged, never returned: the
// action log is an audit trail, not a dependency of the action itself.
func (a *ActionLog) Log(entry ActionEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ModelUsed == "" {
		entry.ModelUsed = "local"
	}
	if entry.Result == "" {
		entry.Result = "success"
	}

	f, err := a.currentFile()
	if err != nil {
		BootError("action log: %v", err)
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		BootError("action log marshal: %v", err)
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		BootError("action log write: %v", err)
		return
	}
	f.Sync()
}

// Close releases the underlying file handle.
func (a *ActionLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}
