package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	configLoaded = false
	config = loggingConfig{}
}

func TestAllCategoriesLog(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true,
				"scheduler": true,
				"router": true,
				"budget": true,
				"cache": true,
				"goals": true,
				"executor": true,
				"dream": true,
				"agent_loop": true,
				"safety": true,
				"tools": true,
				"store": true,
				"chat": true
			}
		}
	}`
	if err := os.WriteFile(filepath.Join(tempDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot, CategoryScheduler, CategoryRouter, CategoryBudget,
		CategoryCache, CategoryGoals, CategoryExecutor, CategoryDream,
		CategoryAgentLoop, CategorySafety, CategoryTools, CategoryStore,
		CategoryChat,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	Boot("Convenience boot log")
	Scheduler("Convenience scheduler log")
	Router("Convenience router log")
	Budget("Convenience budget log")
	Cache("Convenience cache log")
	Goals("Convenience goals log")
	Executor("Convenience executor log")
	Dream("Convenience dream log")
	AgentLoop("Convenience agent_loop log")
	Safety("Convenience safety log")
	Tools("Convenience tools log")
	Store("Convenience store log")
	Chat("Convenience chat log")

	CloseAll()

	logsPath := filepath.Join(tempDir, "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("Log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

func TestDebugModeDisabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_disabled")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": false,
			"categories": {"boot": true, "router": true}
		}
	}`
	if err := os.WriteFile(filepath.Join(tempDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if IsDebugMode() {
		t.Error("Expected debug mode to be DISABLED (production mode)")
	}

	for _, cat := range []Category{CategoryBoot, CategoryRouter, CategoryScheduler} {
		if IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be DISABLED when debug_mode=false", cat)
		}
	}

	Boot("This should NOT be logged")
	Router("This should NOT be logged")

	CloseAll()

	logsPath := filepath.Join(tempDir, "logs")
	if _, err := os.Stat(logsPath); err == nil {
		entries, _ := os.ReadDir(logsPath)
		if len(entries) > 0 {
			t.Errorf("Expected NO log files in production mode, found %d", len(entries))
		}
	}
}

func TestCategoryToggle(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_category")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true,
				"router": true,
				"dream": false,
				"safety": false
			}
		}
	}`
	if err := os.WriteFile(filepath.Join(tempDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryBoot) {
		t.Error("boot should be enabled")
	}
	if !IsCategoryEnabled(CategoryRouter) {
		t.Error("router should be enabled")
	}
	if IsCategoryEnabled(CategoryDream) {
		t.Error("dream should be DISABLED")
	}
	if IsCategoryEnabled(CategorySafety) {
		t.Error("safety should be DISABLED")
	}
	if !IsCategoryEnabled(CategoryGoals) {
		t.Error("goals (not in config) should default to enabled")
	}

	Boot("This SHOULD be logged")
	Router("This SHOULD be logged")
	Dream("This should NOT be logged")
	Safety("This should NOT be logged")
	Goals("This SHOULD be logged (default enabled)")

	CloseAll()

	logsPath := filepath.Join(tempDir, "logs")
	entries, _ := os.ReadDir(logsPath)

	var hasBoot, hasDream, hasSafety bool
	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, "boot") {
			hasBoot = true
		}
		if strings.Contains(name, "dream") {
			hasDream = true
		}
		if strings.Contains(name, "safety") {
			hasSafety = true
		}
	}
	if !hasBoot {
		t.Error("Expected boot log file")
	}
	if hasDream {
		t.Error("Should NOT have dream log file (disabled)")
	}
	if hasSafety {
		t.Error("Should NOT have safety log file (disabled)")
	}
}

func TestTimerLogging(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_timer")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configContent := `{"logging": {"level": "debug", "debug_mode": true}}`
	os.WriteFile(filepath.Join(tempDir, "config.json"), []byte(configContent), 0644)

	resetState()
	Initialize(tempDir)

	timer := StartTimer(CategoryRouter, "TestOperation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	if elapsed <= 0 {
		t.Error("Timer should have recorded non-zero duration")
	}

	CloseAll()
}

func TestActionLog(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "action_log_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	al, err := NewActionLog(tempDir)
	if err != nil {
		t.Fatalf("NewActionLog: %v", err)
	}

	al.Log(ActionEntry{
		ActionType: "heartbeat",
		Result:     "success",
		Confidence: 1.0,
	})
	al.Log(ActionEntry{
		ActionType: "write_file",
		Parameters: map[string]any{"path": "notes.md"},
		ModelUsed:  "local",
		Result:     "failure",
		Error:      "permission denied",
	})

	if err := al.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(tempDir, "logs", "actions"))
	if err != nil {
		t.Fatalf("read actions dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 action log file, got %d", len(entries))
	}

	content, err := os.ReadFile(filepath.Join(tempDir, "logs", "actions", entries[0].Name()))
	if err != nil {
		t.Fatalf("read action log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL entries, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"action_type":"heartbeat"`) {
		t.Errorf("first entry missing action_type: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"error":"permission denied"`) {
		t.Errorf("second entry missing error: %s", lines[1])
	}
}
