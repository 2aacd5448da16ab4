package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DataDir != "./data" {
		t.Errorf("expected DataDir=./data, got %s", cfg.DataDir)
	}
	if cfg.Ports.Dashboard != 8780 {
		t.Errorf("expected Ports.Dashboard=8780, got %d", cfg.Ports.Dashboard)
	}
	if cfg.Budget.HardStopUSD != 10.0 {
		t.Errorf("expected Budget.HardStopUSD=10.0, got %v", cfg.Budget.HardStopUSD)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("ARCHI_REMOTE_API_KEY", "")
	t.Setenv("ARCHI_REMOTE_BASE_URL", "")
	t.Setenv("ARCHI_DATA_DIR", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Provider.Remote.Kind = "gemini"
	cfg.Ports.Dashboard = 9001

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Ports.Dashboard != 9001 {
		t.Errorf("expected Ports.Dashboard=9001, got %d", loaded.Ports.Dashboard)
	}
	if loaded.Provider.Remote.Kind != "gemini" {
		t.Errorf("expected Provider.Remote.Kind=gemini, got %s", loaded.Provider.Remote.Kind)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("ARCHI_REMOTE_API_KEY", "")
	t.Setenv("ARCHI_DATA_DIR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Ports.Dashboard != DefaultConfig().Ports.Dashboard {
		t.Error("Load of missing file should return default config")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	cfg.Monitoring.CPUThreshold = -1
	cfg.Ports.WebChat = cfg.Ports.Dashboard
	cfg.Dream.PollIntervalSeconds = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
}

func TestTimeWindow_Contains(t *testing.T) {
	night := TimeWindow{StartHour: 23, EndHour: 6}
	if !night.Contains(0) {
		t.Error("night window should contain hour 0")
	}
	if !night.Contains(23) {
		t.Error("night window should contain hour 23")
	}
	if night.Contains(12) {
		t.Error("night window should not contain hour 12")
	}

	work := TimeWindow{StartHour: 9, EndHour: 17}
	if !work.Contains(9) || work.Contains(17) {
		t.Error("work window bounds are wrong")
	}
}
