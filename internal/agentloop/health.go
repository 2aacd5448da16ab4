package agentloop

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"archi/internal/config"
	"archi/internal/logging"
)

// HealthStatus is a single sample of system resource usage.
type HealthStatus struct {
	CPU         float64
	Memory      float64
	Disk        float64
	Temperature *float64
	Alerts      []string
}

// SystemMonitor samples CPU, memory, disk, and (when available)
// temperature, comparing each against configured thresholds.
type SystemMonitor struct {
	cfg      config.MonitoringConfig
	diskPath string
}

// NewSystemMonitor creates a monitor that checks diskPath's usage (the
// data directory's volume is the natural choice for a single-host agent).
func NewSystemMonitor(cfg config.MonitoringConfig, diskPath string) *SystemMonitor {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemMonitor{cfg: cfg, diskPath: diskPath}
}

// CheckHealth samples current resource usage. Any individual probe that
// fails (unsupported platform, permission denied) is logged and
// contributes a zero reading rather than aborting the whole sample.
func (m *SystemMonitor) CheckHealth(ctx context.Context) HealthStatus {
	status := HealthStatus{}

	cpuPercents, err := cpu.PercentWithContext(ctx, 500*time.Millisecond, false)
	if err != nil || len(cpuPercents) == 0 {
		logging.AgentLoopDebug("cpu check failed: %v", err)
	} else {
		status.CPU = cpuPercents[0]
	}
	if status.CPU > m.cfg.CPUThreshold {
		status.Alerts = append(status.Alerts, "high_cpu")
		logging.AgentLoopWarn("high CPU: %.1f%%", status.CPU)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logging.AgentLoopDebug("memory check failed: %v", err)
	} else {
		status.Memory = vm.UsedPercent
	}
	if status.Memory > m.cfg.MemoryThreshold {
		status.Alerts = append(status.Alerts, "high_memory")
		logging.AgentLoopWarn("high memory: %.1f%%", status.Memory)
	}

	if du, err := disk.UsageWithContext(ctx, m.diskPath); err != nil {
		logging.AgentLoopDebug("disk check failed: %v", err)
	} else {
		status.Disk = du.UsedPercent
	}
	if status.Disk > m.cfg.DiskThreshold {
		status.Alerts = append(status.Alerts, "low_disk_space")
		logging.AgentLoopWarn("low disk space: %.1f%%", status.Disk)
	}

	if temps, err := host.SensorsTemperaturesWithContext(ctx); err == nil && len(temps) > 0 {
		var max float64
		for _, t := range temps {
			if t.Temperature > max {
				max = t.Temperature
			}
		}
		if max > 0 {
			status.Temperature = &max
			if max > m.cfg.TempThreshold {
				status.Alerts = append(status.Alerts, "high_temperature")
				logging.AgentLoopWarn("high temperature: %.1f C", max)
			}
		}
	}

	return status
}

// ShouldThrottle reports whether CPU or temperature currently exceed
// their thresholds, so the Agent Loop can multiply its sleep duration.
func (m *SystemMonitor) ShouldThrottle(ctx context.Context) bool {
	health := m.CheckHealth(ctx)
	if health.CPU > m.cfg.CPUThreshold {
		return true
	}
	if health.Temperature != nil && *health.Temperature > m.cfg.TempThreshold {
		return true
	}
	return false
}
