package utils

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	ProcessRSS    uint64  `json:"process_rss_bytes"`
	Goroutines    int     `json:"goroutines"`
}

// GetCPUUsage samples CPU usage over the given window and returns a percentage
func GetCPUUsage(window time.Duration) float64 {
	percentage, err := cpu.Percent(window, false)
	if err != nil {
		slog.Warn("Error getting CPU usage", "error", err)
		return 0
	}
	if len(percentage) > 0 {
		return percentage[0]
	}
	return 0
}

func GetMemoryUsage() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		slog.Warn("Error getting memory usage", "error", err)
		return 0
	}
	return vm.UsedPercent
}

func GetProcessRSS() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}

// CollectSystemStats gathers the figures reported by the health endpoint.
func CollectSystemStats(cpuWindow time.Duration) SystemStats {
	return SystemStats{
		CPUPercent:    GetCPUUsage(cpuWindow),
		MemoryPercent: GetMemoryUsage(),
		ProcessRSS:    GetProcessRSS(),
		Goroutines:    runtime.NumGoroutine(),
	}
}
