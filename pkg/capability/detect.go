// Package capability builds the local machine's capability descriptor.
package capability

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/psantana5/taskgrid/pkg/models"
)

// DefaultMemoryPerTaskGB is the assumed memory budget per concurrent task.
// Configurable via Options; it is a heuristic, not a hard law.
const DefaultMemoryPerTaskGB = 4.0

// Options tunes capability detection
type Options struct {
	MemoryPerTaskGB     float64  // per-task memory budget for the concurrency heuristic
	SpecializedSoftware []string // capability tags this machine advertises
}

// Detect builds a fully populated Worker descriptor for the local machine.
// It never fails hard: every probe degrades to a conservative default.
func Detect(opts Options) *models.Worker {
	if opts.MemoryPerTaskGB <= 0 {
		opts.MemoryPerTaskGB = DefaultMemoryPerTaskGB
	}

	w := &models.Worker{
		Platform:            detectPlatform(),
		Architecture:        detectArchitecture(),
		SpecializedSoftware: opts.SpecializedSoftware,
		RegisteredAt:        time.Now(),
	}

	if hostname, err := os.Hostname(); err == nil {
		w.Hostname = hostname
	}

	w.CPUCores, w.CPUModel = detectCPU()
	w.MemoryGB = detectMemoryGB()
	w.GPUAvailable, w.GPUModel, w.GPUMemoryGB = detectGPU()

	w.MaxConcurrentTasks = maxConcurrent(w.CPUCores, w.MemoryGB, opts.MemoryPerTaskGB)

	// Second-resolution timestamps collide under concurrent registration on
	// one machine, so the suffix is random.
	w.ID = string(w.Platform) + "_" + string(w.Architecture) + "_" + uuid.NewString()[:8]

	return w
}

// maxConcurrent computes min(cores, floor(memGB/perTaskGB)), at least 1
func maxConcurrent(cores int, memGB, perTaskGB float64) int {
	byMemory := int(memGB / perTaskGB)
	n := cores
	if byMemory < n {
		n = byMemory
	}
	if n < 1 {
		n = 1
	}
	return n
}

func detectPlatform() models.Platform {
	switch runtime.GOOS {
	case "darwin":
		return models.PlatformMacOS
	case "windows":
		return models.PlatformWindows
	default:
		return models.PlatformLinux
	}
}

func detectArchitecture() models.Architecture {
	if runtime.GOARCH == "arm64" {
		return models.ArchARM64
	}
	return models.ArchX8664
}

// detectCPU returns logical core count and model name
func detectCPU() (int, string) {
	cores := runtime.NumCPU()
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		cores = n
	}

	model := "Unknown"
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		model = infos[0].ModelName
	}

	return cores, model
}

// detectMemoryGB returns total physical memory in GB, defaulting to 8
func detectMemoryGB() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return 8.0
	}
	return float64(vm.Total) / (1024 * 1024 * 1024)
}

// detectGPU probes for an NVIDIA GPU via nvidia-smi. Best effort: any
// failure reports no GPU rather than an error.
func detectGPU() (bool, string, float64) {
	out, err := exec.Command("nvidia-smi",
		"--query-gpu=name,memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil || len(out) == 0 {
		return false, "", 0
	}

	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	parts := strings.Split(line, ",")
	if len(parts) == 0 || parts[0] == "" {
		return false, "", 0
	}

	name := strings.TrimSpace(parts[0])
	memGB := 0.0
	if len(parts) > 1 {
		if mb, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
			memGB = mb / 1024
		}
	}

	return true, name, memGB
}
