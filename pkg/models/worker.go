package models

import (
	"time"
)

// Platform identifies the worker's operating system
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
)

// Architecture identifies the worker's CPU architecture
type Architecture string

const (
	ArchARM64 Architecture = "arm64"
	ArchX8664 Architecture = "x86_64"
)

// Worker is a registered machine's capability descriptor
type Worker struct {
	ID                  string       `json:"id"`
	Hostname            string       `json:"hostname,omitempty"`
	Platform            Platform     `json:"platform"`
	Architecture        Architecture `json:"architecture"`
	CPUCores            int          `json:"cpu_cores"`
	CPUModel            string       `json:"cpu_model,omitempty"`
	MemoryGB            float64      `json:"memory_gb"`
	GPUAvailable        bool         `json:"gpu_available"`
	GPUMemoryGB         float64      `json:"gpu_memory_gb,omitempty"`
	GPUModel            string       `json:"gpu_model,omitempty"`
	SpecializedSoftware []string     `json:"specialized_software,omitempty"` // capability tags, e.g. "video-render"
	MaxConcurrentTasks  int          `json:"max_concurrent_tasks"`
	CurrentLoad         int          `json:"current_load"`
	LastHeartbeat       time.Time    `json:"last_heartbeat"`
	RegisteredAt        time.Time    `json:"registered_at"`
}

// HasCapabilities reports whether the worker advertises every required tag
func (w *Worker) HasCapabilities(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(w.SpecializedSoftware))
	for _, c := range w.SpecializedSoftware {
		have[c] = true
	}
	for _, r := range required {
		if !have[r] {
			return false
		}
	}
	return true
}

// HasCapacity reports whether the worker can accept another task
func (w *Worker) HasCapacity() bool {
	return w.CurrentLoad < w.MaxConcurrentTasks
}

// HeartbeatFresh reports whether the last heartbeat is younger than maxAge
func (w *Worker) HeartbeatFresh(maxAge time.Duration, now time.Time) bool {
	if w.LastHeartbeat.IsZero() {
		return false
	}
	return now.Sub(w.LastHeartbeat) <= maxAge
}

// Clone returns a copy with its own capability slice
func (w *Worker) Clone() *Worker {
	c := *w
	if w.SpecializedSoftware != nil {
		c.SpecializedSoftware = append([]string(nil), w.SpecializedSoftware...)
	}
	return &c
}
