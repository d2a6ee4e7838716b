package capability

import (
	"strings"
	"testing"
)

func TestMaxConcurrent(t *testing.T) {
	tests := []struct {
		name      string
		cores     int
		memGB     float64
		perTaskGB float64
		want      int
	}{
		{"cpu bound", 4, 64, 4, 4},
		{"memory bound", 16, 16, 4, 4},
		{"exact fit", 8, 32, 4, 8},
		{"fractional memory rounds down", 8, 15, 4, 3},
		{"tiny machine floors at one", 1, 0.5, 4, 1},
		{"zero cores floors at one", 0, 32, 4, 1},
		{"larger per-task budget", 16, 64, 16, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maxConcurrent(tt.cores, tt.memGB, tt.perTaskGB); got != tt.want {
				t.Errorf("maxConcurrent(%d, %.1f, %.1f) = %d, want %d",
					tt.cores, tt.memGB, tt.perTaskGB, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	w := Detect(Options{SpecializedSoftware: []string{"video_render"}})

	if w.ID == "" {
		t.Fatal("worker ID must be populated")
	}
	prefix := string(w.Platform) + "_" + string(w.Architecture) + "_"
	if !strings.HasPrefix(w.ID, prefix) {
		t.Errorf("worker ID %q should start with %q", w.ID, prefix)
	}
	if w.CPUCores < 1 {
		t.Errorf("cpu cores = %d", w.CPUCores)
	}
	if w.MemoryGB <= 0 {
		t.Errorf("memory = %.1f GB", w.MemoryGB)
	}
	if w.MaxConcurrentTasks < 1 {
		t.Errorf("max concurrent tasks = %d", w.MaxConcurrentTasks)
	}
	if len(w.SpecializedSoftware) != 1 || w.SpecializedSoftware[0] != "video_render" {
		t.Errorf("software = %v", w.SpecializedSoftware)
	}
	if w.RegisteredAt.IsZero() {
		t.Error("registered-at timestamp missing")
	}
}

func TestDetectIDsAreUnique(t *testing.T) {
	a := Detect(Options{})
	b := Detect(Options{})
	if a.ID == b.ID {
		t.Errorf("two detections on one machine produced the same ID %q", a.ID)
	}
}
