package router

import (
	"strings"
	"testing"
	"time"

	"github.com/psantana5/taskgrid/pkg/models"
)

func freshWorker(id string, cores int, memGB float64, load, max int) *models.Worker {
	return &models.Worker{
		ID:                 id,
		Platform:           models.PlatformLinux,
		Architecture:       models.ArchX8664,
		CPUCores:           cores,
		MemoryGB:           memGB,
		MaxConcurrentTasks: max,
		CurrentLoad:        load,
		LastHeartbeat:      time.Now(),
	}
}

func TestFindBestWorkerPrefersLeastLoaded(t *testing.T) {
	r := New(0)
	task := &models.Task{ID: "t1", Type: models.TaskTypeGeneral}

	busy := freshWorker("worker-busy", 16, 64, 3, 4)
	idle := freshWorker("worker-idle", 4, 8, 0, 4)

	best, reason := r.FindBestWorker(task, []*models.Worker{busy, idle}, time.Now())
	if best == nil {
		t.Fatalf("expected a worker, got rejection: %s", reason)
	}
	if best.ID != "worker-idle" {
		t.Errorf("expected least-loaded worker, got %s", best.ID)
	}
}

func TestFindBestWorkerTieBreaksOnHardware(t *testing.T) {
	r := New(0)
	task := &models.Task{ID: "t1", Type: models.TaskTypeGeneral}

	small := freshWorker("worker-small", 4, 16, 0, 4)
	big := freshWorker("worker-big", 8, 16, 0, 4)

	best, _ := r.FindBestWorker(task, []*models.Worker{small, big}, time.Now())
	if best == nil || best.ID != "worker-big" {
		t.Fatalf("expected more cores to win the tie, got %v", best)
	}

	// Equal cores, more memory wins
	lowMem := freshWorker("worker-lowmem", 8, 16, 0, 4)
	highMem := freshWorker("worker-highmem", 8, 64, 0, 4)
	best, _ = r.FindBestWorker(task, []*models.Worker{lowMem, highMem}, time.Now())
	if best == nil || best.ID != "worker-highmem" {
		t.Fatalf("expected more memory to win the tie, got %v", best)
	}

	// Fully identical hardware falls back to ID order, so selection is
	// deterministic regardless of input order
	a := freshWorker("worker-a", 8, 16, 0, 4)
	b := freshWorker("worker-b", 8, 16, 0, 4)
	best1, _ := r.FindBestWorker(task, []*models.Worker{b, a}, time.Now())
	best2, _ := r.FindBestWorker(task, []*models.Worker{a, b}, time.Now())
	if best1 == nil || best2 == nil || best1.ID != best2.ID || best1.ID != "worker-a" {
		t.Fatalf("selection should be deterministic: got %v and %v", best1, best2)
	}
}

func TestFindBestWorkerFiltersCapabilities(t *testing.T) {
	r := New(0)
	task := &models.Task{
		ID:                   "t1",
		Type:                 models.TaskTypeVideoRender,
		RequiredCapabilities: []string{"video_render"},
	}

	plain := freshWorker("worker-plain", 16, 64, 0, 4)
	renderer := freshWorker("worker-render", 4, 8, 0, 4)
	renderer.SpecializedSoftware = []string{"video_render"}

	best, _ := r.FindBestWorker(task, []*models.Worker{plain, renderer}, time.Now())
	if best == nil || best.ID != "worker-render" {
		t.Fatalf("expected the capable worker despite weaker hardware, got %v", best)
	}
}

func TestFindBestWorkerRejectionReasons(t *testing.T) {
	r := New(0)
	now := time.Now()

	task := &models.Task{ID: "t1", Type: models.TaskTypeAIInference, RequiredCapabilities: []string{"ml_runtime"}}

	_, reason := r.FindBestWorker(task, nil, now)
	if !strings.Contains(reason, "no workers registered") {
		t.Errorf("empty registry reason = %q", reason)
	}
	if !strings.Contains(reason, string(models.TaskTypeAIInference)) {
		t.Errorf("reason should name the task type: %q", reason)
	}

	lacking := freshWorker("worker-1", 8, 16, 0, 4)
	_, reason = r.FindBestWorker(task, []*models.Worker{lacking}, now)
	if !strings.Contains(reason, "lacks required capabilities") {
		t.Errorf("capability rejection reason = %q", reason)
	}

	full := freshWorker("worker-2", 8, 16, 4, 4)
	full.SpecializedSoftware = []string{"ml_runtime"}
	_, reason = r.FindBestWorker(task, []*models.Worker{full}, now)
	if !strings.Contains(reason, "at capacity") {
		t.Errorf("capacity rejection reason = %q", reason)
	}
}

func TestFindBestWorkerExcludesStaleHeartbeat(t *testing.T) {
	r := New(2 * time.Minute)
	now := time.Now()
	task := &models.Task{ID: "t1", Type: models.TaskTypeGeneral}

	stale := freshWorker("worker-stale", 16, 64, 0, 4)
	stale.LastHeartbeat = now.Add(-3 * time.Minute)

	best, reason := r.FindBestWorker(task, []*models.Worker{stale}, now)
	if best != nil {
		t.Fatalf("stale worker should be ineligible, got %s", best.ID)
	}
	if !strings.Contains(reason, "heartbeat stale") {
		t.Errorf("staleness rejection reason = %q", reason)
	}

	// A heartbeat exactly at the boundary is still fresh
	boundary := freshWorker("worker-boundary", 16, 64, 0, 4)
	boundary.LastHeartbeat = now.Add(-2 * time.Minute)
	best, _ = r.FindBestWorker(task, []*models.Worker{boundary}, now)
	if best == nil {
		t.Error("heartbeat at exactly max age should be eligible")
	}
}

func TestNewFallsBackToDefaultMaxAge(t *testing.T) {
	if got := New(0).HeartbeatMaxAge(); got != DefaultHeartbeatMaxAge {
		t.Errorf("HeartbeatMaxAge() = %v, want %v", got, DefaultHeartbeatMaxAge)
	}
	if got := New(30 * time.Second).HeartbeatMaxAge(); got != 30*time.Second {
		t.Errorf("HeartbeatMaxAge() = %v, want 30s", got)
	}
}
