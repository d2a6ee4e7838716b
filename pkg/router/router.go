// Package router matches tasks against registered worker capability
// descriptors and selects the least-loaded eligible worker.
package router

import (
	"fmt"
	"sort"
	"time"

	"github.com/psantana5/taskgrid/pkg/models"
)

// DefaultHeartbeatMaxAge excludes workers whose heartbeat is older than this
const DefaultHeartbeatMaxAge = 2 * time.Minute

// Router selects workers for tasks
type Router struct {
	heartbeatMaxAge time.Duration
}

// New creates a Router. A non-positive maxAge falls back to the default.
func New(heartbeatMaxAge time.Duration) *Router {
	if heartbeatMaxAge <= 0 {
		heartbeatMaxAge = DefaultHeartbeatMaxAge
	}
	return &Router{heartbeatMaxAge: heartbeatMaxAge}
}

// CanWorkerRunTask checks one worker against one task's requirements
func (r *Router) CanWorkerRunTask(w *models.Worker, task *models.Task, now time.Time) (bool, string) {
	if !w.HasCapabilities(task.RequiredCapabilities) {
		return false, fmt.Sprintf("worker %s lacks required capabilities %v", w.ID, task.RequiredCapabilities)
	}
	if !w.HasCapacity() {
		return false, fmt.Sprintf("worker %s at capacity (%d/%d)", w.ID, w.CurrentLoad, w.MaxConcurrentTasks)
	}
	if !w.HeartbeatFresh(r.heartbeatMaxAge, now) {
		return false, fmt.Sprintf("worker %s heartbeat stale (last: %v)", w.ID, w.LastHeartbeat)
	}
	return true, ""
}

// FindBestWorker returns the best eligible worker for a task, or nil with a
// reason when none qualifies. Selection is greedy and deterministic: least
// loaded first, then most CPU cores, then most memory, then worker ID.
func (r *Router) FindBestWorker(task *models.Task, workers []*models.Worker, now time.Time) (*models.Worker, string) {
	eligible := make([]*models.Worker, 0, len(workers))
	var rejection string

	for _, w := range workers {
		ok, reason := r.CanWorkerRunTask(w, task, now)
		if ok {
			eligible = append(eligible, w)
		} else if rejection == "" {
			// Keep the first rejection reason for the error message
			rejection = reason
		}
	}

	if len(eligible) == 0 {
		if rejection == "" {
			rejection = "no workers registered"
		}
		return nil, fmt.Sprintf("no eligible worker for task type %s: %s", task.Type, rejection)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.CurrentLoad != b.CurrentLoad {
			return a.CurrentLoad < b.CurrentLoad
		}
		if a.CPUCores != b.CPUCores {
			return a.CPUCores > b.CPUCores
		}
		if a.MemoryGB != b.MemoryGB {
			return a.MemoryGB > b.MemoryGB
		}
		return a.ID < b.ID
	})

	return eligible[0], ""
}

// HeartbeatMaxAge returns the staleness threshold the router applies
func (r *Router) HeartbeatMaxAge() time.Duration {
	return r.heartbeatMaxAge
}
