package coordinator

import (
	"time"

	"github.com/psantana5/taskgrid/pkg/models"
)

// TaskStatusInfo is the caller-facing view of one task. Progress is a linear
// time-based estimate against the declared duration, not measured progress
// telemetry.
type TaskStatusInfo struct {
	Found           bool              `json:"found"`
	TaskID          string            `json:"task_id"`
	Type            models.TaskType   `json:"type,omitempty"`
	Status          models.TaskStatus `json:"status,omitempty"`
	AssignedWorker  string            `json:"assigned_worker,omitempty"`
	ProgressPercent float64           `json:"progress_percent"`
	ETASeconds      float64           `json:"eta_seconds"`
	Error           string            `json:"error,omitempty"`
	RetryCount      int               `json:"retry_count"`
	MaxRetries      int               `json:"max_retries"`
	CreatedAt       time.Time         `json:"created_at,omitempty"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// SystemStatus aggregates coordinator-wide state
type SystemStatus struct {
	TotalWorkers         int     `json:"total_workers"`
	ActiveWorkers        int     `json:"active_workers"` // heartbeat within the staleness window
	ActiveTasks          int     `json:"active_tasks"`
	CompletedTasks       int64   `json:"completed_tasks"`
	FailedTasks          int64   `json:"failed_tasks"`
	CanceledTasks        int64   `json:"canceled_tasks"`
	AvgCompletionSeconds float64 `json:"avg_completion_seconds"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
}

// GetTaskStatus looks a task up in the active map and the bounded history.
// Unknown IDs yield Found=false, never an error.
func (c *Coordinator) GetTaskStatus(taskID string) TaskStatusInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.active[taskID]
	if !ok {
		task, ok = c.byID[taskID]
	}
	if !ok {
		return TaskStatusInfo{Found: false, TaskID: taskID}
	}

	info := TaskStatusInfo{
		Found:          true,
		TaskID:         task.ID,
		Type:           task.Type,
		Status:         task.Status,
		AssignedWorker: task.AssignedWorker,
		Error:          task.Error,
		RetryCount:     task.RetryCount,
		MaxRetries:     task.MaxRetries,
		CreatedAt:      task.CreatedAt,
		StartedAt:      task.StartedAt,
		CompletedAt:    task.CompletedAt,
	}
	info.ProgressPercent, info.ETASeconds = estimateProgress(task, time.Now())
	return info
}

// GetSystemStatus returns aggregate worker and task statistics
func (c *Coordinator) GetSystemStatus() SystemStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	active := 0
	for _, w := range c.workers {
		if w.HeartbeatFresh(c.router.HeartbeatMaxAge(), now) {
			active++
		}
	}

	avg := 0.0
	if c.completedTotal > 0 {
		avg = c.completionSecondsSum / float64(c.completedTotal)
	}

	return SystemStatus{
		TotalWorkers:         len(c.workers),
		ActiveWorkers:        active,
		ActiveTasks:          len(c.active),
		CompletedTasks:       c.completedTotal,
		FailedTasks:          c.failedTotal,
		CanceledTasks:        c.canceledTotal,
		AvgCompletionSeconds: avg,
		UptimeSeconds:        now.Sub(c.startTime).Seconds(),
	}
}

// ListWorkers returns a snapshot of the worker registry
func (c *Coordinator) ListWorkers() []*models.Worker {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Worker, 0, len(c.workers))
	for _, w := range c.workers {
		out = append(out, w.Clone())
	}
	return out
}

// ListActiveTasks returns a snapshot of in-flight tasks
func (c *Coordinator) ListActiveTasks() []*models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Task, 0, len(c.active))
	for _, t := range c.active {
		out = append(out, t.Clone())
	}
	return out
}

// estimateProgress computes the linear progress/ETA approximation
func estimateProgress(task *models.Task, now time.Time) (percent, etaSeconds float64) {
	switch task.Status {
	case models.TaskStatusCompleted:
		return 100, 0
	case models.TaskStatusProcessing:
		if task.StartedAt == nil || task.EstimatedDuration <= 0 {
			return 0, task.EstimatedDuration.Seconds()
		}
		elapsed := now.Sub(*task.StartedAt)
		percent = elapsed.Seconds() / task.EstimatedDuration.Seconds() * 100
		if percent > 100 {
			percent = 100
		}
		eta := task.EstimatedDuration - elapsed
		if eta < 0 {
			eta = 0
		}
		return percent, eta.Seconds()
	default:
		return 0, task.EstimatedDuration.Seconds()
	}
}
