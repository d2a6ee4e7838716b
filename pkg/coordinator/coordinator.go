// Package coordinator is the top-level façade of the distributed processing
// system: it registers workers, routes and submits tasks, and tracks task
// lifecycle and aggregate statistics.
//
// The coordinator exclusively owns the worker registry and the task maps.
// All mutation happens under one mutex so that worker selection and load
// accounting are atomic: two concurrent submissions can never push a worker
// past its concurrency budget.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/taskgrid/pkg/broker"
	"github.com/psantana5/taskgrid/pkg/models"
	"github.com/psantana5/taskgrid/pkg/router"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrWorkerNotFound = errors.New("worker not found")
	ErrNotRetryable   = errors.New("task not retryable")
)

// DefaultMaxHistory bounds the completed/failed task history
const DefaultMaxHistory = 1000

// DefaultAssignedTimeout is how long an assigned task may wait for a worker
// to pick it up before the sweep declares it lost
const DefaultAssignedTimeout = 2 * time.Minute

// Config holds coordinator configuration
type Config struct {
	HeartbeatMaxAge time.Duration // staleness threshold for active workers
	MaxHistory      int           // bounded terminal-task history size
	AssignedTimeout time.Duration // assigned-but-never-started deadline for the sweep
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		HeartbeatMaxAge: router.DefaultHeartbeatMaxAge,
		MaxHistory:      DefaultMaxHistory,
		AssignedTimeout: DefaultAssignedTimeout,
	}
}

// Coordinator routes tasks to workers and tracks their lifecycle
type Coordinator struct {
	mu sync.Mutex

	workers map[string]*models.Worker
	active  map[string]*models.Task
	history []*models.Task          // terminal tasks, oldest first, bounded
	byID    map[string]*models.Task // index over history

	router *router.Router
	broker broker.Broker
	config Config

	startTime time.Time

	// Cumulative counters, survive history eviction
	completedTotal       int64
	failedTotal          int64
	canceledTotal        int64
	completionSecondsSum float64
}

// New creates a Coordinator on top of a broker transport
func New(b broker.Broker, config Config) *Coordinator {
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultMaxHistory
	}
	if config.AssignedTimeout <= 0 {
		config.AssignedTimeout = DefaultAssignedTimeout
	}
	return &Coordinator{
		workers:   make(map[string]*models.Worker),
		active:    make(map[string]*models.Task),
		byID:      make(map[string]*models.Task),
		router:    router.New(config.HeartbeatMaxAge),
		broker:    b,
		config:    config,
		startTime: time.Now(),
	}
}

// RegisterWorker stores or overwrites a worker descriptor keyed by ID and
// stamps its heartbeat. Re-registration merges: in-flight load carries over
// so a reconnecting worker does not appear idle.
func (c *Coordinator) RegisterWorker(w *models.Worker) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("register worker: missing worker ID")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := w.Clone()
	stored.LastHeartbeat = time.Now()
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = stored.LastHeartbeat
	}
	if prev, ok := c.workers[w.ID]; ok {
		stored.CurrentLoad = prev.CurrentLoad
		stored.RegisteredAt = prev.RegisteredAt
	}
	c.workers[w.ID] = stored

	log.Printf("[Coordinator] Registered worker %s (%s/%s, %d cores, %.1f GB, gpu=%v, slots=%d)",
		stored.ID, stored.Platform, stored.Architecture, stored.CPUCores,
		stored.MemoryGB, stored.GPUAvailable, stored.MaxConcurrentTasks)
	return nil
}

// Heartbeat refreshes a worker's liveness timestamp
func (c *Coordinator) Heartbeat(workerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.workers[workerID]
	if !ok {
		return ErrWorkerNotFound
	}
	w.LastHeartbeat = time.Now()
	return nil
}

// SubmitTask routes a task to the best eligible worker and enqueues it.
// Fail-fast policy: when no worker is eligible the returned task is already
// failed with a descriptive error. Callers must resubmit; nothing is parked
// for later. The error return is reserved for transport faults.
func (c *Coordinator) SubmitTask(ctx context.Context, req models.TaskRequest) (*models.Task, error) {
	task := newTask(req)

	c.mu.Lock()
	worker, reason := c.selectAndReserve(task)
	if worker == nil {
		task.Status = models.TaskStatusFailed
		task.Error = reason
		now := time.Now()
		task.CompletedAt = &now
		c.recordTerminalLocked(task)
		c.mu.Unlock()
		log.Printf("[Coordinator] Task %s rejected: %s", task.ID, reason)
		return task.Clone(), nil
	}

	task.Status = models.TaskStatusAssigned
	task.AssignedWorker = worker.ID
	c.active[task.ID] = task
	c.mu.Unlock()

	payload, err := json.Marshal(task)
	if err == nil {
		err = c.broker.Enqueue(ctx, models.QueueForType(task.Type), payload)
	}
	if err != nil {
		// Roll the reservation back and fail the task
		c.mu.Lock()
		c.releaseWorkerLocked(worker.ID)
		delete(c.active, task.ID)
		task.Status = models.TaskStatusFailed
		task.Error = fmt.Sprintf("enqueue failed: %v", err)
		task.AssignedWorker = ""
		now := time.Now()
		task.CompletedAt = &now
		c.recordTerminalLocked(task)
		c.mu.Unlock()
		return task.Clone(), fmt.Errorf("submit task %s: %w", task.ID, err)
	}

	log.Printf("[Coordinator] Task %s (%s) assigned to worker %s via queue %s",
		task.ID, task.Type, worker.ID, models.QueueForType(task.Type))
	return task.Clone(), nil
}

// StartTask is reported by a worker when its handler begins execution.
// Queues are shared per task type, so the executor may be a different worker
// than the one selected at submission; the load reservation moves with the
// task so the original worker's slot does not leak.
func (c *Coordinator) StartTask(taskID, workerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.active[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if err := models.ValidateTransition(task.Status, models.TaskStatusProcessing); err != nil {
		return err
	}

	now := time.Now()
	task.Status = models.TaskStatusProcessing
	task.StartedAt = &now
	if workerID != "" && workerID != task.AssignedWorker {
		c.releaseWorkerLocked(task.AssignedWorker)
		if w, ok := c.workers[workerID]; ok {
			w.CurrentLoad++
		}
		task.AssignedWorker = workerID
	}
	return nil
}

// HandleResult applies a worker-reported terminal result. Handler failures
// arrive here as failed results; they are never automatically retried.
func (c *Coordinator) HandleResult(res models.TaskResult) error {
	if res.Status != models.TaskStatusCompleted && res.Status != models.TaskStatusFailed {
		return fmt.Errorf("handle result for %s: status %s is not terminal", res.TaskID, res.Status)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.active[res.TaskID]
	if !ok {
		return ErrTaskNotFound
	}
	if err := models.ValidateTransition(task.Status, res.Status); err != nil {
		return err
	}

	now := res.CompletedAt
	if now.IsZero() {
		now = time.Now()
	}

	task.Status = res.Status
	task.CompletedAt = &now
	if res.OutputPath != "" {
		task.OutputPath = res.OutputPath
	}
	if res.Error != "" {
		task.Error = res.Error
	}

	c.releaseWorkerLocked(task.AssignedWorker)
	delete(c.active, task.ID)
	c.recordTerminalLocked(task)

	if res.Status == models.TaskStatusCompleted && task.StartedAt != nil {
		c.completionSecondsSum += now.Sub(*task.StartedAt).Seconds()
	}

	log.Printf("[Coordinator] Task %s finished: %s", task.ID, task.Status)
	return nil
}

// RetryTask explicitly re-submits a failed task. Retries are caller-driven:
// the retry_count/max_retries bookkeeping bounds this operation, there is
// no automatic retry loop.
func (c *Coordinator) RetryTask(ctx context.Context, taskID string) (*models.Task, error) {
	c.mu.Lock()
	task, ok := c.byID[taskID]
	if !ok {
		c.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if !models.CanRetry(task.Status) {
		c.mu.Unlock()
		return nil, fmt.Errorf("retry task %s in status %s: %w", taskID, task.Status, ErrNotRetryable)
	}
	if task.RetryCount >= task.MaxRetries {
		c.mu.Unlock()
		return nil, fmt.Errorf("retry task %s: max retries reached (%d/%d): %w",
			taskID, task.RetryCount, task.MaxRetries, ErrNotRetryable)
	}

	// Build the retry request from the failed task before dropping the lock
	req := models.TaskRequest{
		ID:                   task.ID,
		Type:                 task.Type,
		Priority:             task.Priority,
		RequiredCapabilities: task.RequiredCapabilities,
		EstimatedDuration:    task.EstimatedDuration,
		InputData:            task.InputData,
		OutputPath:           task.OutputPath,
		MaxRetries:           task.MaxRetries,
	}
	retryCount := task.RetryCount + 1
	c.removeFromHistoryLocked(taskID)
	c.mu.Unlock()

	retried, err := c.SubmitTask(ctx, req)
	if retried != nil {
		c.mu.Lock()
		if t, ok := c.active[taskID]; ok {
			t.RetryCount = retryCount
		} else if t, ok := c.byID[taskID]; ok {
			t.RetryCount = retryCount
		}
		retried.RetryCount = retryCount
		c.mu.Unlock()
	}
	return retried, err
}

// CancelTask marks a live task canceled and frees its worker slot. The
// worker runtime observes cancellation cooperatively via TaskCanceled.
func (c *Coordinator) CancelTask(taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.active[taskID]
	if !ok {
		if _, done := c.byID[taskID]; done {
			return fmt.Errorf("cancel task %s: already terminal", taskID)
		}
		return ErrTaskNotFound
	}
	if err := models.ValidateTransition(task.Status, models.TaskStatusCanceled); err != nil {
		return err
	}

	now := time.Now()
	task.Status = models.TaskStatusCanceled
	task.CompletedAt = &now
	c.releaseWorkerLocked(task.AssignedWorker)
	delete(c.active, task.ID)
	c.recordTerminalLocked(task)

	log.Printf("[Coordinator] Task %s canceled", taskID)
	return nil
}

// TaskCanceled lets worker runtimes poll for cooperative cancellation
func (c *Coordinator) TaskCanceled(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.byID[taskID]; ok {
		return t.Status == models.TaskStatusCanceled
	}
	return false
}

// ReapStuckTasks fails tasks the transport has lost. Broker delivery is a
// destructive pop, so a consumer that dies between dequeue and its result
// report strands the task in assigned or processing forever; this sweep is
// the reconciliation path. Two cases are reaped:
//
//   - assigned tasks nobody started within AssignedTimeout
//   - processing tasks whose worker's heartbeat went stale
//
// Returns the number of tasks failed. Reaped tasks stay retryable through
// the normal retry operation.
func (c *Coordinator) ReapStuckTasks() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	reaped := 0
	for _, task := range c.active {
		var reason string
		switch task.Status {
		case models.TaskStatusAssigned:
			if now.Sub(task.CreatedAt) > c.config.AssignedTimeout {
				reason = fmt.Sprintf("no worker started task within %s", c.config.AssignedTimeout)
			}
		case models.TaskStatusProcessing:
			w, ok := c.workers[task.AssignedWorker]
			if !ok || !w.HeartbeatFresh(c.router.HeartbeatMaxAge(), now) {
				reason = fmt.Sprintf("worker %s stopped heartbeating", task.AssignedWorker)
			}
		}
		if reason == "" {
			continue
		}

		end := now
		task.Status = models.TaskStatusFailed
		task.Error = reason
		task.CompletedAt = &end
		c.releaseWorkerLocked(task.AssignedWorker)
		delete(c.active, task.ID)
		c.recordTerminalLocked(task)
		reaped++
		log.Printf("[Coordinator] Task %s reaped: %s", task.ID, reason)
	}
	return reaped
}

// SweepStuckTasks runs ReapStuckTasks on an interval until ctx is done
func (c *Coordinator) SweepStuckTasks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ReapStuckTasks()
		}
	}
}

// selectAndReserve picks the best worker and increments its load.
// Caller must hold mu. Returns nil and a reason when nothing is eligible.
func (c *Coordinator) selectAndReserve(task *models.Task) (*models.Worker, string) {
	workers := make([]*models.Worker, 0, len(c.workers))
	for _, w := range c.workers {
		workers = append(workers, w)
	}

	best, reason := c.router.FindBestWorker(task, workers, time.Now())
	if best == nil {
		return nil, reason
	}

	best.CurrentLoad++
	return best, ""
}

// releaseWorkerLocked decrements a worker's in-flight count.
// Caller must hold mu.
func (c *Coordinator) releaseWorkerLocked(workerID string) {
	if w, ok := c.workers[workerID]; ok && w.CurrentLoad > 0 {
		w.CurrentLoad--
	}
}

// recordTerminalLocked moves a task into the bounded history.
// Caller must hold mu.
func (c *Coordinator) recordTerminalLocked(task *models.Task) {
	switch task.Status {
	case models.TaskStatusCompleted:
		c.completedTotal++
	case models.TaskStatusFailed:
		c.failedTotal++
	case models.TaskStatusCanceled:
		c.canceledTotal++
	}

	c.history = append(c.history, task)
	c.byID[task.ID] = task

	for len(c.history) > c.config.MaxHistory {
		evicted := c.history[0]
		c.history = c.history[1:]
		// Keep the index entry if the same ID re-entered history later
		if c.byID[evicted.ID] == evicted {
			delete(c.byID, evicted.ID)
		}
	}
}

// removeFromHistoryLocked drops a task from the history before a retry.
// Caller must hold mu.
func (c *Coordinator) removeFromHistoryLocked(taskID string) {
	for i, t := range c.history {
		if t.ID == taskID {
			c.history = append(c.history[:i], c.history[i+1:]...)
			break
		}
	}
	delete(c.byID, taskID)
}

// newTask builds a Task from a request, filling defaults
func newTask(req models.TaskRequest) *models.Task {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	priority := req.Priority
	if priority < models.PriorityHigh || priority > models.PriorityLow {
		priority = models.PriorityMedium
	}
	taskType := req.Type
	if taskType == "" {
		taskType = models.TaskTypeGeneral
	}
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	estimated := req.EstimatedDuration
	if estimated <= 0 {
		estimated = time.Minute
	}

	return &models.Task{
		ID:                   id,
		Type:                 taskType,
		Priority:             priority,
		RequiredCapabilities: req.RequiredCapabilities,
		EstimatedDuration:    estimated,
		InputData:            req.InputData,
		OutputPath:           req.OutputPath,
		Status:               models.TaskStatusPending,
		CreatedAt:            time.Now(),
		MaxRetries:           maxRetries,
	}
}
