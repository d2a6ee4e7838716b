package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/psantana5/taskgrid/pkg/broker"
	"github.com/psantana5/taskgrid/pkg/models"
)

// Reporter is the coordinator-side surface the runtime reports into.
// *coordinator.Coordinator satisfies it directly; remote deployments wire
// an HTTP client with the same shape.
type Reporter interface {
	StartTask(taskID, workerID string) error
	HandleResult(res models.TaskResult) error
	TaskCanceled(taskID string) bool
}

// cancelPollInterval is how often a running task re-checks for cancellation
const cancelPollInterval = 2 * time.Second

// Runtime consumes typed queues and executes handlers
type Runtime struct {
	workerID    string
	queues      []string
	concurrency int

	broker   broker.Broker
	registry *Registry
	reporter Reporter
}

// NewRuntime creates a consumer runtime for one logical worker
func NewRuntime(workerID string, queues []string, concurrency int, b broker.Broker, reg *Registry, rep Reporter) *Runtime {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runtime{
		workerID:    workerID,
		queues:      queues,
		concurrency: concurrency,
		broker:      b,
		registry:    reg,
		reporter:    rep,
	}
}

// Run consumes the configured queues until the context is canceled. A
// shared semaphore caps concurrent handler executions across all queues.
func (r *Runtime) Run(ctx context.Context) {
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for _, queue := range r.queues {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			r.consume(ctx, queue, sem)
		}(queue)
	}

	wg.Wait()
}

// consume is one queue's pull loop
func (r *Runtime) consume(ctx context.Context, queue string, sem chan struct{}) {
	log.Printf("[Worker %s] Consuming queue %s", r.workerID, queue)

	for {
		payload, err := r.broker.Dequeue(ctx, queue)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, broker.ErrClosed) {
				return
			}
			log.Printf("[Worker %s] Dequeue from %s failed: %v", r.workerID, queue, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func(payload []byte) {
			defer func() { <-sem }()
			r.execute(ctx, payload)
		}(payload)
	}
}

// execute unmarshals and runs one task. Handler panics and errors become
// failed results; nothing escapes across the handler boundary.
func (r *Runtime) execute(ctx context.Context, payload []byte) {
	var task models.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		log.Printf("[Worker %s] Dropping malformed task payload: %v", r.workerID, err)
		return
	}

	if r.reporter.TaskCanceled(task.ID) {
		log.Printf("[Worker %s] Task %s canceled before start, skipping", r.workerID, task.ID)
		return
	}

	if err := r.reporter.StartTask(task.ID, r.workerID); err != nil {
		log.Printf("[Worker %s] Cannot start task %s: %v", r.workerID, task.ID, err)
		return
	}

	outputPath, err := r.runHandler(ctx, &task)

	res := models.TaskResult{
		TaskID:      task.ID,
		WorkerID:    r.workerID,
		CompletedAt: time.Now(),
	}
	if err != nil {
		res.Status = models.TaskStatusFailed
		res.Error = err.Error()
	} else {
		res.Status = models.TaskStatusCompleted
		res.OutputPath = outputPath
	}

	if err := r.reporter.HandleResult(res); err != nil {
		// Canceled tasks are already terminal on the coordinator side
		log.Printf("[Worker %s] Result for task %s not recorded: %v", r.workerID, task.ID, err)
	}
}

// runHandler executes the type-specific handler under a cancelable context
// with panic containment
func (r *Runtime) runHandler(ctx context.Context, task *models.Task) (outputPath string, err error) {
	handler, err := r.registry.Lookup(task.Type)
	if err != nil {
		return "", err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cooperative cancellation: cut the handler's context when the
	// coordinator marks the task canceled
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				if r.reporter.TaskCanceled(task.ID) {
					cancel()
					return
				}
			}
		}
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler for %s panicked: %v", task.Type, rec)
		}
	}()

	return handler(taskCtx, task)
}
