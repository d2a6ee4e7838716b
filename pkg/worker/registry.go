// Package worker is the worker-side runtime: a handler registry keyed by
// task type and a consumer loop that pulls tasks from the broker, executes
// handlers, and reports results back to the coordinator.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/psantana5/taskgrid/pkg/models"
)

// HandlerFunc performs the actual work for one task type. It receives the
// task's input data and output path via the task itself and returns the
// final output path. The context is canceled when the task is canceled or
// the runtime shuts down; handlers are expected to honor it.
type HandlerFunc func(ctx context.Context, task *models.Task) (outputPath string, err error)

// Registry maps task types to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.TaskType]HandlerFunc
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.TaskType]HandlerFunc)}
}

// Register binds a handler to a task type, replacing any previous binding
func (r *Registry) Register(t models.TaskType, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Lookup returns the handler for a task type
func (r *Registry) Lookup(t models.TaskType) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("no handler registered for task type %s", t)
	}
	return h, nil
}
