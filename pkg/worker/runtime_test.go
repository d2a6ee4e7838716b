package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/taskgrid/pkg/broker"
	"github.com/psantana5/taskgrid/pkg/models"
)

// fakeReporter records runtime callbacks for assertions
type fakeReporter struct {
	mu       sync.Mutex
	started  []string
	results  []models.TaskResult
	canceled map[string]bool
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{canceled: map[string]bool{}}
}

func (f *fakeReporter) StartTask(taskID, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, taskID)
	return nil
}

func (f *fakeReporter) HandleResult(res models.TaskResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return nil
}

func (f *fakeReporter) TaskCanceled(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled[taskID]
}

func (f *fakeReporter) markCanceled(taskID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled[taskID] = true
}

func (f *fakeReporter) waitForResult(t *testing.T, taskID string, timeout time.Duration) models.TaskResult {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, res := range f.results {
			if res.TaskID == taskID {
				f.mu.Unlock()
				return res
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no result reported for task %s within %v", taskID, timeout)
	return models.TaskResult{}
}

func enqueueTask(t *testing.T, b broker.Broker, task *models.Task) {
	t.Helper()
	payload, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if err := b.Enqueue(context.Background(), models.QueueForType(task.Type), payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func TestRuntimeExecutesTask(t *testing.T) {
	b := broker.NewMemoryBroker()
	rep := newFakeReporter()
	reg := NewRegistry()
	reg.Register(models.TaskTypeGeneral, func(ctx context.Context, task *models.Task) (string, error) {
		return "/out/" + task.ID, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime("worker-1", []string{models.QueueGeneral}, 2, b, reg, rep)
	go rt.Run(ctx)

	task := &models.Task{ID: "task-1", Type: models.TaskTypeGeneral, Status: models.TaskStatusAssigned}
	enqueueTask(t, b, task)

	res := rep.waitForResult(t, "task-1", 2*time.Second)
	if res.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed (%s)", res.Status, res.Error)
	}
	if res.OutputPath != "/out/task-1" {
		t.Errorf("output path = %s", res.OutputPath)
	}
	if res.WorkerID != "worker-1" {
		t.Errorf("worker id = %s", res.WorkerID)
	}

	rep.mu.Lock()
	started := len(rep.started)
	rep.mu.Unlock()
	if started != 1 {
		t.Errorf("StartTask reported %d times, want 1", started)
	}
}

func TestRuntimeHandlerErrorBecomesFailedResult(t *testing.T) {
	b := broker.NewMemoryBroker()
	rep := newFakeReporter()
	reg := NewRegistry()
	reg.Register(models.TaskTypeGeneral, func(ctx context.Context, task *models.Task) (string, error) {
		return "", errors.New("codec not available")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime("worker-1", []string{models.QueueGeneral}, 1, b, reg, rep)
	go rt.Run(ctx)

	enqueueTask(t, b, &models.Task{ID: "task-err", Type: models.TaskTypeGeneral})

	res := rep.waitForResult(t, "task-err", 2*time.Second)
	if res.Status != models.TaskStatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if res.Error != "codec not available" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRuntimePanicContained(t *testing.T) {
	b := broker.NewMemoryBroker()
	rep := newFakeReporter()
	reg := NewRegistry()
	reg.Register(models.TaskTypeGeneral, func(ctx context.Context, task *models.Task) (string, error) {
		panic("handler bug")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime("worker-1", []string{models.QueueGeneral}, 1, b, reg, rep)
	go rt.Run(ctx)

	enqueueTask(t, b, &models.Task{ID: "task-panic", Type: models.TaskTypeGeneral})

	res := rep.waitForResult(t, "task-panic", 2*time.Second)
	if res.Status != models.TaskStatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "panicked") {
		t.Errorf("error = %q, want panic mention", res.Error)
	}

	// The runtime survived the panic and keeps consuming
	enqueueTask(t, b, &models.Task{ID: "task-panic-2", Type: models.TaskTypeGeneral})
	rep.waitForResult(t, "task-panic-2", 2*time.Second)
}

func TestRuntimeUnknownTypeFails(t *testing.T) {
	b := broker.NewMemoryBroker()
	rep := newFakeReporter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime("worker-1", []string{models.QueueGeneral}, 1, b, NewRegistry(), rep)
	go rt.Run(ctx)

	enqueueTask(t, b, &models.Task{ID: "task-unknown", Type: models.TaskTypeGeneral})

	res := rep.waitForResult(t, "task-unknown", 2*time.Second)
	if res.Status != models.TaskStatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "no handler registered") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRuntimeSkipsPreCanceledTask(t *testing.T) {
	b := broker.NewMemoryBroker()
	rep := newFakeReporter()
	rep.markCanceled("task-gone")

	reg := NewRegistry()
	executed := false
	reg.Register(models.TaskTypeGeneral, func(ctx context.Context, task *models.Task) (string, error) {
		executed = true
		return "", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime("worker-1", []string{models.QueueGeneral}, 1, b, reg, rep)
	go rt.Run(ctx)

	enqueueTask(t, b, &models.Task{ID: "task-gone", Type: models.TaskTypeGeneral})
	time.Sleep(200 * time.Millisecond)

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if executed || len(rep.started) != 0 || len(rep.results) != 0 {
		t.Errorf("pre-canceled task must be skipped: executed=%v started=%v results=%v",
			executed, rep.started, rep.results)
	}
}

func TestRuntimeConcurrencyCap(t *testing.T) {
	b := broker.NewMemoryBroker()
	rep := newFakeReporter()
	reg := NewRegistry()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	reg.Register(models.TaskTypeGeneral, func(ctx context.Context, task *models.Task) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime("worker-1", []string{models.QueueGeneral}, 1, b, reg, rep)
	go rt.Run(ctx)

	for i := 0; i < 4; i++ {
		enqueueTask(t, b, &models.Task{ID: fmt.Sprintf("task-%d", i), Type: models.TaskTypeGeneral})
	}
	for i := 0; i < 4; i++ {
		rep.waitForResult(t, fmt.Sprintf("task-%d", i), 5*time.Second)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Errorf("max in-flight = %d, want 1 with concurrency 1", maxInFlight)
	}
}

func TestRuntimeCooperativeCancellation(t *testing.T) {
	if testing.Short() {
		t.Skip("cancellation poll takes multiple seconds")
	}

	b := broker.NewMemoryBroker()
	rep := newFakeReporter()
	reg := NewRegistry()
	reg.Register(models.TaskTypeGeneral, func(ctx context.Context, task *models.Task) (string, error) {
		// A well-behaved handler blocks on its context
		<-ctx.Done()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRuntime("worker-1", []string{models.QueueGeneral}, 1, b, reg, rep)
	go rt.Run(ctx)

	enqueueTask(t, b, &models.Task{ID: "task-cancel", Type: models.TaskTypeGeneral})

	// Let the handler start, then cancel coordinator-side
	time.Sleep(300 * time.Millisecond)
	rep.markCanceled("task-cancel")

	res := rep.waitForResult(t, "task-cancel", 5*time.Second)
	if res.Status != models.TaskStatusFailed {
		t.Errorf("status = %s, want failed after cancellation", res.Status)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Lookup(models.TaskTypeVideoRender); err == nil {
		t.Error("lookup on empty registry should fail")
	}

	reg.Register(models.TaskTypeVideoRender, func(ctx context.Context, task *models.Task) (string, error) {
		return "first", nil
	})
	reg.Register(models.TaskTypeVideoRender, func(ctx context.Context, task *models.Task) (string, error) {
		return "second", nil
	})

	h, err := reg.Lookup(models.TaskTypeVideoRender)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, _ := h(context.Background(), &models.Task{})
	if out != "second" {
		t.Errorf("re-registration should replace the handler, got %q", out)
	}
}
