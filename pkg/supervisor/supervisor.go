// Package supervisor manages OS-level worker process lifecycles on one
// machine: start, stop, restart, liveness monitoring and queue-depth
// driven auto-scaling.
package supervisor

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProcessNotFound      = errors.New("worker process not found")
	ErrMaxRestartsExceeded  = errors.New("max restarts exceeded")
	ErrMaxWorkersPerMachine = errors.New("max workers per machine reached")
)

// Config holds supervisor configuration
type Config struct {
	WorkerBinary         string        // binary launched for each worker process
	MonitorInterval      time.Duration // liveness poll interval
	StopTimeout          time.Duration // graceful stop window before force kill
	RestartPause         time.Duration // pause between stop and start on restart
	MaxRestarts          int           // restart circuit-breaker limit
	MaxWorkersPerMachine int           // 0 = unlimited
	ScaleCooldown        time.Duration // minimum gap between scale actions per queue
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WorkerBinary:         "taskgrid-worker",
		MonitorInterval:      30 * time.Second,
		StopTimeout:          10 * time.Second,
		RestartPause:         500 * time.Millisecond,
		MaxRestarts:          DefaultMaxRestarts,
		MaxWorkersPerMachine: 0,
		ScaleCooldown:        time.Minute,
	}
}

// ScaleAction records one auto-scale decision
type ScaleAction struct {
	Queue    string `json:"queue"`
	Action   string `json:"action"` // "start" or "stop"
	WorkerID string `json:"worker_id"`
}

// Supervisor owns the worker process registry for one machine
type Supervisor struct {
	mu        sync.Mutex
	procs     map[string]*WorkerProcess
	lastScale map[string]time.Time

	launcher Launcher
	config   Config

	monitorStop    chan struct{}
	monitorRunning bool
}

// New creates a Supervisor with the platform launcher
func New(config Config) *Supervisor {
	return NewWithLauncher(NewLauncher(), config)
}

// NewWithLauncher creates a Supervisor with an explicit launcher, used by
// tests to substitute a fake process backend
func NewWithLauncher(l Launcher, config Config) *Supervisor {
	if config.MonitorInterval <= 0 {
		config.MonitorInterval = 30 * time.Second
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 10 * time.Second
	}
	if config.MaxRestarts <= 0 {
		config.MaxRestarts = DefaultMaxRestarts
	}
	return &Supervisor{
		procs:     make(map[string]*WorkerProcess),
		lastScale: make(map[string]time.Time),
		launcher:  l,
		config:    config,
	}
}

// StartWorker launches a worker process consuming the given queues and
// records it. A zero concurrency takes the platform default (prefork pool
// sized to the CPU count on POSIX, solo on Windows). Starts the monitoring
// loop on first use.
func (s *Supervisor) StartWorker(queues []string, concurrency int) (string, error) {
	if len(queues) == 0 {
		return "", fmt.Errorf("start worker: no queues given")
	}

	s.mu.Lock()
	if s.config.MaxWorkersPerMachine > 0 && s.liveCountLocked() >= s.config.MaxWorkersPerMachine {
		s.mu.Unlock()
		return "", fmt.Errorf("start worker: %w (%d)", ErrMaxWorkersPerMachine, s.config.MaxWorkersPerMachine)
	}
	s.mu.Unlock()

	return s.startWorkerRecord(queues, concurrency, 0)
}

// liveCountLocked counts processes that occupy a machine slot. Records left
// behind by the restart circuit breaker are dead and must not consume the
// cap. Caller must hold mu.
func (s *Supervisor) liveCountLocked() int {
	n := 0
	for _, p := range s.procs {
		if p.Status != ProcessFailed {
			n++
		}
	}
	return n
}

// startWorkerRecord spawns a process and records it, carrying restartCount
// forward from a restarted predecessor
func (s *Supervisor) startWorkerRecord(queues []string, concurrency, restartCount int) (string, error) {
	pid, command, err := s.launcher.Spawn(LaunchSpec{
		Binary:      s.config.WorkerBinary,
		Queues:      queues,
		Concurrency: concurrency,
	})
	if err != nil {
		return "", err
	}

	if concurrency <= 0 {
		concurrency = s.launcher.DefaultConcurrency()
	}

	now := time.Now()
	proc := &WorkerProcess{
		ID:            "proc_" + uuid.NewString()[:8],
		PID:           pid,
		Command:       command,
		Queues:        append([]string(nil), queues...),
		Concurrency:   concurrency,
		Status:        ProcessStarting,
		StartedAt:     now,
		LastHeartbeat: now,
		RestartCount:  restartCount,
		MaxRestarts:   s.config.MaxRestarts,
	}

	s.mu.Lock()
	s.procs[proc.ID] = proc
	if s.launcher.IsAlive(pid) {
		proc.Status = ProcessRunning
	}
	if !s.monitorRunning {
		s.monitorRunning = true
		s.monitorStop = make(chan struct{})
		go s.monitorLoop(s.monitorStop)
	}
	s.mu.Unlock()

	log.Printf("[Supervisor] Started worker %s (pid %d, queues %v, concurrency %d, pool %s)",
		proc.ID, pid, queues, concurrency, s.launcher.PoolMode())
	return proc.ID, nil
}

// StopWorker gracefully terminates a worker process, polling for exit up to
// timeout before force-killing. The record is removed on success. The wait
// happens off the supervisor lock so it never stalls monitoring or other
// lifecycle calls.
func (s *Supervisor) StopWorker(workerID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.config.StopTimeout
	}

	s.mu.Lock()
	proc, ok := s.procs[workerID]
	if !ok {
		s.mu.Unlock()
		return ErrProcessNotFound
	}
	proc.Status = ProcessStopping
	pid := proc.PID
	s.mu.Unlock()

	if err := s.launcher.Terminate(pid); err != nil {
		log.Printf("[Supervisor] Graceful terminate of %s (pid %d) failed: %v", workerID, pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !s.launcher.IsAlive(pid) {
			s.removeStopped(workerID)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	// Still alive after the grace window
	if err := s.launcher.Kill(pid); err != nil {
		s.mu.Lock()
		proc.Status = ProcessFailed
		s.mu.Unlock()
		return fmt.Errorf("stop worker %s: force kill failed: %w", workerID, err)
	}

	s.removeStopped(workerID)
	return nil
}

func (s *Supervisor) removeStopped(workerID string) {
	s.mu.Lock()
	if proc, ok := s.procs[workerID]; ok {
		proc.Status = ProcessStopped
		delete(s.procs, workerID)
	}
	s.mu.Unlock()
	log.Printf("[Supervisor] Worker %s stopped", workerID)
}

// RestartWorker stops a worker and starts a fresh process with the same
// queue/concurrency configuration. Restarts are circuit-broken: once the
// restart count reaches max_restarts the record is marked failed for good
// and requires external intervention.
func (s *Supervisor) RestartWorker(workerID string) (string, error) {
	s.mu.Lock()
	proc, ok := s.procs[workerID]
	if !ok {
		s.mu.Unlock()
		return "", ErrProcessNotFound
	}

	if proc.RestartCount >= proc.MaxRestarts {
		proc.Status = ProcessFailed
		s.mu.Unlock()
		log.Printf("[Supervisor] Worker %s hit restart limit (%d/%d), marked failed",
			workerID, proc.RestartCount, proc.MaxRestarts)
		return "", fmt.Errorf("restart worker %s: %w (%d/%d)",
			workerID, ErrMaxRestartsExceeded, proc.RestartCount, proc.MaxRestarts)
	}

	queues := append([]string(nil), proc.Queues...)
	concurrency := proc.Concurrency
	restartCount := proc.RestartCount + 1
	s.mu.Unlock()

	// Best effort: the old process may already be dead
	if err := s.StopWorker(workerID, s.config.StopTimeout); err != nil && !errors.Is(err, ErrProcessNotFound) {
		log.Printf("[Supervisor] Stop during restart of %s: %v", workerID, err)
		s.mu.Lock()
		delete(s.procs, workerID)
		s.mu.Unlock()
	}

	time.Sleep(s.config.RestartPause)

	newID, err := s.startWorkerRecord(queues, concurrency, restartCount)
	if err != nil {
		return "", fmt.Errorf("restart worker %s: %w", workerID, err)
	}

	log.Printf("[Supervisor] Worker %s restarted as %s (restart %d/%d)",
		workerID, newID, restartCount, s.config.MaxRestarts)
	return newID, nil
}

// ListProcesses returns a snapshot of tracked worker processes
func (s *Supervisor) ListProcesses() []*WorkerProcess {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*WorkerProcess, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p.Clone())
	}
	return out
}

// Shutdown stops the monitoring loop and all tracked workers
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.monitorRunning {
		close(s.monitorStop)
		s.monitorRunning = false
	}
	ids := make([]string, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.StopWorker(id, s.config.StopTimeout); err != nil {
			log.Printf("[Supervisor] Shutdown stop of %s: %v", id, err)
		}
	}
}
