package supervisor

import (
	"time"
)

// ProcessStatus represents the lifecycle state of a supervised worker process
type ProcessStatus string

const (
	ProcessStarting ProcessStatus = "starting"
	ProcessRunning  ProcessStatus = "running"
	ProcessStopping ProcessStatus = "stopping"
	ProcessStopped  ProcessStatus = "stopped"
	ProcessFailed   ProcessStatus = "failed"
)

// DefaultMaxRestarts is the restart circuit-breaker limit
const DefaultMaxRestarts = 3

// WorkerProcess is the supervisor's record of one OS-level worker process.
// The supervisor owns these exclusively; the coordinator's logical worker
// registry correlates by worker ID only.
type WorkerProcess struct {
	ID            string        `json:"id"`
	PID           int           `json:"pid"`
	Command       string        `json:"command"`
	Queues        []string      `json:"queues"`
	Concurrency   int           `json:"concurrency"`
	Status        ProcessStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	LastHeartbeat time.Time     `json:"last_heartbeat"`
	RestartCount  int           `json:"restart_count"`
	MaxRestarts   int           `json:"max_restarts"`
}

// ConsumesQueue reports whether this process serves the named queue
func (p *WorkerProcess) ConsumesQueue(queue string) bool {
	for _, q := range p.Queues {
		if q == queue {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to hand to callers
func (p *WorkerProcess) Clone() *WorkerProcess {
	c := *p
	c.Queues = append([]string(nil), p.Queues...)
	return &c
}
