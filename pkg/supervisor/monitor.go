package supervisor

import (
	"log"
	"time"
)

// monitorLoop polls process liveness on a fixed interval for the lifetime
// of the supervisor. This is the system's only self-healing mechanism:
// dead processes trigger a bounded auto-restart.
func (s *Supervisor) monitorLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.MonitorInterval)
	defer ticker.Stop()

	log.Printf("[Supervisor] Monitoring loop started (interval: %v)", s.config.MonitorInterval)

	for {
		select {
		case <-ticker.C:
			s.checkProcesses()
		case <-stop:
			log.Println("[Supervisor] Monitoring loop stopped")
			return
		}
	}
}

// checkProcesses scans tracked processes for unexpected deaths. Each worker
// is checked in isolation so one failure cannot stall the rest of the scan.
func (s *Supervisor) checkProcesses() {
	s.mu.Lock()
	snapshot := make([]*WorkerProcess, 0, len(s.procs))
	for _, p := range s.procs {
		snapshot = append(snapshot, p)
	}
	s.mu.Unlock()

	for _, proc := range snapshot {
		s.checkOne(proc)
	}
}

// checkOne handles a single worker's liveness check; panics in the check or
// the launcher are contained here
func (s *Supervisor) checkOne(proc *WorkerProcess) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Supervisor] Liveness check of %s panicked: %v", proc.ID, r)
		}
	}()

	s.mu.Lock()
	status := proc.Status
	pid := proc.PID
	id := proc.ID
	s.mu.Unlock()

	if status != ProcessRunning && status != ProcessStarting {
		return
	}

	if s.launcher.IsAlive(pid) {
		s.mu.Lock()
		if proc.Status == ProcessStarting {
			proc.Status = ProcessRunning
		}
		proc.LastHeartbeat = time.Now()
		s.mu.Unlock()
		return
	}

	log.Printf("[Supervisor] Worker %s (pid %d) died unexpectedly", id, pid)
	s.mu.Lock()
	proc.Status = ProcessFailed
	s.mu.Unlock()

	// Restart off the monitor goroutine so a slow stop/spawn cannot delay
	// the next scan
	go func() {
		if _, err := s.RestartWorker(id); err != nil {
			log.Printf("[Supervisor] Auto-restart of %s failed: %v", id, err)
		}
	}()
}
