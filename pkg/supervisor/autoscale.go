package supervisor

import (
	"log"
	"sort"
	"time"
)

// AutoScale converges running-worker-per-queue counts toward the target map,
// starting or stopping workers as needed. A simple proportional controller:
// no hysteresis beyond a per-queue cooldown window, which keeps repeated
// calls from oscillating.
func (s *Supervisor) AutoScale(targets map[string]int) []ScaleAction {
	actions := []ScaleAction{}
	now := time.Now()

	// Deterministic queue order
	queues := make([]string, 0, len(targets))
	for q := range targets {
		queues = append(queues, q)
	}
	sort.Strings(queues)

	for _, queue := range queues {
		target := targets[queue]
		if target < 0 {
			target = 0
		}

		s.mu.Lock()
		if last, ok := s.lastScale[queue]; ok && s.config.ScaleCooldown > 0 && now.Sub(last) < s.config.ScaleCooldown {
			s.mu.Unlock()
			log.Printf("[Supervisor] Auto-scale of %s skipped: cooldown active", queue)
			continue
		}

		running := []*WorkerProcess{}
		for _, p := range s.procs {
			if (p.Status == ProcessRunning || p.Status == ProcessStarting) && p.ConsumesQueue(queue) {
				running = append(running, p)
			}
		}
		s.mu.Unlock()

		current := len(running)
		switch {
		case current < target:
			for i := current; i < target; i++ {
				id, err := s.StartWorker([]string{queue}, 0)
				if err != nil {
					log.Printf("[Supervisor] Auto-scale start for %s failed: %v", queue, err)
					break
				}
				actions = append(actions, ScaleAction{Queue: queue, Action: "start", WorkerID: id})
			}
		case current > target:
			// Stop the newest workers first, oldest keep serving
			sort.Slice(running, func(i, j int) bool {
				return running[i].StartedAt.After(running[j].StartedAt)
			})
			for i := 0; i < current-target; i++ {
				id := running[i].ID
				if err := s.StopWorker(id, s.config.StopTimeout); err != nil {
					log.Printf("[Supervisor] Auto-scale stop of %s failed: %v", id, err)
					continue
				}
				actions = append(actions, ScaleAction{Queue: queue, Action: "stop", WorkerID: id})
			}
		}

		if current != target {
			s.mu.Lock()
			s.lastScale[queue] = now
			s.mu.Unlock()
		}
	}

	if len(actions) > 0 {
		log.Printf("[Supervisor] Auto-scale applied %d actions", len(actions))
	}
	return actions
}
