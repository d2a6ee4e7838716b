// Package shutdown coordinates graceful teardown of the taskgrid daemons.
package shutdown

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager runs registered shutdown functions in LIFO order once a
// termination signal arrives
type Manager struct {
	mu      sync.Mutex
	funcs   []func(context.Context) error
	timeout time.Duration
}

// New creates a shutdown manager with a total teardown timeout
func New(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout}
}

// Register adds a shutdown function; registration order is reversed at
// teardown so dependents stop before their dependencies
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

// Wait blocks until SIGTERM/SIGINT, then runs the shutdown functions
func (m *Manager) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	log.Printf("Received signal %v, shutting down", sig)
	m.Shutdown()
}

// Shutdown executes all registered functions, bounded by the timeout
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(m.funcs) - 1; i >= 0; i-- {
		if err := m.funcs[i](ctx); err != nil {
			log.Printf("Shutdown step %d: %v", i, err)
		}
	}
	log.Println("Shutdown complete")
}
