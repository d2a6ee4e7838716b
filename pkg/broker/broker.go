// Package broker provides the typed-queue task transport between the
// coordinator and worker processes. FIFO per queue; no ordering is
// guaranteed across queues.
//
// Dequeue is a destructive pop with no acknowledgement, so delivery is
// at-most-once: a consumer that dies between dequeue and its result report
// loses the payload. The coordinator's stuck-task sweep reconciles such
// losses by failing tasks that never progress, which keeps them retryable.
package broker

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned once the broker has been shut down
	ErrClosed = errors.New("broker closed")
)

// Broker carries serialized task payloads between the coordinator and
// worker processes, partitioned into named queues
type Broker interface {
	// Enqueue appends a payload to the named queue
	Enqueue(ctx context.Context, queue string, payload []byte) error

	// Dequeue blocks until a payload is available on the named queue or
	// the context is canceled
	Dequeue(ctx context.Context, queue string) ([]byte, error)

	// Len returns the current depth of the named queue
	Len(ctx context.Context, queue string) (int, error)

	// Close releases the transport
	Close() error
}
