package broker

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker for single-machine deployments and
// tests. FIFO per queue, mutex-guarded.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string][][]byte
	signal map[string]chan struct{}
	closed bool
}

// NewMemoryBroker creates an empty in-memory broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string][][]byte),
		signal: make(map[string]chan struct{}),
	}
}

// Enqueue appends a payload to the named queue
func (b *MemoryBroker) Enqueue(ctx context.Context, queue string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.queues[queue] = append(b.queues[queue], payload)

	// Broadcast: wake every blocked consumer so none can miss an item when
	// enqueues race. Woken consumers re-check the queue under the lock.
	close(b.signalCh(queue))
	b.signal[queue] = make(chan struct{})
	return nil
}

// Dequeue pops the oldest payload from the named queue, blocking until one
// is available or the context is canceled
func (b *MemoryBroker) Dequeue(ctx context.Context, queue string) ([]byte, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		if items := b.queues[queue]; len(items) > 0 {
			payload := items[0]
			b.queues[queue] = items[1:]
			b.mu.Unlock()
			return payload, nil
		}
		sig := b.signalCh(queue)
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-sig:
			// Re-check the queue; another consumer may have won the race
		}
	}
}

// Len returns the current depth of the named queue
func (b *MemoryBroker) Len(ctx context.Context, queue string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue]), nil
}

// Close shuts the broker down; blocked consumers return ErrClosed
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	// Wake every blocked consumer so it can observe closed
	for _, ch := range b.signal {
		close(ch)
	}
	b.signal = make(map[string]chan struct{})
	return nil
}

// signalCh returns the current wakeup channel for a queue; it is closed and
// replaced on every enqueue. Caller must hold mu.
func (b *MemoryBroker) signalCh(queue string) chan struct{} {
	ch, ok := b.signal[queue]
	if !ok {
		ch = make(chan struct{})
		b.signal[queue] = ch
	}
	return ch
}
