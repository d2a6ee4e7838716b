package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryBrokerFIFO(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := b.Enqueue(ctx, "general", []byte(fmt.Sprintf("task-%d", i))); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	n, err := b.Len(ctx, "general")
	if err != nil || n != 5 {
		t.Fatalf("Len = %d, %v; want 5", n, err)
	}

	for i := 0; i < 5; i++ {
		payload, err := b.Dequeue(ctx, "general")
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		want := fmt.Sprintf("task-%d", i)
		if string(payload) != want {
			t.Errorf("dequeue order: got %s, want %s", payload, want)
		}
	}
}

func TestMemoryBrokerQueuesAreIndependent(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	b.Enqueue(ctx, "video_processing", []byte("video"))
	b.Enqueue(ctx, "audio_processing", []byte("audio"))

	payload, err := b.Dequeue(ctx, "audio_processing")
	if err != nil || string(payload) != "audio" {
		t.Fatalf("dequeue audio = %s, %v", payload, err)
	}

	n, _ := b.Len(ctx, "video_processing")
	if n != 1 {
		t.Errorf("video queue depth = %d, want 1", n)
	}
}

func TestMemoryBrokerBlockingDequeue(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	got := make(chan []byte, 1)
	go func() {
		payload, err := b.Dequeue(ctx, "general")
		if err != nil {
			t.Errorf("dequeue: %v", err)
			return
		}
		got <- payload
	}()

	// Give the consumer time to block before producing
	time.Sleep(50 * time.Millisecond)
	if err := b.Enqueue(ctx, "general", []byte("late")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case payload := <-got:
		if string(payload) != "late" {
			t.Errorf("got %s, want late", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked consumer never woke up")
	}
}

func TestMemoryBrokerWakesAllBlockedConsumers(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	got := make(chan []byte, 2)
	for i := 0; i < 2; i++ {
		go func() {
			payload, err := b.Dequeue(ctx, "general")
			if err != nil {
				t.Errorf("dequeue: %v", err)
				return
			}
			got <- payload
		}()
	}

	// Let both consumers block, then produce back to back. Each item must
	// reach a consumer even when the enqueues race.
	time.Sleep(50 * time.Millisecond)
	if err := b.Enqueue(ctx, "general", []byte("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := b.Enqueue(ctx, "general", []byte("b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("consumer %d never received an item", i)
		}
	}

	n, _ := b.Len(ctx, "general")
	if n != 0 {
		t.Errorf("queue depth = %d after both consumers drained, want 0", n)
	}
}

func TestMemoryBrokerDequeueContextCancel(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Dequeue(ctx, "empty")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}

func TestMemoryBrokerClose(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Dequeue(ctx, "general")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked consumer did not observe close")
	}

	if err := b.Enqueue(ctx, "general", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("enqueue after close: expected ErrClosed, got %v", err)
	}

	// Close is idempotent
	if err := b.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
