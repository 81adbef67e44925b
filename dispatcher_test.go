package client

import (
	"sync"
	"testing"
	"time"
)

func TestEventDispatcherFIFO(t *testing.T) {
	d := newEventDispatcher()
	defer d.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		d.add(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of FIFO order: %v", order)
		}
	}
}

func TestEventDispatcherCloseWaitsForDrain(t *testing.T) {
	d := newEventDispatcher()

	ran := make(chan struct{})
	d.add(func() { close(ran) })
	d.Close()

	select {
	case <-ran:
	default:
		t.Fatal("Close returned before the enqueued task ran")
	}
}

func TestEventDispatcherCloseIdempotent(t *testing.T) {
	d := newEventDispatcher()
	d.Close()
	d.Close() // must not panic
}
