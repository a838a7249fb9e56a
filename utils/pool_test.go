package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	if !s.Add("inbox/92230.csv") {
		t.Error("first Add should return true")
	}
	if s.Add("inbox/92230.csv") {
		t.Error("second Add of same key should return false")
	}
	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}

	s.Remove("inbox/92230.csv")
	if !s.Add("inbox/92230.csv") {
		t.Error("Add after Remove should return true")
	}
}

func TestKeySetConcurrency(t *testing.T) {
	s := NewKeySet()
	var added int64

	pool := NewPool(10)
	for i := 0; i < 100; i++ {
		if err := pool.Submit(context.Background(), func() {
			if s.Add("same") {
				atomic.AddInt64(&added, 1)
			}
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	pool.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var running, peak int64

	for i := 0; i < 8; i++ {
		_ = pool.Submit(context.Background(), func() {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency: got %d, want <= 2", peak)
	}
}

func TestPoolSubmitCancelled(t *testing.T) {
	pool := NewPool(1)
	block := make(chan struct{})
	_ = pool.Submit(context.Background(), func() { <-block })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Submit(ctx, func() { t.Error("job must not run") }); err == nil {
		t.Error("expected context error")
	}

	close(block)
	pool.Wait()
}
