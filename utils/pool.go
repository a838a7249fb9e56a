package utils

import (
	"context"
	"sync"
)

// Pool runs jobs on at most size goroutines at a time.
type Pool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewPool creates a Pool. A size below one is treated as one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{semaphore: make(chan struct{}, size)}
}

// Submit blocks until a slot is free, then runs job in its own goroutine.
// It returns ctx.Err() without running job when ctx ends first.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.semaphore }()
		job()
	}()
	return nil
}

// Wait blocks until all submitted jobs have completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// KeySet is a thread-safe set of strings, used to skip work already done.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Remove forgets key so it can be added again.
func (s *KeySet) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
}

// Size returns the number of keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
