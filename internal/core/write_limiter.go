package core

// write_limiter.go bounds concurrent database writes.
//
// A semaphore caps the number of overwrite/append operations running at
// once; a write that cannot get a slot within maxWait fails with
// ErrTooManyWrites. Independently, only one write per target (driver,
// database and table) may run: a second write to the same table fails at
// once with ErrTargetBusy instead of queueing behind a DROP TABLE.
//
// WaitForDrain blocks until all active writes complete, for graceful
// shutdown.

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrTooManyWrites is returned when all write slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyWrites = errors.New("too many concurrent database writes, please try again later")

// ErrTargetBusy is returned when another write to the same table is running.
var ErrTargetBusy = errors.New("another write to this table is still running")

// DefaultMaxConcurrentWrites is the default limit for parallel writes.
const DefaultMaxConcurrentWrites = 2

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// WriteLimiter controls concurrent database writes.
type WriteLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu      sync.Mutex
	targets map[string]struct{}
}

// NewWriteLimiter creates a limiter that allows at most maxConcurrent
// simultaneous writes. Non-positive arguments select the defaults.
func NewWriteLimiter(maxConcurrent int, maxWait time.Duration) *WriteLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentWrites
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &WriteLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		targets:   make(map[string]struct{}),
	}
}

// Acquire claims target and a write slot. On success the returned release
// func MUST be called exactly once when the write completes.
func (l *WriteLimiter) Acquire(ctx context.Context, target string) (func(), error) {
	l.mu.Lock()
	if _, busy := l.targets[target]; busy {
		l.mu.Unlock()
		return nil, ErrTargetBusy
	}
	l.targets[target] = struct{}{}
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { l.release(target) }) }, nil

	case <-waitCtx.Done():
		l.dropTarget(target)
		// Check if original context was cancelled vs timeout
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTooManyWrites
	}
}

func (l *WriteLimiter) release(target string) {
	<-l.semaphore
	l.dropTarget(target)
}

func (l *WriteLimiter) dropTarget(target string) {
	l.mu.Lock()
	delete(l.targets, target)
	l.mu.Unlock()
}

// ActiveCount returns the number of currently running writes.
func (l *WriteLimiter) ActiveCount() int {
	return len(l.semaphore)
}

// MaxConcurrent returns the maximum allowed concurrent writes.
func (l *WriteLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *WriteLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until all active writes complete or ctx is cancelled.
func (l *WriteLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WriteLimiterStatus is a snapshot of the limiter's state.
type WriteLimiterStatus struct {
	Active        int      `json:"active"`
	Available     int      `json:"available"`
	MaxConcurrent int      `json:"max_concurrent"`
	Targets       []string `json:"targets"`
}

// Status returns the current limiter state for the status page.
func (l *WriteLimiter) Status() WriteLimiterStatus {
	l.mu.Lock()
	targets := make([]string, 0, len(l.targets))
	for t := range l.targets {
		targets = append(targets, t)
	}
	l.mu.Unlock()
	slices.Sort(targets)

	return WriteLimiterStatus{
		Active:        len(l.semaphore),
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
		Targets:       targets,
	}
}
