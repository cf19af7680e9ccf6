// Package lock serializes result passes per game.
package lock

import (
	"context"
	"sync"
	"time"
)

// gameMutex is the mutex of a single game.
type gameMutex struct {
	mu sync.Mutex
}

// GameLock hands out one mutex per game id. Passes over different games run
// in parallel; passes over the same game run one at a time.
type GameLock struct {
	locks sync.Map // map[int64]*gameMutex
}

// NewGameLock creates a new GameLock instance.
func NewGameLock() *GameLock {
	return &GameLock{}
}

func (gl *GameLock) getLock(gameID int64) *gameMutex {
	if v, ok := gl.locks.Load(gameID); ok {
		return v.(*gameMutex)
	}
	actual, _ := gl.locks.LoadOrStore(gameID, &gameMutex{})
	return actual.(*gameMutex)
}

// Lock acquires the lock for a game.
func (gl *GameLock) Lock(gameID int64) {
	gl.getLock(gameID).mu.Lock()
}

// Unlock releases the lock for a game.
func (gl *GameLock) Unlock(gameID int64) {
	if v, ok := gl.locks.Load(gameID); ok {
		v.(*gameMutex).mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (gl *GameLock) TryLock(gameID int64) bool {
	return gl.getLock(gameID).mu.TryLock()
}

// LockWithTimeout waits for the lock until the timeout or ctx expires.
// Returns false when the lock was not acquired.
func (gl *GameLock) LockWithTimeout(ctx context.Context, gameID int64, timeout time.Duration) bool {
	lock := gl.getLock(gameID)
	done := make(chan struct{})

	go func() {
		lock.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// the waiter still gets the mutex eventually; hand it straight back
		go func() {
			<-done
			lock.mu.Unlock()
		}()
		return false
	}
}

// WithLock runs fn while holding the game's lock.
func (gl *GameLock) WithLock(gameID int64, fn func() error) error {
	gl.Lock(gameID)
	defer gl.Unlock(gameID)
	return fn()
}

// WithLockContext runs fn while holding the game's lock. It returns
// ErrLockTimeout when the lock is not acquired within timeout, and the
// context error when ctx is done by the time the lock is held.
func (gl *GameLock) WithLockContext(ctx context.Context, gameID int64, timeout time.Duration, fn func() error) error {
	if !gl.LockWithTimeout(ctx, gameID, timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
	defer gl.Unlock(gameID)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// IsLocked reports whether a pass currently holds the game's lock.
// The answer may be stale as soon as it returns.
func (gl *GameLock) IsLocked(gameID int64) bool {
	v, ok := gl.locks.Load(gameID)
	if !ok {
		return false
	}
	lock := v.(*gameMutex)
	if lock.mu.TryLock() {
		lock.mu.Unlock()
		return false
	}
	return true
}
