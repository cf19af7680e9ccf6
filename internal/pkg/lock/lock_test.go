package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestPassesSerializedPerGameProperty checks that concurrent passes over the
// same game never overlap, while each game keeps its own count.
func TestPassesSerializedPerGameProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numGames := rapid.IntRange(1, 5).Draw(t, "numGames")
		passesPerGame := rapid.IntRange(2, 20).Draw(t, "passesPerGame")

		gl := NewGameLock()
		processed := make(map[int64]*int, numGames)
		inFlight := make(map[int64]*atomic.Int32, numGames)
		for g := int64(1); g <= int64(numGames); g++ {
			processed[g] = new(int)
			inFlight[g] = new(atomic.Int32)
		}

		var overlaps atomic.Int32
		var wg sync.WaitGroup
		for g := int64(1); g <= int64(numGames); g++ {
			for i := 0; i < passesPerGame; i++ {
				wg.Add(1)
				go func(gameID int64) {
					defer wg.Done()
					_ = gl.WithLock(gameID, func() error {
						if inFlight[gameID].Add(1) > 1 {
							overlaps.Add(1)
						}
						*processed[gameID]++
						inFlight[gameID].Add(-1)
						return nil
					})
				}(g)
			}
		}
		wg.Wait()

		if overlaps.Load() > 0 {
			t.Fatalf("%d overlapping passes", overlaps.Load())
		}
		for g, n := range processed {
			if *n != passesPerGame {
				t.Fatalf("game %d: %d passes, want %d", g, *n, passesPerGame)
			}
		}
	})
}

// TestLockUnlockSymmetryProperty checks the lock is free after balanced cycles.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gameID := rapid.Int64Range(1, 1000000).Draw(t, "gameID")
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		gl := NewGameLock()
		for i := 0; i < numCycles; i++ {
			gl.Lock(gameID)
			gl.Unlock(gameID)
		}

		if gl.IsLocked(gameID) {
			t.Fatal("lock should be free after symmetric lock/unlock cycles")
		}
	})
}

func TestTryLock(t *testing.T) {
	gl := NewGameLock()
	require.True(t, gl.TryLock(1))
	assert.True(t, gl.IsLocked(1))
	assert.False(t, gl.TryLock(1))
	assert.True(t, gl.TryLock(2), "other games are independent")

	gl.Unlock(1)
	gl.Unlock(2)
	assert.False(t, gl.IsLocked(1))
}

func TestWithLockContext_Timeout(t *testing.T) {
	gl := NewGameLock()
	gl.Lock(7)

	called := false
	err := gl.WithLockContext(context.Background(), 7, 20*time.Millisecond, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)

	gl.Unlock(7)
	assert.Eventually(t, func() bool { return !gl.IsLocked(7) }, time.Second, 5*time.Millisecond)
}

func TestWithLockContext_Cancelled(t *testing.T) {
	gl := NewGameLock()
	gl.Lock(7)
	defer gl.Unlock(7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gl.WithLockContext(ctx, 7, time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLockContext_PropagatesError(t *testing.T) {
	gl := NewGameLock()
	boom := errors.New("boom")

	err := gl.WithLockContext(context.Background(), 3, time.Second, func() error {
		assert.True(t, gl.IsLocked(3))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, gl.IsLocked(3))
}
