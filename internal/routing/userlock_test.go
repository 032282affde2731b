package routing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLocks_MutualExclusion(t *testing.T) {
	locks := newUserLocks()

	const workers = 50
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("user-a")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestUserLocks_DistinctUsersDoNotBlock(t *testing.T) {
	locks := newUserLocks()

	unlockA := locks.Lock("user-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("user-b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for a different user should not block")
	}
}

func TestUserLocks_EntryReleasedAfterLastUnlock(t *testing.T) {
	locks := newUserLocks()

	unlock := locks.Lock("user-a")
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	require.Empty(t, locks.locks, "released locks must not accumulate")
}
