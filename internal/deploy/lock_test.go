package deploy

import (
	"sync"
	"testing"
)

func TestLockManager_TryLock(t *testing.T) {
	lm := NewLockManager()

	if !lm.TryLock("blog") {
		t.Fatal("First TryLock should succeed")
	}
	if lm.TryLock("blog") {
		t.Error("Second TryLock on the same project should fail")
	}

	// A different project is independent.
	if !lm.TryLock("other") {
		t.Error("TryLock for a different project should succeed")
	}

	lm.Unlock("blog")
	if !lm.TryLock("blog") {
		t.Error("TryLock after Unlock should succeed")
	}
}

func TestLockManager_UnlockUnknownProject(t *testing.T) {
	lm := NewLockManager()
	// Must not panic.
	lm.Unlock("never-locked")
}

func TestLockManager_ConcurrentAccess(t *testing.T) {
	lm := NewLockManager()

	const goroutines = 50
	var wg sync.WaitGroup
	acquired := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- lm.TryLock("blog")
		}()
	}
	wg.Wait()
	close(acquired)

	wins := 0
	for ok := range acquired {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("Exactly one goroutine should win the lock, got %d", wins)
	}
}
