package deploy

import "sync"

// LockManager hands out per-project locks so the webhook server never
// runs two code deploys for the same project at once. Different projects
// deploy concurrently; the outer mutex only guards the map.
//
// CLI invocations do not take these locks: each invocation is its own
// process and the store's single-file semantics are the only guarantee.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*sync.Mutex)}
}

// TryLock attempts to acquire the deploy lock for a project without
// blocking. It returns false when a deploy for that project is already
// running.
func (lm *LockManager) TryLock(project string) bool {
	lm.mu.Lock()
	lock, ok := lm.locks[project]
	if !ok {
		lock = &sync.Mutex{}
		lm.locks[project] = lock
	}
	lm.mu.Unlock()

	return lock.TryLock()
}

// Unlock releases the deploy lock for a project. Safe to call for a
// project that was never locked.
func (lm *LockManager) Unlock(project string) {
	lm.mu.Lock()
	lock := lm.locks[project]
	lm.mu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}
