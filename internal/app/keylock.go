package app

import "sync"

// keyLock serializes work per string key. Each KYC mutation is a
// read-check-write sequence that is not atomic by construction, so two
// concurrent calls for the same tenant must not interleave; distinct tenants
// proceed in parallel. Locks are never evicted: the tenant population is
// bounded and a case outlives any one request.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the key and returns the unlock function.
func (k *keyLock) acquire(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
