// internal/app/system/verifier/locks.go
package verifier

import "sync"

// memberLocks serializes state transitions per member id. Entries are
// refcounted and removed when the last holder releases, so the map stays
// bounded by the number of in-flight transitions.
type memberLocks struct {
	mu    sync.Mutex
	locks map[string]*memberLock
}

type memberLock struct {
	mu   sync.Mutex
	refs int
}

func newMemberLocks() *memberLocks {
	return &memberLocks{locks: make(map[string]*memberLock)}
}

// lock acquires the mutex for key and returns its release func.
func (ml *memberLocks) lock(key string) func() {
	ml.mu.Lock()
	l, ok := ml.locks[key]
	if !ok {
		l = &memberLock{}
		ml.locks[key] = l
	}
	l.refs++
	ml.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		ml.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(ml.locks, key)
		}
		ml.mu.Unlock()
	}
}
