package store

import "sync"

// CriticalSection is a held transaction lock. Release is idempotent.
type CriticalSection struct {
	readOnly bool
	once     sync.Once
	unlock   func()
}

// NewCriticalSection acquires mu in the requested mode. Backends use it to
// implement EnterCriticalSection.
func NewCriticalSection(mu *sync.RWMutex, readOnly bool) *CriticalSection {
	if readOnly {
		mu.RLock()
		return &CriticalSection{readOnly: true, unlock: mu.RUnlock}
	}
	mu.Lock()
	return &CriticalSection{unlock: mu.Unlock}
}

// ReadOnly reports the mode the section was entered in.
func (cs *CriticalSection) ReadOnly() bool {
	return cs.readOnly
}

// Release gives the lock back. Calls after the first are no-ops.
func (cs *CriticalSection) Release() {
	if cs == nil {
		return
	}
	cs.once.Do(cs.unlock)
}

// WithCriticalSection runs fn holding ds's transaction lock and releases it
// on every exit path, including panics.
func WithCriticalSection(ds DataStore, readOnly bool, fn func() error) error {
	cs, err := ds.EnterCriticalSection(readOnly)
	if err != nil {
		return err
	}
	defer ds.LeaveCriticalSection(cs)
	return fn()
}
