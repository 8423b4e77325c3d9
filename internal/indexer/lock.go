package indexer

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// IndexLock provides non-blocking lock semantics using atomic operations.
// A sync run that cannot take the lock is skipped, never queued.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is currently taken
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

// Guard scopes
const (
	ScopeProject = "project" // one lock per project
	ScopeGlobal  = "global"  // one lock shared by every project
)

// Guard hands out the IndexLock that protects a project's runs
type Guard struct {
	scope  string
	global IndexLock
	locks  sync.Map // project id -> *IndexLock
}

// NewGuard creates a guard for scope. An empty scope means ScopeProject.
func NewGuard(scope string) (*Guard, error) {
	switch scope {
	case "":
		scope = ScopeProject
	case ScopeProject, ScopeGlobal:
	default:
		return nil, fmt.Errorf("unknown guard scope %q (want %q or %q)", scope, ScopeProject, ScopeGlobal)
	}
	return &Guard{scope: scope}, nil
}

// Scope returns the guard's scope
func (g *Guard) Scope() string {
	return g.scope
}

func (g *Guard) lockFor(projectID string) *IndexLock {
	if g.scope == ScopeGlobal {
		return &g.global
	}
	l, _ := g.locks.LoadOrStore(projectID, &IndexLock{})
	return l.(*IndexLock)
}

// TryAcquire takes the lock covering projectID. On success the returned
// release func must be called exactly once.
func (g *Guard) TryAcquire(projectID string) (release func(), ok bool) {
	l := g.lockFor(projectID)
	if !l.TryAcquire() {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(l.Release) }, true
}

// Busy reports whether a run covering projectID is in flight
func (g *Guard) Busy(projectID string) bool {
	return g.lockFor(projectID).Held()
}
