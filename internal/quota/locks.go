package quota

import (
	"context"
	"sync"
)

// Locks serializes work per tenant. Different tenants never contend.
type Locks struct {
	mu      sync.Mutex
	tenants map[string]*tenantLock
}

type tenantLock struct {
	sem  chan struct{}
	refs int
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{tenants: make(map[string]*tenantLock)}
}

// Lock blocks until the tenant lock is held or ctx is done.
// The returned function releases it and must be called exactly once.
func (l *Locks) Lock(ctx context.Context, tenant string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.tenants[tenant]
	if !ok {
		entry = &tenantLock{sem: make(chan struct{}, 1)}
		l.tenants[tenant] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(tenant, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(tenant, entry)
		})
	}, nil
}

func (l *Locks) release(tenant string, entry *tenantLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.tenants, tenant)
	}
}

func (l *Locks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tenants)
}
