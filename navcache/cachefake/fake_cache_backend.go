package cachefake

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/navcache"
	"github.com/jrsteele09/go-backoffice-session/navigation"
)

var _ navcache.Backend = (*FakeBackend)(nil)

// FakeBackend is an in-memory navcache.Backend with injectable failures.
type FakeBackend struct {
	entries map[string]navcache.Entry
	pingErr error
	putErr  error
	getErr  error
	delErr  error
	closed  bool
	lock    sync.RWMutex
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		entries: make(map[string]navcache.Entry),
	}
}

func (fb *FakeBackend) FailPing(err error) { fb.set(&fb.pingErr, err) }
func (fb *FakeBackend) FailPut(err error)  { fb.set(&fb.putErr, err) }
func (fb *FakeBackend) FailGet(err error)  { fb.set(&fb.getErr, err) }

// FailDelete affects Delete, DeleteOlderThan and DeleteAll.
func (fb *FakeBackend) FailDelete(err error) { fb.set(&fb.delErr, err) }

// Seed stores an entry as is, including its CachedAt.
func (fb *FakeBackend) Seed(entry navcache.Entry) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	entry.NavigationTree = navigation.Clone(entry.NavigationTree)
	fb.entries[entry.UserID] = entry
}

// Has reports whether an entry exists for userID, stale or not.
func (fb *FakeBackend) Has(userID string) bool {
	fb.lock.RLock()
	defer fb.lock.RUnlock()
	_, ok := fb.entries[userID]
	return ok
}

// Len returns the number of stored entries.
func (fb *FakeBackend) Len() int {
	fb.lock.RLock()
	defer fb.lock.RUnlock()
	return len(fb.entries)
}

func (fb *FakeBackend) Ping(_ context.Context) error {
	fb.lock.RLock()
	defer fb.lock.RUnlock()
	if fb.closed {
		return fmt.Errorf("closed")
	}
	return fb.pingErr
}

func (fb *FakeBackend) Put(_ context.Context, entry navcache.Entry) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if fb.putErr != nil {
		return fb.putErr
	}
	entry.NavigationTree = navigation.Clone(entry.NavigationTree)
	fb.entries[entry.UserID] = entry
	return nil
}

func (fb *FakeBackend) Get(_ context.Context, userID string) (*navcache.Entry, error) {
	fb.lock.RLock()
	defer fb.lock.RUnlock()
	if fb.getErr != nil {
		return nil, fb.getErr
	}
	entry, ok := fb.entries[userID]
	if !ok {
		return nil, apperrors.ErrCacheNotFound
	}
	entry.NavigationTree = navigation.Clone(entry.NavigationTree)
	return &entry, nil
}

func (fb *FakeBackend) Delete(_ context.Context, userID string) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if fb.delErr != nil {
		return fb.delErr
	}
	delete(fb.entries, userID)
	return nil
}

func (fb *FakeBackend) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if fb.delErr != nil {
		return 0, fb.delErr
	}
	removed := 0
	for userID, entry := range fb.entries {
		if entry.CachedAt.Before(cutoff) {
			delete(fb.entries, userID)
			removed++
		}
	}
	return removed, nil
}

func (fb *FakeBackend) DeleteAll(_ context.Context) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if fb.delErr != nil {
		return fb.delErr
	}
	fb.entries = make(map[string]navcache.Entry)
	return nil
}

func (fb *FakeBackend) Close() error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.closed = true
	return nil
}

func (fb *FakeBackend) set(target *error, err error) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	*target = err
}
