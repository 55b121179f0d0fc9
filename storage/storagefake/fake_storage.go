package storagefake

import (
	"sort"
	"strings"
	"sync"

	"github.com/jrsteele09/go-backoffice-session/storage"
)

var _ storage.KeyValue = (*FakeStorage)(nil)

// FakeStorage is an in-memory KeyValue with injectable failures.
type FakeStorage struct {
	data      map[string]string
	writeErr  error
	readErr   error
	failAfter int // writes allowed before writeErr applies, -1 = immediately
	writes    int
	lock      sync.RWMutex
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		data:      make(map[string]string),
		failAfter: -1,
	}
}

// FailWrites makes every subsequent write return err. nil clears it.
func (fs *FakeStorage) FailWrites(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.writeErr = err
	fs.failAfter = -1
	fs.writes = 0
}

// FailWritesAfter lets n writes through before returning err.
func (fs *FakeStorage) FailWritesAfter(n int, err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.writeErr = err
	fs.failAfter = n
	fs.writes = 0
}

// FailReads makes Get and Keys return err. nil clears it.
func (fs *FakeStorage) FailReads(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.readErr = err
}

// Put writes directly, bypassing failure injection.
func (fs *FakeStorage) Put(key, value string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.data[key] = value
}

// Len returns the number of stored keys.
func (fs *FakeStorage) Len() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return len(fs.data)
}

func (fs *FakeStorage) Get(key string) (string, bool, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.readErr != nil {
		return "", false, fs.readErr
	}
	v, ok := fs.data[key]
	return v, ok, nil
}

func (fs *FakeStorage) SetMany(values map[string]string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.checkWrite(); err != nil {
		return err
	}
	for k, v := range values {
		fs.data[k] = v
	}
	return nil
}

func (fs *FakeStorage) Delete(keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.checkWrite(); err != nil {
		return err
	}
	for _, k := range keys {
		delete(fs.data, k)
	}
	return nil
}

func (fs *FakeStorage) DeletePrefix(prefix string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.checkWrite(); err != nil {
		return err
	}
	for k := range fs.data {
		if strings.HasPrefix(k, prefix) {
			delete(fs.data, k)
		}
	}
	return nil
}

func (fs *FakeStorage) Keys() ([]string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.readErr != nil {
		return nil, fs.readErr
	}
	keys := make([]string, 0, len(fs.data))
	for k := range fs.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// checkWrite must be called with the lock held.
func (fs *FakeStorage) checkWrite() error {
	if fs.writeErr == nil {
		return nil
	}
	if fs.failAfter >= 0 && fs.writes < fs.failAfter {
		fs.writes++
		return nil
	}
	return fs.writeErr
}
