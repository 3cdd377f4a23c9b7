package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// FakeStore is an in-memory implementation of cache.Store with real TTL
// semantics, call counters and fault injection. It lets cache-layer tests
// observe exactly which store calls happen without a running server.
//
// The clock is injectable so TTL expiry can be tested without sleeping.
type FakeStore struct {
	mu     sync.Mutex
	vals   map[string]fakeEntry
	hashes map[string]*fakeHash
	now    func() time.Time

	// Fault injection. A non-nil error is returned by the matching
	// operation instead of touching state.
	FailGet   error
	FailSet   error
	FailDel   error
	FailKeys  error
	FailFlush error

	// Call counters, incremented on every invocation including failed ones.
	GetCalls   int
	SetCalls   int
	HGetCalls  int
	HSetCalls  int
	HValsCalls int
	KeysCalls  int
	DelCalls   int
	FlushCalls int
}

type fakeEntry struct {
	val string
	exp time.Time
}

type fakeHash struct {
	fields map[string]string
	exp    time.Time
}

// NewFakeStore returns an empty FakeStore using the wall clock.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		vals:   make(map[string]fakeEntry),
		hashes: make(map[string]*fakeHash),
		now:    time.Now,
	}
}

// SetClock replaces the store's notion of now.
func (f *FakeStore) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Get implements cache.Store.
func (f *FakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	if f.FailGet != nil {
		return "", false, f.FailGet
	}
	e, ok := f.vals[key]
	if !ok || f.expired(e.exp) {
		delete(f.vals, key)
		return "", false, nil
	}
	return e.val, true, nil
}

// Set implements cache.Store.
func (f *FakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetCalls++
	if f.FailSet != nil {
		return f.FailSet
	}
	f.vals[key] = fakeEntry{val: value, exp: f.deadline(ttl)}
	return nil
}

// HGet implements cache.Store.
func (f *FakeStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HGetCalls++
	if f.FailGet != nil {
		return "", false, f.FailGet
	}
	h, ok := f.hashes[key]
	if !ok || f.expired(h.exp) {
		delete(f.hashes, key)
		return "", false, nil
	}
	v, ok := h.fields[field]
	return v, ok, nil
}

// HSet implements cache.Store.
func (f *FakeStore) HSet(ctx context.Context, key, field, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HSetCalls++
	if f.FailSet != nil {
		return f.FailSet
	}
	h, ok := f.hashes[key]
	if !ok || f.expired(h.exp) {
		h = &fakeHash{fields: make(map[string]string)}
		f.hashes[key] = h
	}
	h.fields[field] = value
	h.exp = f.deadline(ttl)
	return nil
}

// HVals implements cache.Store.
func (f *FakeStore) HVals(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HValsCalls++
	if f.FailGet != nil {
		return nil, f.FailGet
	}
	h, ok := f.hashes[key]
	if !ok || f.expired(h.exp) {
		return nil, nil
	}
	fields := make([]string, 0, len(h.fields))
	for name := range h.fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	out := make([]string, 0, len(fields))
	for _, name := range fields {
		out = append(out, h.fields[name])
	}
	return out, nil
}

// Keys implements cache.Store.
func (f *FakeStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KeysCalls++
	if f.FailKeys != nil {
		return nil, f.FailKeys
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for k, e := range f.vals {
		if !f.expired(e.exp) && g.Match(k) {
			out = append(out, k)
		}
	}
	for k, h := range f.hashes {
		if !f.expired(h.exp) && g.Match(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Del implements cache.Store.
func (f *FakeStore) Del(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DelCalls++
	if f.FailDel != nil {
		return false, f.FailDel
	}
	_, hadVal := f.vals[key]
	_, hadHash := f.hashes[key]
	delete(f.vals, key)
	delete(f.hashes, key)
	return hadVal || hadHash, nil
}

// FlushPattern implements cache.Store. The whole scan-and-delete happens
// under one lock, mirroring the atomicity of a server-side script.
func (f *FakeStore) FlushPattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FlushCalls++
	if f.FailFlush != nil {
		return f.FailFlush
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return err
	}
	for k := range f.vals {
		if g.Match(k) {
			delete(f.vals, k)
		}
	}
	for k := range f.hashes {
		if g.Match(k) {
			delete(f.hashes, k)
		}
	}
	return nil
}

// NumKeys reports how many live keys the store holds.
func (f *FakeStore) NumKeys() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.vals {
		if !f.expired(e.exp) {
			n++
		}
	}
	for _, h := range f.hashes {
		if !f.expired(h.exp) {
			n++
		}
	}
	return n
}

// Put seeds a raw value directly, bypassing counters. Useful for corrupting
// entries in serialization tests.
func (f *FakeStore) Put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vals[key] = fakeEntry{val: value}
}

func (f *FakeStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return f.now().Add(ttl)
}

func (f *FakeStore) expired(exp time.Time) bool {
	return !exp.IsZero() && f.now().After(exp)
}
