package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campuskit/portal-cache/pkg/testsupport"
)

type student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestService(store Store) *Service {
	return NewService(store, WithPrefix("portal"), WithDefaultTTL(time.Minute))
}

func TestGetOrSet_InvalidKey(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)

	for _, key := range []string{"", "   ", "\t"} {
		_, err := GetOrSet(context.Background(), svc, key, func(ctx context.Context) ([]student, error) {
			t.Fatal("value function must not run for invalid keys")
			return nil, nil
		})
		if !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}

	if store.GetCalls+store.SetCalls != 0 {
		t.Fatalf("invalid keys must not reach the store, saw %d get / %d set calls", store.GetCalls, store.SetCalls)
	}
}

func TestGetOrSet_PopulatesOnMissAndHitsAfter(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	fetched := []student{{ID: "1", Name: "Ada"}, {ID: "2", Name: "Lin"}}
	calls := 0
	fetchAll := func(ctx context.Context) ([]student, error) {
		calls++
		return fetched, nil
	}

	got, err := GetOrSet(ctx, svc, "StudentData", fetchAll)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("value function must run exactly once on a miss, ran %d times", calls)
	}
	if len(got) != 2 || got[0].Name != "Ada" {
		t.Fatalf("unexpected result %+v", got)
	}

	// A second call with a different factory must return the first result:
	// cache hit takes precedence over recomputation.
	got, err = GetOrSet(ctx, svc, "StudentData", func(ctx context.Context) ([]student, error) {
		t.Fatal("hit path must not invoke the value function")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if len(got) != 2 || got[1].ID != "2" {
		t.Fatalf("hit returned wrong value %+v", got)
	}
}

func TestGetOrSet_ValueSurvivesStoreWriteFailure(t *testing.T) {
	store := testsupport.NewFakeStore()
	store.FailSet = errors.New("connection reset")
	svc := newTestService(store)
	ctx := context.Background()

	got, err := GetOrSet(ctx, svc, "StudentData", func(ctx context.Context) ([]student, error) {
		return []student{{ID: "1"}}, nil
	})
	if err != nil {
		t.Fatalf("a failed store write must not discard the computed value: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected result %+v", got)
	}

	// The entry never made it into the store, so the next call misses again.
	store.FailSet = nil
	calls := 0
	_, err = GetOrSet(ctx, svc, "StudentData", func(ctx context.Context) ([]student, error) {
		calls++
		return nil, nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("expected a fresh miss after the failed write, calls=%d err=%v", calls, err)
	}
}

func TestGetOrSet_NilResultNotStored(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)

	got, err := GetOrSet(context.Background(), svc, "StudentData", func(ctx context.Context) ([]student, error) {
		return nil, nil
	})
	if err != nil || got != nil {
		t.Fatalf("expected nil result, got %+v err=%v", got, err)
	}
	if store.NumKeys() != 0 {
		t.Fatalf("nil results must not be stored, have %d keys", store.NumKeys())
	}
}

func TestGetOrSet_FactoryErrorPropagates(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)

	boom := errors.New("backing store down")
	_, err := GetOrSet(context.Background(), svc, "StudentData", func(ctx context.Context) ([]student, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if store.NumKeys() != 0 {
		t.Fatal("failed computations must not be stored")
	}
}

func TestGetOrSet_CorruptEntry(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	store.Put("portal:StudentData", "{not json")

	_, err := GetOrSet(context.Background(), svc, "StudentData", func(ctx context.Context) ([]student, error) {
		return nil, nil
	})
	var serr *SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
	if serr.Codec != "json" {
		t.Fatalf("unexpected codec in error: %s", serr.Codec)
	}
}

func TestGetOrSet_StoreFaultPropagates(t *testing.T) {
	store := testsupport.NewFakeStore()
	fault := &StoreError{Op: "get", Err: errors.New("dial tcp: refused")}
	store.FailGet = fault
	svc := newTestService(store)

	_, err := GetOrSet(context.Background(), svc, "StudentData", func(ctx context.Context) ([]student, error) {
		t.Fatal("value function must not run when the store read fails")
		return nil, nil
	})
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError to surface unchanged, got %v", err)
	}
}

func TestGetOrSetTTL_Expiry(t *testing.T) {
	store := testsupport.NewFakeStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	svc := newTestService(store)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "v", nil
	}

	if _, err := GetOrSetTTL(ctx, svc, "Banner", fetch, 15*time.Second); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if _, err := GetOrSetTTL(ctx, svc, "Banner", fetch, 15*time.Second); err != nil {
		t.Fatalf("hit: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a hit before expiry, factory ran %d times", calls)
	}

	now = now.Add(16 * time.Second)
	if _, err := GetOrSetTTL(ctx, svc, "Banner", fetch, 15*time.Second); err != nil {
		t.Fatalf("repopulate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a miss after expiry, factory ran %d times", calls)
	}
}

func TestGetOrSet_ConcurrentPopulateCollapses(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	slowFetch := func(ctx context.Context) ([]student, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return []student{{ID: "1"}}, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := GetOrSet(ctx, svc, "StudentData", slowFetch); err != nil {
			t.Errorf("first caller: %v", err)
		}
	}()

	<-entered
	go func() {
		defer wg.Done()
		// Joins the in-flight populate instead of running its own.
		if _, err := GetOrSet(ctx, svc, "StudentData", slowFetch); err != nil {
			t.Errorf("second caller: %v", err)
		}
	}()

	// Give the second caller time to reach the flight group before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("concurrent populates for one key must share a single factory run, got %d", calls)
	}
}

func TestHashGetOrSet_Contract(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := HashGetOrSet(ctx, svc, "students", "", func(ctx context.Context) (student, error) {
		return student{}, nil
	}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("blank field: expected ErrInvalidKey, got %v", err)
	}
	if _, err := HashGetOrSet(ctx, svc, " ", "ID-1", func(ctx context.Context) (student, error) {
		return student{}, nil
	}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("blank key: expected ErrInvalidKey, got %v", err)
	}

	calls := 0
	fetchOne := func(ctx context.Context) (student, error) {
		calls++
		return student{ID: "ID-1", Name: "Ada"}, nil
	}

	got, err := HashGetOrSet(ctx, svc, "students", "ID-1", fetchOne)
	if err != nil || got.Name != "Ada" {
		t.Fatalf("populate: %+v err=%v", got, err)
	}

	// Field names are case-normalized, so a differently-cased field hits.
	got, err = HashGetOrSet(ctx, svc, "students", "id-1", func(ctx context.Context) (student, error) {
		t.Fatal("hit path must not invoke the value function")
		return student{}, nil
	})
	if err != nil || got.ID != "ID-1" {
		t.Fatalf("case-insensitive hit: %+v err=%v", got, err)
	}
	if calls != 1 {
		t.Fatalf("factory ran %d times", calls)
	}
}

func TestGetValues(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, s := range []student{{ID: "1", Name: "Ada"}, {ID: "2", Name: "Lin"}} {
		s := s
		if _, err := HashGetOrSet(ctx, svc, "students", s.ID, func(ctx context.Context) (student, error) {
			return s, nil
		}); err != nil {
			t.Fatalf("seed %s: %v", s.ID, err)
		}
	}

	vals, err := GetValues[student](ctx, svc, "students")
	if err != nil {
		t.Fatalf("get values: %v", err)
	}
	if len(vals) != 2 {
		t.Fatalf("expected 2 values, got %d", len(vals))
	}
}

func TestRemove_Idempotent(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := GetOrSet(ctx, svc, "StudentData", func(ctx context.Context) ([]student, error) {
		return []student{{ID: "1"}}, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.Remove(ctx, "StudentData"); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if err := svc.Remove(ctx, "StudentData"); err != nil {
		t.Fatalf("removing an absent key must be a no-op, got %v", err)
	}
	if err := svc.Remove(ctx, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("blank key: expected ErrInvalidKey, got %v", err)
	}
}

func TestRemoveAllKeys_NamespaceScoped(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, key := range []string{"StudentData", "StaffData", "CourseData"} {
		key := key
		if _, err := GetOrSet(ctx, svc, key, func(ctx context.Context) (string, error) {
			return "v", nil
		}); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	// A key under a different namespace must be untouched.
	_ = store.Set(ctx, "legacy:StudentData", "v", 0)

	ok, err := svc.RemoveAllKeys(ctx, "*")
	if err != nil || !ok {
		t.Fatalf("expected full removal, ok=%v err=%v", ok, err)
	}
	if store.NumKeys() != 1 {
		t.Fatalf("expected only the foreign-namespace key to survive, have %d", store.NumKeys())
	}
}

func TestRemoveAllKeys_PartialFailure(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, key := range []string{"StudentData", "StaffData"} {
		_ = store.Set(ctx, "portal:"+key, "v", 0)
	}
	store.FailDel = errors.New("timeout")

	ok, err := svc.RemoveAllKeys(ctx, "*")
	if ok || err == nil {
		t.Fatalf("expected failure report, ok=%v err=%v", ok, err)
	}
}

func TestGetKeys_Snapshot(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	_ = store.Set(ctx, "portal:StudentData", "v", 0)
	_ = store.Set(ctx, "portal:StaffData", "v", 0)
	_ = store.Set(ctx, "legacy:StudentData", "v", 0)

	keys, err := svc.GetKeys(ctx, "*Data")
	if err != nil {
		t.Fatalf("get keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected the two namespaced keys, got %v", keys)
	}
}

func TestReset_FlushesNamespaceAsync(t *testing.T) {
	store := testsupport.NewFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	_ = store.Set(ctx, "portal:StudentData", "v", 0)
	_ = store.Set(ctx, "legacy:StudentData", "v", 0)

	svc.Reset()

	deadline := time.After(2 * time.Second)
	for store.NumKeys() != 1 {
		select {
		case <-deadline:
			t.Fatalf("namespace not flushed, %d keys remain", store.NumKeys())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
