package testsupport

import (
	"context"
	"testing"
	"time"
)

func TestFakeStore_TTLExpiry(t *testing.T) {
	store := NewFakeStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })

	ctx := context.Background()
	if err := store.Set(ctx, "portal:StudentData", "[]", 15*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "portal:StudentData"); !ok {
		t.Fatal("expected entry before expiry")
	}

	now = now.Add(16 * time.Second)
	if _, ok, _ := store.Get(ctx, "portal:StudentData"); ok {
		t.Fatal("expected entry to expire after TTL")
	}
}

func TestFakeStore_KeysGlob(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()

	seed := []string{"portal:StudentData", "portal:StaffData", "other:StudentData"}
	for _, k := range seed {
		if err := store.Set(ctx, k, "x", 0); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	keys, err := store.Keys(ctx, "portal:*")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 portal keys, got %v", keys)
	}
}

func TestFakeStore_FlushPattern(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()

	_ = store.Set(ctx, "portal:a", "1", 0)
	_ = store.Set(ctx, "portal:b", "2", 0)
	_ = store.HSet(ctx, "portal:students", "id-1", "{}", 0)
	_ = store.Set(ctx, "other:c", "3", 0)

	if err := store.FlushPattern(ctx, "portal:*"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if store.NumKeys() != 1 {
		t.Fatalf("expected only the foreign key to survive, have %d", store.NumKeys())
	}
}

func TestFakeStore_DelReportsExistence(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()

	_ = store.Set(ctx, "portal:a", "1", 0)

	deleted, err := store.Del(ctx, "portal:a")
	if err != nil || !deleted {
		t.Fatalf("expected first delete to report existence, got %v %v", deleted, err)
	}
	deleted, err = store.Del(ctx, "portal:a")
	if err != nil || deleted {
		t.Fatalf("expected second delete to be a no-op, got %v %v", deleted, err)
	}
}
