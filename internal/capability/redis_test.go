package capability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), 30*time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, s
}

func TestRedisPutGetDelete(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	record := Record{VerifiedAt: time.Now().UTC().Truncate(time.Second), Secret: "edit-secret"}
	if err := store.Put(ctx, "client-1", Edit, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "client-1", Edit)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("record not found after Put")
	}
	if got.Secret != "edit-secret" || !got.VerifiedAt.Equal(record.VerifiedAt) {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := store.Delete(ctx, "client-1", Edit); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "client-1", Edit); ok {
		t.Fatal("record still present after Delete")
	}
}

func TestRedisGetMissing(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, ok, err := store.Get(context.Background(), "nobody", Publish)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("missing record reported present")
	}
}

func TestRedisBackstopExpiry(t *testing.T) {
	store, s := setupRedisStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "client-1", Edit, Record{VerifiedAt: time.Now(), Secret: "x"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Backstop is twice the logical window.
	s.FastForward(61 * time.Minute)

	if _, ok, _ := store.Get(ctx, "client-1", Edit); ok {
		t.Fatal("record survived the server-side backstop expiry")
	}
}

func TestRedisKeyIsolation(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "client-1", Edit, Record{VerifiedAt: time.Now(), Secret: "a"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "client-1", Publish, Record{VerifiedAt: time.Now(), Secret: "b"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := store.Delete(ctx, "client-1", Edit); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "client-1", Publish); !ok {
		t.Fatal("deleting the edit record dropped the publish record too")
	}
}
