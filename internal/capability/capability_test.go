package capability

import (
	"context"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore, *time.Time) {
	t.Helper()
	store := NewMemoryStore()
	svc := NewService(store, map[string]string{
		Edit:    "edit-secret",
		Publish: "publish-secret",
	}, 30*time.Minute)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, store, &clock
}

func TestVerifyWrongSecretLeavesNoRecord(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.Verify(ctx, "client-1", Edit, "nope")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Fatal("Verify() accepted a wrong secret")
	}
	if _, found, _ := store.Get(ctx, "client-1", Edit); found {
		t.Fatal("wrong secret cached a verification")
	}
}

func TestVerifyThenIsLive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.Verify(ctx, "client-1", Edit, "edit-secret")
	if err != nil || !ok {
		t.Fatalf("Verify() = %v, %v", ok, err)
	}
	live, err := svc.IsLive(ctx, "client-1", Edit)
	if err != nil {
		t.Fatalf("IsLive() error = %v", err)
	}
	if !live {
		t.Fatal("fresh verification reported dead")
	}
	if live, _ := svc.IsLive(ctx, "client-1", Publish); live {
		t.Fatal("edit verification leaked into publish capability")
	}
}

func TestIsLiveAtExactTTLBoundary(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "client-1", Edit, "edit-secret"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	// Exactly the TTL after verification the grant is still live; it only
	// expires once strictly more time has passed.
	*clock = clock.Add(30 * time.Minute)

	live, err := svc.IsLive(ctx, "client-1", Edit)
	if err != nil {
		t.Fatalf("IsLive() error = %v", err)
	}
	if !live {
		t.Fatal("verification at the exact TTL boundary reported dead")
	}
}

func TestIsLiveDeletesExpiredRecord(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "client-1", Edit, "edit-secret"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	*clock = clock.Add(30*time.Minute + time.Second)

	live, err := svc.IsLive(ctx, "client-1", Edit)
	if err != nil {
		t.Fatalf("IsLive() error = %v", err)
	}
	if live {
		t.Fatal("expired verification reported live")
	}
	if _, found, _ := store.Get(ctx, "client-1", Edit); found {
		t.Fatal("expired verification was not deleted")
	}
}

func TestRefreshExtendsLiveWindow(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "client-1", Edit, "edit-secret"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	*clock = clock.Add(20 * time.Minute)
	refreshed, err := svc.Refresh(ctx, "client-1", Edit)
	if err != nil || !refreshed {
		t.Fatalf("Refresh() = %v, %v", refreshed, err)
	}

	// 45 minutes after the original verification but only 25 after the
	// refresh, so still live.
	*clock = clock.Add(25 * time.Minute)
	live, err := svc.IsLive(ctx, "client-1", Edit)
	if err != nil {
		t.Fatalf("IsLive() error = %v", err)
	}
	if !live {
		t.Fatal("refreshed verification expired on the original schedule")
	}
}

func TestRefreshExpiredDoesNothing(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "client-1", Edit, "edit-secret"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	*clock = clock.Add(31 * time.Minute)

	refreshed, err := svc.Refresh(ctx, "client-1", Edit)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed {
		t.Fatal("Refresh() revived an expired verification")
	}
	if _, found, _ := store.Get(ctx, "client-1", Edit); found {
		t.Fatal("expired verification survived Refresh()")
	}
}

func TestLogoutDropsVerification(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "client-1", Edit, "edit-secret"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := svc.Logout(ctx, "client-1", Edit); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if live, _ := svc.IsLive(ctx, "client-1", Edit); live {
		t.Fatal("verification still live after Logout()")
	}
	// Logging out with nothing cached is fine.
	if err := svc.Logout(ctx, "client-1", Edit); err != nil {
		t.Fatalf("repeat Logout() error = %v", err)
	}
}

func TestCachedSecret(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "client-1", Publish, "publish-secret"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	secret, ok, err := svc.CachedSecret(ctx, "client-1", Publish)
	if err != nil {
		t.Fatalf("CachedSecret() error = %v", err)
	}
	if !ok || secret != "publish-secret" {
		t.Fatalf("CachedSecret() = %q, %v", secret, ok)
	}

	*clock = clock.Add(time.Hour)
	if _, ok, _ := svc.CachedSecret(ctx, "client-1", Publish); ok {
		t.Fatal("CachedSecret() returned a secret for an expired verification")
	}
}

func TestMatchesUnconfiguredCapability(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, map[string]string{Edit: "edit-secret", Publish: ""}, time.Minute)
	if svc.Matches(Publish, "") {
		t.Fatal("empty configured secret must never match")
	}
	if svc.Matches("unknown", "edit-secret") {
		t.Fatal("unknown capability matched")
	}
}
