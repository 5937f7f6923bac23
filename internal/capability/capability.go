// Package capability implements the expiring shared-secret gate in front
// of content mutations. A client proves knowledge of a capability secret
// once; the verification is cached against an opaque client key and stays
// live for a fixed window from the moment of verification. Checking a
// stale verification deletes it, so a dead grant never lingers.
package capability

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"
)

const (
	Edit    = "edit"
	Publish = "publish"
)

// Record is one cached verification: when the secret was last proven and
// the secret value itself, so the client does not have to resend it while
// the grant is live.
type Record struct {
	VerifiedAt time.Time `json:"verifiedAt"`
	Secret     string    `json:"secret"`
}

// RecordStore persists verification records keyed by (clientKey, capability).
type RecordStore interface {
	Get(ctx context.Context, clientKey, capability string) (Record, bool, error)
	Put(ctx context.Context, clientKey, capability string, record Record) error
	Delete(ctx context.Context, clientKey, capability string) error
}

type Service struct {
	store   RecordStore
	secrets map[string]string
	ttl     time.Duration
	now     func() time.Time
}

// NewService builds the gate. secrets maps capability name to its
// configured secret; a capability whose secret is empty can never be
// granted.
func NewService(store RecordStore, secrets map[string]string, ttl time.Duration) *Service {
	return &Service{
		store:   store,
		secrets: secrets,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Matches reports whether secret is the configured secret for capability.
// This is the direct check mutating operations run on every call; it does
// not touch the cache.
func (s *Service) Matches(capability, secret string) bool {
	configured, ok := s.secrets[capability]
	if !ok || configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(configured)) == 1
}

// Verify checks the submitted secret and, on success, caches a fresh
// verification for the client. A wrong secret returns false with no
// side effects.
func (s *Service) Verify(ctx context.Context, clientKey, capability, secret string) (bool, error) {
	if !s.Matches(capability, secret) {
		return false, nil
	}
	record := Record{VerifiedAt: s.now(), Secret: secret}
	if err := s.store.Put(ctx, clientKey, capability, record); err != nil {
		return false, fmt.Errorf("cache verification: %w", err)
	}
	return true, nil
}

// IsLive reports whether the client holds a live verification. A record is
// live until strictly more than the TTL has passed since verification; an
// expired record is deleted before reporting false.
func (s *Service) IsLive(ctx context.Context, clientKey, capability string) (bool, error) {
	record, ok, err := s.store.Get(ctx, clientKey, capability)
	if err != nil {
		return false, fmt.Errorf("load verification: %w", err)
	}
	if !ok {
		return false, nil
	}
	if s.now().Sub(record.VerifiedAt) > s.ttl {
		if err := s.store.Delete(ctx, clientKey, capability); err != nil {
			return false, fmt.Errorf("drop stale verification: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Refresh restamps a live verification to now, extending the window.
// It reports whether there was a live verification to extend; refreshing
// an expired or absent grant does nothing but clean up.
func (s *Service) Refresh(ctx context.Context, clientKey, capability string) (bool, error) {
	record, ok, err := s.store.Get(ctx, clientKey, capability)
	if err != nil {
		return false, fmt.Errorf("load verification: %w", err)
	}
	if !ok {
		return false, nil
	}
	if s.now().Sub(record.VerifiedAt) > s.ttl {
		if err := s.store.Delete(ctx, clientKey, capability); err != nil {
			return false, fmt.Errorf("drop stale verification: %w", err)
		}
		return false, nil
	}
	record.VerifiedAt = s.now()
	if err := s.store.Put(ctx, clientKey, capability, record); err != nil {
		return false, fmt.Errorf("restamp verification: %w", err)
	}
	return true, nil
}

// Logout drops the cached verification whether or not it is still live.
func (s *Service) Logout(ctx context.Context, clientKey, capability string) error {
	if err := s.store.Delete(ctx, clientKey, capability); err != nil {
		return fmt.Errorf("drop verification: %w", err)
	}
	return nil
}

// CanEdit reports whether the client holds a live edit verification.
func (s *Service) CanEdit(ctx context.Context, clientKey string) (bool, error) {
	return s.IsLive(ctx, clientKey, Edit)
}

// CanPublish reports whether the client holds a live publish verification.
func (s *Service) CanPublish(ctx context.Context, clientKey string) (bool, error) {
	return s.IsLive(ctx, clientKey, Publish)
}

// CachedSecret returns the secret held by a live verification, letting a
// verified client mutate without resending the secret each call.
func (s *Service) CachedSecret(ctx context.Context, clientKey, capability string) (string, bool, error) {
	live, err := s.IsLive(ctx, clientKey, capability)
	if err != nil || !live {
		return "", false, err
	}
	record, ok, err := s.store.Get(ctx, clientKey, capability)
	if err != nil || !ok {
		return "", false, err
	}
	return record.Secret, true, nil
}
