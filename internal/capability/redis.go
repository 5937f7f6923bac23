package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps verification records in Redis so grants survive API
// restarts. Keys carry a server-side expiry slightly past the logical
// window as a backstop; the service still enforces the window itself.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	backstop time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:   client,
		prefix:   "cap:",
		backstop: 2 * ttl,
	}
}

func (s *RedisStore) key(clientKey, capability string) string {
	return s.prefix + clientKey + ":" + capability
}

func (s *RedisStore) Get(ctx context.Context, clientKey, capability string) (Record, bool, error) {
	raw, err := s.client.Get(ctx, s.key(clientKey, capability)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get verification: %w", err)
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Record{}, false, fmt.Errorf("unmarshal verification: %w", err)
	}
	return record, true, nil
}

func (s *RedisStore) Put(ctx context.Context, clientKey, capability string, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	if err := s.client.Set(ctx, s.key(clientKey, capability), raw, s.backstop).Err(); err != nil {
		return fmt.Errorf("put verification: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, clientKey, capability string) error {
	if err := s.client.Del(ctx, s.key(clientKey, capability)).Err(); err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
