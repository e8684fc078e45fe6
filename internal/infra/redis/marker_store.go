package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// MarkerStore persists the already-submitted flags in Redis so they
// survive restarts and reloads. Markers carry no TTL: the whole point of
// the flag is to outlive the session.
//
// This remains a best-effort barrier, same as the original client-side
// storage: a respondent presenting a fresh client key starts clean.
type MarkerStore struct {
	client *redis.Client
}

func NewMarkerStore(client *redis.Client) *MarkerStore {
	return &MarkerStore{client: client}
}

func (s *MarkerStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MarkerStore) Set(ctx context.Context, key string) error {
	return s.client.Set(ctx, s.key(key), "1", 0).Err()
}

func (s *MarkerStore) key(key string) string {
	return "quiz:submitted:" + key
}
