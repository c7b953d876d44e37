package dismissal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps each slot as one JSON-encoded list under a namespaced key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gympro"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(slot string) string {
	return s.prefix + ":dismissals:" + slot
}

func (s *RedisStore) Load(ctx context.Context, slot string) ([]string, error) {
	data, err := s.client.Get(ctx, s.key(slot)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		// Corrupt slot: start over rather than wedge the tracker.
		return nil, nil
	}
	return keys, nil
}

func (s *RedisStore) Save(ctx context.Context, slot string, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	// Slot TTL is a backstop; Cleanup prunes individual keys well before this.
	return s.client.Set(ctx, s.key(slot), data, 60*24*time.Hour).Err()
}
