package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Announcement is a pub/sub message sent together with a hash write.
type Announcement struct {
	Channel string
	Payload interface{}
}

// Service defines cache operations interface.
type Service interface {
	// SetHash replaces fields of the hash at key, refreshes its TTL and sends
	// the announcements, all in one transaction.
	SetHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration, announce ...Announcement) error
	GetHash(ctx context.Context, key string) (map[string]string, error)
	Publish(ctx context.Context, channel string, payload interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	Ping(ctx context.Context) error
}

func encodePayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
