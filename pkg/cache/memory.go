package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryItem stores a cached hash with expiration.
type MemoryItem struct {
	Fields   map[string]string
	ExpireAt time.Time
}

// IsExpired checks if item has expired.
func (m *MemoryItem) IsExpired(now time.Time) bool {
	return !m.ExpireAt.IsZero() && now.After(m.ExpireAt)
}

const memoryCleanupInterval = time.Minute

// MemoryCache implements Service in process, with LRU eviction and
// channel subscribers. Used when Redis is disabled and in tests.
type MemoryCache struct {
	data          map[string]*MemoryItem
	access        map[string]time.Time
	subs          map[string][]chan []byte
	mutex         sync.RWMutex
	maxSize       int
	cleanupTicker *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
	now           func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize: 10000,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:          make(map[string]*MemoryItem),
		access:        make(map[string]time.Time),
		subs:          make(map[string][]chan []byte),
		maxSize:       cfg.MaxSize,
		cleanupTicker: time.NewTicker(memoryCleanupInterval),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Ping(context.Context) error { return nil }

func (mc *MemoryCache) SetHash(_ context.Context, key string, fields map[string]string, ttl time.Duration, announce ...Announcement) error {
	if len(fields) == 0 {
		return nil
	}
	msgs := make([][]byte, len(announce))
	for i, a := range announce {
		data, err := encodePayload(a.Payload)
		if err != nil {
			return err
		}
		msgs[i] = data
	}

	mc.mutex.Lock()
	now := mc.now()
	item, ok := mc.data[key]
	if !ok || item.IsExpired(now) {
		if len(mc.data) >= mc.maxSize {
			mc.evictLRU()
		}
		item = &MemoryItem{Fields: make(map[string]string, len(fields))}
		mc.data[key] = item
	}
	for f, v := range fields {
		item.Fields[f] = v
	}
	if ttl > 0 {
		item.ExpireAt = now.Add(ttl)
	}
	mc.access[key] = now
	mc.mutex.Unlock()

	for i, a := range announce {
		mc.deliver(a.Channel, msgs[i])
	}
	return nil
}

func (mc *MemoryCache) GetHash(_ context.Context, key string) (map[string]string, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, exists := mc.data[key]
	if !exists || item.IsExpired(mc.now()) {
		if exists {
			delete(mc.data, key)
			delete(mc.access, key)
		}
		return nil, ErrCacheMiss
	}
	mc.access[key] = mc.now()

	out := make(map[string]string, len(item.Fields))
	for f, v := range item.Fields {
		out[f] = v
	}
	return out, nil
}

// Subscribe returns a channel receiving every message published to channel.
// Slow subscribers miss messages rather than block publishers.
func (mc *MemoryCache) Subscribe(channel string, buffer int) <-chan []byte {
	ch := make(chan []byte, buffer)
	mc.mutex.Lock()
	mc.subs[channel] = append(mc.subs[channel], ch)
	mc.mutex.Unlock()
	return ch
}

func (mc *MemoryCache) Publish(_ context.Context, channel string, payload interface{}) error {
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	mc.deliver(channel, data)
	return nil
}

func (mc *MemoryCache) deliver(channel string, data []byte) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	for _, ch := range mc.subs[channel] {
		select {
		case ch <- data:
		default:
		}
	}
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	now := mc.now()
	for _, key := range keys {
		if item, ok := mc.data[key]; ok && !item.IsExpired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if item, ok := mc.data[key]; ok {
		item.ExpireAt = mc.now().Add(expiration)
		return true, nil
	}
	return false, nil
}

func (mc *MemoryCache) evictLRU() {
	if len(mc.data) == 0 {
		return
	}

	var oldestKey string
	var oldestTime time.Time

	for key, accessTime := range mc.access {
		if oldestKey == "" || accessTime.Before(oldestTime) {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.cleanupTicker.C:
		}
		mc.mutex.Lock()
		now := mc.now()
		for key, item := range mc.data {
			if item.IsExpired(now) {
				delete(mc.data, key)
				delete(mc.access, key)
			}
		}
		mc.mutex.Unlock()
	}
}

// Close stops the cleanup loop.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.cleanupTicker.Stop()
		close(mc.done)
	})
	return nil
}

var _ Service = (*MemoryCache)(nil)
