package jibit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "multipay:jibit:token:"

// TokenStore keeps access tokens between driver instances. Get never returns
// an expired token. Delete removes key only while it still holds token, so a
// rejected token never evicts a fresh one stored by another instance.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key, token string) error
}

type tokenEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryTokenStore is a process local TokenStore
type MemoryTokenStore struct {
	entries map[string]tokenEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryTokenStore creates an empty in-memory store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		entries: make(map[string]tokenEntry),
		now:     time.Now,
	}
}

// Get returns the token for key when present and not expired
func (s *MemoryTokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return "", false, nil
	}

	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && current == entry {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}

	return entry.token, true, nil
}

// Set stores token for key until ttl elapses
func (s *MemoryTokenStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid token ttl %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = tokenEntry{token: token, expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete drops key when it still maps to token
func (s *MemoryTokenStore) Delete(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok && entry.token == token {
		delete(s.entries, key)
	}
	return nil
}

// Cleanup removes expired entries
func (s *MemoryTokenStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RedisTokenStore shares tokens between processes. Redis expires the keys.
type RedisTokenStore struct {
	client redis.Cmdable
}

// NewRedisTokenStore creates a store backed by client
func NewRedisTokenStore(client redis.Cmdable) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// Get returns the token for key when Redis still holds it
func (s *RedisTokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	token, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token from redis: %w", err)
	}
	return token, true, nil
}

// Set stores token for key with a Redis expiry
func (s *RedisTokenStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid token ttl %s", ttl)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write token to redis: %w", err)
	}
	return nil
}

// deleteIfEqual removes KEYS[1] only when its value is ARGV[1]
var deleteIfEqual = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Delete drops key when Redis still holds token for it
func (s *RedisTokenStore) Delete(ctx context.Context, key, token string) error {
	if err := deleteIfEqual.Run(ctx, s.client, []string{redisKeyPrefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

// defaultStore is shared by every Jibit driver in the process. A token Jibit
// rejects is deleted and replaced in Client.authorized.
var (
	storeMu      sync.RWMutex
	defaultStore TokenStore = NewMemoryTokenStore()
)

// UseTokenStore replaces the store shared by all Jibit drivers
func UseTokenStore(store TokenStore) {
	storeMu.Lock()
	defer storeMu.Unlock()
	defaultStore = store
}

func currentTokenStore() TokenStore {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return defaultStore
}
