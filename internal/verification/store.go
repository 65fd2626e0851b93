// Package verification issues and checks one-time phone verification codes.
package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeNotFound is returned when no live code exists for a phone number.
var ErrCodeNotFound = errors.New("verification code not found")

// CodeStore keeps pending codes with a time-to-live.
type CodeStore interface {
	Save(ctx context.Context, phone, code string, ttl time.Duration) error
	Load(ctx context.Context, phone string) (string, error)
	Delete(ctx context.Context, phone string) error
}

// RedisStore keeps codes in Redis under a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gym:verification"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(phone string) string {
	return fmt.Sprintf("%s:%s", s.prefix, phone)
}

// Save implements CodeStore.
func (s *RedisStore) Save(ctx context.Context, phone, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(phone), code, ttl).Err()
}

// Load implements CodeStore.
func (s *RedisStore) Load(ctx context.Context, phone string) (string, error) {
	code, err := s.client.Get(ctx, s.key(phone)).Result()
	if err == redis.Nil {
		return "", ErrCodeNotFound
	}
	return code, err
}

// Delete implements CodeStore.
func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, s.key(phone)).Err()
}

type memoryCode struct {
	code      string
	expiresAt time.Time
}

// MemoryStore keeps codes in process memory. Expired codes are dropped lazily.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
	now   func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]memoryCode), now: time.Now}
}

// Save implements CodeStore.
func (s *MemoryStore) Save(_ context.Context, phone, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = memoryCode{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

// Load implements CodeStore.
func (s *MemoryStore) Load(_ context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[phone]
	if !ok {
		return "", ErrCodeNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.codes, phone)
		return "", ErrCodeNotFound
	}
	return entry.code, nil
}

// Delete implements CodeStore.
func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}
