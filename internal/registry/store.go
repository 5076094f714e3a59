// internal/registry/store.go
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/whaleshi/b/internal/dex/model"
)

// MetadataStore keeps resolved metadata for the lifetime of a session.
type MetadataStore interface {
	Get(ctx context.Context, token common.Address) (model.TokenMetadata, bool, error)
	Put(ctx context.Context, token common.Address, md model.TokenMetadata) error
}

// MemoryStore is the in-process MetadataStore.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[common.Address]model.TokenMetadata
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[common.Address]model.TokenMetadata)}
}

func (s *MemoryStore) Get(_ context.Context, token common.Address) (model.TokenMetadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.items[token]
	return md, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, token common.Address, md model.TokenMetadata) error {
	s.mu.Lock()
	s.items[token] = md
	s.mu.Unlock()
	return nil
}

// Len returns the number of resolved addresses.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Redis key layout
const (
	metadataPrefix = "launchpad:metadata"
	// cleanup horizon for abandoned sessions; every read pushes it forward,
	// so a live session never re-fetches what it already resolved
	sessionTTL = 7 * 24 * time.Hour
)

// RedisStore shares resolved metadata between processes of one session.
type RedisStore struct {
	rdb     *redis.Client
	session string
}

// NewRedisStore scopes keys to session; an empty session gets a fresh uuid.
func NewRedisStore(rdb *redis.Client, session string) *RedisStore {
	if session == "" {
		session = uuid.New().String()
	}
	return &RedisStore{rdb: rdb, session: session}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Session returns the key scope.
func (s *RedisStore) Session() string { return s.session }

// metadataKey builds launchpad:metadata:<session>:<lowercase address>.
func metadataKey(session string, token common.Address) string {
	return fmt.Sprintf("%s:%s:%s", metadataPrefix, session, strings.ToLower(token.Hex()))
}

func (s *RedisStore) Get(ctx context.Context, token common.Address) (model.TokenMetadata, bool, error) {
	raw, err := s.rdb.GetEx(ctx, metadataKey(s.session, token), sessionTTL).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return model.TokenMetadata{}, false, nil
	case err != nil:
		return model.TokenMetadata{}, false, fmt.Errorf("redis get error: %w", err)
	}
	var md model.TokenMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return model.TokenMetadata{}, false, fmt.Errorf("decode metadata: %w", err)
	}
	return md, true, nil
}

func (s *RedisStore) Put(ctx context.Context, token common.Address, md model.TokenMetadata) error {
	raw, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return s.rdb.Set(ctx, metadataKey(s.session, token), raw, sessionTTL).Err()
}
