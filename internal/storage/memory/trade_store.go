package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/whaleshi/b/internal/storage"
)

// TradeStore is an in-memory storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	data   map[string]*storage.TradeRecord // keyed by id
	byHash map[string]string               // tx hash -> id
}

var _ storage.TradeStore = (*TradeStore)(nil)

func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:   make(map[string]*storage.TradeRecord),
		byHash: make(map[string]string),
	}
}

// Insert adds a record. Returns ErrDuplicateKey if the id or tx hash exists.
func (s *TradeStore) Insert(_ context.Context, r *storage.TradeRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	hash := strings.ToLower(r.TxHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if hash != "" {
		if _, exists := s.byHash[hash]; exists {
			return storage.ErrDuplicateKey
		}
		s.byHash[hash] = r.ID
	}
	s.data[r.ID] = r.Clone()
	return nil
}

func (s *TradeStore) Get(_ context.Context, id string) (*storage.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *TradeStore) ListByWallet(_ context.Context, wallet string, limit int) ([]*storage.TradeRecord, error) {
	return s.list(limit, func(r *storage.TradeRecord) bool {
		return strings.EqualFold(r.Wallet, wallet)
	}), nil
}

func (s *TradeStore) Recent(_ context.Context, limit int) ([]*storage.TradeRecord, error) {
	return s.list(limit, nil), nil
}

func (s *TradeStore) list(limit int, keep func(*storage.TradeRecord) bool) []*storage.TradeRecord {
	s.mu.RLock()
	out := make([]*storage.TradeRecord, 0, len(s.data))
	for _, r := range s.data {
		if keep == nil || keep(r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	// newest first, id breaks ties
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of records.
func (s *TradeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
