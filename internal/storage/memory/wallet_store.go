package memory

import (
	"context"
	"sort"
	"sync"

	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletRecord // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[string]*domain.WalletRecord),
	}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Upsert inserts or replaces the record for its address.
func (s *WalletStore) Upsert(_ context.Context, r *domain.WalletRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	recordCopy := *r
	recordCopy.Reasons = append([]string(nil), r.Reasons...)
	s.data[r.Address] = &recordCopy
	return nil
}

// GetByAddress retrieves a record. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(_ context.Context, address string) (*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	recordCopy.Reasons = append([]string(nil), r.Reasons...)
	return &recordCopy, nil
}

// List retrieves all records, ordered by address.
func (s *WalletStore) List(_ context.Context) ([]*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(*domain.WalletRecord) bool { return true }), nil
}

// ListCheckedBefore retrieves records last scanned before cutoff.
func (s *WalletStore) ListCheckedBefore(_ context.Context, cutoff int64) ([]*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(r *domain.WalletRecord) bool { return r.CheckedAt < cutoff }), nil
}

// collect copies matching records sorted by address. Caller holds s.mu.
func (s *WalletStore) collect(match func(*domain.WalletRecord) bool) []*domain.WalletRecord {
	var result []*domain.WalletRecord
	for _, r := range s.data {
		if !match(r) {
			continue
		}
		recordCopy := *r
		recordCopy.Reasons = append([]string(nil), r.Reasons...)
		result = append(result, &recordCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result
}
