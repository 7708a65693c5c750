package memory

import (
	"context"
	"sort"
	"sync"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// IntelStore is an in-memory implementation of storage.ProducerIntelStore.
type IntelStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ProducerIntel // keyed by pubkey
}

// NewIntelStore creates a new in-memory producer intel store.
func NewIntelStore() *IntelStore {
	return &IntelStore{
		data: make(map[string]*domain.ProducerIntel),
	}
}

// Compile-time interface check.
var _ storage.ProducerIntelStore = (*IntelStore)(nil)

// Upsert inserts or replaces the record for a producer key.
func (s *IntelStore) Upsert(_ context.Context, p *domain.ProducerIntel) error {
	if p == nil || p.Pubkey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *p
	s.data[p.Pubkey] = &copied
	return nil
}

// UpsertBulk inserts or replaces multiple records atomically.
func (s *IntelStore) UpsertBulk(_ context.Context, records []*domain.ProducerIntel) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before any write so the batch is all-or-nothing.
	for _, p := range records {
		if p == nil || p.Pubkey == "" {
			return storage.ErrInvalidInput
		}
	}

	for _, p := range records {
		copied := *p
		s.data[p.Pubkey] = &copied
	}
	return nil
}

// GetByKey retrieves intel for a producer pubkey. Returns ErrNotFound if not exists.
func (s *IntelStore) GetByKey(_ context.Context, pubkey string) (*domain.ProducerIntel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[pubkey]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copied := *p
	return &copied, nil
}

// GetMalicious retrieves all producers flagged as malicious, ordered by pubkey.
func (s *IntelStore) GetMalicious(_ context.Context) ([]*domain.ProducerIntel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ProducerIntel
	for _, p := range s.data {
		if p.IsMalicious {
			copied := *p
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Pubkey < result[j].Pubkey
	})
	return result, nil
}

// LoadAll retrieves every record, ordered by pubkey.
func (s *IntelStore) LoadAll(_ context.Context) ([]*domain.ProducerIntel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ProducerIntel, 0, len(s.data))
	for _, p := range s.data {
		copied := *p
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Pubkey < result[j].Pubkey
	})
	return result, nil
}
