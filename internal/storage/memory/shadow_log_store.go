package memory

import (
	"context"
	"sync"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// ShadowLogStore is an in-memory implementation of storage.ShadowLogStore,
// used in tests and as a fallback sink when no file or ClickHouse target is
// configured.
type ShadowLogStore struct {
	mu   sync.RWMutex
	data []*domain.ShadowPrediction
}

// NewShadowLogStore creates a new in-memory shadow log store.
func NewShadowLogStore() *ShadowLogStore {
	return &ShadowLogStore{}
}

// Compile-time interface check.
var _ storage.ShadowLogStore = (*ShadowLogStore)(nil)

// AppendBatch persists a batch of predictions.
func (s *ShadowLogStore) AppendBatch(_ context.Context, preds []*domain.ShadowPrediction) error {
	if len(preds) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range preds {
		if p == nil {
			return storage.ErrInvalidInput
		}
		copied := *p
		s.data = append(s.data, &copied)
	}
	return nil
}

// All returns a copy of every stored prediction in append order.
func (s *ShadowLogStore) All() []*domain.ShadowPrediction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ShadowPrediction, 0, len(s.data))
	for _, p := range s.data {
		copied := *p
		result = append(result, &copied)
	}
	return result
}

// Len returns the number of stored predictions.
func (s *ShadowLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
