package storage

import (
	"context"

	"solana-mev-engine/internal/domain"
)

// ProducerIntelStore provides access to producer intelligence records.
type ProducerIntelStore interface {
	// Upsert inserts or replaces the record for a producer key.
	Upsert(ctx context.Context, p *domain.ProducerIntel) error

	// UpsertBulk inserts or replaces multiple records atomically.
	UpsertBulk(ctx context.Context, records []*domain.ProducerIntel) error

	// GetByKey retrieves intel for a producer pubkey. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, pubkey string) (*domain.ProducerIntel, error)

	// GetMalicious retrieves all producers flagged as malicious.
	GetMalicious(ctx context.Context) ([]*domain.ProducerIntel, error)

	// LoadAll retrieves every record, for warming in-process lookup tables.
	LoadAll(ctx context.Context) ([]*domain.ProducerIntel, error)
}

// ShadowLogStore is an append-only sink for shadow prediction records.
type ShadowLogStore interface {
	// AppendBatch persists a batch of predictions. Records are immutable
	// once written.
	AppendBatch(ctx context.Context, preds []*domain.ShadowPrediction) error
}
