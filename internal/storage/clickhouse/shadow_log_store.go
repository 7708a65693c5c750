package clickhouse

import (
	"context"
	"fmt"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// ShadowLogStore implements storage.ShadowLogStore using ClickHouse.
// Predictions land in the shadow_predictions MergeTree table for offline
// model comparison queries.
type ShadowLogStore struct {
	conn *Conn
}

// NewShadowLogStore creates a new ShadowLogStore.
func NewShadowLogStore(conn *Conn) *ShadowLogStore {
	return &ShadowLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ShadowLogStore = (*ShadowLogStore)(nil)

// AppendBatch inserts a batch of predictions.
func (s *ShadowLogStore) AppendBatch(ctx context.Context, preds []*domain.ShadowPrediction) error {
	if len(preds) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO shadow_predictions (
			request_id, timestamp_ms, signature, model_version,
			shadow_risk_score, shadow_is_mev, latency_us,
			production_risk_score, production_is_mev, features, error
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range preds {
		if p == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			p.RequestID, uint64(p.TimestampMs), p.Signature, p.ModelVersion,
			p.ShadowRiskScore, boolToUInt8(p.ShadowIsMev), p.LatencyUs,
			p.ProductionRiskScore, boolPtrToUInt8(p.ProductionIsMev), p.Features, p.Error,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CountByModelVersion returns the number of stored predictions per model
// version, for replay and coverage checks.
func (s *ShadowLogStore) CountByModelVersion(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT model_version, count() FROM shadow_predictions GROUP BY model_version
	`)
	if err != nil {
		return nil, fmt.Errorf("query shadow counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var version string
		var count uint64
		if err := rows.Scan(&version, &count); err != nil {
			return nil, fmt.Errorf("scan shadow count: %w", err)
		}
		counts[version] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shadow counts: %w", err)
	}
	return counts, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func boolPtrToUInt8(b *bool) *uint8 {
	if b == nil {
		return nil
	}
	v := boolToUInt8(*b)
	return &v
}
