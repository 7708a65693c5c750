package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

// IntelStore implements storage.ProducerIntelStore using PostgreSQL.
type IntelStore struct {
	pool *Pool
}

// NewIntelStore creates a new IntelStore.
func NewIntelStore(pool *Pool) *IntelStore {
	return &IntelStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProducerIntelStore = (*IntelStore)(nil)

const upsertIntelQuery = `
	INSERT INTO producer_intel (
		pubkey, is_malicious, mev_rate, stake_sol, commission_pct,
		participation_rate, avg_tip_lamports, recent_blocks, skip_rate, label
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10
	)
	ON CONFLICT (pubkey) DO UPDATE SET
		is_malicious = EXCLUDED.is_malicious,
		mev_rate = EXCLUDED.mev_rate,
		stake_sol = EXCLUDED.stake_sol,
		commission_pct = EXCLUDED.commission_pct,
		participation_rate = EXCLUDED.participation_rate,
		avg_tip_lamports = EXCLUDED.avg_tip_lamports,
		recent_blocks = EXCLUDED.recent_blocks,
		skip_rate = EXCLUDED.skip_rate,
		label = EXCLUDED.label
`

// Upsert inserts or replaces the record for a producer key.
func (s *IntelStore) Upsert(ctx context.Context, p *domain.ProducerIntel) error {
	if p == nil || p.Pubkey == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, upsertIntelQuery,
		p.Pubkey, p.IsMalicious, p.MevRate, p.StakeSol, p.CommissionPct,
		p.ParticipationRate, p.AvgTipLamports, p.RecentBlocks, p.SkipRate, p.Label,
	)
	if err != nil {
		return fmt.Errorf("upsert producer intel: %w", err)
	}
	return nil
}

// UpsertBulk inserts or replaces multiple records atomically.
func (s *IntelStore) UpsertBulk(ctx context.Context, records []*domain.ProducerIntel) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range records {
		if p == nil || p.Pubkey == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, upsertIntelQuery,
			p.Pubkey, p.IsMalicious, p.MevRate, p.StakeSol, p.CommissionPct,
			p.ParticipationRate, p.AvgTipLamports, p.RecentBlocks, p.SkipRate, p.Label,
		)
		if err != nil {
			return fmt.Errorf("upsert producer intel in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const selectIntelColumns = `
	pubkey, is_malicious, mev_rate, stake_sol, commission_pct,
	participation_rate, avg_tip_lamports, recent_blocks, skip_rate, label
`

// GetByKey retrieves intel for a producer pubkey. Returns ErrNotFound if not exists.
func (s *IntelStore) GetByKey(ctx context.Context, pubkey string) (*domain.ProducerIntel, error) {
	query := `SELECT ` + selectIntelColumns + ` FROM producer_intel WHERE pubkey = $1`

	row := s.pool.QueryRow(ctx, query, pubkey)
	p, err := scanIntel(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get producer intel: %w", err)
	}
	return p, nil
}

// GetMalicious retrieves all producers flagged as malicious, ordered by pubkey.
func (s *IntelStore) GetMalicious(ctx context.Context) ([]*domain.ProducerIntel, error) {
	query := `SELECT ` + selectIntelColumns + ` FROM producer_intel WHERE is_malicious ORDER BY pubkey`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query malicious producers: %w", err)
	}
	defer rows.Close()

	return collectIntel(rows)
}

// LoadAll retrieves every record, ordered by pubkey.
func (s *IntelStore) LoadAll(ctx context.Context) ([]*domain.ProducerIntel, error) {
	query := `SELECT ` + selectIntelColumns + ` FROM producer_intel ORDER BY pubkey`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query producer intel: %w", err)
	}
	defer rows.Close()

	return collectIntel(rows)
}

func scanIntel(row pgx.Row) (*domain.ProducerIntel, error) {
	var p domain.ProducerIntel
	err := row.Scan(
		&p.Pubkey, &p.IsMalicious, &p.MevRate, &p.StakeSol, &p.CommissionPct,
		&p.ParticipationRate, &p.AvgTipLamports, &p.RecentBlocks, &p.SkipRate, &p.Label,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectIntel(rows pgx.Rows) ([]*domain.ProducerIntel, error) {
	var result []*domain.ProducerIntel
	for rows.Next() {
		p, err := scanIntel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan producer intel: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate producer intel: %w", err)
	}
	return result, nil
}
