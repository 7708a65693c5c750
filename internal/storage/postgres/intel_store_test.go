package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
	"solana-mev-engine/internal/storage/postgres"
)

func testIntel(pubkey string, malicious bool) *domain.ProducerIntel {
	return &domain.ProducerIntel{
		Pubkey:            pubkey,
		IsMalicious:       malicious,
		MevRate:           0.42,
		StakeSol:          150_000,
		CommissionPct:     5,
		ParticipationRate: 0.8,
		AvgTipLamports:    250_000,
		RecentBlocks:      1200,
		SkipRate:          0.02,
		Label:             "test operator",
	}
}

func TestIntelStore_UpsertAndGetByKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewIntelStore(pool)

	rec := testIntel("ProducerAAA", true)
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.GetByKey(ctx, "ProducerAAA")
	require.NoError(t, err)
	assert.Equal(t, rec.Pubkey, got.Pubkey)
	assert.Equal(t, rec.MevRate, got.MevRate)
	assert.True(t, got.IsMalicious)
	assert.Equal(t, rec.Label, got.Label)
}

func TestIntelStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewIntelStore(pool)

	rec := testIntel("ProducerBBB", false)
	require.NoError(t, store.Upsert(ctx, rec))

	rec.IsMalicious = true
	rec.MevRate = 0.9
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.GetByKey(ctx, "ProducerBBB")
	require.NoError(t, err)
	assert.True(t, got.IsMalicious)
	assert.Equal(t, 0.9, got.MevRate)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIntelStore_GetByKey_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewIntelStore(pool)

	_, err := store.GetByKey(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntelStore_GetMalicious(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewIntelStore(pool)

	require.NoError(t, store.UpsertBulk(ctx, []*domain.ProducerIntel{
		testIntel("ProducerC", true),
		testIntel("ProducerA", false),
		testIntel("ProducerB", true),
	}))

	malicious, err := store.GetMalicious(ctx)
	require.NoError(t, err)
	require.Len(t, malicious, 2)
	assert.Equal(t, "ProducerB", malicious[0].Pubkey)
	assert.Equal(t, "ProducerC", malicious[1].Pubkey)
}

func TestIntelStore_Upsert_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewIntelStore(pool)

	assert.ErrorIs(t, store.Upsert(context.Background(), nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Upsert(context.Background(), &domain.ProducerIntel{}), storage.ErrInvalidInput)
}
