package memory

import (
	"context"
	"testing"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/storage"
)

func testIntel(pubkey string, malicious bool) *domain.ProducerIntel {
	return &domain.ProducerIntel{
		Pubkey:      pubkey,
		IsMalicious: malicious,
		MevRate:     0.5,
	}
}

func TestIntelStore_UpsertAndGetByKey(t *testing.T) {
	store := NewIntelStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testIntel("A", false)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByKey(ctx, "A")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.Pubkey != "A" {
		t.Errorf("Expected pubkey A, got %s", got.Pubkey)
	}
}

func TestIntelStore_GetByKey_NotFound(t *testing.T) {
	store := NewIntelStore()

	_, err := store.GetByKey(context.Background(), "missing")
	if err != storage.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIntelStore_CopyInsulation(t *testing.T) {
	store := NewIntelStore()
	ctx := context.Background()

	rec := testIntel("A", false)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Mutating the caller's record must not affect the stored copy.
	rec.IsMalicious = true

	got, _ := store.GetByKey(ctx, "A")
	if got.IsMalicious {
		t.Error("Stored record was mutated through the caller's pointer")
	}
}

func TestIntelStore_GetMalicious_Ordered(t *testing.T) {
	store := NewIntelStore()
	ctx := context.Background()

	if err := store.UpsertBulk(ctx, []*domain.ProducerIntel{
		testIntel("C", true),
		testIntel("A", true),
		testIntel("B", false),
	}); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	malicious, err := store.GetMalicious(ctx)
	if err != nil {
		t.Fatalf("GetMalicious failed: %v", err)
	}
	if len(malicious) != 2 {
		t.Fatalf("Expected 2 malicious, got %d", len(malicious))
	}
	if malicious[0].Pubkey != "A" || malicious[1].Pubkey != "C" {
		t.Errorf("Expected [A C], got [%s %s]", malicious[0].Pubkey, malicious[1].Pubkey)
	}
}

func TestIntelStore_UpsertBulk_InvalidInputLeavesStoreUntouched(t *testing.T) {
	store := NewIntelStore()
	ctx := context.Background()

	err := store.UpsertBulk(ctx, []*domain.ProducerIntel{
		testIntel("A", false),
		{}, // missing pubkey
	})
	if err != storage.ErrInvalidInput {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}

	all, _ := store.LoadAll(ctx)
	if len(all) != 0 {
		t.Errorf("Expected empty store after failed bulk, got %d records", len(all))
	}
}
