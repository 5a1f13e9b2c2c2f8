package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/storage"
)

func testRecord(address string, checkedAt int64) *domain.WalletRecord {
	return &domain.WalletRecord{
		Address:        address,
		Eligible:       true,
		TokenBalance:   decimal.NewFromInt(100),
		TotalLiquidity: decimal.NewFromInt(5),
		PositionCount:  1,
		Reasons:        []string{"token balance 100 >= 50"},
		CheckedAt:      checkedAt,
		UpdatedAt:      checkedAt,
	}
}

func TestWalletStore_UpsertAndGet(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	r := testRecord("wallet1", 1704067200000)
	if err := store.Upsert(ctx, r); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "wallet1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}

	if got.Address != r.Address {
		t.Errorf("Address mismatch: got %s, want %s", got.Address, r.Address)
	}
	if !got.TokenBalance.Equal(r.TokenBalance) {
		t.Errorf("TokenBalance mismatch: got %s, want %s", got.TokenBalance, r.TokenBalance)
	}
	if len(got.Reasons) != 1 {
		t.Errorf("Reasons mismatch: got %v", got.Reasons)
	}
}

func TestWalletStore_UpsertReplaces(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testRecord("wallet1", 1000)); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	updated := testRecord("wallet1", 2000)
	updated.Eligible = false
	updated.Reasons = nil
	if err := store.Upsert(ctx, updated); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "wallet1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.Eligible {
		t.Error("expected the replaced record")
	}
	if got.CheckedAt != 2000 {
		t.Errorf("expected CheckedAt 2000, got %d", got.CheckedAt)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 record after upsert, got %d", len(all))
	}
}

func TestWalletStore_NotFound(t *testing.T) {
	store := NewWalletStore()

	_, err := store.GetByAddress(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWalletStore_InvalidInput(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.WalletRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty address, got %v", err)
	}
}

func TestWalletStore_ListOrderedByAddress(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	for _, addr := range []string{"charlie", "alpha", "bravo"} {
		if err := store.Upsert(ctx, testRecord(addr, 1000)); err != nil {
			t.Fatalf("Upsert %s failed: %v", addr, err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	want := []string{"alpha", "bravo", "charlie"}
	for i, r := range all {
		if r.Address != want[i] {
			t.Errorf("position %d: got %s, want %s", i, r.Address, want[i])
		}
	}
}

func TestWalletStore_ListCheckedBefore(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	store.Upsert(ctx, testRecord("stale1", 1000))
	store.Upsert(ctx, testRecord("stale2", 1500))
	store.Upsert(ctx, testRecord("fresh", 3000))

	due, err := store.ListCheckedBefore(ctx, 2000)
	if err != nil {
		t.Fatalf("ListCheckedBefore failed: %v", err)
	}

	if len(due) != 2 {
		t.Fatalf("expected 2 stale records, got %d", len(due))
	}
	for _, r := range due {
		if r.CheckedAt >= 2000 {
			t.Errorf("record %s is not stale: %d", r.Address, r.CheckedAt)
		}
	}
}

func TestWalletStore_CopiesOnReadAndWrite(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	r := testRecord("wallet1", 1000)
	store.Upsert(ctx, r)

	// Mutating the inserted record must not leak into the store.
	r.Eligible = false
	r.Reasons[0] = "mutated"

	got, err := store.GetByAddress(ctx, "wallet1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if !got.Eligible {
		t.Error("stored record was mutated through the inserted pointer")
	}
	if got.Reasons[0] == "mutated" {
		t.Error("stored reasons were mutated through the inserted slice")
	}

	// And mutating a returned record must not either.
	got.Reasons[0] = "mutated again"
	again, _ := store.GetByAddress(ctx, "wallet1")
	if again.Reasons[0] == "mutated again" {
		t.Error("stored reasons were mutated through the returned slice")
	}
}
