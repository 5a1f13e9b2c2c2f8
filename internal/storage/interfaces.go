package storage

import (
	"context"

	"clmm-eligibility/internal/domain"
)

// WalletStore provides access to wallet_records storage.
type WalletStore interface {
	// Upsert inserts or replaces the record for its address.
	Upsert(ctx context.Context, r *domain.WalletRecord) error

	// GetByAddress retrieves a record. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.WalletRecord, error)

	// List retrieves all records, ordered by address.
	List(ctx context.Context) ([]*domain.WalletRecord, error)

	// ListCheckedBefore retrieves records whose last scan is older than
	// cutoff (Unix ms), ordered by address. Used by the recheck job.
	ListCheckedBefore(ctx context.Context, cutoff int64) ([]*domain.WalletRecord, error)
}

// ScanHistoryStore provides append-only access to scan_history storage.
type ScanHistoryStore interface {
	// Insert appends one scan snapshot.
	Insert(ctx context.Context, s *domain.ScanSnapshot) error

	// GetByWallet retrieves all snapshots for a wallet, ordered by
	// checked_at ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.ScanSnapshot, error)
}
