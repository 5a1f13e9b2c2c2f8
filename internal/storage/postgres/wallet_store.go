package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
// Balance and liquidity columns are stored as text to keep the decimal
// values exact across the round trip.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Upsert inserts or replaces the record for its address.
func (s *WalletStore) Upsert(ctx context.Context, r *domain.WalletRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallet_records (
			address, eligible, token_balance, total_liquidity, position_count, reasons, checked_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			eligible = EXCLUDED.eligible,
			token_balance = EXCLUDED.token_balance,
			total_liquidity = EXCLUDED.total_liquidity,
			position_count = EXCLUDED.position_count,
			reasons = EXCLUDED.reasons,
			checked_at = EXCLUDED.checked_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		r.Address,
		r.Eligible,
		r.TokenBalance.String(),
		r.TotalLiquidity.String(),
		r.PositionCount,
		r.Reasons,
		r.CheckedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet record: %w", err)
	}
	return nil
}

// GetByAddress retrieves a record. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(ctx context.Context, address string) (*domain.WalletRecord, error) {
	query := `
		SELECT address, eligible, token_balance, total_liquidity, position_count, reasons, checked_at, updated_at
		FROM wallet_records
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	r, err := scanWalletRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet record: %w", err)
	}
	return r, nil
}

// List retrieves all records, ordered by address.
func (s *WalletStore) List(ctx context.Context) ([]*domain.WalletRecord, error) {
	query := `
		SELECT address, eligible, token_balance, total_liquidity, position_count, reasons, checked_at, updated_at
		FROM wallet_records
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallet records: %w", err)
	}
	defer rows.Close()

	return scanWalletRecords(rows)
}

// ListCheckedBefore retrieves records last scanned before cutoff.
func (s *WalletStore) ListCheckedBefore(ctx context.Context, cutoff int64) ([]*domain.WalletRecord, error) {
	query := `
		SELECT address, eligible, token_balance, total_liquidity, position_count, reasons, checked_at, updated_at
		FROM wallet_records
		WHERE checked_at < $1
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list due wallet records: %w", err)
	}
	defer rows.Close()

	return scanWalletRecords(rows)
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWalletRecord(row rowScanner) (*domain.WalletRecord, error) {
	var r domain.WalletRecord
	var balance, liquidity string

	err := row.Scan(
		&r.Address, &r.Eligible, &balance, &liquidity,
		&r.PositionCount, &r.Reasons, &r.CheckedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.TokenBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse token_balance %q: %w", balance, err)
	}
	if r.TotalLiquidity, err = decimal.NewFromString(liquidity); err != nil {
		return nil, fmt.Errorf("parse total_liquidity %q: %w", liquidity, err)
	}
	return &r, nil
}

func scanWalletRecords(rows pgx.Rows) ([]*domain.WalletRecord, error) {
	var records []*domain.WalletRecord

	for rows.Next() {
		r, err := scanWalletRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet record rows: %w", err)
	}
	return records, nil
}
