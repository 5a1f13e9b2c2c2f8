package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/storage"
)

// ScanHistoryStore implements storage.ScanHistoryStore using ClickHouse.
// Rows are append-only observations; the MergeTree does not deduplicate.
type ScanHistoryStore struct {
	conn *Conn
}

// NewScanHistoryStore creates a new ScanHistoryStore.
func NewScanHistoryStore(conn *Conn) *ScanHistoryStore {
	return &ScanHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScanHistoryStore = (*ScanHistoryStore)(nil)

// Insert appends one scan snapshot.
func (s *ScanHistoryStore) Insert(ctx context.Context, snap *domain.ScanSnapshot) error {
	if snap == nil || snap.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO scan_history (
			wallet, token_balance, total_liquidity, position_count, eligible, checked_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		snap.Wallet,
		snap.TokenBalance.String(),
		snap.TotalLiquidity.String(),
		uint32(snap.PositionCount),
		snap.Eligible,
		uint64(snap.CheckedAt),
	)
	if err != nil {
		return fmt.Errorf("insert scan snapshot: %w", err)
	}
	return nil
}

// GetByWallet retrieves all snapshots for a wallet, ordered by
// checked_at ASC.
func (s *ScanHistoryStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.ScanSnapshot, error) {
	query := `
		SELECT wallet, token_balance, total_liquidity, position_count, eligible, checked_at
		FROM scan_history
		WHERE wallet = ?
		ORDER BY checked_at ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query scan history: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows driver.Rows) ([]*domain.ScanSnapshot, error) {
	var snaps []*domain.ScanSnapshot

	for rows.Next() {
		var s domain.ScanSnapshot
		var balance, liquidity string
		var positionCount uint32
		var checkedAt uint64

		err := rows.Scan(&s.Wallet, &balance, &liquidity, &positionCount, &s.Eligible, &checkedAt)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		if s.TokenBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse token_balance %q: %w", balance, err)
		}
		if s.TotalLiquidity, err = decimal.NewFromString(liquidity); err != nil {
			return nil, fmt.Errorf("parse total_liquidity %q: %w", liquidity, err)
		}
		s.PositionCount = int(positionCount)
		s.CheckedAt = int64(checkedAt)
		snaps = append(snaps, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan history rows: %w", err)
	}
	return snaps, nil
}
