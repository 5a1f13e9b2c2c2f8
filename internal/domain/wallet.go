package domain

import "github.com/shopspring/decimal"

// WalletRecord is the persisted eligibility state of a wallet.
// Corresponds to the wallet_records table in PostgreSQL.
type WalletRecord struct {
	Address        string // PRIMARY KEY
	Eligible       bool
	TokenBalance   decimal.Decimal
	TotalLiquidity decimal.Decimal
	PositionCount  int
	Reasons        []string
	CheckedAt      int64 // last successful scan, Unix ms
	UpdatedAt      int64 // record update timestamp, Unix ms
}

// ScanSnapshot is one historical scan observation of a wallet.
// Corresponds to the scan_history table in ClickHouse.
type ScanSnapshot struct {
	Wallet         string
	TokenBalance   decimal.Decimal
	TotalLiquidity decimal.Decimal
	PositionCount  int
	Eligible       bool
	CheckedAt      int64 // Unix ms
}
