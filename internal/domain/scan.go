package domain

import "github.com/shopspring/decimal"

// ScanResult is the outcome of one on-chain scan of a wallet.
// It is constructed once per scan invocation and never mutated after.
type ScanResult struct {
	Wallet         string
	TokenBalance   decimal.Decimal  // balance of the target mint, in UI units
	Positions      []PositionRecord // ordered by candidate derivation order
	TotalLiquidity decimal.Decimal  // sum of raw liquidity, scaled by 1e-9
	CheckedAt      int64            // Unix timestamp in milliseconds
}

// EligibilityStatus is the criteria evaluation of a ScanResult.
type EligibilityStatus struct {
	Eligible bool
	Reasons  []string
}
