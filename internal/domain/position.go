package domain

import "math/big"

// PositionRecord is a decoded CLMM position paired with the target pool.
// RawLiquidity is an unsigned 128-bit magnitude read from the position
// state; it is an approximate indicator, not an exact token amount.
type PositionRecord struct {
	Address      string   // position state account (PDA)
	PoolID       string   // pool the position belongs to
	NFTMint      string   // mint of the position ownership ticket
	RawLiquidity *big.Int // u128, never negative
}
