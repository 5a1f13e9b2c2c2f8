package decode

import (
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
)

// Personal position state layout of the deployed CLMM program:
// discriminator(8) | bump(1) | nft_mint(32) | pool_id(32) |
// tick_lower(4) | tick_upper(4) | liquidity(u128) | ...
const (
	positionNFTMintOffset   = 9
	PositionPoolIDOffset    = 41
	positionLiquidityOffset = 81
	positionMin             = positionLiquidityOffset + 16
)

// Position is the decoded view of a CLMM personal position account.
type Position struct {
	Address   string
	NFTMint   string
	PoolID    string
	Liquidity *big.Int // u128
}

// DecodePosition reads the pool id and the raw liquidity magnitude from a
// position-state payload. The liquidity field is a little-endian unsigned
// 128-bit integer.
func DecodePosition(address string, data []byte) (*Position, error) {
	if len(data) < positionMin {
		return nil, &DecodeError{Address: address, Reason: fmt.Sprintf("position payload too short: %d bytes", len(data))}
	}

	return &Position{
		Address:   address,
		NFTMint:   base58.Encode(data[positionNFTMintOffset : positionNFTMintOffset+32]),
		PoolID:    base58.Encode(data[PositionPoolIDOffset : PositionPoolIDOffset+32]),
		Liquidity: uint128LE(data[positionLiquidityOffset : positionLiquidityOffset+16]),
	}, nil
}

// uint128LE interprets 16 little-endian bytes as an unsigned big.Int.
func uint128LE(b []byte) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	return new(big.Int).SetBytes(be)
}
