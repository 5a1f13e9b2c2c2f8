package decode

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/mr-tron/base58"
)

func positionPayload(t *testing.T, nftMint, poolID string, liquidity *big.Int) []byte {
	t.Helper()
	data := make([]byte, 281)

	nftBytes, err := base58.Decode(nftMint)
	if err != nil {
		t.Fatalf("decode nft mint: %v", err)
	}
	poolBytes, err := base58.Decode(poolID)
	if err != nil {
		t.Fatalf("decode pool id: %v", err)
	}
	copy(data[positionNFTMintOffset:], nftBytes)
	copy(data[PositionPoolIDOffset:], poolBytes)

	liq := liquidity.Bytes() // big-endian
	for i, b := range liq {
		data[positionLiquidityOffset+len(liq)-1-i] = b
	}
	return data
}

const (
	testNFTMint = "So11111111111111111111111111111111111111112"
	testPoolID  = "Vote111111111111111111111111111111111111111"
)

func TestDecodePosition(t *testing.T) {
	liquidity := new(big.Int).SetUint64(987654321)
	data := positionPayload(t, testNFTMint, testPoolID, liquidity)

	pos, err := DecodePosition("pos1", data)
	if err != nil {
		t.Fatalf("DecodePosition: %v", err)
	}

	if pos.NFTMint != testNFTMint {
		t.Errorf("expected nft mint %s, got %s", testNFTMint, pos.NFTMint)
	}
	if pos.PoolID != testPoolID {
		t.Errorf("expected pool id %s, got %s", testPoolID, pos.PoolID)
	}
	if pos.Liquidity.Cmp(liquidity) != 0 {
		t.Errorf("expected liquidity %s, got %s", liquidity, pos.Liquidity)
	}
}

func TestDecodePosition_LiquidityAboveUint64(t *testing.T) {
	// 2^64 + 5 exercises the high half of the u128.
	liquidity := new(big.Int).Lsh(big.NewInt(1), 64)
	liquidity.Add(liquidity, big.NewInt(5))
	data := positionPayload(t, testNFTMint, testPoolID, liquidity)

	pos, err := DecodePosition("pos1", data)
	if err != nil {
		t.Fatalf("DecodePosition: %v", err)
	}
	if pos.Liquidity.Cmp(liquidity) != 0 {
		t.Errorf("expected liquidity %s, got %s", liquidity, pos.Liquidity)
	}
}

func TestDecodePosition_TooShort(t *testing.T) {
	_, err := DecodePosition("pos1", make([]byte, positionMin-1))
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestUint128LE(t *testing.T) {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b, 0xDEADBEEF)

	got := uint128LE(b)
	if got.Uint64() != 0xDEADBEEF {
		t.Errorf("expected 0xDEADBEEF, got %x", got)
	}

	// All-ones is the u128 maximum.
	for i := range b {
		b[i] = 0xFF
	}
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	max.Sub(max, big.NewInt(1))
	if got := uint128LE(b); got.Cmp(max) != 0 {
		t.Errorf("expected 2^128-1, got %s", got)
	}
}
