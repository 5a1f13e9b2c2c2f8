package decode

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/mr-tron/base58"

	"clmm-eligibility/internal/solana"
)

func rawTokenAccount(t *testing.T, mint, owner string, amount uint64) []byte {
	t.Helper()
	data := make([]byte, 165)
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	ownerBytes, err := base58.Decode(owner)
	if err != nil {
		t.Fatalf("decode owner: %v", err)
	}
	copy(data[tokenMintOffset:], mintBytes)
	copy(data[tokenOwnerOffset:], ownerBytes)
	binary.LittleEndian.PutUint64(data[tokenAmountOffset:], amount)
	return data
}

const (
	testMint  = "So11111111111111111111111111111111111111112"
	testOwner = "Vote111111111111111111111111111111111111111"
)

func TestDecodeTokenAccount_ParsedForm(t *testing.T) {
	parsed := json.RawMessage(`{
		"type": "account",
		"info": {
			"mint": "mint1",
			"owner": "owner1",
			"tokenAmount": {"amount": "42000000", "decimals": 6}
		}
	}`)

	ta, err := DecodeTokenAccount("acc1", &solana.Account{Parsed: parsed})
	if err != nil {
		t.Fatalf("DecodeTokenAccount: %v", err)
	}

	if ta.Mint != "mint1" {
		t.Errorf("expected mint1, got %s", ta.Mint)
	}
	if ta.Amount != 42000000 {
		t.Errorf("expected amount 42000000, got %d", ta.Amount)
	}
	if ta.Decimals != 6 || !ta.DecimalsKnown {
		t.Errorf("expected known decimals 6, got %d known=%v", ta.Decimals, ta.DecimalsKnown)
	}
}

func TestDecodeTokenAccount_RawForm(t *testing.T) {
	data := rawTokenAccount(t, testMint, testOwner, 123456789)

	ta, err := DecodeTokenAccount("acc1", &solana.Account{Data: data})
	if err != nil {
		t.Fatalf("DecodeTokenAccount: %v", err)
	}

	if ta.Mint != testMint {
		t.Errorf("expected mint %s, got %s", testMint, ta.Mint)
	}
	if ta.Owner != testOwner {
		t.Errorf("expected owner %s, got %s", testOwner, ta.Owner)
	}
	if ta.Amount != 123456789 {
		t.Errorf("expected amount 123456789, got %d", ta.Amount)
	}
	if ta.DecimalsKnown {
		t.Error("raw layout does not carry decimals")
	}
}

func TestDecodeTokenAccount_MalformedParsedFallsBackToRaw(t *testing.T) {
	data := rawTokenAccount(t, testMint, testOwner, 7)

	// Parsed form lacking mint is malformed, not fatal.
	ta, err := DecodeTokenAccount("acc1", &solana.Account{
		Parsed: json.RawMessage(`{"type":"account","info":{}}`),
		Data:   data,
	})
	if err != nil {
		t.Fatalf("DecodeTokenAccount: %v", err)
	}
	if ta.Amount != 7 {
		t.Errorf("expected raw-decoded amount 7, got %d", ta.Amount)
	}
}

func TestDecodeTokenAccount_TooShort(t *testing.T) {
	_, err := DecodeTokenAccount("acc1", &solana.Account{Data: make([]byte, tokenAccountMin-1)})
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeTokenAccount_NilAccount(t *testing.T) {
	_, err := DecodeTokenAccount("acc1", nil)
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeTokenAccount_BadAmountString(t *testing.T) {
	parsed := json.RawMessage(`{
		"type": "account",
		"info": {
			"mint": "mint1",
			"owner": "owner1",
			"tokenAmount": {"amount": "not-a-number", "decimals": 6}
		}
	}`)

	_, err := DecodeTokenAccount("acc1", &solana.Account{Parsed: parsed})
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}
