package decode

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"

	"clmm-eligibility/internal/solana"
)

// SPL token account layout: mint(32) | owner(32) | amount(8) | ...
const (
	tokenMintOffset   = 0
	tokenOwnerOffset  = 32
	tokenAmountOffset = 64
	tokenAccountMin   = tokenAmountOffset + 8
)

// TokenAccount is the decoded view of an SPL token account. Decimals are
// only known from the jsonParsed form; the raw layout does not carry them
// and they must be resolved from the mint (see DecimalsResolver).
type TokenAccount struct {
	Address       string
	Mint          string
	Owner         string
	Amount        uint64
	Decimals      uint8
	DecimalsKnown bool
}

// parsedTokenAccount is the provider's jsonParsed form.
type parsedTokenAccount struct {
	Type string `json:"type"`
	Info struct {
		Mint        string `json:"mint"`
		Owner       string `json:"owner"`
		TokenAmount struct {
			Amount   string `json:"amount"`
			Decimals uint8  `json:"decimals"`
		} `json:"tokenAmount"`
	} `json:"info"`
}

// DecodeTokenAccount decodes acc into a TokenAccount. The structured
// form is read when present; otherwise the fixed binary layout is decoded
// directly.
func DecodeTokenAccount(address string, acc *solana.Account) (*TokenAccount, error) {
	if acc == nil {
		return nil, &DecodeError{Address: address, Reason: "nil account"}
	}

	if len(acc.Parsed) > 0 {
		ta, err := decodeParsedTokenAccount(address, acc.Parsed)
		if err == nil {
			return ta, nil
		}
		// Malformed structured form: fall through to raw bytes.
	}

	return decodeRawTokenAccount(address, acc.Data)
}

func decodeParsedTokenAccount(address string, parsed json.RawMessage) (*TokenAccount, error) {
	var p parsedTokenAccount
	if err := json.Unmarshal(parsed, &p); err != nil {
		return nil, &DecodeError{Address: address, Reason: fmt.Sprintf("unmarshal parsed form: %v", err)}
	}
	if p.Info.Mint == "" {
		return nil, &DecodeError{Address: address, Reason: "parsed form missing mint"}
	}

	amount, err := strconv.ParseUint(p.Info.TokenAmount.Amount, 10, 64)
	if err != nil {
		return nil, &DecodeError{Address: address, Reason: fmt.Sprintf("parse amount %q: %v", p.Info.TokenAmount.Amount, err)}
	}

	return &TokenAccount{
		Address:       address,
		Mint:          p.Info.Mint,
		Owner:         p.Info.Owner,
		Amount:        amount,
		Decimals:      p.Info.TokenAmount.Decimals,
		DecimalsKnown: true,
	}, nil
}

func decodeRawTokenAccount(address string, data []byte) (*TokenAccount, error) {
	if len(data) < tokenAccountMin {
		return nil, &DecodeError{Address: address, Reason: fmt.Sprintf("token payload too short: %d bytes", len(data))}
	}

	return &TokenAccount{
		Address: address,
		Mint:    base58.Encode(data[tokenMintOffset : tokenMintOffset+32]),
		Owner:   base58.Encode(data[tokenOwnerOffset : tokenOwnerOffset+32]),
		Amount:  binary.LittleEndian.Uint64(data[tokenAmountOffset:]),
	}, nil
}
