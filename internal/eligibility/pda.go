package eligibility

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Seed strings of the CLMM position PDAs. Both are derived per candidate
// mint; which one exists on-chain depends on the program version that
// opened the position, so existence is always verified by a fetch.
const (
	positionSeed         = "position"
	personalPositionSeed = "personal_position"
)

// deriveAddress derives a Program Derived Address: seeds plus a bump byte
// and the "ProgramDerivedAddress" marker are hashed until the result
// falls off the ed25519 curve. Returns "" if no bump works (practically
// unreachable).
func deriveAddress(seeds [][]byte, programID []byte) string {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}
	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// positionAddresses returns the candidate position PDAs for mint under
// the CLMM program, in derivation order.
func positionAddresses(mint, program string) ([]string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	programBytes, err := base58.Decode(program)
	if err != nil {
		return nil, fmt.Errorf("decode program id %s: %w", program, err)
	}

	addrs := make([]string, 0, 2)
	for _, seed := range []string{positionSeed, personalPositionSeed} {
		if addr := deriveAddress([][]byte{[]byte(seed), mintBytes}, programBytes); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}
