// Package decode parses raw and provider-pre-parsed account payloads into
// balances and liquidity values. Structured decode is attempted first and
// the fixed binary layout is the documented fallback path, not an
// exception handler.
package decode

import (
	"errors"
	"fmt"
)

// DecodeError reports a malformed or undersized account payload. The
// offending account is skipped; a decode failure is never fatal to an
// overall scan.
type DecodeError struct {
	Address string
	Reason  string
}

func (e *DecodeError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("decode account: %s", e.Reason)
	}
	return fmt.Sprintf("decode account %s: %s", e.Address, e.Reason)
}

// IsDecodeError reports whether err is a payload decode failure.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
