package solana

import (
	"context"
	"fmt"
)

// DefaultPageSize is the per-page account limit for paginated scans.
const DefaultPageSize = 1000

// Scanner iterates a cursor-based program-accounts scan until the
// provider signals no further pages. It is the fallback strategy for
// providers that reject single bulk scans as deprioritized.
type Scanner struct {
	client   Client
	pageSize int
}

// NewScanner creates a scanner over client.
func NewScanner(client Client, pageSize int) *Scanner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Scanner{client: client, pageSize: pageSize}
}

// Scan accumulates all accounts of program matching filters across pages.
// The continuation cursor is opaque to the scanner; iteration stops when
// the provider returns none.
func (s *Scanner) Scan(ctx context.Context, program string, filters []Filter) ([]KeyedAccount, error) {
	var all []KeyedAccount
	var cursor string

	for page := 0; ; page++ {
		accounts, next, err := s.client.GetProgramAccountsPaginated(ctx, program, filters, s.pageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("scan page %d: %w", page, err)
		}
		all = append(all, accounts...)

		if next == "" {
			return all, nil
		}
		cursor = next
	}
}
