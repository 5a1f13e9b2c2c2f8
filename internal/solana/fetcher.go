package solana

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Default fetcher tuning.
const (
	DefaultChunkSize   = 100
	DefaultMaxInFlight = 4
)

// Fetcher retrieves account payloads for large address lists by splitting
// them into bounded-size chunks and fetching each chunk through the pool.
// Chunks are dispatched with bounded concurrency; results are reassembled
// by original index, not arrival order.
type Fetcher struct {
	client      Client
	chunkSize   int
	maxInFlight int
}

// NewFetcher creates a fetcher over client.
func NewFetcher(client Client, chunkSize, maxInFlight int) *Fetcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Fetcher{
		client:      client,
		chunkSize:   chunkSize,
		maxInFlight: maxInFlight,
	}
}

// Fetch returns one entry per input address, in input order; addresses
// with no on-chain account yield nil entries. A failed chunk fails the
// whole fetch with the originating error: partial results are never
// returned, the caller decides whether to retry the full operation.
func (f *Fetcher) Fetch(ctx context.Context, addresses []string) ([]*Account, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	results := make([]*Account, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxInFlight)

	for start := 0; start < len(addresses); start += f.chunkSize {
		end := start + f.chunkSize
		if end > len(addresses) {
			end = len(addresses)
		}
		start, end := start, end

		g.Go(func() error {
			accounts, err := f.client.GetMultipleAccounts(gctx, addresses[start:end])
			if err != nil {
				return fmt.Errorf("fetch chunk [%d:%d]: %w", start, end, err)
			}
			copy(results[start:end], accounts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
