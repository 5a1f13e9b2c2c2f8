package decode

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"clmm-eligibility/internal/solana"
)

// SPL mint layout: mint_authority_option(4) | mint_authority(32) |
// supply(8) | decimals(1) | ...
const (
	mintDecimalsOffset = 44
	mintMin            = mintDecimalsOffset + 1
)

// accountFetcher is the single RPC call the resolver needs.
type accountFetcher interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.Account, error)
}

// DecimalsResolver resolves mint decimals for raw-decoded token accounts.
// Decimals are immutable after mint creation, so results are cached in a
// bounded LRU shared across scans.
type DecimalsResolver struct {
	fetcher accountFetcher
	cache   *lru.Cache[string, uint8]
}

// NewDecimalsResolver creates a resolver caching up to size mints.
func NewDecimalsResolver(fetcher accountFetcher, size int) (*DecimalsResolver, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, uint8](size)
	if err != nil {
		return nil, fmt.Errorf("create decimals cache: %w", err)
	}
	return &DecimalsResolver{fetcher: fetcher, cache: cache}, nil
}

// Resolve returns the decimals of mint, fetching its account on a cache
// miss.
func (r *DecimalsResolver) Resolve(ctx context.Context, mint string) (uint8, error) {
	if d, ok := r.cache.Get(mint); ok {
		return d, nil
	}

	acc, err := r.fetcher.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("fetch mint %s: %w", mint, err)
	}
	if acc == nil {
		return 0, &DecodeError{Address: mint, Reason: "mint account not found"}
	}
	if len(acc.Data) < mintMin {
		return 0, &DecodeError{Address: mint, Reason: fmt.Sprintf("mint payload too short: %d bytes", len(acc.Data))}
	}

	d := acc.Data[mintDecimalsOffset]
	r.cache.Add(mint, d)
	return d, nil
}
