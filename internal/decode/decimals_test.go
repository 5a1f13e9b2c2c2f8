package decode

import (
	"context"
	"errors"
	"testing"

	"clmm-eligibility/internal/solana"
)

type fakeFetcher struct {
	accounts map[string]*solana.Account
	err      error
	calls    int
}

func (f *fakeFetcher) GetAccountInfo(ctx context.Context, pubkey string) (*solana.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[pubkey], nil
}

func mintAccount(decimals uint8) *solana.Account {
	data := make([]byte, 82)
	data[mintDecimalsOffset] = decimals
	return &solana.Account{Data: data}
}

func TestDecimalsResolver_FetchesAndCaches(t *testing.T) {
	fetcher := &fakeFetcher{accounts: map[string]*solana.Account{
		"mint1": mintAccount(9),
	}}
	resolver, err := NewDecimalsResolver(fetcher, 16)
	if err != nil {
		t.Fatalf("NewDecimalsResolver: %v", err)
	}
	ctx := context.Background()

	d, err := resolver.Resolve(ctx, "mint1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d != 9 {
		t.Errorf("expected 9 decimals, got %d", d)
	}

	// Decimals are immutable: the second resolve must hit the cache.
	if _, err := resolver.Resolve(ctx, "mint1"); err != nil {
		t.Fatalf("Resolve cached: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", fetcher.calls)
	}
}

func TestDecimalsResolver_MissingMint(t *testing.T) {
	resolver, err := NewDecimalsResolver(&fakeFetcher{}, 16)
	if err != nil {
		t.Fatalf("NewDecimalsResolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "missing")
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecimalsResolver_ShortMintPayload(t *testing.T) {
	fetcher := &fakeFetcher{accounts: map[string]*solana.Account{
		"stub": {Data: make([]byte, 10)},
	}}
	resolver, err := NewDecimalsResolver(fetcher, 16)
	if err != nil {
		t.Fatalf("NewDecimalsResolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "stub")
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecimalsResolver_FetchErrorPropagates(t *testing.T) {
	fetchErr := errors.New("endpoint down")
	resolver, err := NewDecimalsResolver(&fakeFetcher{err: fetchErr}, 16)
	if err != nil {
		t.Fatalf("NewDecimalsResolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "mint1")
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if IsDecodeError(err) {
		t.Error("transport failures must not be decode errors")
	}
}
