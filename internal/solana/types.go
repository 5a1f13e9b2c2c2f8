package solana

import (
	"context"
	"encoding/json"
)

// Account is an account payload returned by the RPC node. For token
// queries providers return the jsonParsed form when they know the owning
// program's layout and fall back to base64 otherwise; Data holds the
// decoded raw bytes, Parsed the structured form. At most one is set.
type Account struct {
	Lamports uint64
	Owner    string
	Data     []byte
	Parsed   json.RawMessage
}

// KeyedAccount pairs an account payload with its address.
type KeyedAccount struct {
	Address string
	Account *Account
}

// Memcmp is a byte-compare filter at a fixed offset. Bytes is base58.
type Memcmp struct {
	Offset uint64
	Bytes  string
}

// Filter narrows a program-accounts scan. Zero DataSize means unset.
type Filter struct {
	DataSize uint64
	Memcmp   *Memcmp
}

// Client is the RPC surface consumed by the discovery engine. Implemented
// by Pool in production and by stub.Client in tests.
type Client interface {
	// GetTokenAccountsByOwner returns all token accounts of owner under
	// the given token program, jsonParsed when the provider supports it.
	GetTokenAccountsByOwner(ctx context.Context, owner, program string) ([]KeyedAccount, error)

	// GetMultipleAccounts returns accounts for the given addresses in
	// input order. Missing accounts are nil entries, not errors.
	GetMultipleAccounts(ctx context.Context, addresses []string) ([]*Account, error)

	// GetProgramAccounts scans all accounts owned by program matching
	// filters. May fail with DeprioritizedError on public providers.
	GetProgramAccounts(ctx context.Context, program string, filters []Filter) ([]KeyedAccount, error)

	// GetProgramAccountsPaginated is the cursor-based form of the scan.
	// An empty returned cursor means no further pages.
	GetProgramAccountsPaginated(ctx context.Context, program string, filters []Filter, limit int, cursor string) ([]KeyedAccount, string, error)

	// GetAccountInfo returns one account, or nil if it does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*Account, error)
}
