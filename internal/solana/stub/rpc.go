package stub

import (
	"context"
	"strconv"
	"sync"

	"clmm-eligibility/internal/solana"
)

// Client implements solana.Client for testing. Responses are scripted by
// populating the maps; Calls records every method invocation in order.
type Client struct {
	mu sync.Mutex

	// TokenAccounts maps owner -> token program -> accounts.
	TokenAccounts map[string]map[string][]solana.KeyedAccount

	// Accounts maps address -> account for getMultipleAccounts and
	// getAccountInfo. Missing addresses yield nil, as on-chain.
	Accounts map[string]*solana.Account

	// ProgramAccounts maps program -> scan result, shared by the bulk and
	// paginated forms.
	ProgramAccounts map[string][]solana.KeyedAccount

	// BulkScanErr, when set, fails GetProgramAccounts (e.g. with a
	// DeprioritizedError) while the paginated form keeps working.
	BulkScanErr error

	// PageSize overrides the caller's limit when > 0.
	PageSize int

	Calls []string
}

// NewClient creates an empty scripted client.
func NewClient() *Client {
	return &Client{
		TokenAccounts:   make(map[string]map[string][]solana.KeyedAccount),
		Accounts:        make(map[string]*solana.Account),
		ProgramAccounts: make(map[string][]solana.KeyedAccount),
	}
}

// Compile-time interface check.
var _ solana.Client = (*Client)(nil)

func (c *Client) record(call string) {
	c.mu.Lock()
	c.Calls = append(c.Calls, call)
	c.mu.Unlock()
}

// SetTokenAccounts scripts the token accounts of owner under program.
func (c *Client) SetTokenAccounts(owner, program string, accounts []solana.KeyedAccount) {
	if c.TokenAccounts[owner] == nil {
		c.TokenAccounts[owner] = make(map[string][]solana.KeyedAccount)
	}
	c.TokenAccounts[owner][program] = accounts
}

// SetAccount scripts one account payload.
func (c *Client) SetAccount(address string, account *solana.Account) {
	c.Accounts[address] = account
}

// GetTokenAccountsByOwner returns the scripted accounts for owner.
func (c *Client) GetTokenAccountsByOwner(_ context.Context, owner, program string) ([]solana.KeyedAccount, error) {
	c.record("getTokenAccountsByOwner")
	return c.TokenAccounts[owner][program], nil
}

// GetMultipleAccounts returns scripted accounts in input order.
func (c *Client) GetMultipleAccounts(_ context.Context, addresses []string) ([]*solana.Account, error) {
	c.record("getMultipleAccounts")
	out := make([]*solana.Account, len(addresses))
	for i, addr := range addresses {
		out[i] = c.Accounts[addr]
	}
	return out, nil
}

// GetProgramAccounts returns the scripted scan result, honoring filters
// is the caller's concern: results are returned as scripted.
func (c *Client) GetProgramAccounts(_ context.Context, program string, _ []solana.Filter) ([]solana.KeyedAccount, error) {
	c.record("getProgramAccounts")
	if c.BulkScanErr != nil {
		return nil, c.BulkScanErr
	}
	return c.ProgramAccounts[program], nil
}

// GetProgramAccountsPaginated serves the scripted scan result in pages,
// using the numeric page index as the opaque cursor.
func (c *Client) GetProgramAccountsPaginated(_ context.Context, program string, _ []solana.Filter, limit int, cursor string) ([]solana.KeyedAccount, string, error) {
	c.record("getProgramAccountsV2")

	if c.PageSize > 0 {
		limit = c.PageSize
	}
	if limit <= 0 {
		limit = len(c.ProgramAccounts[program])
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", err
		}
		start = n
	}

	all := c.ProgramAccounts[program]
	if start >= len(all) {
		return nil, "", nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	}
	return all[start:end], next, nil
}

// GetAccountInfo returns the scripted account, or nil.
func (c *Client) GetAccountInfo(_ context.Context, pubkey string) (*solana.Account, error) {
	c.record("getAccountInfo")
	return c.Accounts[pubkey], nil
}
