package solana

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"clmm-eligibility/internal/observability"
)

// Default retry policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// RetryPolicy bounds retries on a single endpoint. Configuration only.
type RetryPolicy struct {
	// MaxAttempts is the attempt budget per endpoint per request.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles per retry.
	BaseDelay time.Duration
}

// Pool executes logical RPC requests against an ordered set of endpoints
// with per-endpoint retry and cross-endpoint failover. The rotation cursor
// is shared by all callers: once rate limiting converges the pool onto a
// working endpoint, concurrent requests start there instead of
// rediscovering it.
type Pool struct {
	clients []*HTTPClient
	policy  RetryPolicy
	logger  *log.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	current int
}

// PoolOption configures Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the pool logger.
func WithPoolLogger(logger *log.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithPoolMetrics attaches metrics counters.
func WithPoolMetrics(m *observability.Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool creates a pool over the given endpoint URLs, in rotation order.
func NewPool(endpoints []string, policy RetryPolicy, opts ...PoolOption) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}

	clients := make([]*HTTPClient, len(endpoints))
	for i, e := range endpoints {
		clients[i] = NewHTTPClient(e)
	}

	p := &Pool{
		clients: clients,
		policy:  policy,
		logger:  log.New(log.Writer(), "[rpc-pool] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// currentIndex returns the shared rotation cursor.
func (p *Pool) currentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// rotateFrom advances the cursor past idx, unless a concurrent caller
// already moved it. Both advancing past the same failed endpoint is a
// benign race; moving it twice is not.
func (p *Pool) rotateFrom(idx int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == idx {
		p.current = (idx + 1) % len(p.clients)
	}
	return p.current
}

// Execute runs one logical request. Each endpoint is tried up to
// MaxAttempts times with exponential backoff on retryable failures, then
// the pool rotates. Non-retryable failures abort immediately without
// rotating. After every endpoint has been exhausted once the request
// fails with ExhaustedError carrying the last cause.
func (p *Pool) Execute(ctx context.Context, method string, fn func(ctx context.Context, c *HTTPClient) error) error {
	var lastErr error

	for tried := 0; tried < len(p.clients); tried++ {
		idx := p.currentIndex()
		client := p.clients[idx]

		for attempt := 0; attempt < p.policy.MaxAttempts; attempt++ {
			if attempt > 0 {
				delay := p.policy.BaseDelay << (attempt - 1)
				p.logger.Printf("%s: endpoint %s attempt %d/%d, backing off %s: %v",
					method, client.Endpoint(), attempt+1, p.policy.MaxAttempts, delay, lastErr)
				if p.metrics != nil {
					p.metrics.RetryBackoffs.Inc()
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			err := fn(ctx, client)
			if err == nil {
				if p.metrics != nil {
					p.metrics.RPCAttempts.WithLabelValues(method, "ok").Inc()
				}
				return nil
			}
			if !IsRetryable(err) {
				// Malformed request, auth failure or a deprioritized
				// rejection: propagate without rotating.
				if p.metrics != nil {
					p.metrics.RPCAttempts.WithLabelValues(method, "error").Inc()
				}
				return err
			}
			if p.metrics != nil {
				p.metrics.RPCAttempts.WithLabelValues(method, "retryable").Inc()
			}
			lastErr = err
		}

		next := p.rotateFrom(idx)
		p.logger.Printf("%s: endpoint %s exhausted after %d attempts, rotating to %s",
			method, client.Endpoint(), p.policy.MaxAttempts, p.clients[next].Endpoint())
		if p.metrics != nil {
			p.metrics.EndpointRotations.Inc()
		}
	}

	if p.metrics != nil {
		p.metrics.PoolExhaustions.Inc()
	}
	return &ExhaustedError{Endpoints: len(p.clients), Cause: lastErr}
}

// Compile-time interface check.
var _ Client = (*Pool)(nil)

// GetTokenAccountsByOwner returns owner's token accounts under program.
func (p *Pool) GetTokenAccountsByOwner(ctx context.Context, owner, program string) ([]KeyedAccount, error) {
	var out []KeyedAccount
	err := p.Execute(ctx, "getTokenAccountsByOwner", func(ctx context.Context, c *HTTPClient) error {
		var err error
		out, err = c.GetTokenAccountsByOwner(ctx, owner, program)
		return err
	})
	return out, err
}

// GetMultipleAccounts returns accounts in input order, nil for missing.
func (p *Pool) GetMultipleAccounts(ctx context.Context, addresses []string) ([]*Account, error) {
	var out []*Account
	err := p.Execute(ctx, "getMultipleAccounts", func(ctx context.Context, c *HTTPClient) error {
		var err error
		out, err = c.GetMultipleAccounts(ctx, addresses)
		return err
	})
	return out, err
}

// GetProgramAccounts scans program accounts matching filters in one call.
func (p *Pool) GetProgramAccounts(ctx context.Context, program string, filters []Filter) ([]KeyedAccount, error) {
	var out []KeyedAccount
	err := p.Execute(ctx, "getProgramAccounts", func(ctx context.Context, c *HTTPClient) error {
		var err error
		out, err = c.GetProgramAccounts(ctx, program, filters)
		return err
	})
	return out, err
}

// GetProgramAccountsPaginated issues one page of the cursor-based scan.
func (p *Pool) GetProgramAccountsPaginated(ctx context.Context, program string, filters []Filter, limit int, cursor string) ([]KeyedAccount, string, error) {
	var out []KeyedAccount
	var next string
	err := p.Execute(ctx, "getProgramAccountsV2", func(ctx context.Context, c *HTTPClient) error {
		var err error
		out, next, err = c.GetProgramAccountsPaginated(ctx, program, filters, limit, cursor)
		return err
	})
	return out, next, err
}

// GetAccountInfo returns one account, or nil if it does not exist.
func (p *Pool) GetAccountInfo(ctx context.Context, pubkey string) (*Account, error) {
	var out *Account
	err := p.Execute(ctx, "getAccountInfo", func(ctx context.Context, c *HTTPClient) error {
		var err error
		out, err = c.GetAccountInfo(ctx, pubkey)
		return err
	})
	return out, err
}
