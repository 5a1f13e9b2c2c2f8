// Package eligibility implements the position discovery engine and the
// balance lookup behind the reward-program check.
package eligibility

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"clmm-eligibility/internal/decode"
	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/observability"
	"clmm-eligibility/internal/solana"
)

// SPL token program IDs, both of which may own a wallet's token accounts.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// liquidityScale converts the raw u128 liquidity magnitude to a display
// value by shifting 9 decimal places. This is an approximation carried
// over from the deployed checker, not full AMM tick-range math.
const liquidityScale = 9

// Config holds the scan targets and tuning of the engine.
type Config struct {
	TargetMint  string
	TargetPool  string
	CLMMProgram string
	ChunkSize   int
	PageSize    int
	MaxInFlight int
}

// Engine orchestrates candidate selection, address derivation, the
// fast-path filtered scan, the slow-path derived-address fetch, and
// liquidity aggregation.
type Engine struct {
	rpc      solana.Client
	fetcher  *solana.Fetcher
	scanner  *solana.Scanner
	decimals *decode.DecimalsResolver
	cfg      Config
	logger   *log.Logger
	metrics  *observability.Metrics
}

// Option configures Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics attaches metrics counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine over rpc.
func NewEngine(rpc solana.Client, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.TargetMint == "" || cfg.TargetPool == "" || cfg.CLMMProgram == "" {
		return nil, fmt.Errorf("target mint, pool and CLMM program are required")
	}

	decimals, err := decode.NewDecimalsResolver(rpc, 1024)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		rpc:      rpc,
		fetcher:  solana.NewFetcher(rpc, cfg.ChunkSize, cfg.MaxInFlight),
		scanner:  solana.NewScanner(rpc, cfg.PageSize),
		decimals: decimals,
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[eligibility] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Scan performs one full wallet scan: target-mint balance plus position
// discovery, sharing a single token-accounts lookup between the two.
func (e *Engine) Scan(ctx context.Context, wallet string) (*domain.ScanResult, error) {
	owned, err := e.ownedTokenAccounts(ctx, wallet)
	if err != nil {
		e.countScan("error")
		return nil, err
	}

	positions, total, err := e.discover(ctx, candidateMints(owned))
	if err != nil {
		e.countScan("error")
		return nil, err
	}

	e.countScan("ok")
	return &domain.ScanResult{
		Wallet:         wallet,
		TokenBalance:   e.balanceOf(owned, e.cfg.TargetMint),
		Positions:      positions,
		TotalLiquidity: total,
		CheckedAt:      time.Now().UnixMilli(),
	}, nil
}

// GetBalance returns the wallet's balance of mint in UI units. A wallet
// with no account for the mint has balance 0, not an error.
func (e *Engine) GetBalance(ctx context.Context, wallet, mint string) (decimal.Decimal, error) {
	owned, err := e.ownedTokenAccounts(ctx, wallet)
	if err != nil {
		return decimal.Zero, err
	}
	return e.balanceOf(owned, mint), nil
}

// DiscoverPositions returns the wallet's positions paired with the target
// pool, ordered by derivation order of the owning candidate, along with
// the approximate total liquidity.
func (e *Engine) DiscoverPositions(ctx context.Context, wallet string) ([]domain.PositionRecord, decimal.Decimal, error) {
	owned, err := e.ownedTokenAccounts(ctx, wallet)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return e.discover(ctx, candidateMints(owned))
}

// ownedTokenAccounts fetches and decodes the wallet's token accounts
// under both token programs. Undecodable accounts are skipped; unknown
// decimals are resolved from the mint.
func (e *Engine) ownedTokenAccounts(ctx context.Context, wallet string) ([]*decode.TokenAccount, error) {
	var out []*decode.TokenAccount

	for _, program := range []string{TokenProgramID, Token2022ProgramID} {
		accounts, err := e.rpc.GetTokenAccountsByOwner(ctx, wallet, program)
		if err != nil {
			return nil, fmt.Errorf("token accounts under %s: %w", program, err)
		}

		for _, ka := range accounts {
			ta, err := decode.DecodeTokenAccount(ka.Address, ka.Account)
			if err != nil {
				e.skipAccount("token", err)
				continue
			}
			if !ta.DecimalsKnown {
				d, err := e.decimals.Resolve(ctx, ta.Mint)
				if err != nil {
					if decode.IsDecodeError(err) {
						e.skipAccount("mint", err)
						continue
					}
					return nil, err
				}
				ta.Decimals = d
				ta.DecimalsKnown = true
			}
			out = append(out, ta)
		}
	}
	return out, nil
}

// balanceOf sums the raw amounts of mint across owned accounts.
func (e *Engine) balanceOf(owned []*decode.TokenAccount, mint string) decimal.Decimal {
	total := new(big.Int)
	decimals := int32(0)
	for _, ta := range owned {
		if ta.Mint != mint {
			continue
		}
		total.Add(total, new(big.Int).SetUint64(ta.Amount))
		decimals = int32(ta.Decimals)
	}
	if total.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(total, -decimals)
}

// candidateMints filters owned accounts down to position tickets: zero
// decimals, amount exactly one.
func candidateMints(owned []*decode.TokenAccount) []string {
	var mints []string
	for _, ta := range owned {
		if ta.Decimals == 0 && ta.Amount == 1 {
			mints = append(mints, ta.Mint)
		}
	}
	return mints
}

// discover runs the two-strategy position scan over the candidate mints.
func (e *Engine) discover(ctx context.Context, mints []string) ([]domain.PositionRecord, decimal.Decimal, error) {
	derived, err := e.deriveCandidates(mints)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if len(derived) == 0 {
		return nil, decimal.Zero, nil
	}

	derivedSet := make(map[string]struct{}, len(derived))
	for _, addr := range derived {
		derivedSet[addr] = struct{}{}
	}

	// Fast path: one pool-id-filtered scan against the CLMM program. The
	// result is narrowed to the derived set afterwards because the
	// provider offers no address-set filter.
	payloads := make(map[string][]byte)
	fastRejected := false

	filters := []solana.Filter{{
		Memcmp: &solana.Memcmp{Offset: decode.PositionPoolIDOffset, Bytes: e.cfg.TargetPool},
	}}

	scanned, err := e.fastScan(ctx, filters)
	if err != nil {
		if !solana.IsDeprioritized(err) {
			return nil, decimal.Zero, err
		}
		fastRejected = true
	}
	for _, ka := range scanned {
		if _, ok := derivedSet[ka.Address]; !ok {
			continue
		}
		if ka.Account != nil {
			payloads[ka.Address] = ka.Account.Data
		}
	}

	// Slow path: fetch derived addresses directly. Fast-path hits are
	// always re-fetched so the fresh payload overwrites the scan result;
	// when the fast path was rejected or found nothing the whole derived
	// set is fetched instead. A derived address with no account is simply
	// absent, and a hit whose account is gone on re-fetch is dropped.
	verify := derived
	if !fastRejected && len(payloads) > 0 {
		verify = make([]string, 0, len(payloads))
		for _, addr := range derived {
			if _, ok := payloads[addr]; ok {
				verify = append(verify, addr)
			}
		}
	}
	accounts, err := e.fetcher.Fetch(ctx, verify)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("derived address fetch: %w", err)
	}
	for i, acc := range accounts {
		if acc != nil {
			payloads[verify[i]] = acc.Data
		} else {
			delete(payloads, verify[i])
		}
	}

	var records []domain.PositionRecord
	sum := new(big.Int)

	for _, addr := range derived {
		data, ok := payloads[addr]
		if !ok {
			continue
		}
		pos, err := decode.DecodePosition(addr, data)
		if err != nil {
			e.skipAccount("position", err)
			continue
		}
		if pos.PoolID != e.cfg.TargetPool {
			continue
		}
		records = append(records, domain.PositionRecord{
			Address:      addr,
			PoolID:       pos.PoolID,
			NFTMint:      pos.NFTMint,
			RawLiquidity: pos.Liquidity,
		})
		sum.Add(sum, pos.Liquidity)
		if e.metrics != nil {
			e.metrics.PositionsDiscovered.Inc()
		}
	}

	if sum.Sign() == 0 {
		return records, decimal.Zero, nil
	}
	return records, decimal.NewFromBigInt(sum, -liquidityScale), nil
}

// fastScan issues the bulk filtered scan, switching to the paginated form
// when the provider rejects the bulk call as deprioritized. A rejection
// of both forms abandons the fast path without retrying it.
func (e *Engine) fastScan(ctx context.Context, filters []solana.Filter) ([]solana.KeyedAccount, error) {
	scanned, err := e.rpc.GetProgramAccounts(ctx, e.cfg.CLMMProgram, filters)
	if err == nil {
		return scanned, nil
	}
	if !solana.IsDeprioritized(err) {
		return nil, err
	}

	e.logger.Printf("bulk scan deprioritized, switching to paginated scan: %v", err)
	if e.metrics != nil {
		e.metrics.FastPathFallbacks.Inc()
	}

	return e.scanner.Scan(ctx, e.cfg.CLMMProgram, filters)
}

// deriveCandidates derives the position PDAs for each candidate mint,
// deduplicated, in candidate order.
func (e *Engine) deriveCandidates(mints []string) ([]string, error) {
	var derived []string
	seen := make(map[string]struct{})

	for _, mint := range mints {
		addrs, err := positionAddresses(mint, e.cfg.CLMMProgram)
		if err != nil {
			// A candidate with an undecodable mint address cannot own a
			// position; skip it.
			e.skipAccount("candidate", err)
			continue
		}
		for _, addr := range addrs {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			derived = append(derived, addr)
		}
	}
	return derived, nil
}

func (e *Engine) skipAccount(kind string, err error) {
	e.logger.Printf("skipping %s account: %v", kind, err)
	if e.metrics != nil {
		e.metrics.DecodeErrors.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) countScan(result string) {
	if e.metrics != nil {
		e.metrics.ScansTotal.WithLabelValues(result).Inc()
	}
}
