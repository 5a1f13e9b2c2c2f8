// Package main provides the eligibility service:
// - HTTP API: on-demand wallet checks and stored record lookups
// - Recheck (scheduled): periodic re-scan of every stored wallet
// - Watcher (continuous): WebSocket subscription on the target pool
//   account that nudges the recheck early when the pool changes
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/eligibility"
	"clmm-eligibility/internal/observability"
	"clmm-eligibility/internal/recheck"
	"clmm-eligibility/internal/solana"
	"clmm-eligibility/internal/storage"
	chstore "clmm-eligibility/internal/storage/clickhouse"
	"clmm-eligibility/internal/storage/memory"
	"clmm-eligibility/internal/storage/migrations"
	pgstore "clmm-eligibility/internal/storage/postgres"
)

// RaydiumCLMM is the mainnet concentrated-liquidity program.
const RaydiumCLMM = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"

// Server holds all components of the eligibility service.
type Server struct {
	engine   *eligibility.Engine
	criteria eligibility.Criteria
	wallets  storage.WalletStore
	history  storage.ScanHistoryStore
	logger   *log.Logger

	mu            sync.Mutex
	started       time.Time
	checksServed  int
	lastCheckedAt time.Time
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("SOLANA_RPC_ENDPOINTS"), "Comma-separated Solana RPC HTTP endpoints, tried in order")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional, enables pool watching)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables scan history)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	targetMint := flag.String("target-mint", os.Getenv("TARGET_MINT"), "Reward token mint address")
	targetPool := flag.String("target-pool", os.Getenv("TARGET_POOL"), "CLMM pool address positions must belong to")
	clmmProgram := flag.String("clmm-program", envOrDefault("CLMM_PROGRAM", RaydiumCLMM), "CLMM program ID owning position accounts")
	minBalance := flag.String("min-balance", envOrDefault("MIN_BALANCE", "0"), "Minimum token balance for eligibility (0 disables)")
	minLiquidity := flag.String("min-liquidity", envOrDefault("MIN_LIQUIDITY", "0"), "Minimum total position liquidity for eligibility (0 disables)")
	recheckInterval := flag.Duration("recheck-interval", 1*time.Hour, "Interval between batch rechecks of stored wallets")
	maxAttempts := flag.Int("rpc-max-attempts", 3, "Attempts per RPC endpoint before rotating")
	baseDelay := flag.Duration("rpc-base-delay", 500*time.Millisecond, "Base backoff delay between same-endpoint retries")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP API listen address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoints == "" {
		logger.Fatal("--rpc-endpoints is required")
	}
	if *targetMint == "" || *targetPool == "" {
		logger.Fatal("--target-mint and --target-pool are required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	endpoints := splitList(*rpcEndpoints)
	if len(endpoints) == 0 {
		logger.Fatal("--rpc-endpoints contains no usable endpoints")
	}
	logger.Printf("Using %d RPC endpoint(s)", len(endpoints))

	criteria, err := parseCriteria(*minBalance, *minLiquidity)
	if err != nil {
		logger.Fatalf("Invalid threshold: %v", err)
	}

	metrics := observability.NewMetrics("")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	wallets, history, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Create RPC pool and engine
	pool, err := solana.NewPool(endpoints, solana.RetryPolicy{
		MaxAttempts: *maxAttempts,
		BaseDelay:   *baseDelay,
	}, solana.WithPoolMetrics(metrics))
	if err != nil {
		logger.Fatalf("Failed to create RPC pool: %v", err)
	}

	engine, err := eligibility.NewEngine(pool, eligibility.Config{
		TargetMint:  *targetMint,
		TargetPool:  *targetPool,
		CLMMProgram: *clmmProgram,
	}, eligibility.WithMetrics(metrics))
	if err != nil {
		logger.Fatalf("Failed to create engine: %v", err)
	}

	server := &Server{
		engine:   engine,
		criteria: criteria,
		wallets:  wallets,
		history:  history,
		logger:   logger,
		started:  time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Pool watcher nudges the recheck runner early on pool changes.
	var trigger chan struct{}
	if *wsEndpoint != "" {
		trigger = make(chan struct{}, 1)
		go watchPool(ctx, *wsEndpoint, *targetPool, trigger, logger)
	}

	runner := recheck.NewRunner(recheck.RunnerOptions{
		Scanner:     engine,
		Criteria:    criteria,
		WalletStore: wallets,
		History:     history,
		Interval:    *recheckInterval,
		Trigger:     trigger,
		Logger:      log.New(os.Stdout, "[recheck] ", log.LstdFlags|log.Lshortfile),
		Metrics:     metrics,
	})
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Recheck runner stopped: %v", err)
		}
	}()

	// Run the HTTP API
	err = server.serveHTTP(ctx, *listenAddr)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(raw string) []string {
	var list []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}

// parseCriteria parses the threshold flags.
func parseCriteria(minBalance, minLiquidity string) (eligibility.Criteria, error) {
	balance, err := decimal.NewFromString(minBalance)
	if err != nil {
		return eligibility.Criteria{}, fmt.Errorf("parse min balance %q: %w", minBalance, err)
	}
	liquidity, err := decimal.NewFromString(minLiquidity)
	if err != nil {
		return eligibility.Criteria{}, fmt.Errorf("parse min liquidity %q: %w", minLiquidity, err)
	}
	return eligibility.Criteria{MinBalance: balance, MinLiquidity: liquidity}, nil
}

// createStores creates the wallet store and, when ClickHouse is
// configured, the scan history store. The returned history store is nil
// when history is disabled.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.WalletStore, storage.ScanHistoryStore, func(), error) {
	if useMemory {
		return memory.NewWalletStore(), nil, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}
	wallets := pgstore.NewWalletStore(pool)

	if clickhouseDSN == "" {
		return wallets, nil, func() { pool.Close() }, nil
	}

	// ClickHouse
	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return wallets, chstore.NewScanHistoryStore(chConn), cleanup, nil
}

// watchPool subscribes to the target pool account and forwards change
// notifications into the trigger channel. Runs until ctx is cancelled;
// watcher failures are logged and the service continues without it.
func watchPool(ctx context.Context, endpoint, pool string, trigger chan<- struct{}, logger *log.Logger) {
	watcher, err := solana.NewAccountWatcher(ctx, endpoint, nil, log.New(os.Stdout, "[watcher] ", log.LstdFlags))
	if err != nil {
		logger.Printf("Pool watcher disabled, connect failed: %v", err)
		return
	}
	defer watcher.Close()

	updates, err := watcher.Watch(ctx, pool)
	if err != nil {
		logger.Printf("Pool watcher disabled, subscribe failed: %v", err)
		return
	}
	logger.Printf("Watching pool account %s", pool)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			logger.Printf("Pool account changed at slot %d", update.Slot)
			select {
			case trigger <- struct{}{}:
			default:
				// Recheck already pending
			}
		}
	}
}

// serveHTTP runs the HTTP API until ctx is cancelled.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// API
	mux.HandleFunc("POST /api/v1/check", s.handleCheck)
	mux.HandleFunc("GET /api/v1/wallets", s.handleListWallets)
	mux.HandleFunc("GET /api/v1/wallets/{address}", s.handleGetWallet)
	mux.HandleFunc("GET /api/v1/wallets/{address}/history", s.handleWalletHistory)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting HTTP server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// CheckRequest is the JSON body for POST /api/v1/check.
type CheckRequest struct {
	Wallet string `json:"wallet"`
}

// CheckResponse is the JSON response for a wallet check.
type CheckResponse struct {
	Wallet         string   `json:"wallet"`
	Eligible       bool     `json:"eligible"`
	Reasons        []string `json:"reasons,omitempty"`
	TokenBalance   string   `json:"token_balance"`
	TotalLiquidity string   `json:"total_liquidity"`
	PositionCount  int      `json:"position_count"`
	CheckedAt      int64    `json:"checked_at"`
}

// handleCheck scans a wallet on demand, persists the outcome, and
// returns the eligibility verdict.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Wallet = strings.TrimSpace(req.Wallet)
	if req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	res, err := s.engine.Scan(r.Context(), req.Wallet)
	if err != nil {
		s.logger.Printf("Check %s failed: %v", req.Wallet, err)
		if solana.IsExhausted(err) {
			writeError(w, http.StatusBadGateway, "all RPC endpoints failed")
		} else {
			writeError(w, http.StatusInternalServerError, "scan failed")
		}
		return
	}

	status := s.criteria.Evaluate(res)
	now := time.Now()

	record := &domain.WalletRecord{
		Address:        req.Wallet,
		Eligible:       status.Eligible,
		TokenBalance:   res.TokenBalance,
		TotalLiquidity: res.TotalLiquidity,
		PositionCount:  len(res.Positions),
		Reasons:        status.Reasons,
		CheckedAt:      res.CheckedAt,
		UpdatedAt:      now.UnixMilli(),
	}
	if err := s.wallets.Upsert(r.Context(), record); err != nil {
		s.logger.Printf("Persist %s failed: %v", req.Wallet, err)
	}
	if s.history != nil {
		snap := &domain.ScanSnapshot{
			Wallet:         req.Wallet,
			TokenBalance:   res.TokenBalance,
			TotalLiquidity: res.TotalLiquidity,
			PositionCount:  len(res.Positions),
			Eligible:       status.Eligible,
			CheckedAt:      res.CheckedAt,
		}
		if err := s.history.Insert(r.Context(), snap); err != nil {
			s.logger.Printf("Record history %s failed: %v", req.Wallet, err)
		}
	}

	s.mu.Lock()
	s.checksServed++
	s.lastCheckedAt = now
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, CheckResponse{
		Wallet:         req.Wallet,
		Eligible:       status.Eligible,
		Reasons:        status.Reasons,
		TokenBalance:   res.TokenBalance.String(),
		TotalLiquidity: res.TotalLiquidity.String(),
		PositionCount:  len(res.Positions),
		CheckedAt:      res.CheckedAt,
	})
}

// handleGetWallet returns the stored record for one wallet.
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	record, err := s.wallets.GetByAddress(r.Context(), address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wallet not checked yet")
			return
		}
		s.logger.Printf("Get %s failed: %v", address, err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, walletResponse(record))
}

// handleListWallets returns all stored wallet records.
func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	records, err := s.wallets.List(r.Context())
	if err != nil {
		s.logger.Printf("List wallets failed: %v", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	out := make([]CheckResponse, 0, len(records))
	for _, record := range records {
		out = append(out, walletResponse(record))
	}
	writeJSON(w, http.StatusOK, out)
}

// HistoryEntry is one historical scan in the history response.
type HistoryEntry struct {
	Eligible       bool   `json:"eligible"`
	TokenBalance   string `json:"token_balance"`
	TotalLiquidity string `json:"total_liquidity"`
	PositionCount  int    `json:"position_count"`
	CheckedAt      int64  `json:"checked_at"`
}

// handleWalletHistory returns the scan history of one wallet.
func (s *Server) handleWalletHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "scan history is not configured")
		return
	}
	address := r.PathValue("address")

	snaps, err := s.history.GetByWallet(r.Context(), address)
	if err != nil {
		s.logger.Printf("History %s failed: %v", address, err)
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	out := make([]HistoryEntry, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, HistoryEntry{
			Eligible:       snap.Eligible,
			TokenBalance:   snap.TokenBalance.String(),
			TotalLiquidity: snap.TotalLiquidity.String(),
			PositionCount:  snap.PositionCount,
			CheckedAt:      snap.CheckedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	ChecksServed  int       `json:"checks_served"`
	LastCheckedAt time.Time `json:"last_checked_at,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		ChecksServed:  s.checksServed,
		LastCheckedAt: s.lastCheckedAt,
	})
}

// walletResponse converts a stored record to the API shape.
func walletResponse(record *domain.WalletRecord) CheckResponse {
	return CheckResponse{
		Wallet:         record.Address,
		Eligible:       record.Eligible,
		Reasons:        record.Reasons,
		TokenBalance:   record.TokenBalance.String(),
		TotalLiquidity: record.TotalLiquidity.String(),
		PositionCount:  record.PositionCount,
		CheckedAt:      record.CheckedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// envOrDefault returns the env var value or a fallback.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
