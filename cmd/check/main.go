// Package main provides a one-shot CLI that scans a single wallet and
// prints its eligibility verdict.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clmm-eligibility/internal/eligibility"
	"clmm-eligibility/internal/solana"
)

// RaydiumCLMM is the mainnet concentrated-liquidity program.
const RaydiumCLMM = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"

func main() {
	// Parse flags
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("SOLANA_RPC_ENDPOINTS"), "Comma-separated Solana RPC HTTP endpoints, tried in order")
	targetMint := flag.String("target-mint", os.Getenv("TARGET_MINT"), "Reward token mint address")
	targetPool := flag.String("target-pool", os.Getenv("TARGET_POOL"), "CLMM pool address positions must belong to")
	clmmProgram := flag.String("clmm-program", RaydiumCLMM, "CLMM program ID owning position accounts")
	minBalance := flag.String("min-balance", "0", "Minimum token balance for eligibility (0 disables)")
	minLiquidity := flag.String("min-liquidity", "0", "Minimum total position liquidity for eligibility (0 disables)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall scan timeout")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	wallet := flag.Arg(0)
	if wallet == "" {
		fmt.Fprintln(os.Stderr, "Usage: check [flags] <wallet-address>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if *rpcEndpoints == "" {
		fatal("--rpc-endpoints is required")
	}
	if *targetMint == "" || *targetPool == "" {
		fatal("--target-mint and --target-pool are required")
	}

	var endpoints []string
	for _, e := range strings.Split(*rpcEndpoints, ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	balance, err := decimal.NewFromString(*minBalance)
	if err != nil {
		fatal("invalid --min-balance: %v", err)
	}
	liquidity, err := decimal.NewFromString(*minLiquidity)
	if err != nil {
		fatal("invalid --min-liquidity: %v", err)
	}
	criteria := eligibility.Criteria{MinBalance: balance, MinLiquidity: liquidity}

	var poolOpts []solana.PoolOption
	var engineOpts []eligibility.Option
	if *verbose {
		logger := log.New(os.Stderr, "[check] ", log.LstdFlags)
		poolOpts = append(poolOpts, solana.WithPoolLogger(logger))
		engineOpts = append(engineOpts, eligibility.WithLogger(logger))
	}

	pool, err := solana.NewPool(endpoints, solana.RetryPolicy{}, poolOpts...)
	if err != nil {
		fatal("create RPC pool: %v", err)
	}

	engine, err := eligibility.NewEngine(pool, eligibility.Config{
		TargetMint:  *targetMint,
		TargetPool:  *targetPool,
		CLMMProgram: *clmmProgram,
	}, engineOpts...)
	if err != nil {
		fatal("create engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := engine.Scan(ctx, wallet)
	if err != nil {
		fatal("scan %s: %v", wallet, err)
	}
	status := criteria.Evaluate(res)

	if *asJSON {
		out := map[string]any{
			"wallet":          wallet,
			"eligible":        status.Eligible,
			"reasons":         status.Reasons,
			"token_balance":   res.TokenBalance.String(),
			"total_liquidity": res.TotalLiquidity.String(),
			"position_count":  len(res.Positions),
			"checked_at":      res.CheckedAt,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
		return
	}

	fmt.Printf("Wallet:          %s\n", wallet)
	fmt.Printf("Token balance:   %s\n", res.TokenBalance)
	fmt.Printf("Positions:       %d\n", len(res.Positions))
	fmt.Printf("Total liquidity: %s\n", res.TotalLiquidity)
	for _, p := range res.Positions {
		fmt.Printf("  - %s (NFT %s, liquidity %s)\n", p.Address, p.NFTMint, p.RawLiquidity)
	}
	if status.Eligible {
		fmt.Println("Eligible:        yes")
		for _, reason := range status.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
	} else {
		fmt.Println("Eligible:        no")
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
