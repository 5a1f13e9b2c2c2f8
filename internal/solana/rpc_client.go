package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a single HTTP round trip.
const DefaultTimeout = 30 * time.Second

// HTTPClient talks JSON-RPC 2.0 to a single Solana endpoint. It performs
// exactly one attempt per call and classifies failures into the error
// taxonomy; retry and failover live in Pool.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a client for one RPC endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the endpoint URL this client talks to.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC call and classifies the failure.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RetryableError{Err: fmt.Errorf("http request: %w", err)}
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RetryableError{Err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return &RetryableError{Err: fmt.Errorf("server status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return &RetryableError{Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if rpcResp.Error != nil {
		return classifyRPCError(rpcResp.Error)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// classifyRPCError maps provider error codes onto the taxonomy. The
// deprioritized rejection must stay distinct from rate limiting: it is a
// strategy-switch signal, never a blind retry.
func classifyRPCError(e *rpcError) error {
	msg := strings.ToLower(e.Message)
	switch {
	case e.Code == rpcCodeDeprioritized || strings.Contains(msg, "deprioritized"):
		return &DeprioritizedError{Code: e.Code, Message: e.Message}
	case e.Code == rpcCodeRateLimited || strings.Contains(msg, "rate limit"):
		return &RetryableError{Err: e}
	default:
		return e
	}
}

// accountValue is the wire form of an account.
type accountValue struct {
	Lamports uint64          `json:"lamports"`
	Owner    string          `json:"owner"`
	Data     json.RawMessage `json:"data"` // ["<base64>", "base64"] or jsonParsed object
}

// toAccount resolves the mixed data encoding: base64 tuple first, then
// the jsonParsed object form.
func (v *accountValue) toAccount() (*Account, error) {
	acc := &Account{Lamports: v.Lamports, Owner: v.Owner}
	if len(v.Data) == 0 || string(v.Data) == "null" {
		return acc, nil
	}

	var tuple []string
	if err := json.Unmarshal(v.Data, &tuple); err == nil {
		if len(tuple) >= 1 && tuple[0] != "" {
			raw, err := base64.StdEncoding.DecodeString(tuple[0])
			if err != nil {
				return nil, fmt.Errorf("decode account data: %w", err)
			}
			acc.Data = raw
		}
		return acc, nil
	}

	var parsed struct {
		Parsed json.RawMessage `json:"parsed"`
	}
	if err := json.Unmarshal(v.Data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal account data: %w", err)
	}
	acc.Parsed = parsed.Parsed
	return acc, nil
}

// keyedAccountValue is the wire form of a pubkey/account pair.
type keyedAccountValue struct {
	Pubkey  string       `json:"pubkey"`
	Account accountValue `json:"account"`
}

func toKeyedAccounts(values []keyedAccountValue) ([]KeyedAccount, error) {
	out := make([]KeyedAccount, 0, len(values))
	for _, v := range values {
		acc, err := v.Account.toAccount()
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", v.Pubkey, err)
		}
		out = append(out, KeyedAccount{Address: v.Pubkey, Account: acc})
	}
	return out, nil
}

// GetTokenAccountsByOwner returns owner's token accounts under program.
func (c *HTTPClient) GetTokenAccountsByOwner(ctx context.Context, owner, program string) ([]KeyedAccount, error) {
	params := []interface{}{
		owner,
		map[string]interface{}{"programId": program},
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result struct {
		Value []keyedAccountValue `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}
	return toKeyedAccounts(result.Value)
}

// GetMultipleAccounts returns accounts in input order, nil for missing.
func (c *HTTPClient) GetMultipleAccounts(ctx context.Context, addresses []string) ([]*Account, error) {
	params := []interface{}{
		addresses,
		map[string]interface{}{"encoding": "base64"},
	}

	var result struct {
		Value []*accountValue `json:"value"`
	}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]*Account, len(addresses))
	for i, v := range result.Value {
		if i >= len(accounts) {
			break
		}
		if v == nil {
			continue
		}
		acc, err := v.toAccount()
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", addresses[i], err)
		}
		accounts[i] = acc
	}
	return accounts, nil
}

// filterParams converts filters into the RPC wire representation.
func filterParams(filters []Filter) []interface{} {
	out := make([]interface{}, 0, len(filters))
	for _, f := range filters {
		if f.DataSize > 0 {
			out = append(out, map[string]interface{}{"dataSize": f.DataSize})
		}
		if f.Memcmp != nil {
			out = append(out, map[string]interface{}{
				"memcmp": map[string]interface{}{
					"offset": f.Memcmp.Offset,
					"bytes":  f.Memcmp.Bytes,
				},
			})
		}
	}
	return out
}

// GetProgramAccounts scans all program accounts matching filters in one
// call. Public providers reject broad scans with a deprioritized error.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, program string, filters []Filter) ([]KeyedAccount, error) {
	config := map[string]interface{}{"encoding": "base64"}
	if len(filters) > 0 {
		config["filters"] = filterParams(filters)
	}
	params := []interface{}{program, config}

	var result []keyedAccountValue
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}
	return toKeyedAccounts(result)
}

// GetProgramAccountsPaginated issues one page of the cursor-based scan.
// The cursor is opaque; an empty returned cursor means the last page.
func (c *HTTPClient) GetProgramAccountsPaginated(ctx context.Context, program string, filters []Filter, limit int, cursor string) ([]KeyedAccount, string, error) {
	config := map[string]interface{}{"encoding": "base64"}
	if len(filters) > 0 {
		config["filters"] = filterParams(filters)
	}
	if limit > 0 {
		config["limit"] = limit
	}
	if cursor != "" {
		config["paginationKey"] = cursor
	}
	params := []interface{}{program, config}

	var result struct {
		Accounts      []keyedAccountValue `json:"accounts"`
		PaginationKey string              `json:"paginationKey"`
	}
	if err := c.call(ctx, "getProgramAccountsV2", params, &result); err != nil {
		return nil, "", err
	}

	accounts, err := toKeyedAccounts(result.Accounts)
	if err != nil {
		return nil, "", err
	}
	return accounts, result.PaginationKey, nil
}

// GetAccountInfo returns one account, or nil if it does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*Account, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{"encoding": "base64"},
	}

	var result struct {
		Value *accountValue `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}
	return result.Value.toAccount()
}
