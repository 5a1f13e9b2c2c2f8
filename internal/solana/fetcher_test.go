package solana

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClient implements Client with scriptable responses, recording the
// chunks it receives.
type fakeClient struct {
	mu     sync.Mutex
	chunks [][]string
	pages  []fakePage

	accounts map[string]*Account
	failOn   string        // chunk containing this address fails
	delayOn  string        // chunk containing this address answers late
	delay    time.Duration // how late
}

type fakePage struct {
	accounts []KeyedAccount
	next     string
	err      error
}

func (f *fakeClient) GetTokenAccountsByOwner(ctx context.Context, owner, program string) ([]KeyedAccount, error) {
	return nil, nil
}

func (f *fakeClient) GetMultipleAccounts(ctx context.Context, addresses []string) ([]*Account, error) {
	f.mu.Lock()
	f.chunks = append(f.chunks, addresses)
	f.mu.Unlock()

	out := make([]*Account, len(addresses))
	for i, addr := range addresses {
		if addr == f.failOn {
			return nil, errors.New("chunk failure")
		}
		if addr == f.delayOn {
			time.Sleep(f.delay)
		}
		out[i] = f.accounts[addr]
	}
	return out, nil
}

func (f *fakeClient) GetProgramAccounts(ctx context.Context, program string, filters []Filter) ([]KeyedAccount, error) {
	return nil, nil
}

func (f *fakeClient) GetProgramAccountsPaginated(ctx context.Context, program string, filters []Filter, limit int, cursor string) ([]KeyedAccount, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pages) == 0 {
		return nil, "", nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page.accounts, page.next, page.err
}

func (f *fakeClient) GetAccountInfo(ctx context.Context, pubkey string) (*Account, error) {
	return f.accounts[pubkey], nil
}

var _ Client = (*fakeClient)(nil)

func TestFetcher_ChunksAndPreservesOrder(t *testing.T) {
	accounts := make(map[string]*Account)
	var addresses []string
	for i := 0; i < 5; i++ {
		addr := fmt.Sprintf("addr%d", i)
		addresses = append(addresses, addr)
		accounts[addr] = &Account{Lamports: uint64(i + 1)}
	}
	// addr3 has no on-chain account.
	delete(accounts, "addr3")

	// Stall the middle chunk so its response arrives after the others.
	client := &fakeClient{accounts: accounts, delayOn: "addr2", delay: 20 * time.Millisecond}
	fetcher := NewFetcher(client, 2, 4)

	results, err := fetcher.Fetch(context.Background(), addresses)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	// 5 addresses with chunk size 2: [0:2] [2:4] [4:5].
	if len(client.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(client.chunks))
	}

	for i, res := range results {
		if i == 3 {
			if res != nil {
				t.Errorf("addr3: expected nil, got %+v", res)
			}
			continue
		}
		if res == nil {
			t.Fatalf("addr%d: expected account, got nil", i)
		}
		if res.Lamports != uint64(i+1) {
			t.Errorf("addr%d: results out of order, lamports %d", i, res.Lamports)
		}
	}
}

func TestFetcher_FailedChunkFailsFetch(t *testing.T) {
	client := &fakeClient{
		accounts: map[string]*Account{"a": {}, "b": {}},
		failOn:   "c",
	}
	fetcher := NewFetcher(client, 1, 1)

	results, err := fetcher.Fetch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if results != nil {
		t.Errorf("expected no partial results, got %+v", results)
	}
}

func TestFetcher_EmptyInput(t *testing.T) {
	fetcher := NewFetcher(&fakeClient{}, 10, 2)

	results, err := fetcher.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %+v", results)
	}
}

func TestScanner_FollowsCursorToEnd(t *testing.T) {
	client := &fakeClient{
		pages: []fakePage{
			{accounts: []KeyedAccount{{Address: "a1"}, {Address: "a2"}}, next: "k1"},
			{accounts: []KeyedAccount{{Address: "a3"}}, next: "k2"},
			{accounts: nil, next: ""},
		},
	}
	scanner := NewScanner(client, 2)

	all, err := scanner.Scan(context.Background(), "prog", nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(all) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(all))
	}
	if all[0].Address != "a1" || all[2].Address != "a3" {
		t.Errorf("accounts out of order: %+v", all)
	}
}

func TestScanner_PageErrorStopsScan(t *testing.T) {
	client := &fakeClient{
		pages: []fakePage{
			{accounts: []KeyedAccount{{Address: "a1"}}, next: "k1"},
			{err: errors.New("page failure")},
		},
	}
	scanner := NewScanner(client, 1)

	if _, err := scanner.Scan(context.Background(), "prog", nil); err == nil {
		t.Fatal("expected error, got nil")
	}
}
