package solana

import "context"

// AccountUpdate is one accountSubscribe notification: the watched account
// changed on-chain at the given slot.
type AccountUpdate struct {
	Pubkey   string
	Slot     int64
	Lamports uint64
}

// Watcher delivers change notifications for watched accounts.
type Watcher interface {
	// Watch subscribes to changes of the account at pubkey.
	Watch(ctx context.Context, pubkey string) (<-chan AccountUpdate, error)

	// Close closes the underlying connection.
	Close() error
}
