package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WatcherConfig configures AccountWatcher behavior.
type WatcherConfig struct {
	// ReconnectDelay is initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the keepalive ping period.
	PingInterval time.Duration
	// ReadTimeout bounds a single message read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single message write.
	WriteTimeout time.Duration
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// AccountWatcher implements Watcher over a Solana WebSocket endpoint
// using accountSubscribe. Subscriptions survive reconnects: on a new
// connection every watched pubkey is resubscribed and its channel kept.
type AccountWatcher struct {
	endpoint string
	config   WatcherConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps provider subscription ID to the delivery channel;
	// watched maps it to the pubkey for resubscription.
	subs    map[int64]chan AccountUpdate
	watched map[int64]string
	subsMu  sync.Mutex

	// pending maps request ID to the channel awaiting a subscription ID.
	pending   map[uint64]chan int64
	pendingMu sync.Mutex

	done         chan struct{}
	wg           sync.WaitGroup
	reconnecting atomic.Bool
}

// NewAccountWatcher connects to the WebSocket endpoint.
func NewAccountWatcher(ctx context.Context, endpoint string, config *WatcherConfig, logger *log.Logger) (*AccountWatcher, error) {
	cfg := DefaultWatcherConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[account-watch] ", log.LstdFlags)
	}

	w := &AccountWatcher{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		subs:     make(map[int64]chan AccountUpdate),
		watched:  make(map[int64]string),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(2)
	go w.readLoop()
	go w.pingLoop()

	return w, nil
}

// Compile-time interface check.
var _ Watcher = (*AccountWatcher)(nil)

func (w *AccountWatcher) connect(ctx context.Context) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	w.conn = conn
	return nil
}

// Watch subscribes to changes of the account at pubkey.
func (w *AccountWatcher) Watch(ctx context.Context, pubkey string) (<-chan AccountUpdate, error) {
	subID, err := w.subscribe(ctx, pubkey)
	if err != nil {
		return nil, err
	}

	ch := make(chan AccountUpdate, 64)
	w.subsMu.Lock()
	w.subs[subID] = ch
	w.watched[subID] = pubkey
	w.subsMu.Unlock()

	return ch, nil
}

// subscribe sends accountSubscribe and waits for the subscription ID.
func (w *AccountWatcher) subscribe(ctx context.Context, pubkey string) (int64, error) {
	if w.closed.Load() {
		return 0, fmt.Errorf("watcher closed")
	}

	reqID := w.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "accountSubscribe",
		Params: []interface{}{
			pubkey,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	w.pendingMu.Lock()
	w.pending[reqID] = confirmCh
	w.pendingMu.Unlock()

	dropPending := func() {
		w.pendingMu.Lock()
		delete(w.pending, reqID)
		w.pendingMu.Unlock()
	}

	w.connMu.Lock()
	if w.conn == nil {
		w.connMu.Unlock()
		dropPending()
		return 0, fmt.Errorf("not connected")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	err := w.conn.WriteJSON(req)
	w.connMu.Unlock()

	if err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		dropPending()
		return 0, fmt.Errorf("subscription timeout")
	case <-w.done:
		return 0, fmt.Errorf("watcher closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// Close closes the connection and all delivery channels.
func (w *AccountWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.subsMu.Lock()
	for id, ch := range w.subs {
		close(ch)
		delete(w.subs, id)
		delete(w.watched, id)
	}
	w.subsMu.Unlock()

	w.pendingMu.Lock()
	for id, ch := range w.pending {
		close(ch)
		delete(w.pending, id)
	}
	w.pendingMu.Unlock()

	w.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches to subscribers, reconnecting
// with exponential backoff on connection errors.
func (w *AccountWatcher) readLoop() {
	defer w.wg.Done()

	reconnectDelay := w.config.ReconnectDelay

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}
			if !w.reconnecting.Swap(true) {
				go w.reconnect(reconnectDelay)
			}
			reconnectDelay *= 2
			if reconnectDelay > w.config.MaxReconnectDelay {
				reconnectDelay = w.config.MaxReconnectDelay
			}
			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = w.config.ReconnectDelay
		w.handleMessage(message)
	}
}

// reconnect re-establishes the connection and resubscribes everything.
func (w *AccountWatcher) reconnect(delay time.Duration) {
	defer w.reconnecting.Store(false)

	if w.closed.Load() {
		return
	}

	select {
	case <-w.done:
		return
	case <-time.After(delay):
	}

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.connect(ctx); err != nil {
		w.logger.Printf("reconnect failed: %v", err)
		return
	}

	w.resubscribeAll()
}

// resubscribeAll reissues accountSubscribe for every watched pubkey and
// rebinds the existing delivery channels to the new subscription IDs.
func (w *AccountWatcher) resubscribeAll() {
	w.subsMu.Lock()
	old := make(map[int64]string, len(w.watched))
	for id, pubkey := range w.watched {
		old[id] = pubkey
	}
	w.subsMu.Unlock()

	for oldID, pubkey := range old {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := w.subscribe(ctx, pubkey)
		cancel()
		if err != nil {
			w.logger.Printf("resubscribe %s: %v", pubkey, err)
			continue
		}

		w.subsMu.Lock()
		if ch, ok := w.subs[oldID]; ok {
			delete(w.subs, oldID)
			delete(w.watched, oldID)
			w.subs[newID] = ch
			w.watched[newID] = pubkey
		}
		w.subsMu.Unlock()
	}
}

// handleMessage processes one incoming WebSocket message.
func (w *AccountWatcher) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		w.pendingMu.Lock()
		ch, ok := w.pending[resp.ID]
		if ok {
			delete(w.pending, resp.ID)
		}
		w.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp.Result:
			default:
			}
		}
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "accountNotification" {
		w.handleAccountNotification(&notif)
		return
	}

	var errResp struct {
		Error *rpcError `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		w.logger.Printf("provider error: %v", errResp.Error)
	}
}

// handleAccountNotification dispatches an update to its subscriber.
// Delivery is best-effort: updates are only a recheck nudge, dropping one
// under backpressure loses nothing the next scan would not recover.
func (w *AccountWatcher) handleAccountNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	subID := notif.Params.Subscription

	w.subsMu.Lock()
	ch, ok := w.subs[subID]
	pubkey := w.watched[subID]
	w.subsMu.Unlock()
	if !ok {
		return
	}

	update := AccountUpdate{
		Pubkey:   pubkey,
		Lamports: notif.Params.Result.Value.Lamports,
	}
	if notif.Params.Result.Context != nil {
		update.Slot = notif.Params.Result.Context.Slot
	}

	select {
	case ch <- update:
	default:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (w *AccountWatcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				// Write errors surface on the next read; the reader owns
				// reconnection.
				w.conn.WriteMessage(websocket.PingMessage, nil)
			}
			w.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext     `json:"context"`
	Value   wsAccountValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsAccountValue struct {
	Lamports uint64 `json:"lamports"`
	Owner    string `json:"owner"`
}
