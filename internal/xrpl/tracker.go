package xrpl

import "sync"

// StreamKind identifies a server-side event stream.
type StreamKind string

const (
	StreamLedger               StreamKind = "ledger"
	StreamTransactions         StreamKind = "transactions"
	StreamTransactionsProposed StreamKind = "transactions_proposed"
)

// subscribeConn is the slice of the supervisor the tracker uses.
type subscribeConn interface {
	Send(req Request, trackReplay bool) error
	ClearReplay()
}

// Tracker maintains the logical set of desired stream and account
// subscriptions. Its local sets are the source of truth; the supervisor
// replays the tracked subscribe requests mechanically after each reconnect,
// so subscriptions survive connection loss without caller involvement.
type Tracker struct {
	conn subscribeConn

	mu       sync.Mutex
	streams  map[StreamKind]struct{}
	accounts map[string]struct{}
}

// NewTracker creates a tracker on top of the supervisor.
func NewTracker(sup *Supervisor) *Tracker {
	return newTracker(sup)
}

func newTracker(conn subscribeConn) *Tracker {
	return &Tracker{
		conn:     conn,
		streams:  make(map[StreamKind]struct{}),
		accounts: make(map[string]struct{}),
	}
}

// SubscribeStream subscribes to a server event stream. Re-subscribing an
// already-subscribed stream is a no-op and issues no network call.
func (t *Tracker) SubscribeStream(kind StreamKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.streams[kind]; ok {
		return nil
	}

	req := Request{
		"command": "subscribe",
		"streams": []string{string(kind)},
	}
	if err := t.conn.Send(req, true); err != nil {
		return err
	}

	t.streams[kind] = struct{}{}
	return nil
}

// SubscribeAccounts subscribes to updates for the given addresses. Only the
// not-yet-subscribed addresses are sent, as a single batch request.
func (t *Tracker) SubscribeAccounts(addresses []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []string
	for _, addr := range addresses {
		if _, ok := t.accounts[addr]; !ok {
			fresh = append(fresh, addr)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	req := Request{
		"command":  "subscribe",
		"accounts": fresh,
	}
	if err := t.conn.Send(req, true); err != nil {
		return err
	}

	for _, addr := range fresh {
		t.accounts[addr] = struct{}{}
	}
	return nil
}

// SubscribeAccount subscribes to a single account's updates.
func (t *Tracker) SubscribeAccount(address string) error {
	return t.SubscribeAccounts([]string{address})
}

// UnsubscribeStream removes a stream subscription. Unsubscribing a stream
// that is not subscribed is a no-op.
func (t *Tracker) UnsubscribeStream(kind StreamKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.streams[kind]; !ok {
		return nil
	}

	req := Request{
		"command": "unsubscribe",
		"streams": []string{string(kind)},
	}
	if err := t.conn.Send(req, false); err != nil {
		return err
	}

	delete(t.streams, kind)
	return nil
}

// UnsubscribeAccount removes an account subscription. Unsubscribing an
// account that is not subscribed is a no-op.
func (t *Tracker) UnsubscribeAccount(address string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.accounts[address]; !ok {
		return nil
	}

	req := Request{
		"command":  "unsubscribe",
		"accounts": []string{address},
	}
	if err := t.conn.Send(req, false); err != nil {
		return err
	}

	delete(t.accounts, address)
	return nil
}

// UnsubscribeAll unsubscribes everything currently held, clears both local
// sets, and drops the supervisor's replay list. This is the only operation
// that touches the replay bookkeeping directly.
func (t *Tracker) UnsubscribeAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.streams) > 0 {
		streams := make([]string, 0, len(t.streams))
		for kind := range t.streams {
			streams = append(streams, string(kind))
		}
		req := Request{"command": "unsubscribe", "streams": streams}
		if err := t.conn.Send(req, false); err != nil {
			return err
		}
		t.streams = make(map[StreamKind]struct{})
	}

	if len(t.accounts) > 0 {
		accounts := make([]string, 0, len(t.accounts))
		for addr := range t.accounts {
			accounts = append(accounts, addr)
		}
		req := Request{"command": "unsubscribe", "accounts": accounts}
		if err := t.conn.Send(req, false); err != nil {
			return err
		}
		t.accounts = make(map[string]struct{})
	}

	t.conn.ClearReplay()
	return nil
}

// Streams returns a copy of the subscribed stream kinds.
func (t *Tracker) Streams() []StreamKind {
	t.mu.Lock()
	defer t.mu.Unlock()

	kinds := make([]StreamKind, 0, len(t.streams))
	for kind := range t.streams {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Accounts returns a copy of the subscribed account addresses.
func (t *Tracker) Accounts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	addrs := make([]string, 0, len(t.accounts))
	for addr := range t.accounts {
		addrs = append(addrs, addr)
	}
	return addrs
}
