// Package balance keeps tracked account balances current by polling
// account_info over the live connection, on a timer and on demand.
package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"xrpdash.live/xrd/internal/events"
	"xrpdash.live/xrd/internal/journal"
	"xrpdash.live/xrd/internal/state"
	"xrpdash.live/xrd/internal/xrpamount"
	"xrpdash.live/xrd/internal/xrpl"
)

// DefaultInterval is the periodic refresh interval.
const DefaultInterval = 30 * time.Second

// Requester issues request/response commands over the live connection.
// *xrpl.Supervisor satisfies it.
type Requester interface {
	Request(ctx context.Context, req xrpl.Request) (*xrpl.Response, error)
}

// Refresher polls account_info for every tracked account on a fixed interval
// and whenever Kick is called. Queries are paced by a rate limiter so a large
// tracked set does not flood the server. Observed balance changes are
// recorded in the activity journal.
type Refresher struct {
	conn    Requester
	store   *state.Store
	bus     *events.Bus
	journal *journal.Journal
	limiter *rate.Limiter

	interval time.Duration
	kick     chan struct{}
}

// NewRefresher creates a refresher polling every interval, pacing individual
// queries at requestsPerSecond. Zero values select the defaults.
func NewRefresher(conn Requester, store *state.Store, bus *events.Bus, jrnl *journal.Journal, interval time.Duration, requestsPerSecond float64) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}

	return &Refresher{
		conn:     conn,
		store:    store,
		bus:      bus,
		journal:  jrnl,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Kick schedules an immediate refresh round. It never blocks; a kick while
// one is already queued is coalesced.
func (r *Refresher) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run refreshes on the interval and on kicks until ctx is canceled.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.kick:
		}
		r.RefreshAll(ctx)
	}
}

// RefreshAll refreshes every tracked account once. Individual account
// failures are logged and skipped; a dropped connection abandons the round,
// since the remaining queries would fail the same way.
func (r *Refresher) RefreshAll(ctx context.Context) {
	for _, address := range r.store.AccountAddresses() {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if err := r.Refresh(ctx, address); err != nil {
			if errors.Is(err, xrpl.ErrNotConnected) || ctx.Err() != nil {
				return
			}
			log.Printf("balance: refresh %s: %v", address, err)
		}
	}
}

// Refresh queries account_info for one address and folds the result into the
// store, publishing AccountUpdated when it succeeds.
func (r *Refresher) Refresh(ctx context.Context, address string) error {
	resp, err := r.conn.Request(ctx, xrpl.Request{
		"command":      "account_info",
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		return err
	}

	var result struct {
		AccountData struct {
			Balance  string `json:"Balance"`
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("failed to parse account_info result: %w", err)
	}

	amount, err := xrpamount.ParseDrops(result.AccountData.Balance)
	if err != nil {
		return fmt.Errorf("failed to parse balance %q: %w", result.AccountData.Balance, err)
	}

	updated := r.store.UpdateAccountBalance(address, amount)
	r.store.SetAccountSequence(address, result.AccountData.Sequence)

	if change, ok := updated.BalanceChange(); ok && !change.IsZero() {
		r.journal.Record(journal.KindAccount, "account %s balance %s (%+d drops)",
			updated.ShortAddress(), updated.Balance.FormatXRP(false), change.Drops())
	}

	r.bus.Publish(events.AccountUpdated{
		Address:         address,
		Balance:         updated.Balance,
		PreviousBalance: updated.PreviousBalance,
	})
	return nil
}
