// Package payments builds, signs, and submits XRP payments, and records
// their lifecycle in the state store. Signing is delegated to the wallet's
// Signer; this package only ever sees the signed blob and hash.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"xrpdash.live/xrd/internal/events"
	"xrpdash.live/xrd/internal/state"
	"xrpdash.live/xrd/internal/xrpamount"
	"xrpdash.live/xrd/internal/xrpl"
)

// DefaultFee is the transaction fee attached to payments, in drops.
var DefaultFee = xrpamount.FromDrops(12)

// Requester issues request/response commands over the live connection.
// *xrpl.Supervisor satisfies it.
type Requester interface {
	Request(ctx context.Context, req xrpl.Request) (*xrpl.Response, error)
}

// Submitter submits signed payments and tracks them as pending until the
// transaction stream reports validation.
type Submitter struct {
	conn  Requester
	store *state.Store
	bus   *events.Bus
}

// NewSubmitter creates a submitter sending over conn and recording in store.
// Submission failures are published on the bus.
func NewSubmitter(conn Requester, store *state.Store, bus *events.Bus) *Submitter {
	return &Submitter{conn: conn, store: store, bus: bus}
}

func (sb *Submitter) fail(hash, message, code string) {
	sb.store.MarkTransactionFailed(hash, message)
	sb.bus.Publish(events.TransactionFailed{Hash: hash, Error: message, ErrorCode: code})
}

// Submit signs and submits a payment from the wallet at sourceAddress to
// destination. The returned record is the pending entry added to the store;
// validation arrives later via the transaction stream.
//
// A provisional engine result other than tes-class marks the transaction
// failed immediately. A tes-class result leaves it pending: only a validated
// ledger finalizes it.
func (sb *Submitter) Submit(ctx context.Context, sourceAddress, destination string, amount xrpamount.Amount) (state.TransactionRecord, error) {
	var zero state.TransactionRecord

	if amount.Drops() <= 0 {
		return zero, fmt.Errorf("payment amount must be positive, got %s drops", amount.FormatDrops(false))
	}
	if sourceAddress == destination {
		return zero, fmt.Errorf("payment source and destination are the same account %s", destination)
	}

	info, ok := sb.store.GetWallet(sourceAddress)
	if !ok {
		return zero, fmt.Errorf("no wallet for address %s", sourceAddress)
	}

	acct, ok := sb.store.GetAccount(sourceAddress)
	if !ok {
		return zero, fmt.Errorf("no account state for address %s", sourceAddress)
	}

	total := amount.Add(DefaultFee)
	if acct.Balance.Cmp(total) < 0 {
		return zero, fmt.Errorf("insufficient balance: have %s, need %s",
			acct.Balance.FormatDrops(false), total.FormatDrops(false))
	}

	tx := map[string]any{
		"TransactionType": "Payment",
		"Account":         sourceAddress,
		"Destination":     destination,
		"Amount":          fmt.Sprintf("%d", amount.Drops()),
		"Fee":             fmt.Sprintf("%d", DefaultFee.Drops()),
		"Sequence":        acct.Sequence,
	}

	blob, hash, err := info.Signer.SignTx(tx)
	if err != nil {
		return zero, fmt.Errorf("failed to sign payment: %w", err)
	}

	fee := DefaultFee
	record := sb.store.AddPendingTransaction(hash, "Payment", &amount, &fee, sourceAddress, destination)

	resp, err := sb.conn.Request(ctx, xrpl.Request{
		"command": "submit",
		"tx_blob": blob,
	})
	if err != nil {
		sb.fail(hash, err.Error(), "")
		return zero, fmt.Errorf("failed to submit payment %s: %w", hash, err)
	}

	engine, err := engineResult(resp)
	if err != nil {
		sb.fail(hash, err.Error(), "")
		return zero, fmt.Errorf("failed to submit payment %s: %w", hash, err)
	}

	// tes-class results are provisional success: the payment stays pending
	// until the transaction stream reports it in a validated ledger.
	if !strings.HasPrefix(engine.Result, "tes") {
		sb.fail(hash, engine.Message, engine.Result)
		return zero, fmt.Errorf("payment %s rejected: %s (%s)", hash, engine.Result, engine.Message)
	}

	// The server consumed a sequence number; advance the local copy so a
	// follow-up payment before the next balance refresh does not reuse it.
	sb.store.SetAccountSequence(sourceAddress, acct.Sequence+1)

	log.Printf("payments: submitted %s from %s to %s (%s)",
		record.ShortHash(), sourceAddress, destination, amount.FormatXRP(false))
	return record, nil
}

type submitResult struct {
	Result  string
	Message string
}

func engineResult(resp *xrpl.Response) (submitResult, error) {
	var result struct {
		EngineResult        string `json:"engine_result"`
		EngineResultMessage string `json:"engine_result_message"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return submitResult{}, fmt.Errorf("failed to parse submit result: %w", err)
	}
	if result.EngineResult == "" {
		return submitResult{}, fmt.Errorf("submit result missing engine result")
	}
	return submitResult{Result: result.EngineResult, Message: result.EngineResultMessage}, nil
}
