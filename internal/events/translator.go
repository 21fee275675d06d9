package events

import (
	"log"

	"xrpdash.live/xrd/internal/journal"
	"xrpdash.live/xrd/internal/state"
)

// Translator converts raw protocol frames into typed domain events, folds
// them into the state store, and publishes them on the bus. It is registered
// as a supervisor message callback and therefore runs on the dispatch
// goroutine: store mutations along this path are naturally serialized. Any
// other mutation path (the balance refresher, payment submission) goes
// through the store's own lock.
type Translator struct {
	store   *state.Store
	bus     *Bus
	journal *journal.Journal

	// OnTrackedActivity, when set, is invoked after a transaction frame
	// touching a tracked account, so the host can kick a balance refresh.
	// It must not block.
	OnTrackedActivity func()
}

// NewTranslator creates a translator writing through to the given store,
// bus, and journal.
func NewTranslator(store *state.Store, bus *Bus, jrnl *journal.Journal) *Translator {
	return &Translator{
		store:   store,
		bus:     bus,
		journal: jrnl,
	}
}

// HandleFrame is the supervisor message callback. Malformed frames are
// logged and dropped; they never abort the read loop.
func (t *Translator) HandleFrame(frame []byte) {
	ev, err := Decode(frame)
	if err != nil {
		log.Printf("events: dropping malformed frame: %v", err)
		return
	}
	if ev == nil {
		return
	}
	t.apply(ev)
}

func (t *Translator) apply(ev Event) {
	switch e := ev.(type) {
	case LedgerClosed:
		t.store.UpdateLedger(e.LedgerIndex, e.LedgerHash, e.CloseTimeRaw, e.TxnCount)
		t.journal.Record(journal.KindLedger, "ledger %d closed (%d txns)", e.LedgerIndex, e.TxnCount)
		t.bus.Publish(e)

	case TransactionReceived:
		t.applyTransaction(e)

	case ConnectionStateChanged:
		t.journal.Record(journal.KindConnection, "connection %s", e.State)
		t.bus.Publish(e)

	default:
		t.bus.Publish(ev)
	}
}

// applyTransaction folds a validated transaction frame into the store. A
// pending hash belongs to a locally submitted transaction: it transitions to
// validated exactly once. An unknown hash is recorded as received history. A
// hash already finalized is a duplicate delivery (the transactions stream
// and an account subscription both carry the same transaction) and must not
// publish or journal again.
func (t *Translator) applyTransaction(e TransactionReceived) {
	if e.Validated {
		if t.store.MarkTransactionValidated(e.Hash, e.LedgerIndex) {
			t.journal.Record(journal.KindTransaction, "tx %s validated in ledger %d", shortHash(e.Hash), e.LedgerIndex)
			t.bus.Publish(TransactionValidated{
				Hash:        e.Hash,
				LedgerIndex: e.LedgerIndex,
				ResultCode:  "tesSUCCESS",
			})
		} else if _, known := t.store.GetTransaction(e.Hash); !known {
			t.store.AddReceivedTransaction(e.Hash, e.Type, e.LedgerIndex, e.Amount, e.Fee, e.Source, e.Destination)
			t.journal.Record(journal.KindTransaction, "tx %s received (%s)", shortHash(e.Hash), e.Type)
			t.bus.Publish(e)
		}
	}

	if t.OnTrackedActivity != nil && t.touchesTrackedAccount(e) {
		t.OnTrackedActivity()
	}
}

func (t *Translator) touchesTrackedAccount(e TransactionReceived) bool {
	for _, addr := range t.store.AccountAddresses() {
		if addr == e.Source || addr == e.Destination {
			return true
		}
	}
	return false
}

func shortHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-8:]
}
