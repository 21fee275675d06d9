package events

import (
	"fmt"
	"sync"
	"testing"

	"xrpdash.live/xrd/internal/journal"
	"xrpdash.live/xrd/internal/state"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestTranslator() (*Translator, *state.Store, *eventRecorder) {
	store := state.NewStore(0)
	bus := NewBus()
	rec := &eventRecorder{}
	bus.Subscribe(rec.listen)
	return NewTranslator(store, bus, journal.New(50)), store, rec
}

func TestLedgerClosedUpdatesCursor(t *testing.T) {
	translator, store, rec := newTestTranslator()

	translator.HandleFrame([]byte(`{
		"type": "ledgerClosed",
		"ledger_index": 900,
		"ledger_hash": "FACE",
		"ledger_time": 800000000,
		"txn_count": 4
	}`))

	cursor := store.Ledger()
	if cursor.Index != 900 || cursor.Hash != "FACE" || cursor.TxnCount != 4 {
		t.Errorf("cursor = %+v", cursor)
	}
	if cursor.CloseTime.IsZero() {
		t.Error("close time not converted")
	}

	evs := rec.all()
	if len(evs) != 1 {
		t.Fatalf("published %d events, want 1", len(evs))
	}
	if _, ok := evs[0].(LedgerClosed); !ok {
		t.Errorf("published %T, want LedgerClosed", evs[0])
	}
}

func TestReceivedTransactionEntersHistory(t *testing.T) {
	translator, store, rec := newTestTranslator()

	translator.HandleFrame(txFrame("AAA", true, 500))

	recent := store.RecentTransactions()
	if len(recent) != 1 || recent[0].Status != state.StatusValidated {
		t.Fatalf("history = %+v", recent)
	}

	evs := rec.all()
	if len(evs) != 1 {
		t.Fatalf("published %d events, want 1", len(evs))
	}
	if _, ok := evs[0].(TransactionReceived); !ok {
		t.Errorf("published %T, want TransactionReceived", evs[0])
	}
}

func TestPendingTransactionValidatedByStream(t *testing.T) {
	translator, store, rec := newTestTranslator()

	store.AddPendingTransaction("AAA", "Payment", nil, nil, "rSRC", "rDST")
	translator.HandleFrame(txFrame("AAA", true, 501))

	if got := store.PendingTransactions(); len(got) != 0 {
		t.Errorf("pending set not drained: %+v", got)
	}
	recent := store.RecentTransactions()
	if len(recent) != 1 || recent[0].Status != state.StatusValidated || recent[0].LedgerIndex != 501 {
		t.Fatalf("history = %+v", recent)
	}

	evs := rec.all()
	if len(evs) != 1 {
		t.Fatalf("published %d events, want 1", len(evs))
	}
	validated, ok := evs[0].(TransactionValidated)
	if !ok {
		t.Fatalf("published %T, want TransactionValidated", evs[0])
	}
	if validated.Hash != "AAA" || validated.LedgerIndex != 501 {
		t.Errorf("unexpected event: %+v", validated)
	}

	// A duplicate validation notice must not duplicate the record and must
	// not publish or journal a second time.
	translator.HandleFrame(txFrame("AAA", true, 502))
	if got := len(store.RecentTransactions()); got != 1 {
		t.Errorf("duplicate notice duplicated the record: %d entries", got)
	}
	if got := len(rec.all()); got != 1 {
		t.Errorf("duplicate notice published %d events, want 1", got)
	}
}

func TestDuplicateFrameForReceivedTransactionIsSilent(t *testing.T) {
	translator, store, rec := newTestTranslator()

	// The transactions stream and an account subscription deliver the same
	// validated transaction twice.
	translator.HandleFrame(txFrame("EEE", true, 700))
	translator.HandleFrame(txFrame("EEE", true, 700))

	if got := len(store.RecentTransactions()); got != 1 {
		t.Fatalf("history holds %d records, want 1", got)
	}

	evs := rec.all()
	if len(evs) != 1 {
		t.Fatalf("published %d events, want 1", len(evs))
	}
	if _, ok := evs[0].(TransactionReceived); !ok {
		t.Errorf("published %T, want TransactionReceived", evs[0])
	}
	for _, ev := range evs {
		if _, ok := ev.(TransactionValidated); ok {
			t.Error("never-pending transaction published TransactionValidated")
		}
	}
}

func TestUnvalidatedFrameIsIgnored(t *testing.T) {
	translator, store, rec := newTestTranslator()

	translator.HandleFrame(txFrame("BBB", false, 0))

	if got := len(store.RecentTransactions()); got != 0 {
		t.Errorf("unvalidated transaction entered history")
	}
	if got := len(rec.all()); got != 0 {
		t.Errorf("published %d events for unvalidated frame", got)
	}
}

func TestTrackedActivityTriggersRefreshHook(t *testing.T) {
	translator, store, _ := newTestTranslator()

	kicked := 0
	translator.OnTrackedActivity = func() { kicked++ }

	// Not tracked yet: no kick.
	translator.HandleFrame(txFrame("CCC", true, 10))
	if kicked != 0 {
		t.Errorf("untracked transaction kicked refresh %d times", kicked)
	}

	store.AddAccount("rSRC")
	translator.HandleFrame(txFrame("DDD", true, 11))
	if kicked != 1 {
		t.Errorf("tracked transaction kicked refresh %d times, want 1", kicked)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	translator, store, rec := newTestTranslator()

	translator.HandleFrame([]byte(`{not json`))

	if got := len(rec.all()); got != 0 {
		t.Errorf("malformed frame published %d events", got)
	}
	if got := len(store.RecentTransactions()); got != 0 {
		t.Errorf("malformed frame mutated the store")
	}
}

func txFrame(hash string, validated bool, ledgerIndex int64) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "transaction",
		"validated": %t,
		"ledger_index": %d,
		"transaction": {
			"hash": %q,
			"TransactionType": "Payment",
			"Account": "rSRC",
			"Destination": "rDST",
			"Amount": "1000000",
			"Fee": "12"
		}
	}`, validated, ledgerIndex, hash))
}
