// Package events defines the typed domain events published toward the
// hosting application, the boundary decoder that maps raw wire frames onto
// them, and the translator that folds decoded events into the state store.
// This is the seam between the connection layer and any presentation layer:
// consumers subscribe to the Bus and never touch raw protocol frames.
package events

import (
	"time"

	"xrpdash.live/xrd/internal/xrpamount"
)

// Event is a typed domain event. The set is closed: every implementation
// lives in this package.
type Event interface {
	event()
}

// LedgerClosed is published when a new ledger is validated.
type LedgerClosed struct {
	LedgerIndex  int64
	LedgerHash   string
	CloseTime    time.Time // zero when the event carried no close time
	CloseTimeRaw int64     // seconds since the ledger epoch, zero when absent
	TxnCount     int
}

// AccountUpdated is published when an account's authoritative balance
// changes. PreviousBalance is nil on the first observation.
type AccountUpdated struct {
	Address         string
	Balance         xrpamount.Amount
	PreviousBalance *xrpamount.Amount
}

// Change returns the balance delta, or false when there is no previous
// balance to diff against.
func (e AccountUpdated) Change() (xrpamount.Amount, bool) {
	if e.PreviousBalance == nil {
		return xrpamount.Amount{}, false
	}
	return e.Balance.Sub(*e.PreviousBalance), true
}

// TransactionReceived is published for transactions observed on the
// subscription stream.
type TransactionReceived struct {
	Hash        string
	Type        string
	Validated   bool
	LedgerIndex int64
	Amount      *xrpamount.Amount
	Fee         *xrpamount.Amount
	Source      string
	Destination string
}

// TransactionValidated is published when a locally submitted transaction is
// validated by the network.
type TransactionValidated struct {
	Hash        string
	LedgerIndex int64
	ResultCode  string
}

// TransactionFailed is published when a locally submitted transaction fails.
type TransactionFailed struct {
	Hash      string
	Error     string
	ErrorCode string
}

// ConnectionStateChanged is published on every supervisor state transition.
type ConnectionStateChanged struct {
	State string
}

// IsConnected reports whether the new state is connected.
func (e ConnectionStateChanged) IsConnected() bool {
	return e.State == "connected"
}

// WalletCreated is published when a wallet is created or imported.
type WalletCreated struct {
	Address string
	Source  string
	Label   string
}

// WalletRemoved is published when a wallet is removed.
type WalletRemoved struct {
	Address string
}

func (LedgerClosed) event()           {}
func (AccountUpdated) event()         {}
func (TransactionReceived) event()    {}
func (TransactionValidated) event()   {}
func (TransactionFailed) event()      {}
func (ConnectionStateChanged) event() {}
func (WalletCreated) event()          {}
func (WalletRemoved) event()          {}
