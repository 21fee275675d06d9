// Package state holds the application state derived from the ledger event
// stream: the ledger cursor, tracked accounts with balances, managed wallets,
// and the transaction history. The Store is the single source of truth; it is
// mutated from the dispatch path and read from foreground goroutines.
package state

import (
	"fmt"
	"time"

	"xrpdash.live/xrd/internal/wallet"
	"xrpdash.live/xrd/internal/xrpamount"
)

// TransactionStatus is the lifecycle state of a tracked transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusValidated TransactionStatus = "validated"
	StatusFailed    TransactionStatus = "failed"
)

// WalletSource records how a wallet entered the session.
type WalletSource string

const (
	SourceFaucet   WalletSource = "faucet"
	SourceImported WalletSource = "imported"
)

// ledgerEpoch is the zero point of ledger close times: 2000-01-01 00:00 UTC.
var ledgerEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// WalletInfo describes a managed wallet. The signer reference is the only
// link to secret material and is never serialized or logged.
type WalletInfo struct {
	Address   string
	Signer    wallet.Signer
	Source    WalletSource
	Label     string
	CreatedAt time.Time
}

// ShortAddress returns a truncated address for log lines.
func (w WalletInfo) ShortAddress() string {
	return shortAddress(w.Address)
}

// AccountState tracks a single account's balance. PreviousBalance holds the
// immediately prior balance only, a one-step delta buffer rather than a log.
type AccountState struct {
	Address         string
	Balance         xrpamount.Amount
	PreviousBalance *xrpamount.Amount
	Sequence        uint32
	LastUpdated     time.Time
}

// BalanceChange returns the delta since the previous balance, or false when
// no previous balance has been observed.
func (a AccountState) BalanceChange() (xrpamount.Amount, bool) {
	if a.PreviousBalance == nil {
		return xrpamount.Amount{}, false
	}
	return a.Balance.Sub(*a.PreviousBalance), true
}

// ShortAddress returns a truncated address for log lines.
func (a AccountState) ShortAddress() string {
	return shortAddress(a.Address)
}

// TransactionRecord tracks a transaction through its lifecycle. Records are
// created pending (locally submitted) or directly validated (observed via the
// subscription stream).
type TransactionRecord struct {
	Hash         string
	Type         string
	Status       TransactionStatus
	Amount       *xrpamount.Amount
	Fee          *xrpamount.Amount
	Source       string
	Destination  string
	LedgerIndex  int64
	Timestamp    time.Time
	ErrorMessage string
}

// ShortHash returns a truncated hash for log lines.
func (t TransactionRecord) ShortHash() string {
	if len(t.Hash) <= 16 {
		return t.Hash
	}
	return fmt.Sprintf("%s...%s", t.Hash[:8], t.Hash[len(t.Hash)-8:])
}

// LedgerCursor is the most recent validated ledger. Overwritten wholesale on
// each ledger close event; no history is retained.
type LedgerCursor struct {
	Index     int64
	Hash      string
	CloseTime time.Time
	TxnCount  int
}

// LedgerTime converts a raw ledger close time (seconds since the ledger
// epoch) to wall-clock time.
func LedgerTime(raw int64) time.Time {
	return ledgerEpoch.Add(time.Duration(raw) * time.Second)
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:6], addr[len(addr)-4:])
}
