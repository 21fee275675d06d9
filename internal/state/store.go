package state

import (
	"sync"
	"time"

	"xrpdash.live/xrd/internal/wallet"
	"xrpdash.live/xrd/internal/xrpamount"
)

// DefaultHistoryLimit bounds the recent transaction history.
const DefaultHistoryLimit = 50

// Store is the single source of truth for derived application state. All
// methods are safe for concurrent use: the event translator mutates the store
// from the dispatch goroutine while foreground goroutines read snapshots.
// Accessors return copies, never live aliases.
type Store struct {
	mu sync.RWMutex

	ledger   LedgerCursor
	wallets  map[string]WalletInfo
	accounts map[string]AccountState

	pending      []TransactionRecord
	recent       []TransactionRecord // most-recent-first
	historyLimit int
}

// NewStore creates an empty store. A historyLimit of zero selects the
// default of 50 recent transactions.
func NewStore(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{
		wallets:      make(map[string]WalletInfo),
		accounts:     make(map[string]AccountState),
		historyLimit: historyLimit,
	}
}

// UpdateLedger overwrites the ledger cursor from a ledger close event.
// closeTimeRaw is seconds since the ledger epoch; zero means the event
// carried no close time and the previous value is kept. The index is stored
// as reported, without monotonicity validation.
func (s *Store) UpdateLedger(index int64, hash string, closeTimeRaw int64, txnCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Index = index
	s.ledger.Hash = hash
	s.ledger.TxnCount = txnCount
	if closeTimeRaw != 0 {
		s.ledger.CloseTime = LedgerTime(closeTimeRaw)
	}
}

// Ledger returns a copy of the current ledger cursor.
func (s *Store) Ledger() LedgerCursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

// AddWallet registers a wallet and ensures a corresponding account entry
// exists (with zero balance until the first update). Re-adding an address
// overwrites the previous entry. Never fails.
func (s *Store) AddWallet(signer wallet.Signer, source WalletSource, label string) WalletInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := WalletInfo{
		Address:   signer.Address(),
		Signer:    signer,
		Source:    source,
		Label:     label,
		CreatedAt: time.Now(),
	}
	s.wallets[info.Address] = info

	if _, ok := s.accounts[info.Address]; !ok {
		s.accounts[info.Address] = AccountState{
			Address:     info.Address,
			Balance:     xrpamount.FromDrops(0),
			LastUpdated: time.Now(),
		}
	}
	return info
}

// RemoveWallet drops a wallet entry, keeping the account state for history.
func (s *Store) RemoveWallet(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wallets, address)
}

// GetWallet returns the wallet for an address, if present.
func (s *Store) GetWallet(address string) (WalletInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.wallets[address]
	return info, ok
}

// UpdateAccountBalance records the authoritative balance for an account,
// shifting the current balance into PreviousBalance. The value must be a
// full replacement, never a delta. Unknown accounts are created with no
// previous balance. The updated account state is returned.
func (s *Store) UpdateAccountBalance(address string, balance xrpamount.Amount) AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[address]
	if ok {
		prev := acct.Balance
		acct.PreviousBalance = &prev
		acct.Balance = balance
		acct.LastUpdated = time.Now()
	} else {
		acct = AccountState{
			Address:     address,
			Balance:     balance,
			LastUpdated: time.Now(),
		}
	}
	s.accounts[address] = acct
	return acct
}

// SetAccountSequence records the account's sequence counter as reported by
// the network.
func (s *Store) SetAccountSequence(address string, sequence uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[address]
	if !ok {
		return
	}
	acct.Sequence = sequence
	s.accounts[address] = acct
}

// AddAccount starts tracking an account without a wallet. Adding a known
// address is a no-op.
func (s *Store) AddAccount(address string) AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[address]; ok {
		return acct
	}
	acct := AccountState{
		Address:     address,
		Balance:     xrpamount.FromDrops(0),
		LastUpdated: time.Now(),
	}
	s.accounts[address] = acct
	return acct
}

// RemoveAccount stops tracking an account and removes any wallet for it.
func (s *Store) RemoveAccount(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, address)
	delete(s.wallets, address)
}

// GetAccount returns the tracked state for an address, if present.
func (s *Store) GetAccount(address string) (AccountState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[address]
	return acct, ok
}

// AddPendingTransaction records a locally submitted transaction awaiting
// validation and returns the created record for correlation.
func (s *Store) AddPendingTransaction(hash, txType string, amount, fee *xrpamount.Amount, source, destination string) TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := TransactionRecord{
		Hash:        hash,
		Type:        txType,
		Status:      StatusPending,
		Amount:      amount,
		Fee:         fee,
		Source:      source,
		Destination: destination,
		Timestamp:   time.Now(),
	}
	s.pending = append(s.pending, record)
	return record
}

// MarkTransactionValidated moves a pending transaction into the recent
// history as validated and reports whether a pending record transitioned.
// Unknown hashes are a silent no-op so duplicate validation notices are
// tolerated; callers use the return value to suppress duplicate
// notifications.
func (s *Store) MarkTransactionValidated(hash string, ledgerIndex int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolvePending(hash, func(record *TransactionRecord) {
		record.Status = StatusValidated
		record.LedgerIndex = ledgerIndex
	})
}

// MarkTransactionFailed moves a pending transaction into the recent history
// as failed and reports whether a pending record transitioned. Unknown
// hashes are a silent no-op.
func (s *Store) MarkTransactionFailed(hash, errMessage string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolvePending(hash, func(record *TransactionRecord) {
		record.Status = StatusFailed
		record.ErrorMessage = errMessage
	})
}

// resolvePending locates a hash in the pending set only, applies the
// mutation, and moves the record to the front of the recent history. It
// reports whether a pending record was found.
func (s *Store) resolvePending(hash string, mutate func(*TransactionRecord)) bool {
	for i := range s.pending {
		if s.pending[i].Hash != hash {
			continue
		}
		record := s.pending[i]
		mutate(&record)

		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.insertRecent(record)
		return true
	}
	return false
}

// AddReceivedTransaction records a transaction observed as already validated
// via the subscription stream, bypassing the pending set.
func (s *Store) AddReceivedTransaction(hash, txType string, ledgerIndex int64, amount, fee *xrpamount.Amount, source, destination string) TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := TransactionRecord{
		Hash:        hash,
		Type:        txType,
		Status:      StatusValidated,
		Amount:      amount,
		Fee:         fee,
		Source:      source,
		Destination: destination,
		LedgerIndex: ledgerIndex,
		Timestamp:   time.Now(),
	}
	s.insertRecent(record)
	return record
}

func (s *Store) insertRecent(record TransactionRecord) {
	s.recent = append([]TransactionRecord{record}, s.recent...)
	if len(s.recent) > s.historyLimit {
		s.recent = s.recent[:s.historyLimit]
	}
}

// GetTransaction finds a transaction by hash, searching the pending set
// first, then the recent history.
func (s *Store) GetTransaction(hash string) (TransactionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.pending {
		if record.Hash == hash {
			return record, true
		}
	}
	for _, record := range s.recent {
		if record.Hash == hash {
			return record, true
		}
	}
	return TransactionRecord{}, false
}

// PendingTransactions returns a copy of the pending set.
func (s *Store) PendingTransactions() []TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TransactionRecord, len(s.pending))
	copy(out, s.pending)
	return out
}

// RecentTransactions returns a copy of the recent history, most recent
// first.
func (s *Store) RecentTransactions() []TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TransactionRecord, len(s.recent))
	copy(out, s.recent)
	return out
}

// Accounts returns a copy of all tracked account states.
func (s *Store) Accounts() []AccountState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AccountState, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	return out
}

// Wallets returns a copy of all managed wallets.
func (s *Store) Wallets() []WalletInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WalletInfo, 0, len(s.wallets))
	for _, info := range s.wallets {
		out = append(out, info)
	}
	return out
}

// AccountAddresses returns a snapshot of all tracked account addresses.
func (s *Store) AccountAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.accounts))
	for addr := range s.accounts {
		out = append(out, addr)
	}
	return out
}

// WalletAddresses returns a snapshot of all wallet addresses.
func (s *Store) WalletAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.wallets))
	for addr := range s.wallets {
		out = append(out, addr)
	}
	return out
}
