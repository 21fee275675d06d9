package events

import (
	"encoding/json"
	"fmt"

	"xrpdash.live/xrd/internal/state"
	"xrpdash.live/xrd/internal/xrpamount"
	"xrpdash.live/xrd/internal/xrpl"
)

// frameEnvelope is the loosely typed outer shape of an inbound frame. Frames
// are distinguished by their "type" tag.
type frameEnvelope struct {
	Type        string          `json:"type"`
	State       string          `json:"state"`
	LedgerIndex int64           `json:"ledger_index"`
	LedgerHash  string          `json:"ledger_hash"`
	LedgerTime  int64           `json:"ledger_time"`
	TxnCount    int             `json:"txn_count"`
	Validated   bool            `json:"validated"`
	Transaction json.RawMessage `json:"transaction"`
}

// wireTransaction is the inner transaction object of a transaction frame.
// Amount is a raw message because issued-currency amounts are objects; only
// native drop strings are decoded.
type wireTransaction struct {
	Hash            string          `json:"hash"`
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          json.RawMessage `json:"Amount"`
	Fee             string          `json:"Fee"`
}

// Decode maps a raw frame onto a typed event. It is the single point where
// the untyped wire format enters the typed event set. Frames with an unknown
// type tag decode to (nil, nil): they are not an error, just not interesting.
func Decode(frame []byte) (Event, error) {
	var env frameEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch env.Type {
	case "ledgerClosed":
		ev := LedgerClosed{
			LedgerIndex:  env.LedgerIndex,
			LedgerHash:   env.LedgerHash,
			CloseTimeRaw: env.LedgerTime,
			TxnCount:     env.TxnCount,
		}
		if env.LedgerTime != 0 {
			ev.CloseTime = state.LedgerTime(env.LedgerTime)
		}
		return ev, nil

	case "transaction":
		return decodeTransaction(env)

	case xrpl.StateFrameType:
		return ConnectionStateChanged{State: env.State}, nil

	default:
		return nil, nil
	}
}

func decodeTransaction(env frameEnvelope) (Event, error) {
	var tx wireTransaction
	if len(env.Transaction) > 0 {
		if err := json.Unmarshal(env.Transaction, &tx); err != nil {
			return nil, fmt.Errorf("decode transaction frame: %w", err)
		}
	}

	ev := TransactionReceived{
		Hash:        tx.Hash,
		Type:        tx.TransactionType,
		Validated:   env.Validated,
		LedgerIndex: env.LedgerIndex,
		Source:      tx.Account,
		Destination: tx.Destination,
	}
	if ev.Type == "" {
		ev.Type = "Unknown"
	}

	// Native payments carry the amount as a decimal drop string. Issued
	// currency amounts are objects and are left out of the event.
	var amountStr string
	if json.Unmarshal(tx.Amount, &amountStr) == nil && amountStr != "" {
		if amount, err := xrpamount.ParseDrops(amountStr); err == nil {
			ev.Amount = &amount
		}
	}
	if tx.Fee != "" {
		if fee, err := xrpamount.ParseDrops(tx.Fee); err == nil {
			ev.Fee = &fee
		}
	}

	return ev, nil
}
