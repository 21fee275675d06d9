// Package xrpamount provides an exact representation of XRP amounts.
// Amounts are stored as an integer count of drops (1 XRP = 1,000,000 drops)
// so that arithmetic and comparisons never suffer floating point drift.
// The float XRP view exists for display only.
package xrpamount

import (
	"fmt"
	"math"
	"strconv"
)

// DropsPerXRP is the number of drops in one XRP.
const DropsPerXRP = 1_000_000

// Amount is an immutable XRP amount backed by an integer drop count.
type Amount struct {
	drops int64
}

// FromXRP creates an Amount from an XRP value. The value is floored to the
// nearest drop.
func FromXRP(value float64) Amount {
	return Amount{drops: int64(math.Floor(value * DropsPerXRP))}
}

// FromDrops creates an Amount from a drop count.
func FromDrops(drops int64) Amount {
	return Amount{drops: drops}
}

// ParseDrops parses a decimal drop count as carried on the wire
// (e.g. the "Balance" and "Fee" fields of account and transaction records).
func ParseDrops(s string) (Amount, error) {
	drops, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("parse drops %q: %w", s, err)
	}
	return Amount{drops: drops}, nil
}

// Drops returns the exact drop count.
func (a Amount) Drops() int64 {
	return a.drops
}

// XRP returns the display value in XRP. Derived, not exact.
func (a Amount) XRP() float64 {
	return float64(a.drops) / DropsPerXRP
}

// Add returns the sum of two amounts.
func (a Amount) Add(b Amount) Amount {
	return Amount{drops: a.drops + b.drops}
}

// Sub returns the difference of two amounts.
func (a Amount) Sub(b Amount) Amount {
	return Amount{drops: a.drops - b.drops}
}

// Cmp compares two amounts, returning -1, 0 or 1.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.drops < b.drops:
		return -1
	case a.drops > b.drops:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether the amount is exactly zero drops.
func (a Amount) IsZero() bool {
	return a.drops == 0
}

// FormatXRP formats the amount in XRP, optionally with the drop count in
// parentheses, e.g. "100.500000 XRP (100500000 drops)".
func (a Amount) FormatXRP(showDrops bool) string {
	if showDrops {
		return fmt.Sprintf("%.6f XRP (%d drops)", a.XRP(), a.drops)
	}
	return fmt.Sprintf("%.6f XRP", a.XRP())
}

// FormatDrops formats the amount in drops, optionally with the XRP value in
// parentheses.
func (a Amount) FormatDrops(showXRP bool) string {
	if showXRP {
		return fmt.Sprintf("%d drops (%.6f XRP)", a.drops, a.XRP())
	}
	return fmt.Sprintf("%d drops", a.drops)
}

func (a Amount) String() string {
	return a.FormatXRP(true)
}
