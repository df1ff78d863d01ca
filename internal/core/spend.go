// Package core implements the message-parsing and report-aggregation
// engine: turning raw chat messages with entity annotations into spend
// records, and turning stored spends into paginated textual reports.
//
// Everything in this package is pure computation over in-memory inputs.
// The one piece of process-wide state, the currency rate table, is an
// atomically swapped immutable snapshot.
package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// TagOther is assigned to spends recorded without any hashtag so
	// that every spend lands in exactly one tag bucket.
	TagOther = "other"

	// TagNoLimit marks a spend as exempt from the monthly budget. It is
	// appended by the parser when the amount carries a leading '*'.
	TagNoLimit = "no_limit"
)

var (
	ErrEmptyRates   = errors.New("empty rate table")
	ErrInvalidRate  = errors.New("rate must be positive")
	ErrInvalidLimit = errors.New("invalid limit amount")
)

// Spend is a single recorded expense. Identity is (Cell, MessageID):
// editing the originating chat message updates or deletes the spend.
// AmountBase is frozen at record time and never recomputed when rates
// change later.
type Spend struct {
	ID         int64
	Cell       int64
	MessageID  int64
	Author     string
	Amount     decimal.Decimal
	Currency   string
	AmountBase decimal.Decimal
	Note       string
	Tags       []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Limit is the per-cell monthly budget configuration. A zero Amount
// disables the budget entirely. When both tag filters are set, Only
// wins and Except is never consulted.
type Limit struct {
	Amount decimal.Decimal
	Only   []string
	Except []string
}

// Enabled reports whether a budget is configured for the cell.
func (l Limit) Enabled() bool {
	return l.Amount.IsPositive()
}

// Intent is the structured result of parsing one chat message. A
// non-empty Commands list means the message is a bot command rather
// than a spend; the router decides what to do with that.
type Intent struct {
	Amount      decimal.Decimal
	Note        string
	Currency    string
	Tags        []string
	Commands    []string
	IgnoreLimit bool
}
