package bot

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"spendir/internal/core"
)

// Storage is the persistence surface the bot needs. Implemented by
// storage.Repository.
type Storage interface {
	FindSpends(ctx context.Context, cell int64, since time.Time) ([]core.Spend, error)
	FindSpendByMessageID(ctx context.Context, cell, messageID int64) (*core.Spend, error)
	InsertSpend(ctx context.Context, s *core.Spend) error
	UpdateSpend(ctx context.Context, s *core.Spend) error
	DeleteSpend(ctx context.Context, id int64) error
	DistinctCells(ctx context.Context) ([]int64, error)
	GetLimit(ctx context.Context, cell int64) (core.Limit, error)
	SetLimitAmount(ctx context.Context, cell int64, amount decimal.Decimal) error
	SetLimitOnly(ctx context.Context, cell int64, tags []string) error
	SetLimitExcept(ctx context.Context, cell int64, tags []string) error
}

// Transport delivers outgoing messages to a chat.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Publisher announces spend lifecycle events to the journal pipeline.
// A nil Publisher disables publishing.
type Publisher interface {
	SpendRecorded(ctx context.Context, s core.Spend) error
	SpendDeleted(ctx context.Context, s core.Spend) error
}
