package sheets

import (
	"context"

	"spendir/internal/core"
)

// Ports for outbound adapters.
type (
	// JournalWriter mirrors spend records into an external journal.
	JournalWriter interface {
		Append(ctx context.Context, s core.Spend) (rowRef string, err error)
		// Delete removes the journal row identified by (cell, messageID).
		// Deleting a row that was never mirrored is not an error.
		Delete(ctx context.Context, cell, messageID int64) error
	}
)
