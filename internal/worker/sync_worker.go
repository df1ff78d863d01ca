// Package worker mirrors recorded spends into the external journal.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"spendir/internal/amqp"
	"spendir/internal/core"
	"spendir/internal/sheets"
	"spendir/internal/storage"
)

// Storage is the subset of the repository the worker uses.
type Storage interface {
	GetSpendByID(ctx context.Context, id int64) (*core.Spend, error)
	GetPendingSyncSpends(ctx context.Context, limit int) ([]storage.PendingSpend, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker applies spend events to the journal and re-drives rows
// the event stream missed.
type SyncWorker struct {
	storage   Storage
	journal   sheets.JournalWriter
	batchSize int
}

func NewSyncWorker(storage Storage, journal sheets.JournalWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		journal:   journal,
		batchSize: batchSize,
	}
}

// HandleEvent processes one spend event from the queue.
func (w *SyncWorker) HandleEvent(ctx context.Context, msg *amqp.SpendEventMessage) error {
	switch msg.Event {
	case amqp.EventDeleted:
		return w.handleDeleted(ctx, msg)
	case amqp.EventRecorded:
		return w.handleRecorded(ctx, msg)
	default:
		slog.WarnContext(ctx, "Unknown spend event, dropping", "event", msg.Event, "spend_id", msg.SpendID)
		return nil
	}
}

func (w *SyncWorker) handleRecorded(ctx context.Context, msg *amqp.SpendEventMessage) error {
	spend, err := w.storage.GetSpendByID(ctx, msg.SpendID)
	if err != nil {
		return fmt.Errorf("get spend from storage: %w", err)
	}
	if spend == nil {
		// Deleted before the event was consumed; nothing to mirror.
		slog.InfoContext(ctx, "Spend gone before sync, skipping", "spend_id", msg.SpendID)
		return nil
	}

	return w.syncSpend(ctx, spend)
}

func (w *SyncWorker) handleDeleted(ctx context.Context, msg *amqp.SpendEventMessage) error {
	if err := w.journal.Delete(ctx, msg.Cell, msg.MessageID); err != nil {
		return fmt.Errorf("delete journal row: %w", err)
	}

	slog.InfoContext(ctx, "Removed spend from journal",
		"spend_id", msg.SpendID,
		"cell", msg.Cell,
		"message_id", msg.MessageID)
	return nil
}

// ProcessPendingSpends re-syncs rows that never made it to the
// journal. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingSpends(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncSpends(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending spends: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending spends", "count", len(pending))

	for _, p := range pending {
		spend, err := w.storage.GetSpendByID(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get spend", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			continue
		}
		if spend == nil {
			continue
		}

		if err := w.syncSpend(ctx, spend); err != nil {
			slog.ErrorContext(ctx, "Failed to sync spend", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains the pending backlog once at worker startup.
// This recovers from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	// Get a larger batch for startup check
	pending, err := w.storage.GetPendingSyncSpends(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending spends for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending spends found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending spends on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		spend, err := w.storage.GetSpendByID(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get spend for startup sync",
				"id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			errorCount++
			continue
		}
		if spend == nil {
			continue
		}

		if err := w.syncSpend(ctx, spend); err != nil {
			slog.ErrorContext(ctx, "Failed to sync spend during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

func (w *SyncWorker) syncSpend(ctx context.Context, spend *core.Spend) error {
	ref, err := w.journal.Append(ctx, *spend)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, spend.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", spend.ID, "error", markErr)
		}
		return fmt.Errorf("append to journal: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, spend.ID); err != nil {
		// The journal write went through; losing the flag only means a
		// redundant retry later.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", spend.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced spend to journal",
		"id", spend.ID,
		"sheets_ref", ref,
		"cell", spend.Cell)

	return nil
}
