package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"spendir/internal/amqp"
	"spendir/internal/core"
	"spendir/internal/sheets/memory"
	"spendir/internal/storage"
)

type fakeStorage struct {
	spends     map[int64]*core.Spend
	pending    []storage.PendingSpend
	synced     []int64
	syncErrors []int64
	getErr     error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{spends: make(map[int64]*core.Spend)}
}

func (f *fakeStorage) GetSpendByID(ctx context.Context, id int64) (*core.Spend, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.spends[id], nil
}

func (f *fakeStorage) GetPendingSyncSpends(ctx context.Context, limit int) ([]storage.PendingSpend, error) {
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeStorage) MarkSynced(ctx context.Context, id int64) error {
	f.synced = append(f.synced, id)
	return nil
}

func (f *fakeStorage) MarkSyncError(ctx context.Context, id int64) error {
	f.syncErrors = append(f.syncErrors, id)
	return nil
}

type failingJournal struct{}

func (failingJournal) Append(ctx context.Context, s core.Spend) (string, error) {
	return "", errors.New("sheet unavailable")
}

func (failingJournal) Delete(ctx context.Context, cell, messageID int64) error {
	return errors.New("sheet unavailable")
}

func testSpend(id int64) *core.Spend {
	return &core.Spend{
		ID:        id,
		Cell:      -5,
		MessageID: id * 10,
		Author:    "Ivan",
		Amount:    decimal.NewFromInt(100),
		Currency:  "RUB",
	}
}

func TestHandleEventRecorded(t *testing.T) {
	st := newFakeStorage()
	st.spends[1] = testSpend(1)
	journal := memory.New()
	w := NewSyncWorker(st, journal, 10)

	msg := amqp.NewSpendEventMessage(amqp.EventRecorded, *st.spends[1])
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}

	if items := journal.Items(); len(items) != 1 || items[0].ID != 1 {
		t.Errorf("journal items = %+v", items)
	}
	if len(st.synced) != 1 || st.synced[0] != 1 {
		t.Errorf("synced = %v, want [1]", st.synced)
	}
}

func TestHandleEventRecordedSpendGone(t *testing.T) {
	st := newFakeStorage()
	journal := memory.New()
	w := NewSyncWorker(st, journal, 10)

	msg := amqp.NewSpendEventMessage(amqp.EventRecorded, *testSpend(9))
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("missing spend should not be an error, got: %v", err)
	}
	if len(journal.Items()) != 0 {
		t.Error("nothing should be mirrored for a missing spend")
	}
}

func TestHandleEventDeleted(t *testing.T) {
	st := newFakeStorage()
	journal := memory.New()
	spend := testSpend(1)
	journal.Append(context.Background(), *spend)
	w := NewSyncWorker(st, journal, 10)

	msg := amqp.NewSpendEventMessage(amqp.EventDeleted, *spend)
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if len(journal.Items()) != 0 {
		t.Error("journal row should be removed")
	}
}

func TestHandleEventJournalFailure(t *testing.T) {
	st := newFakeStorage()
	st.spends[1] = testSpend(1)
	w := NewSyncWorker(st, failingJournal{}, 10)

	msg := amqp.NewSpendEventMessage(amqp.EventRecorded, *st.spends[1])
	if err := w.HandleEvent(context.Background(), msg); err == nil {
		t.Fatal("expected error when journal append fails")
	}
	if len(st.syncErrors) != 1 || st.syncErrors[0] != 1 {
		t.Errorf("sync errors = %v, want [1]", st.syncErrors)
	}
}

func TestProcessPendingSpends(t *testing.T) {
	st := newFakeStorage()
	st.spends[1] = testSpend(1)
	st.spends[2] = testSpend(2)
	st.pending = []storage.PendingSpend{{ID: 1}, {ID: 2}, {ID: 3}}
	journal := memory.New()
	w := NewSyncWorker(st, journal, 10)

	if err := w.ProcessPendingSpends(context.Background()); err != nil {
		t.Fatalf("ProcessPendingSpends returned error: %v", err)
	}

	if len(journal.Items()) != 2 {
		t.Errorf("expected 2 mirrored rows, got %d", len(journal.Items()))
	}
	if len(st.synced) != 2 {
		t.Errorf("synced = %v, want two ids", st.synced)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	st := newFakeStorage()
	st.spends[1] = testSpend(1)
	st.pending = []storage.PendingSpend{{ID: 1}}
	journal := memory.New()
	w := NewSyncWorker(st, journal, 10)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck returned error: %v", err)
	}
	if len(journal.Items()) != 1 {
		t.Errorf("expected 1 mirrored row, got %d", len(journal.Items()))
	}
}
