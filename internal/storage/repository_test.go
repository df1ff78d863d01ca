package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendir/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func insertSpend(t *testing.T, repo *Repository, cell, messageID int64, amount string, tags ...string) *core.Spend {
	t.Helper()
	s := &core.Spend{
		Cell:       cell,
		MessageID:  messageID,
		Author:     "Иван",
		Amount:     decimal.RequireFromString(amount),
		Currency:   "RUB",
		AmountBase: decimal.RequireFromString(amount),
		Note:       "обед",
		Tags:       tags,
	}
	if err := repo.InsertSpend(context.Background(), s); err != nil {
		t.Fatalf("insert spend: %v", err)
	}
	return s
}

func TestInsertAndFindSpends(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := insertSpend(t, repo, -5, 10, "100", "#еда")
	insertSpend(t, repo, -5, 11, "2.5")
	insertSpend(t, repo, -6, 12, "70") // other cell, must not leak

	if first.ID == 0 {
		t.Fatal("insert must fill in the row id")
	}

	got, err := repo.FindSpends(ctx, -5, time.Time{})
	if err != nil {
		t.Fatalf("find spends: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d spends, want 2", len(got))
	}
	if got[0].MessageID != 10 || got[1].MessageID != 11 {
		t.Fatalf("wrong order: %d, %d", got[0].MessageID, got[1].MessageID)
	}
	if !got[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("amount = %s", got[0].Amount)
	}
	if len(got[0].Tags) != 1 || got[0].Tags[0] != "#еда" {
		t.Fatalf("tags = %v", got[0].Tags)
	}
	if got[0].Author != "Иван" || got[0].Note != "обед" {
		t.Fatalf("author/note = %q/%q", got[0].Author, got[0].Note)
	}

	// A since cutoff in the future filters everything out.
	got, err = repo.FindSpends(ctx, -5, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("find spends: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("future cutoff returned %d spends", len(got))
	}
}

func TestFindSpendByMessageID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := insertSpend(t, repo, -5, 42, "300")

	got, err := repo.FindSpendByMessageID(ctx, -5, 42)
	if err != nil {
		t.Fatalf("find by message id: %v", err)
	}
	if got == nil || got.ID != want.ID {
		t.Fatalf("got %+v, want id %d", got, want.ID)
	}

	got, err = repo.FindSpendByMessageID(ctx, -5, 999)
	if err != nil {
		t.Fatalf("find by message id: %v", err)
	}
	if got != nil {
		t.Fatalf("missing row must resolve to nil, got %+v", got)
	}
}

func TestGetSpendByIDGone(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetSpendByID(context.Background(), 12345)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Fatalf("gone row must resolve to nil, got %+v", got)
	}
}

func TestUpdateSpendQueuesResync(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := insertSpend(t, repo, -5, 10, "100")
	if err := repo.MarkSynced(ctx, s.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	s.Amount = decimal.NewFromInt(150)
	s.AmountBase = decimal.NewFromInt(150)
	s.Note = "ужин"
	s.Tags = []string{"#еда"}
	if err := repo.UpdateSpend(ctx, s); err != nil {
		t.Fatalf("update spend: %v", err)
	}

	got, err := repo.GetSpendByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(150)) || got.Note != "ужин" {
		t.Fatalf("update not persisted: %+v", got)
	}

	// The edit must land in the journal again.
	pending, err := repo.GetPendingSyncSpends(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != s.ID {
		t.Fatalf("updated spend not pending: %+v", pending)
	}
}

func TestDeleteSpend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := insertSpend(t, repo, -5, 10, "100")
	if err := repo.DeleteSpend(ctx, s.ID); err != nil {
		t.Fatalf("delete spend: %v", err)
	}

	got, err := repo.FindSpendByMessageID(ctx, -5, 10)
	if err != nil {
		t.Fatalf("find by message id: %v", err)
	}
	if got != nil {
		t.Fatalf("deleted spend still present: %+v", got)
	}
}

func TestDistinctCells(t *testing.T) {
	repo := newTestRepo(t)

	insertSpend(t, repo, -5, 10, "100")
	insertSpend(t, repo, -5, 11, "200")
	insertSpend(t, repo, -7, 12, "300")

	cells, err := repo.DistinctCells(context.Background())
	if err != nil {
		t.Fatalf("distinct cells: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2: %v", len(cells), cells)
	}
}

func TestLimitSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const cell = int64(-5)

	limit, err := repo.GetLimit(ctx, cell)
	if err != nil {
		t.Fatalf("get limit: %v", err)
	}
	if limit.Enabled() {
		t.Fatalf("unconfigured cell must have no budget: %+v", limit)
	}

	if err := repo.SetLimitAmount(ctx, cell, decimal.NewFromInt(3000)); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if err := repo.SetLimitOnly(ctx, cell, []string{"#еда", "#кафе"}); err != nil {
		t.Fatalf("set only: %v", err)
	}
	if err := repo.SetLimitExcept(ctx, cell, []string{"#техника"}); err != nil {
		t.Fatalf("set except: %v", err)
	}

	limit, err = repo.GetLimit(ctx, cell)
	if err != nil {
		t.Fatalf("get limit: %v", err)
	}
	if !limit.Amount.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("amount = %s", limit.Amount)
	}
	if len(limit.Only) != 2 || limit.Only[0] != "#еда" || limit.Only[1] != "#кафе" {
		t.Fatalf("only = %v", limit.Only)
	}
	if len(limit.Except) != 1 || limit.Except[0] != "#техника" {
		t.Fatalf("except = %v", limit.Except)
	}

	// Each setter touches its own column only.
	if err := repo.SetLimitOnly(ctx, cell, nil); err != nil {
		t.Fatalf("clear only: %v", err)
	}
	limit, err = repo.GetLimit(ctx, cell)
	if err != nil {
		t.Fatalf("get limit: %v", err)
	}
	if len(limit.Only) != 0 {
		t.Fatalf("only not cleared: %v", limit.Only)
	}
	if !limit.Amount.Equal(decimal.NewFromInt(3000)) || len(limit.Except) != 1 {
		t.Fatalf("sibling columns lost: %+v", limit)
	}
}

func TestSetLimitAmountRejectsNegative(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.SetLimitAmount(context.Background(), -5, decimal.NewFromInt(-1))
	if !errors.Is(err, core.ErrInvalidLimit) {
		t.Fatalf("err = %v, want ErrInvalidLimit", err)
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := insertSpend(t, repo, -5, 10, "100")
	b := insertSpend(t, repo, -5, 11, "200")

	pending, err := repo.GetPendingSyncSpends(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	if err := repo.MarkSynced(ctx, a.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, b.ID); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}

	// Synced rows are done, errored rows are parked; neither retries.
	pending, err = repo.GetPendingSyncSpends(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("got %d pending, want 0: %+v", len(pending), pending)
	}
}
