// Package storage is the persistence collaborator: a SQLite-backed
// record store for spends and per-cell budget settings, plus the sync
// bookkeeping the journal mirror worker relies on.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendir/internal/core"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const spendColumns = "id, cell, message_id, author, amount, currency, amount_base, note, tags, created_at, updated_at"

// FindSpends returns a cell's spends created at or after the given
// moment, in chronological order.
func (r *Repository) FindSpends(ctx context.Context, cell int64, since time.Time) ([]core.Spend, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+spendColumns+" FROM spends WHERE cell = ? AND created_at >= ? ORDER BY created_at, id",
		cell, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query spends: %w", err)
	}
	defer rows.Close()

	var out []core.Spend
	for rows.Next() {
		s, err := scanSpend(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spends: %w", err)
	}
	return out, nil
}

// FindSpendByMessageID resolves a spend by its originating chat
// message. A nil result without error means no such record.
func (r *Repository) FindSpendByMessageID(ctx context.Context, cell, messageID int64) (*core.Spend, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+spendColumns+" FROM spends WHERE cell = ? AND message_id = ?",
		cell, messageID)
	s, err := scanSpend(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSpendByID loads one spend by database id. A nil result without
// error means the record is gone.
func (r *Repository) GetSpendByID(ctx context.Context, id int64) (*core.Spend, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+spendColumns+" FROM spends WHERE id = ?", id)
	s, err := scanSpend(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertSpend stores a new spend and fills in its ID and timestamps.
func (r *Repository) InsertSpend(ctx context.Context, s *core.Spend) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO spends (cell, message_id, author, amount, currency, amount_base, note, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Cell, s.MessageID, s.Author, s.Amount.String(), s.Currency,
		s.AmountBase.String(), s.Note, joinTags(s.Tags), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("insert spend: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now

	slog.InfoContext(ctx, "Spend recorded",
		"id", s.ID, "cell", s.Cell, "message_id", s.MessageID,
		"amount", s.Amount.String(), "currency", s.Currency)
	return nil
}

// UpdateSpend rewrites the mutable fields of an existing spend (the
// originating message was edited) and queues it for re-sync.
func (r *Repository) UpdateSpend(ctx context.Context, s *core.Spend) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`UPDATE spends SET amount = ?, currency = ?, amount_base = ?, note = ?, tags = ?,
		 synced = 0, sync_error = 0, updated_at = ? WHERE id = ?`,
		s.Amount.String(), s.Currency, s.AmountBase.String(), s.Note,
		joinTags(s.Tags), now.Unix(), s.ID)
	if err != nil {
		return fmt.Errorf("update spend: %w", err)
	}
	s.UpdatedAt = now

	slog.InfoContext(ctx, "Spend updated", "id", s.ID, "cell", s.Cell, "message_id", s.MessageID)
	return nil
}

// DeleteSpend removes a spend (the originating message was edited down
// to something unparseable).
func (r *Repository) DeleteSpend(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM spends WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete spend: %w", err)
	}
	slog.InfoContext(ctx, "Spend deleted", "id", id)
	return nil
}

// DistinctCells lists every cell that has at least one spend. Used by
// the daily report job.
func (r *Repository) DistinctCells(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT cell FROM spends")
	if err != nil {
		return nil, fmt.Errorf("query distinct cells: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var cell int64
		if err := rows.Scan(&cell); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		out = append(out, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return out, nil
}

// GetLimit returns the cell's budget settings; a cell that never
// configured anything gets the zero value (budget disabled).
func (r *Repository) GetLimit(ctx context.Context, cell int64) (core.Limit, error) {
	var (
		amount string
		only   string
		except string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT limit_amount, limit_only, limit_except FROM settings WHERE cell = ?",
		cell).Scan(&amount, &only, &except)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Limit{}, nil
	}
	if err != nil {
		return core.Limit{}, fmt.Errorf("query settings: %w", err)
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Limit{}, fmt.Errorf("parse limit amount %q: %w", amount, err)
	}
	return core.Limit{
		Amount: parsed,
		Only:   splitTags(only),
		Except: splitTags(except),
	}, nil
}

// SetLimitAmount sets the monthly limit for a cell; zero disables it.
func (r *Repository) SetLimitAmount(ctx context.Context, cell int64, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return core.ErrInvalidLimit
	}
	return r.upsertSetting(ctx, cell, "limit_amount", amount.String())
}

// SetLimitOnly replaces the budget's inclusive tag list.
func (r *Repository) SetLimitOnly(ctx context.Context, cell int64, tags []string) error {
	return r.upsertSetting(ctx, cell, "limit_only", joinTags(tags))
}

// SetLimitExcept replaces the budget's exclusive tag list.
func (r *Repository) SetLimitExcept(ctx context.Context, cell int64, tags []string) error {
	return r.upsertSetting(ctx, cell, "limit_except", joinTags(tags))
}

func (r *Repository) upsertSetting(ctx context.Context, cell int64, column, value string) error {
	now := time.Now().Unix()
	// Column names come from the three Set* callers above, never from
	// user input.
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO settings (cell, %s, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (cell) DO UPDATE SET %s = excluded.%s, updated_at = excluded.updated_at`,
			column, column, column),
		cell, value, now, now)
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", column, err)
	}
	return nil
}

// PendingSpend is the minimal row the mirror worker needs to re-drive
// a missed sync.
type PendingSpend struct {
	ID        int64
	CreatedAt time.Time
}

// GetPendingSyncSpends returns spends not yet mirrored to the journal.
func (r *Repository) GetPendingSyncSpends(ctx context.Context, limit int) ([]PendingSpend, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, created_at FROM spends WHERE synced = 0 AND sync_error = 0 ORDER BY id LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("query pending spends: %w", err)
	}
	defer rows.Close()

	var out []PendingSpend
	for rows.Next() {
		var (
			p  PendingSpend
			ts int64
		)
		if err := rows.Scan(&p.ID, &ts); err != nil {
			return nil, fmt.Errorf("scan pending spend: %w", err)
		}
		p.CreatedAt = time.Unix(ts, 0)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending spends: %w", err)
	}
	return out, nil
}

// MarkSynced marks a spend as successfully mirrored.
func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE spends SET synced = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark spend synced: %w", err)
	}
	return nil
}

// MarkSyncError flags a spend so the backup pass stops retrying it.
func (r *Repository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE spends SET sync_error = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark spend sync error: %w", err)
	}
	slog.WarnContext(ctx, "Spend marked with sync error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpend(row rowScanner) (core.Spend, error) {
	var (
		s                  core.Spend
		amount, amountBase string
		tags               string
		created, updated   int64
	)
	err := row.Scan(&s.ID, &s.Cell, &s.MessageID, &s.Author, &amount,
		&s.Currency, &amountBase, &s.Note, &tags, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Spend{}, err
		}
		return core.Spend{}, fmt.Errorf("scan spend: %w", err)
	}

	s.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Spend{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	s.AmountBase, err = decimal.NewFromString(amountBase)
	if err != nil {
		return core.Spend{}, fmt.Errorf("parse base amount %q: %w", amountBase, err)
	}
	s.Tags = splitTags(tags)
	s.CreatedAt = time.Unix(created, 0)
	s.UpdatedAt = time.Unix(updated, 0)
	return s, nil
}

// Tags are space-joined in storage: the transport never emits a
// hashtag containing whitespace.
func joinTags(tags []string) string {
	return strings.Join(tags, " ")
}

func splitTags(s string) []string {
	return strings.Fields(s)
}
