package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetcal/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository is the SQL implementation of Store and SyncQueue.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteRepository opens (creating if needed) the sqlite file at dbPath and
// applies migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open(SQLite.DriverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(SQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: SQLite}, nil
}

// NewPostgresRepository connects through pgx and applies migrations.
func NewPostgresRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open(Postgres.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(Postgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: Postgres}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Dialect returns the SQL dialect of the repository.
func (r *Repository) Dialect() Dialect { return r.dialect }

// Ping checks the connection, used by readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.dialect.Rebind(q), args...)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.dialect.Rebind(q), args...)
}

func (r *Repository) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.Rebind(q), args...)
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

const transactionColumns = "id, label, amount_cents, category, date, type, created_at, updated_at"

const insertTransaction = `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func transactionArgs(t core.Transaction) []any {
	return []any{
		t.ID, t.Label, t.Amount.Cents, t.Category, t.Date.String(), string(t.Type),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		date, typ            string
		createdAt, updatedAt string
	)
	if err := s.Scan(&t.ID, &t.Label, &t.Amount.Cents, &t.Category, &date, &typ, &createdAt, &updatedAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Date = d
	t.Type = core.TransactionType(typ)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// CreateTransaction implements TransactionStore
func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if _, err := r.exec(ctx, insertTransaction, transactionArgs(t)...); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved",
		"id", t.ID,
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"dialect", r.dialect)
	return nil
}

// GetTransaction implements TransactionStore
func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction implements TransactionStore
func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.exec(ctx, `UPDATE transactions
		SET label = ?, amount_cents = ?, category = ?, date = ?, type = ?, updated_at = ?, version = version + 1
		WHERE id = ?`,
		t.Label, t.Amount.Cents, t.Category, t.Date.String(), string(t.Type), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res)
}

// DeleteTransaction implements TransactionStore
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactions implements TransactionStore
func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceTransactions implements TransactionStore
func (r *Repository) ReplaceTransactions(ctx context.Context, txs []core.Transaction) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, r.dialect.Rebind(insertTransaction))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range txs {
			if _, err := stmt.ExecContext(ctx, transactionArgs(t)...); err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transactions replaced", "count", len(txs))
	return nil
}

// ClearTransactions implements TransactionStore
func (r *Repository) ClearTransactions(ctx context.Context) error {
	if _, err := r.exec(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	return nil
}

// GetFixedExpenses implements FixedExpenseStore
func (r *Repository) GetFixedExpenses(ctx context.Context) (core.FixedExpenses, error) {
	rows, err := r.query(ctx, `SELECT name, amount_cents FROM fixed_expenses`)
	if err != nil {
		return nil, fmt.Errorf("get fixed expenses: %w", err)
	}
	defer rows.Close()

	fe := core.DefaultFixedExpenses()
	for rows.Next() {
		var (
			name  string
			cents int64
		)
		if err := rows.Scan(&name, &cents); err != nil {
			return nil, fmt.Errorf("scan fixed expense: %w", err)
		}
		fe[name] = core.Money{Cents: cents}
	}
	return fe, rows.Err()
}

// SaveFixedExpenses implements FixedExpenseStore
func (r *Repository) SaveFixedExpenses(ctx context.Context, fe core.FixedExpenses) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fixed_expenses`); err != nil {
			return fmt.Errorf("clear fixed expenses: %w", err)
		}
		for _, k := range fe.Keys() {
			if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO fixed_expenses (name, amount_cents) VALUES (?, ?)`), k, fe[k].Cents); err != nil {
				return fmt.Errorf("save fixed expense %s: %w", k, err)
			}
		}
		return nil
	})
}

// GetSetting implements SettingsStore
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := r.queryRow(ctx, `SELECT value FROM settings WHERE name = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// SetSetting implements SettingsStore
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.exec(ctx, `INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting implements SettingsStore
func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	if _, err := r.exec(ctx, `DELETE FROM settings WHERE name = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// LoadLearning implements LearningStore
func (r *Repository) LoadLearning(ctx context.Context) (core.LearningData, error) {
	data := core.NewLearningData()

	rows, err := r.query(ctx, `SELECT label, category FROM learned_labels`)
	if err != nil {
		return data, fmt.Errorf("load learned labels: %w", err)
	}
	for rows.Next() {
		var label, category string
		if err := rows.Scan(&label, &category); err != nil {
			rows.Close()
			return data, fmt.Errorf("scan learned label: %w", err)
		}
		data.LabelToCategory[label] = category
	}
	rows.Close()

	rows, err = r.query(ctx, `SELECT label, suggested, chosen, at FROM learning_corrections`)
	if err != nil {
		return data, fmt.Errorf("load corrections: %w", err)
	}
	for rows.Next() {
		var (
			c  core.Correction
			at string
		)
		if err := rows.Scan(&c.Label, &c.Suggested, &c.Chosen, &at); err != nil {
			rows.Close()
			return data, fmt.Errorf("scan correction: %w", err)
		}
		c.At = parseTime(at)
		data.UserCorrections[c.Label] = c
	}
	rows.Close()

	rows, err = r.query(ctx, `SELECT category, count, last_used FROM learning_category_stats`)
	if err != nil {
		return data, fmt.Errorf("load category stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			s        core.CategoryLearning
			lastUsed string
		)
		if err := rows.Scan(&category, &s.Count, &lastUsed); err != nil {
			return data, fmt.Errorf("scan category stats: %w", err)
		}
		s.LastUsed = parseTime(lastUsed)
		data.CategoryStats[category] = s
	}
	return data, rows.Err()
}

// SaveLearning implements LearningStore
func (r *Repository) SaveLearning(ctx context.Context, data core.LearningData) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"learned_labels", "learning_corrections", "learning_category_stats"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for label, category := range data.LabelToCategory {
			if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO learned_labels (label, category) VALUES (?, ?)`), label, category); err != nil {
				return fmt.Errorf("save learned label: %w", err)
			}
		}
		for label, c := range data.UserCorrections {
			if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO learning_corrections (label, suggested, chosen, at) VALUES (?, ?, ?, ?)`),
				label, c.Suggested, c.Chosen, formatTime(c.At)); err != nil {
				return fmt.Errorf("save correction: %w", err)
			}
		}
		for category, s := range data.CategoryStats {
			if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO learning_category_stats (category, count, last_used) VALUES (?, ?, ?)`),
				category, s.Count, formatTime(s.LastUsed)); err != nil {
				return fmt.Errorf("save category stats: %w", err)
			}
		}
		return nil
	})
}

// ListSavedFilters implements FilterStore
func (r *Repository) ListSavedFilters(ctx context.Context) ([]core.SavedFilter, error) {
	rows, err := r.query(ctx, `SELECT name, filters, created_at FROM saved_filters ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list saved filters: %w", err)
	}
	defer rows.Close()

	var out []core.SavedFilter
	for rows.Next() {
		var (
			f              core.SavedFilter
			raw, createdAt string
		)
		if err := rows.Scan(&f.Name, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scan saved filter: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &f.Filters); err != nil {
			return nil, fmt.Errorf("decode saved filter %s: %w", f.Name, err)
		}
		f.CreatedAt = parseTime(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SaveFilter implements FilterStore
func (r *Repository) SaveFilter(ctx context.Context, f core.SavedFilter) error {
	raw, err := json.Marshal(f.Filters)
	if err != nil {
		return fmt.Errorf("encode filter: %w", err)
	}
	_, err = r.exec(ctx, `INSERT INTO saved_filters (name, filters, created_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET filters = excluded.filters, created_at = excluded.created_at`,
		f.Name, string(raw), formatTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("save filter %s: %w", f.Name, err)
	}
	return nil
}

// DeleteFilter implements FilterStore
func (r *Repository) DeleteFilter(ctx context.Context, name string) error {
	res, err := r.exec(ctx, `DELETE FROM saved_filters WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete filter %s: %w", name, err)
	}
	return requireAffected(res)
}

// SearchHistory implements FilterStore
func (r *Repository) SearchHistory(ctx context.Context) ([]string, error) {
	rows, err := r.query(ctx, `SELECT term FROM search_history ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load search history: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("scan search history: %w", err)
		}
		out = append(out, term)
	}
	return out, rows.Err()
}

// SaveSearchHistory implements FilterStore
func (r *Repository) SaveSearchHistory(ctx context.Context, history []string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM search_history`); err != nil {
			return fmt.Errorf("clear search history: %w", err)
		}
		for i, term := range history {
			if strings.TrimSpace(term) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO search_history (position, term) VALUES (?, ?)`), i, term); err != nil {
				return fmt.Errorf("save search history: %w", err)
			}
		}
		return nil
	})
}
