package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"
)

// Dialect captures the differences between the SQL engines we support.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// dateLayout is how dates are written to the engine, always in UTC.
const dateLayout = time.RFC3339Nano

const transactionColumns = "id, description, amount, date, category, type"

// SQLStore implements TransactionStore over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ TransactionStore = (*SQLStore)(nil)

// NewSQLStore wraps an open database. Migrations must already be applied.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	query := s.rebind(`INSERT INTO transactions (description, amount, date, category, type)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		tx.Description,
		tx.Amount.String(),
		formatDate(tx.Date),
		tx.Category,
		string(tx.Type),
	).Scan(&id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	tx.ID = id
	slog.DebugContext(ctx, "Transaction inserted",
		"id", id,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"dialect", s.dialect)
	return tx, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (core.Transaction, error) {
	query := s.rebind("SELECT " + transactionColumns + " FROM transactions WHERE id = ?")
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (s *SQLStore) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *SQLStore) ListByType(ctx context.Context, t core.TransactionType) ([]core.Transaction, error) {
	query := s.rebind("SELECT " + transactionColumns + " FROM transactions WHERE type = ? ORDER BY id")
	rows, err := s.db.QueryContext(ctx, query, string(t))
	if err != nil {
		return nil, fmt.Errorf("list %s transactions: %w", t, err)
	}
	return collectTransactions(rows)
}

func (s *SQLStore) Update(ctx context.Context, id int64, apply func(*core.Transaction)) (bool, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update: %w", err)
	}
	defer dbtx.Rollback()

	selectQuery := "SELECT " + transactionColumns + " FROM transactions WHERE id = ?"
	if s.dialect == DialectPostgres {
		selectQuery += " FOR UPDATE"
	}
	current, err := scanTransaction(dbtx.QueryRowContext(ctx, s.rebind(selectQuery), id))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read transaction %d for update: %w", id, err)
	}

	apply(&current)

	updateQuery := s.rebind(`UPDATE transactions
		SET description = ?, amount = ?, date = ?, category = ?, type = ?
		WHERE id = ?`)
	if _, err := dbtx.ExecContext(ctx, updateQuery,
		current.Description,
		current.Amount.String(),
		formatDate(current.Date),
		current.Category,
		string(current.Type),
		id,
	); err != nil {
		return false, fmt.Errorf("update transaction %d: %w", id, err)
	}

	if err := dbtx.Commit(); err != nil {
		return false, fmt.Errorf("commit update of transaction %d: %w", id, err)
	}
	return true, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM transactions WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: rows affected: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx   core.Transaction
		date dbTime
		typ  string
	)
	if err := row.Scan(&tx.ID, &tx.Description, &tx.Amount, &date, &tx.Category, &typ); err != nil {
		return core.Transaction{}, err
	}
	tx.Date = date.Time
	tx.Type = core.TransactionType(typ)
	return tx, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// dbTime scans dates stored either as native timestamps or as text.
type dbTime struct {
	time.Time
}

func (d *dbTime) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		d.Time = v.UTC()
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		d.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("unsupported date value %T", value)
}

func (d *dbTime) parse(s string) error {
	for _, layout := range []string{dateLayout, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable date %q", s)
}
