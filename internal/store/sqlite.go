package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"MarketETL/internal/model"
)

const sqliteUpsert = `INSERT INTO prices_daily
	(date, symbol, open, high, low, close, adj_close, volume)
	VALUES (?,?,?,?,?,?,?,?)
	ON CONFLICT(date, symbol) DO UPDATE SET
		open      = excluded.open,
		high      = excluded.high,
		low       = excluded.low,
		close     = excluded.close,
		adj_close = excluded.adj_close,
		volume    = excluded.volume`

// SQLiteStore persists prices to a SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database. Call EnsureSchema before use.
func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps PRAGMAs in effect.
	db.SetMaxOpenConns(1)

	// WAL lets the analyze stage read while a load is committing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	log.Info("sqlite store opened", zap.String("path", dbPath))
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices_daily (
			date      TEXT    NOT NULL,
			symbol    TEXT    NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			adj_close REAL    NOT NULL,
			volume    INTEGER NOT NULL CHECK (volume >= 0),
			PRIMARY KEY (date, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_date ON prices_daily(symbol, date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *SQLiteStore) UpsertPrices(ctx context.Context, records []model.PriceRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("begin transaction", err)
	}
	defer tx.Rollback() // no-op after Commit

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return 0, persistErr("prepare upsert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.DateString(), r.Symbol, r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume,
		); err != nil {
			return 0, persistErr(fmt.Sprintf("upsert %s %s", r.Symbol, r.DateString()), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, persistErr("commit", err)
	}
	return len(records), nil
}

func (s *SQLiteStore) ListPrices(ctx context.Context, f Filter) ([]model.PriceRecord, error) {
	query := `SELECT date, symbol, open, high, low, close, adj_close, volume FROM prices_daily`
	var where []string
	var args []any
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.Format(model.DateLayout))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.Format(model.DateLayout))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY symbol, date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("query prices: %w", ErrNoTable)
		}
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []model.PriceRecord
	for rows.Next() {
		var r model.PriceRecord
		var date string
		if err := rows.Scan(&date, &r.Symbol, &r.Open, &r.High, &r.Low, &r.Close, &r.AdjClose, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		t, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		r.Date = t
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info("closing sqlite store")
	return s.db.Close()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
