package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"MarketETL/internal/config"
	"MarketETL/internal/model"
)

const postgresUpsert = `
	INSERT INTO prices_daily (date, symbol, open, high, low, close, adj_close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (date, symbol) DO UPDATE SET
		open      = EXCLUDED.open,
		high      = EXCLUDED.high,
		low       = EXCLUDED.low,
		close     = EXCLUDED.close,
		adj_close = EXCLUDED.adj_close,
		volume    = EXCLUDED.volume`

// PostgresStore persists prices to PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresStore connects and pings the database.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*PostgresStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("postgres store opened",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database))
	return &PostgresStore{pool: pool, log: log}, nil
}

func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices_daily (
			date      DATE             NOT NULL,
			symbol    TEXT             NOT NULL,
			open      DOUBLE PRECISION NOT NULL,
			high      DOUBLE PRECISION NOT NULL,
			low       DOUBLE PRECISION NOT NULL,
			close     DOUBLE PRECISION NOT NULL,
			adj_close DOUBLE PRECISION NOT NULL,
			volume    BIGINT           NOT NULL CHECK (volume >= 0),
			PRIMARY KEY (date, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_date ON prices_daily (symbol, date)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (p *PostgresStore) UpsertPrices(ctx context.Context, records []model.PriceRecord) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, persistErr("begin transaction", err)
	}
	defer tx.Rollback(ctx) // no-op after Commit

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(postgresUpsert, r.Date, r.Symbol, r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume)
	}

	results := tx.SendBatch(ctx, batch)
	for _, r := range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, persistErr(fmt.Sprintf("upsert %s %s", r.Symbol, r.DateString()), err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, persistErr("close batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, persistErr("commit", err)
	}
	return len(records), nil
}

func (p *PostgresStore) ListPrices(ctx context.Context, f Filter) ([]model.PriceRecord, error) {
	query := `SELECT date, symbol, open, high, low, close, adj_close, volume FROM prices_daily`
	var where []string
	args := pgx.NamedArgs{}
	if f.Symbol != "" {
		where = append(where, "symbol = @symbol")
		args["symbol"] = f.Symbol
	}
	if !f.From.IsZero() {
		where = append(where, "date >= @from")
		args["from"] = f.From
	}
	if !f.To.IsZero() {
		where = append(where, "date <= @to")
		args["to"] = f.To
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY symbol, date"

	rows, err := p.pool.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", classifyPgError(err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PriceRecord, error) {
		var r model.PriceRecord
		err := row.Scan(&r.Date, &r.Symbol, &r.Open, &r.High, &r.Low, &r.Close, &r.AdjClose, &r.Volume)
		r.Date = model.CalendarDate(r.Date)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect prices: %w", classifyPgError(err))
	}
	return out, nil
}

// classifyPgError maps undefined_table (42P01) to ErrNoTable.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return ErrNoTable
	}
	return err
}

func (p *PostgresStore) Close() error {
	p.log.Info("closing postgres store")
	p.pool.Close()
	return nil
}
