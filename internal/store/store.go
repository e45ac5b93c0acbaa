package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"MarketETL/internal/config"
	"MarketETL/internal/model"
)

// ErrPersist wraps any write failure. The transaction has been rolled back when it is returned.
var ErrPersist = errors.New("persist prices")

// ErrNoTable is returned by ListPrices when the prices table has never been created.
var ErrNoTable = errors.New("prices table does not exist")

// TableName is the relation holding daily prices.
const TableName = "prices_daily"

// Filter narrows ListPrices. Zero values leave a bound open.
type Filter struct {
	Symbol string
	From   time.Time
	To     time.Time
}

// Store persists PriceRecords keyed by (date, symbol).
type Store interface {
	// EnsureSchema creates the table and index if absent. It never alters existing ones.
	EnsureSchema(ctx context.Context) error
	// UpsertPrices writes all records in one transaction, replacing every non-key
	// column on conflict. It returns the number of records written.
	UpsertPrices(ctx context.Context, records []model.PriceRecord) (int, error)
	// ListPrices returns stored records ordered by symbol, then date.
	ListPrices(ctx context.Context, f Filter) ([]model.PriceRecord, error)
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLiteStore(cfg.SQLitePath, log)
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// NoopStore accepts writes and discards them. Used for dry runs.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) EnsureSchema(_ context.Context) error { return nil }
func (NoopStore) UpsertPrices(_ context.Context, records []model.PriceRecord) (int, error) {
	return len(records), nil
}
func (NoopStore) ListPrices(_ context.Context, _ Filter) ([]model.PriceRecord, error) {
	return nil, nil
}
func (NoopStore) Close() error { return nil }

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersist, op, err)
}
