// Package loader validates normalized price records and upserts them into a Store.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketETL/internal/events"
	"MarketETL/internal/model"
	"MarketETL/internal/store"
)

// ErrNoValidRecords is returned when every input record was rejected.
var ErrNoValidRecords = errors.New("no valid records to load")

const stage = "load"

// Result summarises one load.
type Result struct {
	Input      int
	Upserted   int
	Duplicates int
	Rejected   []model.Rejection
}

// Load validates records, collapses duplicate (date, symbol) keys keeping the last
// occurrence, ensures the schema exists and upserts everything in one transaction.
// Rejected records are reported to sink and skipped.
func Load(ctx context.Context, st store.Store, records []model.PriceRecord, sink events.Sink) (Result, error) {
	if sink == nil {
		sink = events.Discard{}
	}
	res := Result{Input: len(records)}

	valid := make([]model.PriceRecord, 0, len(records))
	index := make(map[model.Key]int, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			// Records no longer know their source line; the date locates the row instead.
			rej := model.Rejection{Symbol: r.Symbol, Source: stage, Reason: fmt.Sprintf("%s: %v", r.Date.Format(time.DateOnly), err)}
			res.Rejected = append(res.Rejected, rej)
			sink.Emit(events.Event{Kind: events.RecordRejected, Stage: stage, Symbol: r.Symbol, Detail: rej.String()})
			continue
		}
		if j, dup := index[r.Key()]; dup {
			valid[j] = r
			res.Duplicates++
			continue
		}
		index[r.Key()] = len(valid)
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return res, ErrNoValidRecords
	}

	if err := st.EnsureSchema(ctx); err != nil {
		return res, fmt.Errorf("ensure schema: %w", err)
	}
	n, err := st.UpsertPrices(ctx, valid)
	if err != nil {
		return res, err
	}
	res.Upserted = n
	sink.Emit(events.Event{Kind: events.RecordsLoaded, Stage: stage, Count: n})
	return res, nil
}
