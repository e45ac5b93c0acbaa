package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"MarketETL/internal/calculator"
	"MarketETL/internal/events"
	"MarketETL/internal/model"
	"MarketETL/internal/normalizer"
)

// ErrNoData is returned when not a single symbol produced usable records.
var ErrNoData = errors.New("no data fetched for any symbol")

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Rows   map[string][]model.RawRow // fixed rows per symbol
	Errors map[string]error          // per-symbol failures
	Delay  time.Duration
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.RawRow, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.Errors[symbol]; err != nil {
		return nil, err
	}
	if rows, ok := m.Rows[symbol]; ok {
		return rows, nil
	}
	return generateMockRows(symbol, m.Price, start, end), nil
}

// generateMockRows produces one weekday bar per day in [start, end] with a gentle trend.
func generateMockRows(symbol string, basePrice float64, start, end time.Time) []model.RawRow {
	if basePrice <= 0 {
		basePrice = 100
	}
	var rows []model.RawRow
	i := 0
	for d := model.CalendarDate(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i%7-3)*0.001 + float64(i)*0.0005)
		i++
		rows = append(rows, model.RawRow{
			Symbol: symbol,
			Source: "mock",
			Line:   i,
			Fields: map[string]string{
				"Date":      d.Format(model.DateLayout),
				"Open":      ftoa(p * 0.999),
				"High":      ftoa(p * 1.005),
				"Low":       ftoa(p * 0.995),
				"Close":     ftoa(p),
				"Adj Close": ftoa(p),
				"Volume":    "1000000",
			},
		})
	}
	return rows
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// Batch is the combined, normalized result of one collection run.
type Batch struct {
	Records    []model.PriceRecord
	Rejections []model.Rejection
	Tally      model.FetchTally
}

// Collector fetches a symbol universe, one attempt per symbol, and normalizes the rows.
type Collector struct {
	Fetcher     Fetcher
	Normalizer  *normalizer.Normalizer
	Concurrency int
	Sink        events.Sink
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, norm *normalizer.Normalizer, concurrency int, sink events.Sink) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	if sink == nil {
		sink = events.Discard{}
	}
	return &Collector{Fetcher: fetcher, Normalizer: norm, Concurrency: concurrency, Sink: sink}
}

type symbolResult struct {
	records  []model.PriceRecord
	rejected []model.Rejection
	err      error
}

// Collect fetches every symbol over [start, end]. A failing symbol is recorded in the
// tally and skipped; the others continue. Records are sorted by (symbol, date)
// whatever order the fetches complete in.
func (c *Collector) Collect(ctx context.Context, symbols []string, start, end time.Time) (Batch, error) {
	symbols = uniqueSymbols(symbols)
	results := make([]symbolResult, len(symbols))

	var g errgroup.Group
	g.SetLimit(c.Concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			results[i] = c.collectOne(ctx, symbol, start, end)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Batch{}, fmt.Errorf("collect: %w", err)
	}

	batch := Batch{Tally: model.NewFetchTally()}
	for i, symbol := range symbols {
		res := results[i]
		batch.Rejections = append(batch.Rejections, res.rejected...)
		for _, rej := range res.rejected {
			c.Sink.Emit(events.Event{Kind: events.RecordRejected, Stage: "fetch", Symbol: rej.Symbol, Detail: rej.String()})
		}
		if res.err != nil {
			batch.Tally.Failed[symbol] = res.err.Error()
			c.Sink.Emit(events.Event{Kind: events.SymbolFailed, Stage: "fetch", Symbol: symbol, Err: res.err})
			continue
		}
		batch.Tally.Succeeded = append(batch.Tally.Succeeded, symbol)
		batch.Records = append(batch.Records, res.records...)
		c.Sink.Emit(events.Event{Kind: events.SymbolFetched, Stage: "fetch", Symbol: symbol, Count: len(res.records)})
	}
	sort.Strings(batch.Tally.Succeeded)
	calculator.SortRecords(batch.Records)

	if !batch.Tally.Ok() {
		return batch, ErrNoData
	}
	return batch, nil
}

// uniqueSymbols drops repeated tickers, keeping first-seen order.
func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (c *Collector) collectOne(ctx context.Context, symbol string, start, end time.Time) symbolResult {
	rows, err := c.Fetcher.FetchDaily(ctx, symbol, start, end)
	if err != nil {
		return symbolResult{err: err}
	}
	if len(rows) == 0 {
		return symbolResult{err: errors.New("no data returned")}
	}
	records, rejected := c.Normalizer.NormalizeAll(rows)
	if len(records) == 0 {
		return symbolResult{rejected: rejected, err: fmt.Errorf("all %d rows rejected", len(rows))}
	}
	return symbolResult{records: records, rejected: rejected}
}
