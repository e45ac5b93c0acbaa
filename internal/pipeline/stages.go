// Package pipeline wires the fetch, load and analyze stages and runs them as child processes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"MarketETL/internal/calculator"
	"MarketETL/internal/collector"
	"MarketETL/internal/config"
	"MarketETL/internal/events"
	"MarketETL/internal/loader"
	"MarketETL/internal/model"
	"MarketETL/internal/normalizer"
	"MarketETL/internal/report"
	"MarketETL/internal/staging"
	"MarketETL/internal/store"
)

// Stage names, in execution order.
const (
	StageFetch   = "fetch"
	StageLoad    = "load"
	StageAnalyze = "analyze"
)

// Stages is the fixed orchestration order.
var Stages = []string{StageFetch, StageLoad, StageAnalyze}

var (
	// ErrSourceUnavailable means a stage input (staging file, database or prices table) does not exist.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNoPrices means the store holds no price rows to analyze.
	ErrNoPrices = errors.New("no price data in store")
)

// now is replaced in tests.
var now = time.Now

// NewNormalizer builds the record normalizer from config.
func NewNormalizer(cfg *config.Config) *normalizer.Normalizer {
	return normalizer.New(normalizer.Options{
		Aliases:                 cfg.Normalizer.Aliases,
		DateLayouts:             cfg.Normalizer.DateLayouts,
		AdjCloseFallbackToClose: cfg.Normalizer.AdjCloseFallbackToClose,
	})
}

// NewFetcher returns the provider selected by cfg.Fetch.Provider.
func NewFetcher(cfg *config.Config) (collector.Fetcher, error) {
	switch cfg.Fetch.Provider {
	case config.ProviderYahoo:
		return collector.NewYahooFetcher(cfg.Proxy, cfg.Fetch.Timeout, cfg.Fetch.SymbolMap), nil
	case config.ProviderREST:
		return collector.NewRESTFetcher(cfg.Fetch.BaseURL, cfg.Fetch.APIKey, cfg.Proxy, cfg.Fetch.Timeout), nil
	case config.ProviderMock:
		return &collector.MockFetcher{Price: 100}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Fetch.Provider)
	}
}

// OpenStore opens the configured store. With mustExist, a missing SQLite file is
// reported as ErrSourceUnavailable instead of being created empty.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger, mustExist bool) (store.Store, error) {
	if mustExist && cfg.Database.Driver == config.DriverSQLite {
		if _, err := os.Stat(cfg.Database.SQLitePath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: database %s not found", ErrSourceUnavailable, cfg.Database.SQLitePath)
		}
	}
	st, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// FetchResult describes a completed fetch stage.
type FetchResult struct {
	Start, End time.Time
	Records    int
	Rejected   int
	Tally      model.FetchTally
	Path       string
}

// Fetch collects the configured tickers over the lookback window and writes the staging file.
func Fetch(ctx context.Context, cfg *config.Config, fetcher collector.Fetcher, sink events.Sink) (FetchResult, error) {
	sink.Emit(events.Event{Kind: events.StageStarted, Stage: StageFetch, Count: len(cfg.Fetch.Tickers), Detail: fetcher.Name()})

	end := now().UTC()
	res := FetchResult{
		Start: model.CalendarDate(end.AddDate(0, 0, -cfg.Fetch.LookbackDays)),
		End:   end,
		Path:  cfg.Paths.RawFile,
	}

	col := collector.NewCollector(fetcher, NewNormalizer(cfg), cfg.Fetch.Concurrency, sink)
	batch, err := col.Collect(ctx, cfg.Fetch.Tickers, res.Start, res.End)
	res.Tally = batch.Tally
	res.Rejected = len(batch.Rejections)
	if err != nil {
		return res, stageFailed(sink, StageFetch, err)
	}

	if err := staging.WritePrices(cfg.Paths.RawFile, batch.Records); err != nil {
		return res, stageFailed(sink, StageFetch, err)
	}
	res.Records = len(batch.Records)
	sink.Emit(events.Event{Kind: events.ArtifactWritten, Stage: StageFetch, Path: cfg.Paths.RawFile, Count: res.Records})
	sink.Emit(events.Event{Kind: events.StageFinished, Stage: StageFetch, Count: res.Records})
	return res, nil
}

// LoadResult describes a completed load stage.
type LoadResult struct {
	RawRows    int
	Normalized int
	Rejected   []model.Rejection
	loader.Result
}

// Load reads the staging file, normalizes it and upserts the records.
func Load(ctx context.Context, cfg *config.Config, st store.Store, sink events.Sink) (LoadResult, error) {
	sink.Emit(events.Event{Kind: events.StageStarted, Stage: StageLoad, Path: cfg.Paths.RawFile})

	var res LoadResult
	rows, err := staging.ReadRaw(cfg.Paths.RawFile)
	if errors.Is(err, staging.ErrSourceUnavailable) {
		return res, stageFailed(sink, StageLoad, fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	if err != nil {
		return res, stageFailed(sink, StageLoad, err)
	}
	res.RawRows = len(rows)

	records, rejected := NewNormalizer(cfg).NormalizeAll(rows)
	for _, rej := range rejected {
		sink.Emit(events.Event{Kind: events.RecordRejected, Stage: StageLoad, Symbol: rej.Symbol, Detail: rej.String()})
	}
	res.Normalized = len(records)

	lr, err := loader.Load(ctx, st, records, sink)
	res.Result = lr
	res.Rejected = append(rejected, lr.Rejected...)
	if err != nil {
		return res, stageFailed(sink, StageLoad, err)
	}
	sink.Emit(events.Event{Kind: events.StageFinished, Stage: StageLoad, Count: lr.Upserted})
	return res, nil
}

// AnalyzeResult holds every derived table of one analysis run.
type AnalyzeResult struct {
	Prices      int
	Returns     []model.ReturnRecord
	Summary     []model.SummaryRow
	Volatility  []model.VolatilityRow
	ChartSymbol string
	Artifacts   []string
}

// Analyze computes returns, summary and volatility from the store and writes the reports.
func Analyze(ctx context.Context, cfg *config.Config, st store.Store, sink events.Sink) (AnalyzeResult, error) {
	sink.Emit(events.Event{Kind: events.StageStarted, Stage: StageAnalyze})

	var res AnalyzeResult
	prices, err := st.ListPrices(ctx, store.Filter{})
	if errors.Is(err, store.ErrNoTable) {
		return res, stageFailed(sink, StageAnalyze, fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	if err != nil {
		return res, stageFailed(sink, StageAnalyze, fmt.Errorf("read prices: %w", err))
	}
	if len(prices) == 0 {
		return res, stageFailed(sink, StageAnalyze, ErrNoPrices)
	}
	res.Prices = len(prices)

	res.Returns = calculator.ComputeReturns(prices)
	res.Summary = calculator.Summarize(res.Returns)
	res.Volatility, err = calculator.RollingVolatility(res.Returns, cfg.Analysis.Window, cfg.Analysis.AnnualizationFactor)
	if err != nil {
		return res, stageFailed(sink, StageAnalyze, err)
	}

	if err := report.WriteSummary(cfg.Paths.SummaryFile, res.Summary); err != nil {
		return res, stageFailed(sink, StageAnalyze, err)
	}
	res.Artifacts = append(res.Artifacts, cfg.Paths.SummaryFile)
	sink.Emit(events.Event{Kind: events.ArtifactWritten, Stage: StageAnalyze, Path: cfg.Paths.SummaryFile, Count: len(res.Summary)})

	if err := report.WriteVolatility(cfg.Paths.VolatilityFile, res.Volatility, cfg.Analysis.Window); err != nil {
		return res, stageFailed(sink, StageAnalyze, err)
	}
	res.Artifacts = append(res.Artifacts, cfg.Paths.VolatilityFile)
	sink.Emit(events.Event{Kind: events.ArtifactWritten, Stage: StageAnalyze, Path: cfg.Paths.VolatilityFile, Count: len(res.Volatility)})

	res.ChartSymbol, _ = report.ChartSymbol(prices)
	if err := report.RenderChart(cfg.Paths.ChartFile, res.ChartSymbol, prices); err != nil {
		return res, stageFailed(sink, StageAnalyze, err)
	}
	res.Artifacts = append(res.Artifacts, cfg.Paths.ChartFile)
	sink.Emit(events.Event{Kind: events.ArtifactWritten, Stage: StageAnalyze, Path: cfg.Paths.ChartFile, Symbol: res.ChartSymbol})

	sink.Emit(events.Event{Kind: events.StageFinished, Stage: StageAnalyze, Count: res.Prices})
	return res, nil
}

// OutputPaths lists the files a successful run leaves behind.
func OutputPaths(cfg *config.Config) []string {
	out := []string{cfg.Paths.RawFile}
	if cfg.Database.Driver == config.DriverSQLite {
		out = append(out, cfg.Database.SQLitePath)
	}
	return append(out, cfg.Paths.SummaryFile, cfg.Paths.VolatilityFile, cfg.Paths.ChartFile)
}

func stageFailed(sink events.Sink, stage string, err error) error {
	sink.Emit(events.Event{Kind: events.StageFailed, Stage: stage, Err: err})
	return fmt.Errorf("%s: %w", stage, err)
}
