package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MarketETL/internal/events"
	"MarketETL/internal/model"
	"MarketETL/internal/normalizer"
)

var (
	testStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday
	testEnd   = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC) // Friday
)

const yahooResponse = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "gmtoffset": -18000},
      "timestamp": [1709562600, 1709649000, 1709735400],
      "indicators": {
        "quote": [{
          "open":   [175.0, 170.5, 171.0],
          "high":   [176.0, 172.0, 172.5],
          "low":    [174.0, 169.0, 170.0],
          "close":  [175.1, 170.1, null],
          "volume": [81510100, 95132400, 68587700]
        }],
        "adjclose": [{"adjclose": [174.6, 169.6, null]}]
      }
    }],
    "error": null
  }
}`

func TestYahooFetcher_FetchDaily(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, yahooResponse)
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second, map[string]string{"SPX": "^GSPC"})
	f.BaseURL = srv.URL
	rows, err := f.FetchDaily(context.Background(), "SPX", testStart, testEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/^GSPC" {
		t.Errorf("path = %q, want mapped symbol", gotPath)
	}
	for _, want := range []string{"interval=1d", "period1=1709510400", "period2=1709856000"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	first := rows[0].Fields
	if first["Date"] != "2024-03-04" || first["Adj Close"] != "174.6" || first["Volume"] != "81510100" {
		t.Errorf("unexpected first row: %v", first)
	}
	if _, ok := rows[2].Fields["Close"]; ok {
		t.Error("null close should be omitted from the row")
	}

	records, rejected := normalizer.New(normalizer.Options{}).NormalizeAll(rows)
	if len(records) != 2 || len(rejected) != 1 {
		t.Errorf("normalized %d records, %d rejections; want 2 and 1", len(records), len(rejected))
	}
}

func TestYahooFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second, nil)
	f.BaseURL = srv.URL
	_, err := f.FetchDaily(context.Background(), "ZZZZ", testStart, testEnd)
	if err == nil || !strings.Contains(err.Error(), "delisted") {
		t.Errorf("expected api error, got %v", err)
	}
}

func TestRESTFetcher_FetchDaily(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/v1/bars/daily" || r.URL.Query().Get("symbol") != "MSFT" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[
			{"date":"2024-03-04","open":410.1,"high":415,"low":409,"close":414.9,"adjClose":413.2,"volume":20120000},
			{"date":"2024-03-05","open":413,"high":414,"low":400,"close":402.6,"adjClose":null,"volume":31000000}
		]`)
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL+"/", "secret", "", time.Second)
	rows, err := f.FetchDaily(context.Background(), "MSFT", testStart, testEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Fields["adjClose"] != "413.2" || rows[0].Fields["volume"] != "20120000" {
		t.Errorf("unexpected fields: %v", rows[0].Fields)
	}
	if _, ok := rows[1].Fields["adjClose"]; ok {
		t.Error("null adjClose should be dropped")
	}
}

func TestRESTFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewRESTFetcher(srv.URL, "", "", time.Second).FetchDaily(context.Background(), "V", testStart, testEnd)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestCollect_IsolatesFailures(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "JPM", "V", "PG", "XOM", "NVDA"}
	fetcher := &MockFetcher{
		Price: 100,
		Errors: map[string]error{
			"META": errors.New("connection reset"),
			"XOM":  errors.New("symbol may be delisted"),
		},
	}
	rec := &events.Recorder{}
	col := NewCollector(fetcher, normalizer.New(normalizer.Options{}), 4, rec)

	batch, err := col.Collect(context.Background(), symbols, testStart, testEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Tally.Succeeded) != 8 {
		t.Errorf("succeeded = %v, want 8 symbols", batch.Tally.Succeeded)
	}
	if got := batch.Tally.FailedSymbols(); len(got) != 2 || got[0] != "META" || got[1] != "XOM" {
		t.Errorf("failed = %v, want [META XOM]", got)
	}
	if len(batch.Records) != 8*5 {
		t.Errorf("expected 40 records, got %d", len(batch.Records))
	}
	for i := 1; i < len(batch.Records); i++ {
		a, b := batch.Records[i-1], batch.Records[i]
		if a.Symbol > b.Symbol || (a.Symbol == b.Symbol && !a.Date.Before(b.Date)) {
			t.Fatalf("records out of order at %d: %s %v then %s %v", i, a.Symbol, a.Date, b.Symbol, b.Date)
		}
	}
	if rec.Count(events.SymbolFailed) != 2 || rec.Count(events.SymbolFetched) != 8 {
		t.Errorf("events: %d failed, %d fetched", rec.Count(events.SymbolFailed), rec.Count(events.SymbolFetched))
	}
}

func TestCollect_AllFailed(t *testing.T) {
	fetcher := &MockFetcher{Errors: map[string]error{"AAPL": errors.New("down"), "MSFT": errors.New("down")}}
	col := NewCollector(fetcher, normalizer.New(normalizer.Options{}), 1, nil)
	batch, err := col.Collect(context.Background(), []string{"AAPL", "MSFT"}, testStart, testEnd)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if len(batch.Tally.Failed) != 2 {
		t.Errorf("expected 2 failures, got %v", batch.Tally.Failed)
	}
}

func TestCollect_AllRowsRejectedCountsAsFailure(t *testing.T) {
	fetcher := &MockFetcher{
		Price: 50,
		Rows: map[string][]model.RawRow{
			"PG": {{Symbol: "PG", Source: "mock", Line: 1, Fields: map[string]string{"Date": "2024-03-04", "Close": "1"}}},
		},
	}
	col := NewCollector(fetcher, normalizer.New(normalizer.Options{}), 2, nil)
	batch, err := col.Collect(context.Background(), []string{"PG", "V"}, testStart, testEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, failed := batch.Tally.Failed["PG"]; !failed {
		t.Error("PG should be tallied as failed")
	}
	if len(batch.Rejections) != 1 {
		t.Errorf("expected 1 rejection, got %d", len(batch.Rejections))
	}
}

func TestCollect_EmptyResponsesCountAsFailures(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "JPM", "V", "PG", "XOM", "NVDA"}
	fetcher := &MockFetcher{
		Price: 100,
		Rows: map[string][]model.RawRow{
			"XOM":  {},
			"META": nil,
		},
	}
	rec := &events.Recorder{}
	col := NewCollector(fetcher, normalizer.New(normalizer.Options{}), 4, rec)

	batch, err := col.Collect(context.Background(), symbols, testStart, testEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Tally.Succeeded) != 8 {
		t.Errorf("succeeded = %v, want 8 symbols", batch.Tally.Succeeded)
	}
	for _, sym := range []string{"META", "XOM"} {
		if reason, failed := batch.Tally.Failed[sym]; !failed || reason != "no data returned" {
			t.Errorf("%s: failed=%v reason=%q", sym, failed, reason)
		}
	}
	if len(batch.Records) != 8*5 {
		t.Errorf("expected 40 records, got %d", len(batch.Records))
	}
	if rec.Count(events.SymbolFailed) != 2 {
		t.Errorf("expected 2 failure events, got %d", rec.Count(events.SymbolFailed))
	}
}

// callCounter records how often each symbol is fetched.
type callCounter struct {
	MockFetcher
	mu    sync.Mutex
	calls map[string]int
}

func (c *callCounter) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.RawRow, error) {
	c.mu.Lock()
	c.calls[symbol]++
	c.mu.Unlock()
	return c.MockFetcher.FetchDaily(ctx, symbol, start, end)
}

func TestCollect_RepeatedSymbolFetchedOnce(t *testing.T) {
	f := &callCounter{MockFetcher: MockFetcher{Price: 10}, calls: map[string]int{}}
	col := NewCollector(f, normalizer.New(normalizer.Options{}), 2, nil)

	batch, err := col.Collect(context.Background(), []string{"AAPL", "MSFT", "AAPL"}, testStart, testEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.calls["AAPL"] != 1 {
		t.Errorf("AAPL fetched %d times, want 1", f.calls["AAPL"])
	}
	if got := batch.Tally.Succeeded; len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("succeeded = %v, want [AAPL MSFT]", got)
	}
	if len(batch.Records) != 2*5 {
		t.Errorf("expected 10 records, got %d", len(batch.Records))
	}
}

// countingFetcher tracks how many fetches run at once.
type countingFetcher struct {
	MockFetcher
	active, peak int32
}

func (c *countingFetcher) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.RawRow, error) {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	for {
		p := atomic.LoadInt32(&c.peak)
		if n <= p || atomic.CompareAndSwapInt32(&c.peak, p, n) {
			break
		}
	}
	return c.MockFetcher.FetchDaily(ctx, symbol, start, end)
}

func TestCollect_BoundedConcurrency(t *testing.T) {
	f := &countingFetcher{MockFetcher: MockFetcher{Price: 10, Delay: 20 * time.Millisecond}}
	col := NewCollector(f, normalizer.New(normalizer.Options{}), 2, nil)
	symbols := []string{"A", "B", "C", "D", "E", "F"}
	if _, err := col.Collect(context.Background(), symbols, testStart, testEnd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak := atomic.LoadInt32(&f.peak); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	col := NewCollector(&MockFetcher{Delay: time.Second}, normalizer.New(normalizer.Options{}), 1, nil)
	if _, err := col.Collect(ctx, []string{"AAPL"}, testStart, testEnd); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
