package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"MarketETL/internal/model"
)

// RESTFetcher implements Fetcher against a generic JSON bars API
// (GET {base}/api/v1/bars/daily?symbol=&from=&to=).
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// FetchDaily returns one RawRow per JSON bar. Keys are passed through untouched
// since deployments disagree on names such as adjClose vs adjusted_close.
func (f *RESTFetcher) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.RawRow, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", start.Format(model.DateLayout))
	q.Set("to", end.Format(model.DateLayout))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var bars []map[string]json.RawMessage
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&bars); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}

	rows := make([]model.RawRow, 0, len(bars))
	for i, bar := range bars {
		fields := make(map[string]string, len(bar))
		for k, raw := range bar {
			if v, ok := scalarText(raw); ok {
				fields[k] = v
			}
		}
		rows = append(rows, model.RawRow{
			Symbol: symbol,
			Source: f.Name(),
			Line:   i + 1,
			Fields: fields,
		})
	}
	return rows, nil
}

// scalarText renders a JSON string or number as text. null, objects and arrays are dropped.
func scalarText(raw json.RawMessage) (string, bool) {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
