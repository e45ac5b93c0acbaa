package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketETL/internal/model"
	"MarketETL/internal/normalizer"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "prices_raw.csv")
	records := []model.PriceRecord{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Symbol: "AAPL", Open: 179.55, High: 180.53, Low: 177.38, Close: 179.66, AdjClose: 178.93, Volume: 73488000},
		{Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Symbol: "AAPL", Open: 176.15, High: 176.9, Low: 173.79, Close: 175.1, AdjClose: 174.39, Volume: 81510100},
	}
	if err := WritePrices(path, records); err != nil {
		t.Fatalf("WritePrices: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	wantHead := "date,symbol,open,high,low,close,adj_close,volume\n2024-03-01,AAPL,179.55,180.53,177.38,179.66,178.93,73488000\n"
	if got := string(data); len(got) < len(wantHead) || got[:len(wantHead)] != wantHead {
		t.Errorf("file starts with %q, want %q", got, wantHead)
	}

	rows, err := ReadRaw(path)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if len(rows) != 2 || rows[0].Line != 2 || rows[1].Line != 3 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	got, rejected := normalizer.New(normalizer.Options{}).NormalizeAll(rows)
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", rejected)
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestReadRaw_Missing(t *testing.T) {
	_, err := ReadRaw(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestReadRaw_Empty(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"zero bytes", ""},
		{"header only", "date,symbol,open,high,low,close,adj_close,volume\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".csv")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadRaw(path); !errors.Is(err, ErrEmpty) {
				t.Errorf("expected ErrEmpty, got %v", err)
			}
		})
	}
}

func TestReadRaw_ShortRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.csv")
	content := "date,symbol,open,high,low,close,adj_close,volume\n2024-03-01,AAPL,1,2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadRaw(path)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if _, ok := rows[0].Fields["adj_close"]; ok {
		t.Error("short row should not carry adj_close")
	}
	if _, rej := normalizer.New(normalizer.Options{}).Normalize(rows[0]); rej == nil {
		t.Error("short row should be rejected by the normalizer")
	}
}
