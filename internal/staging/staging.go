// Package staging persists fetched records to a CSV file that the load stage reads back.
package staging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"MarketETL/internal/model"
)

var (
	// ErrSourceUnavailable means the staging file does not exist.
	ErrSourceUnavailable = errors.New("staging file not found")
	// ErrEmpty means the staging file holds no data rows.
	ErrEmpty = errors.New("staging file has no data rows")
)

// Header is the canonical column order of the staging file.
var Header = []string{"date", "symbol", "open", "high", "low", "close", "adj_close", "volume"}

// SourceName tags rows read from the staging file.
const SourceName = "staging"

// WritePrices writes records to path, replacing any previous file.
func WritePrices(path string, records []model.PriceRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.DateString(),
			r.Symbol,
			formatFloat(r.Open),
			formatFloat(r.High),
			formatFloat(r.Low),
			formatFloat(r.Close),
			formatFloat(r.AdjClose),
			strconv.FormatInt(r.Volume, 10),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	// Rename so a crashed fetch never leaves a half-written file for load to pick up.
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace staging file: %w", err)
	}
	return nil
}

// ReadRaw reads the staging file back as untyped rows for the normalizer.
// Line numbers count the header as line 1.
func ReadRaw(path string) ([]model.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
		}
		return nil, fmt.Errorf("open staging file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []model.RawRow
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				fields[name] = rec[i]
			}
		}
		rows = append(rows, model.RawRow{Source: SourceName, Line: line, Fields: fields})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
