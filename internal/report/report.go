// Package report renders analysis results as CSV artifacts and a PNG chart.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/guregu/null/v6"

	"MarketETL/internal/model"
)

// SummaryHeader is the column order of summary.csv.
var SummaryHeader = []string{"symbol", "obs", "mean_daily_return", "std_daily_return", "avg_volume"}

// VolatilityColumn names the volatility column for a given window, e.g. ann_vol_20d.
func VolatilityColumn(window int) string {
	return fmt.Sprintf("ann_vol_%dd", window)
}

// WriteSummary writes one row per symbol. Undefined statistics are left empty.
func WriteSummary(path string, rows []model.SummaryRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Symbol,
			strconv.Itoa(r.Obs),
			formatNull(r.MeanDailyReturn),
			formatNull(r.StdDailyReturn),
			formatFloat(r.AvgVolume),
		})
	}
	return writeCSV(path, SummaryHeader, out)
}

// WriteVolatility writes one row per symbol with the annualized volatility over window.
func WriteVolatility(path string, rows []model.VolatilityRow, window int) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Symbol, formatNull(r.AnnVol)})
	}
	return writeCSV(path, []string{"symbol", VolatilityColumn(window)}, out)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatNull(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
