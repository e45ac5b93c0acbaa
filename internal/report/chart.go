package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"MarketETL/internal/calculator"
	"MarketETL/internal/model"
)

// ChartSymbol picks the symbol to chart: the lexicographically first one present.
func ChartSymbol(records []model.PriceRecord) (string, bool) {
	first := ""
	for _, r := range records {
		if first == "" || r.Symbol < first {
			first = r.Symbol
		}
	}
	return first, first != ""
}

// RenderChart draws adj_close against date for one symbol and saves it as an image.
// The format follows the file extension (.png, .svg, .pdf).
func RenderChart(path, symbol string, records []model.PriceRecord) error {
	var series []model.PriceRecord
	for _, r := range records {
		if r.Symbol == symbol {
			series = append(series, r)
		}
	}
	if len(series) == 0 {
		return errors.New("no records for chart symbol " + symbol)
	}
	calculator.SortRecords(series)

	pts := make(plotter.XYs, len(series))
	for i, r := range series {
		pts[i].X = float64(r.Date.Unix())
		pts[i].Y = r.AdjClose
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Adjusted Close", symbol)
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Adj Close"
	p.X.Tick.Marker = plot.TimeTicks{Format: model.DateLayout}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	p.Add(line)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}
