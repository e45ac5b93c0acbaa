package calculator

import (
	"errors"
	"math"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	"MarketETL/internal/model"
)

// Annualization factors for common sampling frequencies.
const (
	Daily   = 252
	Weekly  = 52
	Monthly = 12
)

// RollingStd returns the sample standard deviation over every trailing window of
// values. Entry i covers values[i-window+1 : i+1]; the first window-1 entries are invalid.
func RollingStd(values []float64, window int) ([]null.Float, error) {
	if window < 2 {
		return nil, errors.New("window must be at least 2")
	}
	out := make([]null.Float, len(values))
	for i := window - 1; i < len(values); i++ {
		out[i] = null.FloatFrom(stat.StdDev(values[i-window+1:i+1], nil))
	}
	return out, nil
}

// RollingVolatility reports, per symbol, the sample standard deviation of the most
// recent window valid daily returns scaled by sqrt(annualization). Symbols with
// fewer than window valid returns get an invalid value. Rows are ordered by symbol.
func RollingVolatility(returns []model.ReturnRecord, window, annualization int) ([]model.VolatilityRow, error) {
	if window < 2 {
		return nil, errors.New("window must be at least 2")
	}
	if annualization <= 0 {
		return nil, errors.New("annualization factor must be positive")
	}
	scale := math.Sqrt(float64(annualization))

	groups := groupBySymbol(sortReturns(returns))
	rows := make([]model.VolatilityRow, 0, len(groups))
	for _, g := range groups {
		row := model.VolatilityRow{Symbol: g[0].Symbol}
		series, err := RollingStd(validReturns(g), window)
		if err != nil {
			return nil, err
		}
		if n := len(series); n > 0 && series[n-1].Valid {
			row.AnnVol = null.FloatFrom(series[n-1].Float64 * scale)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
