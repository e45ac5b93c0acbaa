package calculator

import (
	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	"MarketETL/internal/model"
)

// Summarize aggregates returns per symbol. Obs, mean and std cover valid returns
// only (std uses the n-1 divisor and needs two observations); AvgVolume covers
// every row of the symbol. Rows are ordered by symbol.
func Summarize(returns []model.ReturnRecord) []model.SummaryRow {
	groups := groupBySymbol(sortReturns(returns))
	rows := make([]model.SummaryRow, 0, len(groups))
	for _, g := range groups {
		vals := validReturns(g)
		row := model.SummaryRow{Symbol: g[0].Symbol, Obs: len(vals)}
		if len(vals) > 0 {
			row.MeanDailyReturn = null.FloatFrom(stat.Mean(vals, nil))
		}
		if len(vals) > 1 {
			row.StdDailyReturn = null.FloatFrom(stat.StdDev(vals, nil))
		}

		volumes := make([]float64, len(g))
		for i, r := range g {
			volumes[i] = float64(r.Volume)
		}
		row.AvgVolume = stat.Mean(volumes, nil)

		rows = append(rows, row)
	}
	return rows
}
