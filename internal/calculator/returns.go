package calculator

import (
	"sort"

	"github.com/guregu/null/v6"

	"MarketETL/internal/model"
)

// SortRecords orders records by symbol, then date. Input order is not trusted.
func SortRecords(records []model.PriceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Symbol != records[j].Symbol {
			return records[i].Symbol < records[j].Symbol
		}
		return records[i].Date.Before(records[j].Date)
	})
}

// ComputeReturns returns one ReturnRecord per input record, ordered by symbol then date.
// The daily return is adj_close[t]/adj_close[t-1] - 1 against the previous available
// row of the same symbol; there is no calendar gap filling. The first row of each
// symbol, and any row whose predecessor has a zero adj_close, has no return.
func ComputeReturns(records []model.PriceRecord) []model.ReturnRecord {
	sorted := append([]model.PriceRecord(nil), records...)
	SortRecords(sorted)

	out := make([]model.ReturnRecord, len(sorted))
	for i, rec := range sorted {
		out[i] = model.ReturnRecord{PriceRecord: rec}
		if i == 0 || sorted[i-1].Symbol != rec.Symbol {
			continue
		}
		prev := sorted[i-1].AdjClose
		if prev == 0 {
			continue
		}
		out[i].DailyReturn = null.FloatFrom(rec.AdjClose/prev - 1)
	}
	return out
}

// groupBySymbol splits symbol-ordered returns into contiguous per-symbol runs.
func groupBySymbol(returns []model.ReturnRecord) [][]model.ReturnRecord {
	var groups [][]model.ReturnRecord
	start := 0
	for i := 1; i <= len(returns); i++ {
		if i == len(returns) || returns[i].Symbol != returns[start].Symbol {
			groups = append(groups, returns[start:i])
			start = i
		}
	}
	return groups
}

// validReturns extracts the defined daily returns of one symbol in date order.
func validReturns(group []model.ReturnRecord) []float64 {
	vals := make([]float64, 0, len(group))
	for _, r := range group {
		if r.DailyReturn.Valid {
			vals = append(vals, r.DailyReturn.Float64)
		}
	}
	return vals
}

// sortReturns orders derived rows the same way ComputeReturns does, so callers
// may pass returns they assembled themselves.
func sortReturns(returns []model.ReturnRecord) []model.ReturnRecord {
	sorted := append([]model.ReturnRecord(nil), returns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}
