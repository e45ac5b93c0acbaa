package model

import "github.com/guregu/null/v6"

// ReturnRecord is a PriceRecord with its daily return against the previous
// available row of the same symbol. DailyReturn is invalid for the first row.
type ReturnRecord struct {
	PriceRecord
	DailyReturn null.Float
}

// SummaryRow aggregates one symbol's returns and volume.
type SummaryRow struct {
	Symbol          string
	Obs             int
	MeanDailyReturn null.Float
	StdDailyReturn  null.Float
	AvgVolume       float64
}

// VolatilityRow holds the latest annualized rolling volatility of one symbol.
type VolatilityRow struct {
	Symbol string
	AnnVol null.Float
}
