package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DateLayout is the canonical calendar-date rendering used in the store and staging files.
const DateLayout = "2006-01-02"

// PriceRecord is one daily OHLCV bar for one symbol.
type PriceRecord struct {
	Date     time.Time // UTC midnight
	Symbol   string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// Key identifies a record in the store.
type Key struct {
	Date   string
	Symbol string
}

// Key returns the (date, symbol) primary key of the record.
func (p PriceRecord) Key() Key {
	return Key{Date: p.DateString(), Symbol: p.Symbol}
}

// DateString renders the record date as YYYY-MM-DD.
func (p PriceRecord) DateString() string {
	return p.Date.Format(DateLayout)
}

// Validate reports the first missing or malformed field.
func (p PriceRecord) Validate() error {
	if p.Symbol == "" {
		return errors.New("symbol is empty")
	}
	if p.Date.IsZero() {
		return errors.New("date is missing")
	}
	prices := []struct {
		name string
		v    float64
	}{
		{"open", p.Open}, {"high", p.High}, {"low", p.Low},
		{"close", p.Close}, {"adj_close", p.AdjClose},
	}
	for _, f := range prices {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not a finite number", f.name)
		}
	}
	if p.Volume < 0 {
		return errors.New("volume is negative")
	}
	return nil
}

// CalendarDate truncates t to a UTC calendar date.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
