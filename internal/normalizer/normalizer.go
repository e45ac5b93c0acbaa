package normalizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"MarketETL/internal/model"
)

// Canonical field names of a PriceRecord.
const (
	FieldDate     = "date"
	FieldSymbol   = "symbol"
	FieldOpen     = "open"
	FieldHigh     = "high"
	FieldLow      = "low"
	FieldClose    = "close"
	FieldAdjClose = "adj_close"
	FieldVolume   = "volume"
)

// DefaultAliases lists, per canonical field, the source column names accepted
// for it in priority order. Names are compared after canonicalKey.
var DefaultAliases = map[string][]string{
	FieldDate:     {"date", "timestamp", "datetime", "time"},
	FieldSymbol:   {"symbol", "ticker"},
	FieldOpen:     {"open", "o"},
	FieldHigh:     {"high", "h"},
	FieldLow:      {"low", "l"},
	FieldClose:    {"close", "c"},
	FieldAdjClose: {"adj_close", "adjclose", "adjusted_close", "adjustedclose", "adj_close_price"},
	FieldVolume:   {"volume", "vol", "v"},
}

// DefaultDateLayouts are tried in order before falling back to unix seconds.
var DefaultDateLayouts = []string{
	model.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"01/02/2006",
	"20060102",
}

// Options customise column resolution.
type Options struct {
	// Aliases extend DefaultAliases; configured names take priority.
	Aliases     map[string][]string
	DateLayouts []string
	// AdjCloseFallbackToClose substitutes close when no adjusted-close column resolves.
	AdjCloseFallbackToClose bool
}

// Normalizer coerces provider rows into PriceRecords.
type Normalizer struct {
	aliases  map[string][]string
	layouts  []string
	fallback bool
}

// New builds a Normalizer from options merged over the defaults.
func New(opts Options) *Normalizer {
	aliases := make(map[string][]string, len(DefaultAliases))
	for field, names := range DefaultAliases {
		var merged []string
		seen := make(map[string]bool)
		for _, n := range append(append([]string(nil), opts.Aliases[field]...), names...) {
			k := canonicalKey(n)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, k)
		}
		aliases[field] = merged
	}
	layouts := opts.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	return &Normalizer{aliases: aliases, layouts: layouts, fallback: opts.AdjCloseFallbackToClose}
}

// Normalize converts one raw row. It never returns a record with a missing
// required field: such rows come back as a Rejection instead.
func (n *Normalizer) Normalize(raw model.RawRow) (model.PriceRecord, *model.Rejection) {
	fields := make(map[string]string, len(raw.Fields))
	for k, v := range raw.Fields {
		fields[canonicalKey(k)] = strings.TrimSpace(v)
	}
	reject := func(format string, args ...any) (model.PriceRecord, *model.Rejection) {
		return model.PriceRecord{}, &model.Rejection{
			Symbol: raw.Symbol,
			Source: raw.Source,
			Line:   raw.Line,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	var rec model.PriceRecord

	symbol, ok := n.lookup(fields, FieldSymbol)
	if !ok {
		symbol = strings.TrimSpace(raw.Symbol)
	}
	if symbol == "" {
		return reject("missing required field %s", FieldSymbol)
	}
	rec.Symbol = symbol
	raw.Symbol = symbol

	dateText, ok := n.lookup(fields, FieldDate)
	if !ok {
		return reject("missing required field %s", FieldDate)
	}
	date, err := n.parseDate(dateText)
	if err != nil {
		return reject("invalid %s %q: %v", FieldDate, dateText, err)
	}
	rec.Date = date

	prices := []struct {
		field string
		dst   *float64
	}{
		{FieldOpen, &rec.Open},
		{FieldHigh, &rec.High},
		{FieldLow, &rec.Low},
		{FieldClose, &rec.Close},
		{FieldAdjClose, &rec.AdjClose},
	}
	for _, p := range prices {
		text, ok := n.lookup(fields, p.field)
		if !ok && p.field == FieldAdjClose && n.fallback {
			text, ok = n.lookup(fields, FieldClose)
		}
		if !ok {
			return reject("missing required field %s", p.field)
		}
		v, err := parseFloat(text)
		if err != nil {
			return reject("invalid %s %q: %v", p.field, text, err)
		}
		*p.dst = v
	}

	volText, ok := n.lookup(fields, FieldVolume)
	if !ok {
		return reject("missing required field %s", FieldVolume)
	}
	vol, err := parseVolume(volText)
	if err != nil {
		return reject("invalid %s %q: %v", FieldVolume, volText, err)
	}
	rec.Volume = vol

	return rec, nil
}

// NormalizeAll converts rows, collecting rejections instead of stopping.
func (n *Normalizer) NormalizeAll(rows []model.RawRow) ([]model.PriceRecord, []model.Rejection) {
	records := make([]model.PriceRecord, 0, len(rows))
	var rejected []model.Rejection
	for _, row := range rows {
		rec, rej := n.Normalize(row)
		if rej != nil {
			rejected = append(rejected, *rej)
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}

func (n *Normalizer) lookup(fields map[string]string, field string) (string, bool) {
	for _, alias := range n.aliases[field] {
		if v, ok := fields[alias]; ok && !isNullToken(v) {
			return v, true
		}
	}
	return "", false
}

func (n *Normalizer) parseDate(s string) (time.Time, error) {
	for _, layout := range n.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.CalendarDate(t), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return model.CalendarDate(time.Unix(secs, 0).UTC()), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date format")
}

// canonicalKey lower-cases a column name and maps spaces and dashes to underscores.
func canonicalKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func isNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "nan", "none", "n/a", "na":
		return true
	}
	return false
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}

func parseVolume(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative volume")
		}
		return v, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("volume is not integral")
	}
	if f < 0 {
		return 0, fmt.Errorf("negative volume")
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("volume out of range")
	}
	return int64(f), nil
}
