package model

import (
	"fmt"
	"sort"
)

// RawRow is one untrusted provider row keyed by the provider's own column names.
type RawRow struct {
	Symbol string
	Source string
	Line   int
	Fields map[string]string
}

// Rejection explains why a raw row or record was refused.
type Rejection struct {
	Symbol string
	Source string
	Line   int
	Reason string
}

func (r Rejection) String() string {
	if r.Line > 0 {
		return fmt.Sprintf("%s %s line %d: %s", r.Source, r.Symbol, r.Line, r.Reason)
	}
	return fmt.Sprintf("%s %s: %s", r.Source, r.Symbol, r.Reason)
}

// FetchTally is the per-symbol outcome of one fetch batch.
type FetchTally struct {
	Succeeded []string
	Failed    map[string]string // symbol -> reason
}

// NewFetchTally returns an empty tally.
func NewFetchTally() FetchTally {
	return FetchTally{Failed: make(map[string]string)}
}

// Ok reports whether at least one symbol produced usable records.
func (t FetchTally) Ok() bool { return len(t.Succeeded) > 0 }

// FailedSymbols returns failed symbols in lexical order.
func (t FetchTally) FailedSymbols() []string {
	out := make([]string, 0, len(t.Failed))
	for s := range t.Failed {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
