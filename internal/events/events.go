// Package events decouples pipeline progress reporting from the transforms
// that produce it. Core packages emit Events; whoever owns the process decides
// where they go.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a pipeline event.
type Kind string

const (
	StageStarted    Kind = "stage_started"
	StageFinished   Kind = "stage_finished"
	StageFailed     Kind = "stage_failed"
	SymbolFetched   Kind = "symbol_fetched"
	SymbolFailed    Kind = "symbol_failed"
	RecordRejected  Kind = "record_rejected"
	RecordsLoaded   Kind = "records_loaded"
	ArtifactWritten Kind = "artifact_written"
)

// Event is one structured progress notification.
type Event struct {
	Kind   Kind
	Stage  string
	Symbol string
	Count  int
	Path   string
	Detail string
	Err    error
}

// Sink consumes events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// ZapSink writes events as structured log entries.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink returns a sink backed by the given logger.
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

func (s *ZapSink) Emit(e Event) {
	fields := []zap.Field{zap.String("event", string(e.Kind))}
	if e.Stage != "" {
		fields = append(fields, zap.String("stage", e.Stage))
	}
	if e.Symbol != "" {
		fields = append(fields, zap.String("symbol", e.Symbol))
	}
	if e.Count != 0 {
		fields = append(fields, zap.Int("count", e.Count))
	}
	if e.Path != "" {
		fields = append(fields, zap.String("path", e.Path))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}
	switch {
	case e.Kind == StageFailed:
		s.log.Error("pipeline event", append(fields, zap.Error(e.Err))...)
	case e.Err != nil || e.Kind == SymbolFailed || e.Kind == RecordRejected:
		s.log.Warn("pipeline event", append(fields, zap.Error(e.Err))...)
	default:
		s.log.Info("pipeline event", fields...)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events have the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(Event) {}
