package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log line
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogRecorder is a slog.Handler that keeps records in memory so tests can
// assert on what the pipeline logged
type LogRecorder struct {
	state *recorderState
	attrs []slog.Attr
}

type recorderState struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewTestLogger creates a logger whose output a test can inspect
func NewTestLogger(t *testing.T) (*slog.Logger, *LogRecorder) {
	t.Helper()

	recorder := &LogRecorder{state: &recorderState{}}
	return slog.New(recorder), recorder
}

// Handle implements slog.Handler
func (r *LogRecorder) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]any, record.NumAttrs()+len(r.attrs))
	for _, attr := range r.attrs {
		attrs[attr.Key] = attr.Value.Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.Any()
		return true
	})

	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.records = append(r.state.records, LogRecord{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	return nil
}

// Enabled implements slog.Handler; tests capture every level
func (r *LogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler, sharing the record buffer so attrs
// attached via Logger.With still land in the same recorder
func (r *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	merged = append(merged, r.attrs...)
	merged = append(merged, attrs...)
	return &LogRecorder{state: r.state, attrs: merged}
}

// WithGroup implements slog.Handler. Groups are flattened; none of the
// pipeline's log calls use them.
func (r *LogRecorder) WithGroup(string) slog.Handler {
	return r
}

// Records returns a copy of everything captured so far
func (r *LogRecorder) Records() []LogRecord {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	records := make([]LogRecord, len(r.state.records))
	copy(records, r.state.records)
	return records
}

// Contains reports whether any captured message contains the substring
func (r *LogRecorder) Contains(message string) bool {
	for _, record := range r.Records() {
		if strings.Contains(record.Message, message) {
			return true
		}
	}
	return false
}

// ContainsAt reports whether a message was captured at the given level
func (r *LogRecorder) ContainsAt(level slog.Level, message string) bool {
	for _, record := range r.Records() {
		if record.Level == level && strings.Contains(record.Message, message) {
			return true
		}
	}
	return false
}

// AttrValue returns the attribute value of the first captured record that
// has the key
func (r *LogRecorder) AttrValue(key string) (any, bool) {
	for _, record := range r.Records() {
		if value, ok := record.Attrs[key]; ok {
			return value, true
		}
	}
	return nil, false
}

// CountAt returns how many records were captured at the given level
func (r *LogRecorder) CountAt(level slog.Level) int {
	count := 0
	for _, record := range r.Records() {
		if record.Level == level {
			count++
		}
	}
	return count
}
