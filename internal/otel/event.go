// Package otel records the segmentation workflow as a JSONL event stream.
//
// Events are typed structs serialized one per line. The Logger writes them
// asynchronously through a buffered channel drained by a background
// goroutine, so the UI loop never blocks on disk.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Catalog events
	KindCatalogLoad     EventKind = "catalog.load"
	KindCatalogFallback EventKind = "catalog.fallback"

	// Primary clustering request
	KindRunSubmit   EventKind = "run.submit"
	KindRunComplete EventKind = "run.complete"
	KindRunError    EventKind = "run.error"
	KindRunStale    EventKind = "run.stale"

	// Dependent boxplot fetch
	KindBoxplotStart    EventKind = "boxplot.start"
	KindBoxplotComplete EventKind = "boxplot.complete"
	KindBoxplotError    EventKind = "boxplot.error"
	KindBoxplotStale    EventKind = "boxplot.stale"
	KindBoxplotExport   EventKind = "boxplot.export"

	// Store events
	KindStoreError EventKind = "store.error"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"

	// Trace events, emitted only when INSIGHT_TRACE is set
	KindMsgReceived EventKind = "trace.msg_received"
)

// Event is the universal record. Every field except Kind and Time is
// optional.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "ui", "dispatch", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire app run
	RunID     string         `json:"run_id,omitempty"`
	Gen       uint64         `json:"gen,omitempty"`
	Algorithm string         `json:"algorithm,omitempty"`
	Features  []string       `json:"features,omitempty"`
	Feature   string         `json:"feature,omitempty"` // boxplot feature
	Dur       time.Duration  `json:"-"`                 // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`  // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
