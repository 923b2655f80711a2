package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is set once at package init.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("INSIGHT_TRACE") != "")
}

// TraceEnabled reports whether INSIGHT_TRACE is set. When true the UI emits
// one trace.msg_received event per Bubble Tea message.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
