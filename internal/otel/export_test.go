package otel

// SetTraceEnabled lets external tests flip tracing without the env var.
var SetTraceEnabled = setTraceEnabled
