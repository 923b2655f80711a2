// Package ui provides the Bubble Tea TUI for the segmentation workflow.
package ui

import "github.com/abelbrown/insight/internal/segment"

// CatalogLoaded is sent when the feature catalog request settles. A failed
// load still carries the fallback catalog.
type CatalogLoaded struct {
	Catalog segment.Catalog
}

// RunFinished is sent when a primary clustering request settles.
type RunFinished struct {
	Result segment.Result
}

// BoxplotFetched is sent when a boxplot request settles.
type BoxplotFetched struct {
	Outcome segment.BoxplotOutcome
}

// BoxplotExported is sent when the export command finishes.
type BoxplotExported struct {
	Path string
	Err  error
}

// HistorySaved is sent after a run or boxplot is written to the history
// store.
type HistorySaved struct {
	RunID string
	Err   error
}
