package segment

import "strings"

// BoxplotState is what the boxplot panel shows.
type BoxplotState struct {
	Active  bool // activation predicate held at the last reconcile
	Loading bool
	Feature string
	Image   string // base64 PNG
	Err     string
}

// boxplotDeps is the tuple whose every change invalidates the chart.
type boxplotDeps struct {
	status    Status
	algorithm Algorithm
	features  string // Selection values joined by \x00
	nClusters int
	feature   string
}

func (d boxplotDeps) active() bool {
	return d.status == StatusSuccess &&
		d.algorithm == KMeans &&
		d.features != "" &&
		d.feature != ""
}

// visualization tracks the dependent boxplot fetch. Each issued request gets
// a fresh generation; outcomes from any other generation are dropped, so a
// late response can never repopulate the panel under a newer context.
type visualization struct {
	state  BoxplotState
	deps   boxplotDeps
	primed bool
	gen    uint64
}

// reconcile compares the current dependency tuple to the last seen one and
// returns a request when a new fetch must start.
func (v *visualization) reconcile(d boxplotDeps, features []string, runID string) *BoxplotRequest {
	if v.primed && d == v.deps {
		return nil
	}
	v.primed = true
	v.deps = d

	// Invalidate whatever was showing and anything still in flight.
	v.gen++
	v.state = BoxplotState{}

	if !d.active() {
		return nil
	}

	v.state = BoxplotState{Active: true, Loading: true, Feature: d.feature}
	return &BoxplotRequest{
		Gen:       v.gen,
		RunID:     runID,
		Features:  append([]string(nil), features...),
		NClusters: d.nClusters,
		Feature:   d.feature,
	}
}

// apply stores an outcome if it belongs to the current generation.
func (v *visualization) apply(o BoxplotOutcome) bool {
	if o.Gen != v.gen || !v.state.Active {
		return false
	}
	v.state.Loading = false
	if o.Err != "" {
		v.state.Image = ""
		v.state.Err = o.Err
		return true
	}
	v.state.Image = o.Image
	v.state.Err = ""
	return true
}

func joinFeatures(values []string) string {
	return strings.Join(values, "\x00")
}
