package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/logging"
	"github.com/google/uuid"
)

// BoxplotErrorMessage is shown in the boxplot panel when its fetch fails.
const BoxplotErrorMessage = "Could not fetch boxplot."

// Service is the subset of the analytics API the workflow calls.
// *analytics.Client satisfies it.
type Service interface {
	Features(ctx context.Context) ([]analytics.Feature, error)
	KMeans(ctx context.Context, req analytics.KMeansRequest) (*analytics.ClusterResponse, error)
	DBSCAN(ctx context.Context, req analytics.DBSCANRequest) (*analytics.ClusterResponse, error)
	Boxplot(ctx context.Context, req analytics.BoxplotRequest) (*analytics.BoxplotResponse, error)
}

// RunRequest describes one primary clustering call. Gen identifies the
// submit that produced it.
type RunRequest struct {
	Gen       uint64
	Algorithm Algorithm
	Features  []string
	KMeans    KMeansParams
	DBSCAN    DBSCANParams
}

// Result is the normalized outcome of a RunRequest. Err is the user-facing
// message ("Error: ...") and is empty on success.
type Result struct {
	Gen         uint64
	RunID       string
	Algorithm   Algorithm
	Features    []string
	KMeans      KMeansParams
	DBSCAN      DBSCANParams
	Assignments analytics.Assignments
	Stats       map[string]analytics.ClusterStat
	Err         string
	Elapsed     time.Duration
}

// Failed reports whether the run ended in error.
func (r Result) Failed() bool {
	return r.Err != ""
}

// BoxplotRequest describes one dependent boxplot fetch.
type BoxplotRequest struct {
	Gen       uint64
	RunID     string
	Features  []string
	NClusters int
	Feature   string
}

// BoxplotOutcome is the result of a BoxplotRequest. Exactly one of Image or
// Err is set.
type BoxplotOutcome struct {
	Gen     uint64
	RunID   string
	Feature string
	Image   string
	Err     string
}

// Dispatcher performs the network side of the workflow and converts every
// failure into a value. It holds no workflow state.
type Dispatcher struct {
	svc Service
}

// NewDispatcher wraps svc.
func NewDispatcher(svc Service) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// LoadCatalog fetches the feature list, falling back silently on failure.
func (d *Dispatcher) LoadCatalog(ctx context.Context) Catalog {
	features, err := d.svc.Features(ctx)
	if err != nil {
		logging.Warn("feature catalog unavailable, using defaults", "err", err)
	} else if len(features) == 0 {
		logging.Warn("feature catalog empty, using defaults")
	}
	return NewCatalog(features, err)
}

// Run sends the clustering request for req.Algorithm and normalizes the
// response.
func (d *Dispatcher) Run(ctx context.Context, req RunRequest) Result {
	res := Result{
		Gen:       req.Gen,
		RunID:     uuid.NewString(),
		Algorithm: req.Algorithm,
		Features:  append([]string(nil), req.Features...),
		KMeans:    req.KMeans,
		DBSCAN:    req.DBSCAN,
	}

	start := time.Now()
	var (
		resp *analytics.ClusterResponse
		err  error
	)
	switch req.Algorithm {
	case KMeans:
		resp, err = d.svc.KMeans(ctx, analytics.KMeansRequest{
			Features:  res.Features,
			NClusters: req.KMeans.NClusters,
		})
	case DBSCAN:
		resp, err = d.svc.DBSCAN(ctx, analytics.DBSCANRequest{
			Features:   res.Features,
			Eps:        req.DBSCAN.Eps,
			MinSamples: req.DBSCAN.MinSamples,
		})
	default:
		err = fmt.Errorf("unsupported algorithm %q", req.Algorithm)
	}
	res.Elapsed = time.Since(start)

	if err == nil && (resp == nil || !validStats(resp.Stats)) {
		err = analytics.ErrMalformedResponse
	}
	if err != nil {
		logging.Error("segmentation run failed", "algorithm", req.Algorithm, "gen", req.Gen, "err", err)
		res.Err = "Error: " + analytics.ErrorMessage(err)
		return res
	}

	res.Assignments = resp.Assignments
	res.Stats = resp.Stats
	logging.Debug("segmentation run complete", "algorithm", req.Algorithm, "gen", req.Gen, "clusters", len(resp.Stats), "elapsed", res.Elapsed)
	return res
}

// validStats rejects negative cluster sizes.
func validStats(stats map[string]analytics.ClusterStat) bool {
	for _, st := range stats {
		if st.Size < 0 {
			return false
		}
	}
	return true
}

// Boxplot fetches the chart image for req. Any failure collapses to
// BoxplotErrorMessage.
func (d *Dispatcher) Boxplot(ctx context.Context, req BoxplotRequest) BoxplotOutcome {
	out := BoxplotOutcome{Gen: req.Gen, RunID: req.RunID, Feature: req.Feature}
	resp, err := d.svc.Boxplot(ctx, analytics.BoxplotRequest{
		Features:      append([]string(nil), req.Features...),
		NClusters:     req.NClusters,
		FeatureToPlot: req.Feature,
	})
	if err == nil && (resp == nil || resp.ImageBase64 == "") {
		err = analytics.ErrMalformedResponse
	}
	if err != nil {
		logging.Warn("boxplot fetch failed", "feature", req.Feature, "gen", req.Gen, "err", err)
		out.Err = BoxplotErrorMessage
		return out
	}
	out.Image = resp.ImageBase64
	return out
}
