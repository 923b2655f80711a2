package segment

import (
	"fmt"

	"github.com/abelbrown/insight/internal/analytics"
)

// Controller is the single owner of the segmentation workflow state.
//
// Every action either changes state synchronously or returns a request the
// caller must execute; outcomes come back through ApplyResult and
// ApplyBoxplot. Not safe for concurrent use: drive it from one goroutine
// (the Bubble Tea update loop, or a plain sequential caller).
type Controller struct {
	catalog      Catalog
	catalogReady bool

	config         AlgorithmConfig
	boxplotFeature string

	status  Status
	result  *Result
	invalid *ValidationError
	runGen  uint64

	viz visualization
}

// NewController creates a controller in the idle state with cfg as the
// initial form. The catalog starts as the fallback list until
// ApplyCatalog is called.
func NewController(cfg AlgorithmConfig) *Controller {
	c := &Controller{
		catalog: NewCatalog(nil, nil),
		config:  cfg,
		status:  StatusIdle,
	}
	c.reconcile()
	return c
}

// ApplyCatalog installs the loaded feature catalog. Selected features the
// catalog does not list are dropped, as is a boxplot feature no longer
// offered.
func (c *Controller) ApplyCatalog(cat Catalog) {
	c.catalog = cat
	c.catalogReady = true

	changed := false
	sel := c.config.Features
	for _, v := range sel.Values() {
		if _, ok := cat.Lookup(v); !ok {
			sel = sel.Without(v)
			changed = true
		}
	}
	c.config.Features = sel

	if c.boxplotFeature != "" && !c.boxplotOffered(c.boxplotFeature) {
		c.boxplotFeature = ""
		changed = true
	}
	if changed {
		c.reconcile()
	}
}

// SetAlgorithm switches the live parameter variant. The feature selection is
// kept; a boxplot feature chosen under the previous algorithm is dropped.
func (c *Controller) SetAlgorithm(a Algorithm) *BoxplotRequest {
	if a != c.config.Algorithm {
		c.config.Algorithm = a
		c.boxplotFeature = ""
	}
	return c.reconcile()
}

// SetFeatures replaces the selection. A boxplot feature no longer selected is
// dropped.
func (c *Controller) SetFeatures(sel Selection) *BoxplotRequest {
	c.config.Features = sel
	if c.boxplotFeature != "" && !sel.Contains(c.boxplotFeature) {
		c.boxplotFeature = ""
	}
	return c.reconcile()
}

// ToggleFeature adds or removes one feature value.
func (c *Controller) ToggleFeature(value string) *BoxplotRequest {
	return c.SetFeatures(c.config.Features.Toggle(value))
}

// SetKMeansParams updates the K-Means variant. Range checks happen at submit.
func (c *Controller) SetKMeansParams(nClusters int) *BoxplotRequest {
	c.config.KMeans.NClusters = nClusters
	return c.reconcile()
}

// SetDBSCANParams updates the DBSCAN variant. Range checks happen at submit.
func (c *Controller) SetDBSCANParams(eps float64, minSamples int) *BoxplotRequest {
	c.config.DBSCAN = DBSCANParams{Eps: eps, MinSamples: minSamples}
	return c.reconcile()
}

// SetBoxplotFeature chooses the feature to chart. Only values returned by
// BoxplotOptions are accepted; "" clears the choice.
func (c *Controller) SetBoxplotFeature(value string) (*BoxplotRequest, error) {
	if value != "" && !c.boxplotOffered(value) {
		return nil, fmt.Errorf("feature %q is not a selected numeric feature", value)
	}
	c.boxplotFeature = value
	return c.reconcile(), nil
}

// Submit validates the form and, if valid, moves to loading and returns the
// clustering request to send. On a ValidationError nothing else changes.
func (c *Controller) Submit() (*RunRequest, error) {
	if err := c.config.Validate(); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			c.invalid = ve
		}
		return nil, err
	}
	c.invalid = nil

	c.runGen++
	c.transition(StatusLoading)
	c.reconcile()

	return &RunRequest{
		Gen:       c.runGen,
		Algorithm: c.config.Algorithm,
		Features:  c.config.Features.Values(),
		KMeans:    c.config.KMeans,
		DBSCAN:    c.config.DBSCAN,
	}, nil
}

// ApplyResult records the outcome of a run. Results from a superseded submit
// are dropped and reported with applied=false.
func (c *Controller) ApplyResult(res Result) (req *BoxplotRequest, applied bool) {
	if res.Gen != c.runGen || c.status != StatusLoading {
		return nil, false
	}
	r := res
	c.result = &r
	if res.Failed() {
		c.transition(StatusError)
	} else {
		c.transition(StatusSuccess)
	}
	return c.reconcile(), true
}

// ApplyBoxplot records a boxplot outcome; stale outcomes are dropped.
func (c *Controller) ApplyBoxplot(o BoxplotOutcome) bool {
	return c.viz.apply(o)
}

func (c *Controller) transition(to Status) {
	if !c.status.CanTransition(to) {
		panic(fmt.Sprintf("segment: illegal status transition %s -> %s", c.status, to))
	}
	c.status = to
}

func (c *Controller) reconcile() *BoxplotRequest {
	runID := ""
	if c.result != nil {
		runID = c.result.RunID
	}
	features := c.config.Features.Values()
	return c.viz.reconcile(boxplotDeps{
		status:    c.status,
		algorithm: c.config.Algorithm,
		features:  joinFeatures(features),
		nClusters: c.config.KMeans.NClusters,
		feature:   c.boxplotFeature,
	}, features, runID)
}

func (c *Controller) boxplotOffered(value string) bool {
	for _, f := range c.BoxplotOptions() {
		if f.Value == value {
			return true
		}
	}
	return false
}

// Catalog returns the feature catalog.
func (c *Controller) Catalog() Catalog { return c.catalog }

// CatalogReady reports whether ApplyCatalog has run.
func (c *Controller) CatalogReady() bool { return c.catalogReady }

// Config returns a copy of the form state.
func (c *Controller) Config() AlgorithmConfig { return c.config }

// Status returns the workflow status.
func (c *Controller) Status() Status { return c.status }

// Result returns the last applied result, or nil.
func (c *Controller) Result() *Result {
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

// ValidationMessage is the inline form error from the last submit, if any.
func (c *Controller) ValidationMessage() string {
	if c.invalid == nil {
		return ""
	}
	return c.invalid.Message
}

// BoxplotFeature returns the chosen boxplot feature.
func (c *Controller) BoxplotFeature() string { return c.boxplotFeature }

// Boxplot returns the boxplot panel state.
func (c *Controller) Boxplot() BoxplotState { return c.viz.state }

// BoxplotSelectorVisible reports whether the boxplot feature selector should
// be offered at all.
func (c *Controller) BoxplotSelectorVisible() bool {
	return c.config.Algorithm == KMeans && c.config.Features.Len() > 0
}

// BoxplotOptions lists the selected features eligible for a boxplot: those
// the catalog types as numeric, in selection order.
func (c *Controller) BoxplotOptions() []analytics.Feature {
	var out []analytics.Feature
	for _, v := range c.config.Features.Values() {
		if f, ok := c.catalog.Lookup(v); ok && f.Type == analytics.FeatureNumeric {
			out = append(out, f)
		}
	}
	return out
}

// Display projects the current state for rendering.
func (c *Controller) Display() DisplayModel {
	return Render(c.status, c.result, c.viz.state)
}
