package segment

import (
	"github.com/abelbrown/insight/internal/analytics"
)

// FallbackFeatures is used when the catalog cannot be loaded.
var FallbackFeatures = []analytics.Feature{
	{Value: "Age", Label: "Age", Type: analytics.FeatureNumeric},
	{Value: "Items Purchased", Label: "Items Purchased", Type: analytics.FeatureNumeric},
	{Value: "Average Rating", Label: "Average Rating", Type: analytics.FeatureNumeric},
	{Value: "Discount Applied", Label: "Discount Applied", Type: analytics.FeatureNumeric},
	{Value: "Days Since Last Purchase", Label: "Days Since Last Purchase", Type: analytics.FeatureNumeric},
}

// Catalog is the immutable list of selectable features.
type Catalog struct {
	features []analytics.Feature
	fallback bool
}

// NewCatalog builds the catalog from a load outcome. A failed or empty load
// silently degrades to FallbackFeatures.
func NewCatalog(features []analytics.Feature, err error) Catalog {
	if err != nil || len(features) == 0 {
		return Catalog{features: cloneFeatures(FallbackFeatures), fallback: true}
	}
	return Catalog{features: cloneFeatures(features)}
}

// Features returns a copy of the catalog in service order.
func (c Catalog) Features() []analytics.Feature {
	return cloneFeatures(c.features)
}

// Len returns the number of features.
func (c Catalog) Len() int {
	return len(c.features)
}

// Fallback reports whether the catalog is the built-in default list.
func (c Catalog) Fallback() bool {
	return c.fallback
}

// Lookup finds a feature by value.
func (c Catalog) Lookup(value string) (analytics.Feature, bool) {
	for _, f := range c.features {
		if f.Value == value {
			return f, true
		}
	}
	return analytics.Feature{}, false
}

// Label returns the display label for value, or value itself if unknown.
func (c Catalog) Label(value string) string {
	if f, ok := c.Lookup(value); ok && f.Label != "" {
		return f.Label
	}
	return value
}

func cloneFeatures(in []analytics.Feature) []analytics.Feature {
	out := make([]analytics.Feature, len(in))
	copy(out, in)
	return out
}
