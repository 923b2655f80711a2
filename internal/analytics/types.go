package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FeatureType classifies a catalog feature.
type FeatureType string

const (
	FeatureNumeric     FeatureType = "numeric"
	FeatureCategorical FeatureType = "categorical"
)

// Feature is one selectable clustering input.
type Feature struct {
	Value string      `json:"value"` // unique key sent to the service
	Label string      `json:"label"`
	Type  FeatureType `json:"type"`
}

// featuresResponse is the body of GET /segmentation/features.
type featuresResponse struct {
	Features []Feature `json:"features"`
}

// KMeansRequest is the body of POST /segmentation/kmeans.
type KMeansRequest struct {
	Features  []string `json:"features"`
	NClusters int      `json:"n_clusters"`
}

// DBSCANRequest is the body of POST /segmentation/dbscan.
type DBSCANRequest struct {
	Features   []string `json:"features"`
	Eps        float64  `json:"eps"`
	MinSamples int      `json:"min_samples"`
}

// BoxplotRequest is the body of POST /segmentation/boxplot.
type BoxplotRequest struct {
	Features      []string `json:"features"`
	NClusters     int      `json:"n_clusters"`
	FeatureToPlot string   `json:"feature_to_plot"`
}

// BoxplotResponse carries a base64 encoded PNG.
type BoxplotResponse struct {
	ImageBase64 string `json:"image_base64"`
}

// ClusterStat summarizes one cluster. Pointer fields are absent when the
// service omits them (or sends null).
type ClusterStat struct {
	Size                          int                `json:"size"`
	AvgTotalSpend                 *float64           `json:"avg_total_spend,omitempty"`
	AvgAge                        *float64           `json:"avg_age,omitempty"`
	AvgItemsPurchased             *float64           `json:"avg_items_purchased,omitempty"`
	AvgRating                     *float64           `json:"avg_rating,omitempty"`
	AvgDaysSinceLastPurchase      *float64           `json:"avg_days_since_last_purchase,omitempty"`
	PctDiscountApplied            *float64           `json:"pct_discount_applied,omitempty"`
	GenderDistribution            map[string]float64 `json:"gender_distribution,omitempty"`
	MembershipTypeDistribution    map[string]float64 `json:"membership_type_distribution,omitempty"`
	SatisfactionLevelDistribution map[string]float64 `json:"satisfaction_level_distribution,omitempty"`
}

// ClusterResponse is the body returned by both clustering endpoints.
// Stats is keyed by cluster id; "-1" marks DBSCAN noise.
type ClusterResponse struct {
	Assignments Assignments            `json:"assignments"`
	Stats       map[string]ClusterStat `json:"stats"`
}

// Assignments maps a record index to its cluster id.
//
// The service has shipped two shapes: an object {"0": 2, "1": 0, ...} and a
// list of records [{"Age": 31, ..., "Cluster": 2}, ...]. Both decode here.
type Assignments map[int]string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Assignments) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}

	out := make(Assignments)
	switch data[0] {
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for k, v := range raw {
			idx, err := strconv.Atoi(k)
			if err != nil {
				return fmt.Errorf("assignments: record index %q: %w", k, err)
			}
			id, err := clusterID(v)
			if err != nil {
				return fmt.Errorf("assignments: record %d: %w", idx, err)
			}
			out[idx] = id
		}
	case '[':
		var records []map[string]json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return err
		}
		for i, rec := range records {
			v, ok := rec["Cluster"]
			if !ok {
				return fmt.Errorf("assignments: record %d has no Cluster field", i)
			}
			id, err := clusterID(v)
			if err != nil {
				return fmt.Errorf("assignments: record %d: %w", i, err)
			}
			out[i] = id
		}
	default:
		return fmt.Errorf("assignments: unexpected JSON %.20q", data)
	}

	*a = out
	return nil
}

// clusterID accepts a cluster id encoded as a JSON number or string.
func clusterID(raw json.RawMessage) (string, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("cluster id %s is neither number nor string", raw)
	}
	return s, nil
}
