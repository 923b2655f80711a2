package segment

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/abelbrown/insight/internal/analytics"
)

// NoiseClusterID is DBSCAN's id for records outside every dense region.
const NoiseClusterID = "-1"

// Fixed display texts.
const (
	MsgIdle      = "Results will appear here after you submit the form."
	MsgLoading   = "Loading..."
	MsgError     = "An error occurred."
	MsgNoResults = "No results to display."
	NotAvailable = "N/A"
)

// DisplayKind selects which branch of the results pane is shown.
type DisplayKind int

const (
	DisplayIdle DisplayKind = iota
	DisplayLoading
	DisplayError
	DisplayEmpty
	DisplayClusters
)

// DisplayModel is everything the results pane needs. Message is set for every
// kind except DisplayClusters.
type DisplayModel struct {
	Kind         DisplayKind
	Message      string
	Summary      string
	Clusters     []ClusterCard
	Distribution []ClusterShare
	TotalRecords int
	Boxplot      BoxplotState
}

// Metric is one labelled, pre-formatted value.
type Metric struct {
	Name  string
	Value string
}

// ClusterCard is the per-cluster detail block.
type ClusterCard struct {
	ID           string
	Label        string // "1", "2", ... or "Noise"
	Size         int
	Averages     []Metric
	Demographics []Metric
}

// ClusterShare is one cluster's slice of the size distribution.
type ClusterShare struct {
	ID          string
	Label       string
	Size        int
	Percent     float64 // rounded to one decimal
	PercentText string  // "40.0%"
}

// Render projects workflow state into a DisplayModel. Pure.
func Render(status Status, result *Result, boxplot BoxplotState) DisplayModel {
	switch {
	case status == StatusIdle:
		return DisplayModel{Kind: DisplayIdle, Message: MsgIdle}
	case status == StatusLoading:
		return DisplayModel{Kind: DisplayLoading, Message: MsgLoading}
	case status == StatusError || (result != nil && result.Err != ""):
		msg := MsgError
		if result != nil && result.Err != "" {
			msg = result.Err
		}
		return DisplayModel{Kind: DisplayError, Message: msg}
	case result == nil || len(result.Stats) == 0:
		return DisplayModel{Kind: DisplayEmpty, Message: MsgNoResults, Boxplot: boxplot}
	}

	ids := SortedClusterIDs(result.Stats)
	labels := DisplayLabels(ids)

	total := 0
	for _, id := range ids {
		total += result.Stats[id].Size
	}

	dm := DisplayModel{
		Kind:         DisplayClusters,
		Summary:      fmt.Sprintf("Algorithm: %s | Features: %s", result.Algorithm.Label(), strings.Join(result.Features, ", ")),
		TotalRecords: total,
		Boxplot:      boxplot,
	}
	for _, id := range ids {
		st := result.Stats[id]
		dm.Clusters = append(dm.Clusters, ClusterCard{
			ID:           id,
			Label:        labels[id],
			Size:         st.Size,
			Averages:     averages(st),
			Demographics: demographics(st),
		})
		pct := SharePercent(st.Size, total)
		dm.Distribution = append(dm.Distribution, ClusterShare{
			ID:          id,
			Label:       labels[id],
			Size:        st.Size,
			Percent:     pct,
			PercentText: fmt.Sprintf("%.1f%%", pct),
		})
	}
	return dm
}

// SortedClusterIDs orders ids by numeric value ascending, so "-1" comes
// first. Non-numeric ids (not expected) sort after all numeric ones.
func SortedClusterIDs(stats map[string]analytics.ClusterStat) []string {
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}

// DisplayLabels numbers non-noise clusters 1..N in the given order and labels
// the noise cluster "Noise". Noise never consumes a number.
func DisplayLabels(sortedIDs []string) map[string]string {
	labels := make(map[string]string, len(sortedIDs))
	n := 0
	for _, id := range sortedIDs {
		if id == NoiseClusterID {
			labels[id] = "Noise"
			continue
		}
		n++
		labels[id] = strconv.Itoa(n)
	}
	return labels
}

// SharePercent is size/total*100 rounded to one decimal; 0 when total is 0.
func SharePercent(size, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(size)/float64(total)*1000) / 10
}

func averages(st analytics.ClusterStat) []Metric {
	return []Metric{
		{"Total Spend", formatFloat(st.AvgTotalSpend, "$%.2f")},
		{"Age", formatFloat(st.AvgAge, "%.1f years")},
		{"Items", formatFloat(st.AvgItemsPurchased, "%.1f")},
		{"Rating", formatFloat(st.AvgRating, "%.2f/5")},
		{"Days Since Purchase", formatFloat(st.AvgDaysSinceLastPurchase, "%.1f")},
		{"Discount Applied", formatFloat(st.PctDiscountApplied, "%.1f%%")},
	}
}

// demographics shows one representative label per categorical distribution.
func demographics(st analytics.ClusterStat) []Metric {
	return []Metric{
		{"Gender", formatShare(st.GenderDistribution, "Male")},
		{"Membership", formatShare(st.MembershipTypeDistribution, "Gold")},
		{"Satisfaction", formatShare(st.SatisfactionLevelDistribution, "Satisfied")},
	}
}

func formatFloat(v *float64, format string) string {
	if v == nil || math.IsNaN(*v) {
		return NotAvailable
	}
	return fmt.Sprintf(format, *v)
}

func formatShare(dist map[string]float64, label string) string {
	frac, ok := dist[label]
	if !ok || math.IsNaN(frac) {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f%% %s", frac*100, label)
}
