package segment

import (
	"fmt"
	"math"
	"testing"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/google/go-cmp/cmp"
)

func f64(v float64) *float64 { return &v }

func TestRenderBranches(t *testing.T) {
	failed := &Result{Err: "Error: Invalid feature"}
	empty := &Result{Algorithm: KMeans}

	tests := []struct {
		name   string
		status Status
		result *Result
		want   DisplayModel
	}{
		{"idle", StatusIdle, nil, DisplayModel{Kind: DisplayIdle, Message: MsgIdle}},
		{"idle ignores stale result", StatusIdle, failed, DisplayModel{Kind: DisplayIdle, Message: MsgIdle}},
		{"loading", StatusLoading, failed, DisplayModel{Kind: DisplayLoading, Message: MsgLoading}},
		{"error", StatusError, failed, DisplayModel{Kind: DisplayError, Message: "Error: Invalid feature"}},
		{"error without message", StatusError, nil, DisplayModel{Kind: DisplayError, Message: MsgError}},
		{"result error wins over success", StatusSuccess, failed, DisplayModel{Kind: DisplayError, Message: "Error: Invalid feature"}},
		{"empty stats", StatusSuccess, empty, DisplayModel{Kind: DisplayEmpty, Message: MsgNoResults}},
		{"nil result", StatusSuccess, nil, DisplayModel{Kind: DisplayEmpty, Message: MsgNoResults}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.status, tt.result, BoxplotState{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderKMeansScenario(t *testing.T) {
	res := &Result{
		Algorithm: KMeans,
		Features:  []string{"Age", "Items Purchased"},
		Stats:     stats(map[string]int{"2": 25, "0": 40, "1": 35}),
	}
	dm := Render(StatusSuccess, res, BoxplotState{})

	if dm.Kind != DisplayClusters {
		t.Fatalf("kind = %v, want clusters", dm.Kind)
	}
	if dm.Summary != "Algorithm: K-Means Clustering | Features: Age, Items Purchased" {
		t.Errorf("summary = %q", dm.Summary)
	}

	want := []ClusterShare{
		{ID: "0", Label: "1", Size: 40, Percent: 40, PercentText: "40.0%"},
		{ID: "1", Label: "2", Size: 35, Percent: 35, PercentText: "35.0%"},
		{ID: "2", Label: "3", Size: 25, Percent: 25, PercentText: "25.0%"},
	}
	if diff := cmp.Diff(want, dm.Distribution); diff != "" {
		t.Errorf("distribution mismatch (-want +got):\n%s", diff)
	}
	if dm.TotalRecords != 100 {
		t.Errorf("total = %d, want 100", dm.TotalRecords)
	}
}

func TestRenderDBSCANNoise(t *testing.T) {
	res := &Result{
		Algorithm: DBSCAN,
		Features:  []string{"Age", "Items Purchased"},
		Stats:     stats(map[string]int{"-1": 10, "0": 90}),
	}
	dm := Render(StatusSuccess, res, BoxplotState{})

	got := map[string]string{}
	for _, c := range dm.Clusters {
		got[c.ID] = c.Label
	}
	want := map[string]string{"-1": "Noise", "0": "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if dm.Clusters[0].ID != "-1" {
		t.Errorf("noise should sort first numerically, got order %v", dm.Clusters)
	}
}

func TestDisplayLabelsSkipNoise(t *testing.T) {
	ids := SortedClusterIDs(stats(map[string]int{"10": 1, "-1": 1, "2": 1, "0": 1}))
	if diff := cmp.Diff([]string{"-1", "0", "2", "10"}, ids); diff != "" {
		t.Fatalf("sort mismatch (-want +got):\n%s", diff)
	}
	want := map[string]string{"-1": "Noise", "0": "1", "2": "2", "10": "3"}
	if diff := cmp.Diff(want, DisplayLabels(ids)); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestSharePercentProperty(t *testing.T) {
	cases := [][]int{
		{1, 1, 1},
		{7, 13, 29, 51},
		{0, 5},
		{333, 333, 334},
		{1},
	}
	for _, sizes := range cases {
		m := map[string]int{}
		total := 0
		for i, n := range sizes {
			m[fmt.Sprint(i)] = n
			total += n
		}
		dm := Render(StatusSuccess, &Result{Algorithm: KMeans, Stats: stats(m)}, BoxplotState{})
		if dm.TotalRecords != total {
			t.Errorf("%v: total = %d, want %d", sizes, dm.TotalRecords, total)
		}
		for _, share := range dm.Distribution {
			want := math.Round(float64(share.Size)/float64(total)*1000) / 10
			if share.Percent != want {
				t.Errorf("%v: cluster %s percent = %v, want %v", sizes, share.ID, share.Percent, want)
			}
			if share.PercentText != fmt.Sprintf("%.1f%%", want) {
				t.Errorf("%v: cluster %s text = %q", sizes, share.ID, share.PercentText)
			}
		}
	}

	if got := SharePercent(3, 0); got != 0 {
		t.Errorf("SharePercent with zero total = %v, want 0", got)
	}
}

func TestClusterCardFormatting(t *testing.T) {
	res := &Result{
		Algorithm: KMeans,
		Stats: map[string]analytics.ClusterStat{
			"0": {
				Size:                          12,
				AvgTotalSpend:                 f64(845.256),
				AvgAge:                        f64(33.44),
				AvgItemsPurchased:             f64(12),
				AvgRating:                     f64(4.1),
				PctDiscountApplied:            f64(50),
				GenderDistribution:            map[string]float64{"Male": 0.4567, "Female": 0.5433},
				MembershipTypeDistribution:    map[string]float64{"Silver": 1},
				SatisfactionLevelDistribution: map[string]float64{"Satisfied": 0},
			},
		},
	}
	card := Render(StatusSuccess, res, BoxplotState{}).Clusters[0]

	wantAvg := []Metric{
		{"Total Spend", "$845.26"},
		{"Age", "33.4 years"},
		{"Items", "12.0"},
		{"Rating", "4.10/5"},
		{"Days Since Purchase", "N/A"},
		{"Discount Applied", "50.0%"},
	}
	if diff := cmp.Diff(wantAvg, card.Averages); diff != "" {
		t.Errorf("averages mismatch (-want +got):\n%s", diff)
	}

	wantDemo := []Metric{
		{"Gender", "45.7% Male"},
		{"Membership", "N/A"},
		{"Satisfaction", "0.0% Satisfied"},
	}
	if diff := cmp.Diff(wantDemo, card.Demographics); diff != "" {
		t.Errorf("demographics mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderCarriesBoxplot(t *testing.T) {
	box := BoxplotState{Active: true, Feature: "Age", Err: BoxplotErrorMessage}
	dm := Render(StatusSuccess, &Result{Algorithm: KMeans, Stats: stats(map[string]int{"0": 1})}, box)
	if diff := cmp.Diff(box, dm.Boxplot); diff != "" {
		t.Errorf("boxplot mismatch (-want +got):\n%s", diff)
	}
}
