package fakeapi

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/abelbrown/insight/internal/analytics"
)

// Catalog is the feature list the fake service advertises. The numeric
// columns mirror the hosted service; the one-hot columns are categorical.
var Catalog = []analytics.Feature{
	{Value: "Age", Label: "Age", Type: analytics.FeatureNumeric},
	{Value: "Items Purchased", Label: "Items Purchased", Type: analytics.FeatureNumeric},
	{Value: "Average Rating", Label: "Average Rating", Type: analytics.FeatureNumeric},
	{Value: "Discount Applied", Label: "Discount Applied", Type: analytics.FeatureNumeric},
	{Value: "Days Since Last Purchase", Label: "Days Since Last Purchase", Type: analytics.FeatureNumeric},
	{Value: "Gender_Male", Label: "Gender (Male)", Type: analytics.FeatureCategorical},
	{Value: "Membership Type_Gold", Label: "Membership (Gold)", Type: analytics.FeatureCategorical},
}

var (
	genders      = []string{"Male", "Female"}
	memberships  = []string{"Gold", "Silver", "Bronze"}
	satisfaction = []string{"Satisfied", "Neutral", "Unsatisfied"}
)

// customer is one synthetic e-commerce record.
type customer struct {
	Gender       string
	Age          float64
	TotalSpend   float64
	Items        float64
	Rating       float64
	Discount     bool
	DaysSince    float64
	Membership   string
	Satisfaction string
}

// generate builds n reproducible records from seed.
func generate(n int, seed uint64) []customer {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]customer, n)
	for i := range out {
		tier := r.IntN(len(memberships))
		items := math.Round(8 + float64(2-tier)*5 + r.NormFloat64()*3)
		if items < 1 {
			items = 1
		}
		out[i] = customer{
			Gender:       genders[r.IntN(len(genders))],
			Age:          math.Round(26 + r.Float64()*20),
			Items:        items,
			TotalSpend:   math.Round((items*55+r.NormFloat64()*40)*100) / 100,
			Rating:       math.Round((3.2+float64(2-tier)*0.6+r.NormFloat64()*0.3)*10) / 10,
			Discount:     r.IntN(2) == 1,
			DaysSince:    math.Round(10 + float64(tier)*12 + r.Float64()*15),
			Membership:   memberships[tier],
			Satisfaction: satisfaction[min(tier, 2)],
		}
	}
	return out
}

// value returns the record's value for a catalog feature.
func (c customer) value(feature string) (float64, bool) {
	switch feature {
	case "Age":
		return c.Age, true
	case "Items Purchased":
		return c.Items, true
	case "Average Rating":
		return c.Rating, true
	case "Discount Applied":
		return b2f(c.Discount), true
	case "Days Since Last Purchase":
		return c.DaysSince, true
	case "Total Spend":
		return c.TotalSpend, true
	case "Gender_Male":
		return b2f(c.Gender == "Male"), true
	case "Membership Type_Gold":
		return b2f(c.Membership == "Gold"), true
	}
	return 0, false
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// score orders records along the selected features by summed z-scores.
func score(data []customer, features []string) []float64 {
	out := make([]float64, len(data))
	for _, f := range features {
		var sum, sq float64
		for _, c := range data {
			v, _ := c.value(f)
			sum += v
			sq += v * v
		}
		n := float64(len(data))
		mean := sum / n
		std := math.Sqrt(math.Max(sq/n-mean*mean, 1e-12))
		for i, c := range data {
			v, _ := c.value(f)
			out[i] += (v - mean) / std
		}
	}
	return out
}

// partition splits records into k contiguous bands of the score ordering.
// It stands in for real clustering: deterministic, and every band is
// non-empty when len(data) >= k.
func partition(data []customer, features []string, k int) []int {
	s := score(data, features)
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s[idx[a]] < s[idx[b]] })

	labels := make([]int, len(data))
	for rank, i := range idx {
		labels[i] = rank * k / len(data)
	}
	return labels
}

// density labels records for the DBSCAN endpoint: the tails of the score
// distribution beyond the eps-dependent cutoff are noise (-1), the rest
// split into two bands. Larger eps means less noise; larger min_samples
// means more.
func density(data []customer, features []string, eps float64, minSamples int) []int {
	s := score(data, features)
	cut := 1.5 + eps*1.5 - float64(minSamples)*0.05
	labels := make([]int, len(data))
	for i, v := range s {
		z := v / math.Sqrt(float64(len(features)))
		switch {
		case math.Abs(z) > cut:
			labels[i] = -1
		case z < 0:
			labels[i] = 0
		default:
			labels[i] = 1
		}
	}
	return labels
}

// summarize computes per-cluster stats the way the hosted service does.
func summarize(data []customer, labels []int) map[string]analytics.ClusterStat {
	groups := map[int][]customer{}
	for i, l := range labels {
		groups[l] = append(groups[l], data[i])
	}

	out := make(map[string]analytics.ClusterStat, len(groups))
	for id, members := range groups {
		n := float64(len(members))
		var spend, age, items, rating, days, disc float64
		gender := map[string]float64{}
		member := map[string]float64{}
		satis := map[string]float64{}
		for _, c := range members {
			spend += c.TotalSpend
			age += c.Age
			items += c.Items
			rating += c.Rating
			days += c.DaysSince
			disc += b2f(c.Discount)
			gender[c.Gender] += 1 / n
			member[c.Membership] += 1 / n
			satis[c.Satisfaction] += 1 / n
		}
		out[strconv.Itoa(id)] = analytics.ClusterStat{
			Size:                          len(members),
			AvgTotalSpend:                 ptr(spend / n),
			AvgAge:                        ptr(age / n),
			AvgItemsPurchased:             ptr(items / n),
			AvgRating:                     ptr(rating / n),
			AvgDaysSinceLastPurchase:      ptr(days / n),
			PctDiscountApplied:            ptr(disc / n * 100),
			GenderDistribution:            gender,
			MembershipTypeDistribution:    member,
			SatisfactionLevelDistribution: satis,
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }
