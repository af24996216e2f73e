// Package evidence turns an agent's judged work history into per-category
// track records.
package evidence

import (
	"math"
	"slices"
	"strings"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// Trend labels.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

const (
	approvalWeight   = 0.7
	efficiencyWeight = 0.3

	// Minimum history lengths before a trend is reported.
	minCategoryTrendSamples = 6
	minOverallTrendSamples  = 4

	// Approval-rate change between history halves that counts as a trend.
	trendThreshold = 0.15
)

// Analyzer computes category track records from evidence history.
type Analyzer struct {
	minSamples int
}

// NewAnalyzer creates an analyzer. Categories with fewer than minSamples
// entries are flagged low-confidence.
func NewAnalyzer(minSamples int) *Analyzer {
	if minSamples < 1 {
		minSamples = 1
	}
	return &Analyzer{minSamples: minSamples}
}

// Analysis is the evidence summary of one agent.
type Analysis struct {
	Categories     map[string]domain.CategoryScore
	Samples        int
	ApprovalRate   float64 // 0-1 over all entries
	CostEfficiency float64 // 0-1 mean over all entries
	Trend          string  // overall trajectory, "" when history is too short
}

// Reliability returns the overall approval rate on a 0-100 scale.
// ok is false when there is no evidence.
func (a Analysis) Reliability() (float64, bool) {
	if a.Samples == 0 {
		return 0, false
	}
	return a.ApprovalRate * 100, true
}

// Efficiency returns the overall cost efficiency on a 0-100 scale.
// ok is false when there is no evidence.
func (a Analysis) Efficiency() (float64, bool) {
	if a.Samples == 0 {
		return 0, false
	}
	return a.CostEfficiency * 100, true
}

// Analyze groups entries by category. Entries are taken in the given order,
// or by completion time when every entry carries one.
func (an *Analyzer) Analyze(entries []domain.EvidenceEntry) Analysis {
	out := Analysis{Categories: map[string]domain.CategoryScore{}}
	if len(entries) == 0 {
		return out
	}
	ordered := chronological(entries)

	byCat := map[string][]domain.EvidenceEntry{}
	for _, e := range ordered {
		cat := Category(e.Category)
		byCat[cat] = append(byCat[cat], e)
	}

	for cat, es := range byCat {
		approval, efficiency := rates(es)
		cs := domain.CategoryScore{
			Samples:        len(es),
			Approved:       approvedCount(es),
			ApprovalRate:   approval,
			CostEfficiency: efficiency,
			Score:          approvalWeight*approval + efficiencyWeight*efficiency,
			LowConfidence:  len(es) < an.minSamples,
		}
		if len(es) >= minCategoryTrendSamples {
			cs.Trend = trend(es)
		}
		out.Categories[cat] = cs
	}

	out.Samples = len(ordered)
	out.ApprovalRate, out.CostEfficiency = rates(ordered)
	if len(ordered) >= minOverallTrendSamples {
		out.Trend = trend(ordered)
	}
	return out
}

// Category normalizes a category name; empty names map to the default.
func Category(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return domain.DefaultCategory
	}
	return name
}

// CostEfficiency returns clamp(1 - cost/bounty, 0, 1). Entries without a
// positive bounty have no efficiency.
func CostEfficiency(e domain.EvidenceEntry) float64 {
	if e.BountyUSD <= 0 || !finite(e.BountyUSD) || !finite(e.CostUSD) {
		return 0
	}
	return math.Max(0, math.Min(1, 1-e.CostUSD/e.BountyUSD))
}

func rates(es []domain.EvidenceEntry) (approval, efficiency float64) {
	if len(es) == 0 {
		return 0, 0
	}
	var eff float64
	for _, e := range es {
		eff += CostEfficiency(e)
	}
	n := float64(len(es))
	return float64(approvedCount(es)) / n, eff / n
}

func approvedCount(es []domain.EvidenceEntry) int {
	n := 0
	for _, e := range es {
		if e.Approved {
			n++
		}
	}
	return n
}

// trend compares the approval rate of the newer half of the history with
// the older half.
func trend(es []domain.EvidenceEntry) string {
	mid := len(es) / 2
	older, _ := rates(es[:mid])
	recent, _ := rates(es[mid:])
	switch delta := recent - older; {
	case delta > trendThreshold:
		return TrendImproving
	case delta < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// chronological returns entries ordered by completion time when all of them
// are timestamped, and in their original order otherwise.
func chronological(entries []domain.EvidenceEntry) []domain.EvidenceEntry {
	for _, e := range entries {
		if e.CompletedAt == nil {
			return entries
		}
	}
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b domain.EvidenceEntry) int {
		return a.CompletedAt.Compare(*b.CompletedAt)
	})
	return sorted
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
