package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

func entry(cat string, approved bool, bounty, cost float64) domain.EvidenceEntry {
	return domain.EvidenceEntry{Category: cat, Approved: approved, BountyUSD: bounty, CostUSD: cost}
}

func repeat(n int, e domain.EvidenceEntry) []domain.EvidenceEntry {
	out := make([]domain.EvidenceEntry, n)
	for i := range out {
		out[i] = e
	}
	return out
}

func TestAnalyzeEmpty(t *testing.T) {
	an := NewAnalyzer(3).Analyze(nil)

	assert.Empty(t, an.Categories)
	assert.Equal(t, 0, an.Samples)
	_, ok := an.Reliability()
	assert.False(t, ok)
	_, ok = an.Efficiency()
	assert.False(t, ok)
	assert.Empty(t, an.Trend)
}

func TestAnalyzeCategoryScore(t *testing.T) {
	entries := append(
		repeat(13, entry("research", true, 0.25, 0.05)),
		repeat(2, entry("research", false, 0.25, 0.05))...,
	)

	an := NewAnalyzer(3).Analyze(entries)
	require.Contains(t, an.Categories, "research")

	cs := an.Categories["research"]
	assert.Equal(t, 15, cs.Samples)
	assert.Equal(t, 13, cs.Approved)
	assert.InDelta(t, 13.0/15.0, cs.ApprovalRate, 1e-9)
	assert.InDelta(t, 0.8, cs.CostEfficiency, 1e-9)
	assert.InDelta(t, 0.7*13.0/15.0+0.3*0.8, cs.Score, 1e-9)
	assert.False(t, cs.LowConfidence)

	rel, ok := an.Reliability()
	require.True(t, ok)
	assert.InDelta(t, 100*13.0/15.0, rel, 1e-9)
	eff, ok := an.Efficiency()
	require.True(t, ok)
	assert.InDelta(t, 80.0, eff, 1e-9)
}

func TestAnalyzeLowConfidence(t *testing.T) {
	an := NewAnalyzer(3).Analyze([]domain.EvidenceEntry{
		entry("translation", true, 1, 0),
		entry("translation", true, 1, 0),
		entry("research", true, 1, 0),
		entry("research", true, 1, 0),
		entry("research", true, 1, 0),
	})

	assert.True(t, an.Categories["translation"].LowConfidence)
	assert.False(t, an.Categories["research"].LowConfidence)
}

func TestAnalyzeDefaultCategory(t *testing.T) {
	an := NewAnalyzer(1).Analyze([]domain.EvidenceEntry{
		entry("", true, 1, 0.5),
		entry("  Research ", true, 1, 0.5),
	})

	assert.Contains(t, an.Categories, domain.DefaultCategory)
	assert.Contains(t, an.Categories, "research")
	assert.Len(t, an.Categories, 2)
}

func TestCostEfficiency(t *testing.T) {
	tests := []struct {
		name   string
		bounty float64
		cost   float64
		want   float64
	}{
		{"free", 1, 0, 1},
		{"half", 2, 1, 0.5},
		{"loss clamps to zero", 1, 3, 0},
		{"negative cost clamps to one", 1, -1, 1},
		{"zero bounty", 0, 0.1, 0},
		{"negative bounty", -5, 0.1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CostEfficiency(entry("x", true, tt.bounty, tt.cost))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTrend(t *testing.T) {
	improving := append(repeat(3, entry("a", false, 1, 0)), repeat(3, entry("a", true, 1, 0))...)
	declining := append(repeat(3, entry("a", true, 1, 0)), repeat(3, entry("a", false, 1, 0))...)
	stable := repeat(6, entry("a", true, 1, 0))

	an := NewAnalyzer(3)
	assert.Equal(t, TrendImproving, an.Analyze(improving).Categories["a"].Trend)
	assert.Equal(t, TrendDeclining, an.Analyze(declining).Categories["a"].Trend)
	assert.Equal(t, TrendStable, an.Analyze(stable).Categories["a"].Trend)

	assert.Equal(t, TrendImproving, an.Analyze(improving).Trend)
	assert.Equal(t, TrendDeclining, an.Analyze(declining).Trend)
}

func TestTrendNeedsEnoughSamples(t *testing.T) {
	short := append(repeat(2, entry("a", false, 1, 0)), repeat(3, entry("a", true, 1, 0))...)

	an := NewAnalyzer(3).Analyze(short)
	assert.Empty(t, an.Categories["a"].Trend, "five category samples are not enough")
	assert.Equal(t, TrendImproving, an.Trend, "four overall samples are enough")
}

func TestTrendUsesCompletionTime(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []domain.EvidenceEntry
	// Listed newest-first: the three approvals are the most recent.
	for i := 0; i < 6; i++ {
		at := base.Add(time.Duration(6-i) * time.Hour)
		entries = append(entries, domain.EvidenceEntry{
			Category:    "a",
			Approved:    i < 3,
			BountyUSD:   1,
			CompletedAt: &at,
		})
	}

	an := NewAnalyzer(3).Analyze(entries)
	assert.Equal(t, TrendImproving, an.Categories["a"].Trend)
}

func TestAnalyzeDoesNotReorderInput(t *testing.T) {
	t1 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []domain.EvidenceEntry{
		{Category: "a", CompletedAt: &t1},
		{Category: "b", CompletedAt: &t0},
	}

	NewAnalyzer(1).Analyze(entries)
	assert.Equal(t, "a", entries[0].Category)
}

func TestNewAnalyzerMinimum(t *testing.T) {
	an := NewAnalyzer(0).Analyze([]domain.EvidenceEntry{entry("a", true, 1, 0)})
	assert.False(t, an.Categories["a"].LowConfidence)
}
