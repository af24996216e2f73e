package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func testScorer(opts ...Option) *Scorer {
	return New(config.Defaults().Scoring, opts...)
}

func approvedEntries(cat string, approved, total int, bounty, cost float64) []domain.EvidenceEntry {
	out := make([]domain.EvidenceEntry, total)
	for i := range out {
		out[i] = domain.EvidenceEntry{Category: cat, Approved: i < approved, BountyUSD: bounty, CostUSD: cost}
	}
	return out
}

func allLayers(score float64) *domain.TrustSnapshot {
	return &domain.TrustSnapshot{
		SourcesAvailable: []string{"registry", "performance", "transactional"},
		Layers: domain.SnapshotLayers{
			Registry:      &domain.LayerScore{Score: score},
			Performance:   &domain.LayerScore{Score: score},
			Transactional: &domain.LayerScore{Score: score},
		},
	}
}

func TestScoreCompoundFormula(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID: "coder",
		Ledger: &domain.PerformanceLedger{
			TotalTasks:       20,
			TotalApproved:    18,
			ReliabilityScore: ptr(90),
			EfficiencyScore:  ptr(80),
		},
		Lifecycle: &domain.LifecycleRecord{State: domain.StateIdle},
		Trust:     allLayers(90),
	}

	intel, err := testScorer().Score(rec)
	require.NoError(t, err)

	// 0.40*90 + 0.35*90 + 0.25*80
	assert.InDelta(t, 87.5, intel.CompoundScore, 1e-9)
	assert.InDelta(t, 90.0, intel.AggregatedTrust, 1e-9)
	assert.Equal(t, 0.0, intel.ColdStartBonus)
	assert.Equal(t, 0.0, intel.FailurePenalty)
	assert.Equal(t, domain.TierDiamante, intel.Tier)
	assert.True(t, intel.Healthy)
	assert.Equal(t, 20, intel.SampleCount)
	assert.Equal(t, []string{"registry", "performance", "transactional"}, intel.SourcesAvailable)
	assert.Equal(t, FactorTrust, intel.TopFactor())
	assert.Empty(t, intel.Warnings)
}

func TestScoreFactorsSumToCompound(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID:   "mid",
		Evidence:  approvedEntries("research", 3, 4, 1, 0.5),
		Lifecycle: &domain.LifecycleRecord{State: domain.StateIdle, ConsecutiveFailures: 1},
	}

	intel, err := testScorer().Score(rec)
	require.NoError(t, err)

	var sum float64
	for _, f := range intel.Factors {
		sum += f.Points
	}
	assert.InDelta(t, intel.CompoundScore, sum, 1e-9)
	for i := 1; i < len(intel.Factors); i++ {
		assert.GreaterOrEqual(t, intel.Factors[i-1].Points, intel.Factors[i].Points)
	}
}

func TestScoreFallsBackToEvidence(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID:  "researcher",
		Evidence: approvedEntries("research", 13, 15, 0.25, 0.05),
	}

	intel, err := testScorer().Score(rec)
	require.NoError(t, err)
	assert.InDelta(t, 100*13.0/15.0, intel.ReliabilityScore, 1e-9)
	assert.InDelta(t, 80.0, intel.EfficiencyScore, 1e-9)
	require.Contains(t, intel.CategoryScores, "research")
	assert.False(t, intel.CategoryScores["research"].LowConfidence)
}

func TestScoreLedgerRatiosWithoutEvidence(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID: "ledger-only",
		Ledger: &domain.PerformanceLedger{
			TotalTasks:      4,
			TotalApproved:   3,
			TotalCostUSD:    1,
			TotalRevenueUSD: 4,
		},
	}

	intel, err := testScorer().Score(rec)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, intel.ReliabilityScore, 1e-9)
	assert.InDelta(t, 75.0, intel.EfficiencyScore, 1e-9)
}

func TestScoreNoDataIsNeutral(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID: "ghost",
		Missing: []string{"performance", "evidence", "lifecycle", "trust"},
	}

	intel, err := testScorer().Score(rec)
	require.NoError(t, err)
	assert.Equal(t, NeutralScore, intel.ReliabilityScore)
	assert.Equal(t, NeutralScore, intel.EfficiencyScore)
	assert.Equal(t, 50.0, intel.AggregatedTrust)
	// 0.4*50 + 0.35*50 + 0.25*50 + 15
	assert.InDelta(t, 65.0, intel.CompoundScore, 1e-9)
	assert.Equal(t, 0.0, intel.Confidence)
	assert.True(t, intel.Healthy, "agents without lifecycle data are routable")
	assert.Empty(t, intel.SourcesAvailable)
	assert.Contains(t, intel.Warnings, "missing trust data")
	assert.Contains(t, intel.Warnings, "no trust layer available")
}

func TestPenalty(t *testing.T) {
	s := testScorer()
	assert.Equal(t, 0.0, s.Penalty(0))
	assert.Equal(t, 0.0, s.Penalty(-2))
	assert.Equal(t, 5.0, s.Penalty(1))
	assert.Equal(t, 20.0, s.Penalty(4))
	assert.Equal(t, 25.0, s.Penalty(5))
	assert.Equal(t, 25.0, s.Penalty(40))

	prev := 0.0
	for n := 0; n < 20; n++ {
		p := s.Penalty(n)
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
}

func TestPenaltyResetsOnSuccess(t *testing.T) {
	failing := domain.LifecycleRecord{AgentID: "a", State: domain.StateIdle, ConsecutiveFailures: 3, TotalFailures: 3}
	rec := domain.AgentRecord{AgentID: "a", Lifecycle: &failing}
	before, err := testScorer().Score(rec)
	require.NoError(t, err)
	assert.Equal(t, 15.0, before.FailurePenalty)
	assert.Equal(t, 3, before.ConsecutiveFailures)

	// One success clears the streak; lifetime failures no longer count.
	recovered := failing
	recovered.ConsecutiveFailures = 0
	recovered.TotalSuccesses = 1
	rec.Lifecycle = &recovered
	intel, err := testScorer().Score(rec)
	require.NoError(t, err)
	assert.Equal(t, 0.0, intel.FailurePenalty)
	assert.Equal(t, 0, intel.ConsecutiveFailures)
	assert.Greater(t, intel.CompoundScore, before.CompoundScore)
}

func TestFailureCeiling(t *testing.T) {
	s := testScorer()
	for _, tt := range []struct {
		failures int
		healthy  bool
	}{
		{0, true},
		{5, true},
		{6, false},
		{12, false},
	} {
		rec := domain.AgentRecord{
			AgentID:   "a",
			Lifecycle: &domain.LifecycleRecord{State: domain.StateIdle, ConsecutiveFailures: tt.failures},
		}
		intel, err := s.Score(rec)
		require.NoError(t, err)
		assert.Equal(t, tt.healthy, intel.Healthy, "failures=%d", tt.failures)
	}
}

func TestTier(t *testing.T) {
	s := testScorer()
	tests := []struct {
		compound float64
		want     domain.Tier
	}{
		{0, domain.TierPlata},
		{49.99, domain.TierPlata},
		{50, domain.TierOro},
		{80, domain.TierOro},
		{80.01, domain.TierDiamante},
		{100, domain.TierDiamante},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Tier(tt.compound), "compound=%v", tt.compound)
	}
}

func TestTierMonotonic(t *testing.T) {
	s := testScorer()
	prev := s.Tier(0).Rank()
	for c := 0.0; c <= 100; c += 0.5 {
		r := s.Tier(c).Rank()
		assert.GreaterOrEqual(t, r, prev)
		prev = r
	}
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(0, 0))
	assert.InDelta(t, 0.5, Confidence(3, 0), 1e-9)
	assert.InDelta(t, 0.5*(1-math.Exp(-1)), Confidence(0, 10), 1e-9)
	assert.Less(t, Confidence(3, 1000), 1.0+1e-12)
	assert.Equal(t, Confidence(3, 5), Confidence(7, 5), "layers are capped at three")

	for layers := 0; layers <= 3; layers++ {
		for samples := 0; samples < 40; samples++ {
			c := Confidence(layers, samples)
			assert.GreaterOrEqual(t, Confidence(layers, samples+1), c)
			if layers < 3 {
				assert.Greater(t, Confidence(layers+1, samples), c)
			}
		}
	}
}

func TestColdStartBonusFlowsIntoCompound(t *testing.T) {
	s := testScorer()
	newbie, err := s.Score(domain.AgentRecord{
		AgentID:  "newbie",
		Evidence: approvedEntries("research", 1, 1, 0.1, 0.09),
	})
	require.NoError(t, err)
	veteran, err := s.Score(domain.AgentRecord{
		AgentID:  "veteran",
		Evidence: approvedEntries("research", 13, 15, 0.25, 0.05),
	})
	require.NoError(t, err)

	assert.InDelta(t, 13.5, newbie.ColdStartBonus, 1e-9)
	assert.Equal(t, 0.0, veteran.ColdStartBonus)
	assert.True(t, newbie.CategoryScores["research"].LowConfidence)
	assert.Less(t, newbie.Confidence, veteran.Confidence)
}

func TestCompoundClamped(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID: "perfect-newbie",
		Ledger: &domain.PerformanceLedger{
			ReliabilityScore: ptr(100),
			EfficiencyScore:  ptr(100),
		},
		Trust: allLayers(100),
	}
	intel, err := testScorer().Score(rec)
	require.NoError(t, err)
	assert.Equal(t, 100.0, intel.CompoundScore)

	rec = domain.AgentRecord{
		AgentID: "disaster",
		Ledger: &domain.PerformanceLedger{
			TotalTasks:       50,
			ReliabilityScore: ptr(0),
			EfficiencyScore:  ptr(0),
		},
		Lifecycle: &domain.LifecycleRecord{State: domain.StateIdle, ConsecutiveFailures: 9},
		Trust:     allLayers(0),
	}
	intel, err = testScorer().Score(rec)
	require.NoError(t, err)
	assert.Equal(t, 0.0, intel.CompoundScore)
	assert.Equal(t, domain.TierPlata, intel.Tier)
}

func TestScoreNonFinite(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID: "nan",
		Ledger:  &domain.PerformanceLedger{ReliabilityScore: ptr(math.NaN())},
	}
	_, err := testScorer().Score(rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonFinite)
	assert.Contains(t, err.Error(), "agent nan")
}

func TestScoreDeclineWarning(t *testing.T) {
	entries := append(
		approvedEntries("research", 4, 4, 1, 0),
		approvedEntries("research", 0, 4, 1, 0)...,
	)
	intel, err := testScorer().Score(domain.AgentRecord{AgentID: "slipping", Evidence: entries})
	require.NoError(t, err)
	assert.Equal(t, "declining", intel.Trajectory)
	assert.Contains(t, intel.Warnings, "approval rate declining")
}

func TestAdmissionPolicies(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		lc       domain.LifecycleRecord
		strict   bool
		cooldown bool
	}{
		{"unknown", domain.LifecycleRecord{}, true, true},
		{"idle", domain.LifecycleRecord{State: domain.StateIdle}, true, true},
		{"working", domain.LifecycleRecord{State: domain.StateWorking}, true, true},
		{"starting", domain.LifecycleRecord{State: domain.StateStarting}, true, true},
		{"suspended", domain.LifecycleRecord{State: domain.StateSuspended}, false, false},
		{"error", domain.LifecycleRecord{State: domain.StateError}, false, false},
		{"offline", domain.LifecycleRecord{State: domain.StateOffline}, false, false},
		{"draining", domain.LifecycleRecord{State: domain.StateDraining}, false, false},
		{"cooldown no deadline", domain.LifecycleRecord{State: domain.StateCooldown}, false, false},
		{"cooldown pending", domain.LifecycleRecord{State: domain.StateCooldown, CooldownUntil: &future}, false, false},
		{"cooldown expired", domain.LifecycleRecord{State: domain.StateCooldown, CooldownUntil: &past}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.strict, StrictPolicy{}.Admit(tt.lc, now))
			assert.Equal(t, tt.cooldown, CooldownPolicy{}.Admit(tt.lc, now))
		})
	}
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, config.AdmissionStrict, PolicyFor("").Name())
	assert.Equal(t, config.AdmissionStrict, PolicyFor(config.AdmissionStrict).Name())
	assert.Equal(t, config.AdmissionCooldown, PolicyFor(config.AdmissionCooldown).Name())
}

func TestScoreUsesConfiguredPolicyAndClock(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	rec := domain.AgentRecord{
		AgentID:   "cooled",
		Lifecycle: &domain.LifecycleRecord{State: domain.StateCooldown, CooldownUntil: &past},
	}

	strict, err := testScorer().Score(rec)
	require.NoError(t, err)
	assert.False(t, strict.Healthy)
	assert.Contains(t, strict.Warnings, `state "cooldown" not admitted by strict policy`)

	relaxed, err := testScorer(
		WithAdmissionPolicy(CooldownPolicy{}),
		WithClock(func() time.Time { return now }),
	).Score(rec)
	require.NoError(t, err)
	assert.True(t, relaxed.Healthy)
}

func TestBurnoutRisk(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration, n int) []domain.EvidenceEntry {
		out := make([]domain.EvidenceEntry, n)
		for i := range out {
			ts := now.Add(-d)
			out[i] = domain.EvidenceEntry{Category: "research", Approved: true, CompletedAt: &ts}
		}
		return out
	}

	tests := []struct {
		name     string
		entries  []domain.EvidenceEntry
		failures int
		want     float64
	}{
		{"idle", nil, 0, 0},
		{"undated evidence ignored", approvedEntries("research", 9, 9, 1, 0), 0, 0},
		{"half workload", at(time.Hour, 4), 0, 0.35},
		{"saturated workload", at(time.Hour, 12), 0, 0.7},
		{"outside window", at(25*time.Hour, 12), 0, 0},
		{"future timestamps ignored", at(-time.Hour, 12), 0, 0},
		{"failures only", nil, 5, 0.3},
		{"failures capped", nil, 50, 0.3},
		{"negative failures", nil, -3, 0},
		{"both saturated", at(time.Minute, 8), 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BurnoutRisk(tt.entries, tt.failures, now), 1e-9)
		})
	}
}

func TestScoreBurnoutIsInformational(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := approvedEntries("research", 10, 10, 2, 0.5)
	rested := domain.AgentRecord{AgentID: "busy", Evidence: entries, Trust: allLayers(70)}

	busyEntries := make([]domain.EvidenceEntry, len(entries))
	copy(busyEntries, entries)
	for i := range busyEntries {
		ts := now.Add(-time.Duration(i+1) * time.Hour)
		busyEntries[i].CompletedAt = &ts
	}
	busy := rested
	busy.Evidence = busyEntries

	s := testScorer(WithClock(func() time.Time { return now }))
	a, err := s.Score(rested)
	require.NoError(t, err)
	b, err := s.Score(busy)
	require.NoError(t, err)

	assert.Equal(t, 0.0, a.BurnoutRisk)
	assert.InDelta(t, 0.7, b.BurnoutRisk, 1e-9)
	assert.Equal(t, a.CompoundScore, b.CompoundScore)
	assert.Contains(t, b.Warnings, "burnout risk 0.70")
	assert.NotContains(t, a.Warnings, "burnout risk 0.70")
}

func TestScoreAvgCost(t *testing.T) {
	intel, err := testScorer().Score(domain.AgentRecord{
		AgentID: "c",
		Ledger:  &domain.PerformanceLedger{TotalTasks: 4, TotalCostUSD: 2},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, intel.AvgCostUSD, 1e-9)

	intel, err = testScorer().Score(domain.AgentRecord{AgentID: "d"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, intel.AvgCostUSD)
}

func TestScoreDeterministic(t *testing.T) {
	rec := domain.AgentRecord{
		AgentID:  "r",
		Evidence: approvedEntries("research", 5, 7, 1, 0.3),
		Trust:    allLayers(70),
	}
	s := testScorer()
	a, err := s.Score(rec)
	require.NoError(t, err)
	b, err := s.Score(rec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
