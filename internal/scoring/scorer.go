// Package scoring fuses trust, evidence, cold-start and lifecycle signals
// into one immutable intelligence profile per agent.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/coldstart"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/evidence"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/trust"
)

// NeutralScore is used for reliability and efficiency when no source can
// provide them.
const NeutralScore = 50.0

// Factor names.
const (
	FactorTrust       = "trust"
	FactorReliability = "reliability"
	FactorEfficiency  = "efficiency"
	FactorColdStart   = "cold_start"
	FactorPenalty     = "failure_penalty"
)

// confidenceSampleScale is the sample count at which the sample half of
// confidence reaches 1 - 1/e.
const confidenceSampleScale = 10.0

// ErrNonFinite is returned when a record produces a NaN or infinite score.
var ErrNonFinite = errors.New("non-finite score")

// Scorer builds AgentIntelligence profiles. It holds no per-agent state and
// is safe for concurrent use.
type Scorer struct {
	cfg       config.ScoringConfig
	trust     *trust.Aggregator
	evidence  *evidence.Analyzer
	coldStart *coldstart.Estimator
	admission AdmissionPolicy
	now       func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithAdmissionPolicy overrides the policy named in the config.
func WithAdmissionPolicy(p AdmissionPolicy) Option {
	return func(s *Scorer) { s.admission = p }
}

// WithClock sets the time source used by admission policies and the
// burnout window.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// New creates a Scorer from config.
func New(cfg config.ScoringConfig, opts ...Option) *Scorer {
	s := &Scorer{
		cfg:       cfg,
		trust:     trust.NewAggregator(cfg.LayerWeights),
		evidence:  evidence.NewAnalyzer(cfg.MinCategorySamples),
		coldStart: coldstart.NewEstimator(cfg.ColdStart),
		admission: PolicyFor(cfg.Admission.Policy),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the profile of one agent. It only fails when the record
// carries values that make the score non-finite.
func (s *Scorer) Score(rec domain.AgentRecord) (domain.AgentIntelligence, error) {
	tr := s.trust.Aggregate(rec)
	an := s.evidence.Analyze(rec.Evidence)

	lc := domain.LifecycleRecord{AgentID: rec.AgentID}
	if rec.Lifecycle != nil {
		lc = *rec.Lifecycle
	}
	failures := max(lc.ConsecutiveFailures, 0)

	reliability := reliabilityScore(rec.Ledger, an)
	efficiency := efficiencyScore(rec.Ledger, an)
	samples := coldstart.SampleCount(rec)
	bonus := s.coldStart.Bonus(samples)
	penalty := s.Penalty(failures)

	trustPts := s.cfg.TrustWeight * tr.AggregatedTrust
	relPts := s.cfg.ReliabilityWeight * reliability
	effPts := s.cfg.EfficiencyWeight * efficiency
	compound := clamp(trustPts+relPts+effPts-penalty+bonus, 0, 100)

	for _, v := range []float64{tr.AggregatedTrust, reliability, efficiency, compound} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.AgentIntelligence{}, fmt.Errorf("agent %s: %w", rec.AgentID, ErrNonFinite)
		}
	}

	now := s.now()
	admitted := s.admission.Admit(lc, now)
	overCeiling := failures > s.cfg.FailureCeiling

	intel := domain.AgentIntelligence{
		AgentID:             rec.AgentID,
		ReliabilityScore:    reliability,
		EfficiencyScore:     efficiency,
		CategoryScores:      an.Categories,
		Layers:              tr.Layers,
		AggregatedTrust:     tr.AggregatedTrust,
		ColdStartBonus:      bonus,
		FailurePenalty:      penalty,
		CompoundScore:       compound,
		Confidence:          Confidence(tr.Layers.AvailableCount(), samples),
		SourcesAvailable:    tr.SourcesAvailable,
		Tier:                s.Tier(compound),
		Healthy:             admitted && !overCeiling,
		LifecycleState:      lc.State,
		ConsecutiveFailures: failures,
		SampleCount:         samples,
		Trajectory:          an.Trend,
		BurnoutRisk:         BurnoutRisk(rec.Evidence, failures, now),
		AvgCostUSD:          avgCostUSD(rec.Ledger),
		Factors: sortFactors([]domain.Factor{
			{Name: FactorTrust, Points: trustPts},
			{Name: FactorReliability, Points: relPts},
			{Name: FactorEfficiency, Points: effPts},
			{Name: FactorColdStart, Points: bonus},
			{Name: FactorPenalty, Points: -penalty},
		}),
	}
	intel.Warnings = s.warnings(rec, intel, admitted, overCeiling)
	return intel, nil
}

// Penalty returns the failure penalty for a consecutive failure streak.
func (s *Scorer) Penalty(failures int) float64 {
	if failures <= 0 {
		return 0
	}
	return math.Min(s.cfg.MaxPenalty, s.cfg.PenaltyPerFailure*float64(failures))
}

// Tier maps a compound score to its tier.
func (s *Scorer) Tier(compound float64) domain.Tier {
	switch {
	case compound > s.cfg.Tiers.Diamante:
		return domain.TierDiamante
	case compound >= s.cfg.Tiers.Oro:
		return domain.TierOro
	default:
		return domain.TierPlata
	}
}

// Confidence grows with the number of available trust layers and with the
// sample count. It lies in [0, 1) and never decreases in either argument.
func Confidence(layers, samples int) float64 {
	layers = min(max(layers, 0), len(domain.LayerNames))
	samples = max(samples, 0)
	layerPart := float64(layers) / float64(len(domain.LayerNames))
	samplePart := 1 - math.Exp(-float64(samples)/confidenceSampleScale)
	return 0.5*layerPart + 0.5*samplePart
}

// reliabilityScore prefers the ledger's precomputed score, then evidence,
// then the ledger's raw approval ratio.
func reliabilityScore(led *domain.PerformanceLedger, an evidence.Analysis) float64 {
	if led != nil && led.ReliabilityScore != nil {
		return clamp(*led.ReliabilityScore, 0, 100)
	}
	if v, ok := an.Reliability(); ok {
		return v
	}
	if led != nil && led.TotalTasks > 0 {
		return clamp(float64(led.TotalApproved)/float64(led.TotalTasks)*100, 0, 100)
	}
	return NeutralScore
}

// efficiencyScore prefers the ledger's precomputed score, then evidence,
// then the ledger's cost to revenue ratio.
func efficiencyScore(led *domain.PerformanceLedger, an evidence.Analysis) float64 {
	if led != nil && led.EfficiencyScore != nil {
		return clamp(*led.EfficiencyScore, 0, 100)
	}
	if v, ok := an.Efficiency(); ok {
		return v
	}
	if led != nil && led.TotalRevenueUSD > 0 {
		return clamp((1-led.TotalCostUSD/led.TotalRevenueUSD)*100, 0, 100)
	}
	return NeutralScore
}

func (s *Scorer) warnings(rec domain.AgentRecord, intel domain.AgentIntelligence, admitted, overCeiling bool) []string {
	var out []string
	for _, m := range rec.Missing {
		out = append(out, "missing "+m+" data")
	}
	if intel.Layers.AvailableCount() == 0 {
		out = append(out, "no trust layer available")
	}
	if overCeiling {
		out = append(out, fmt.Sprintf("%d consecutive failures exceeds ceiling %d",
			intel.ConsecutiveFailures, s.cfg.FailureCeiling))
	}
	if !admitted {
		state := string(intel.LifecycleState)
		out = append(out, fmt.Sprintf("state %q not admitted by %s policy", state, s.admission.Name()))
	}
	if intel.Trajectory == evidence.TrendDeclining {
		out = append(out, "approval rate declining")
	}
	if intel.BurnoutRisk >= domain.HighBurnoutRisk {
		out = append(out, fmt.Sprintf("burnout risk %.2f", intel.BurnoutRisk))
	}
	return out
}

// sortFactors orders factors by points, largest first.
func sortFactors(fs []domain.Factor) []domain.Factor {
	slices.SortStableFunc(fs, func(a, b domain.Factor) int {
		switch {
		case a.Points > b.Points:
			return -1
		case a.Points < b.Points:
			return 1
		}
		return 0
	})
	return fs
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
