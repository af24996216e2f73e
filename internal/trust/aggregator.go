// Package trust normalizes an agent's trust channels into named layers and
// fuses them into one aggregated trust score.
package trust

import (
	"math"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// NeutralTrust is the aggregated trust of an agent with no available layer.
const NeutralTrust = 50.0

// Aggregator builds trust layers from raw agent records.
type Aggregator struct {
	weights config.LayerWeights
}

// NewAggregator creates an aggregator using the given per-layer weights.
func NewAggregator(weights config.LayerWeights) *Aggregator {
	return &Aggregator{weights: weights}
}

// Result is the aggregator output for one agent.
type Result struct {
	Layers           domain.TrustLayers
	AggregatedTrust  float64
	SourcesAvailable []string
}

// Aggregate computes the layers of rec and their weighted mean.
func (a *Aggregator) Aggregate(rec domain.AgentRecord) Result {
	layers := Layers(rec)
	score, sources := a.Combine(layers)
	return Result{Layers: layers, AggregatedTrust: score, SourcesAvailable: sources}
}

// Combine returns the weighted mean of the available layers and their names
// in fixed order. With nothing available it returns NeutralTrust and an
// empty list.
func (a *Aggregator) Combine(layers domain.TrustLayers) (float64, []string) {
	sources := []string{}
	var sum, totalWeight, plain float64
	for _, l := range layers.All() {
		if !l.Available {
			continue
		}
		sources = append(sources, l.Name)
		w := a.weight(l.Name)
		sum += w * l.Score
		totalWeight += w
		plain += l.Score
	}

	switch {
	case len(sources) == 0:
		return NeutralTrust, sources
	case totalWeight <= 0:
		// Every available layer carries zero weight; fall back to a plain mean.
		return plain / float64(len(sources)), sources
	default:
		return sum / totalWeight, sources
	}
}

func (a *Aggregator) weight(name string) float64 {
	switch name {
	case domain.LayerRegistry:
		return a.weights.Registry
	case domain.LayerPerformance:
		return a.weights.Performance
	case domain.LayerTransactional:
		return a.weights.Transactional
	}
	return 0
}

// Layers normalizes the three trust channels of rec to 0-100.
func Layers(rec domain.AgentRecord) domain.TrustLayers {
	return domain.TrustLayers{
		Registry:      registryLayer(rec),
		Performance:   performanceLayer(rec),
		Transactional: transactionalLayer(rec),
	}
}

func registryLayer(rec domain.AgentRecord) domain.TrustLayer {
	l := domain.TrustLayer{Name: domain.LayerRegistry}
	if s, ok := snapshotScore(rec.Trust, domain.LayerRegistry); ok {
		l.Score, l.Available = s, true
	}
	return l
}

// performanceLayer prefers the snapshot score and falls back to the ledger.
func performanceLayer(rec domain.AgentRecord) domain.TrustLayer {
	l := domain.TrustLayer{Name: domain.LayerPerformance}
	if s, ok := snapshotScore(rec.Trust, domain.LayerPerformance); ok {
		l.Score, l.Available = s, true
		return l
	}

	led := rec.Ledger
	if led == nil || led.TotalTasks <= 0 {
		return l
	}
	if led.OverallScore != nil && finite(*led.OverallScore) {
		l.Score = clamp(*led.OverallScore)
	} else {
		l.Score = clamp(float64(led.TotalApproved) / float64(led.TotalTasks) * 100)
	}
	l.Available = true
	return l
}

// transactionalLayer prefers the snapshot score and falls back to the
// bounty-weighted approval rate of the evidence history.
func transactionalLayer(rec domain.AgentRecord) domain.TrustLayer {
	l := domain.TrustLayer{Name: domain.LayerTransactional}
	if s, ok := snapshotScore(rec.Trust, domain.LayerTransactional); ok {
		l.Score, l.Available = s, true
		return l
	}

	var approved, total float64
	for _, e := range rec.Evidence {
		if e.BountyUSD <= 0 || !finite(e.BountyUSD) {
			continue
		}
		total += e.BountyUSD
		if e.Approved {
			approved += e.BountyUSD
		}
	}
	if total > 0 {
		l.Score = clamp(approved / total * 100)
		l.Available = true
	}
	return l
}

// snapshotScore returns the layer score of a snapshot that declares the
// layer available. A declared layer without its own score uses the
// composite score.
func snapshotScore(snap *domain.TrustSnapshot, layer string) (float64, bool) {
	if snap == nil || !snap.Lists(layer) {
		return 0, false
	}
	if ls, ok := snap.Layers.Get(layer); ok && finite(ls.Score) {
		return clamp(ls.Score), true
	}
	if finite(snap.CompositeScore) {
		return clamp(snap.CompositeScore), true
	}
	return 0, false
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
