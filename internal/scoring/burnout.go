package scoring

import (
	"math"
	"time"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// Burnout model constants. Recent work saturates the workload half at
// burnoutTaskThreshold tasks per window; failures add up to burnoutFailureWeight.
const (
	burnoutWindow        = 24 * time.Hour
	burnoutTaskThreshold = 8
	burnoutWorkloadShare = 0.7
	burnoutFailureScale  = 5
	burnoutFailureWeight = 0.3
)

// BurnoutRisk estimates how overloaded an agent is from the tasks it
// completed in the last 24 hours before now and its failure streak. The
// result lies in [0, 1].
func BurnoutRisk(entries []domain.EvidenceEntry, failures int, now time.Time) float64 {
	recent := 0
	cutoff := now.Add(-burnoutWindow)
	for _, e := range entries {
		if e.CompletedAt != nil && e.CompletedAt.After(cutoff) && !e.CompletedAt.After(now) {
			recent++
		}
	}
	workload := math.Min(1, float64(recent)/burnoutTaskThreshold)
	failureRisk := math.Min(1, float64(max(failures, 0))/burnoutFailureScale) * burnoutFailureWeight
	return math.Min(1, workload*burnoutWorkloadShare+failureRisk)
}

// avgCostUSD is the ledger's mean cost per task, or 0 when unknown.
func avgCostUSD(led *domain.PerformanceLedger) float64 {
	if led == nil || led.TotalTasks <= 0 || led.TotalCostUSD <= 0 {
		return 0
	}
	return led.TotalCostUSD / float64(led.TotalTasks)
}
