// Package coldstart estimates the exposure bonus given to agents with
// little history.
package coldstart

import (
	"math"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// Estimator computes the cold-start bonus. The bonus decays linearly from
// BaseBonus at zero samples to 0 at Saturation samples.
type Estimator struct {
	base       float64
	saturation int
}

// NewEstimator creates an estimator from config.
func NewEstimator(cfg config.ColdStartConfig) *Estimator {
	sat := cfg.Saturation
	if sat < 1 {
		sat = 1
	}
	return &Estimator{base: cfg.BaseBonus, saturation: sat}
}

// Bonus returns base * max(0, 1 - n/saturation).
func (e *Estimator) Bonus(samples int) float64 {
	if samples < 0 {
		samples = 0
	}
	return e.base * math.Max(0, 1-float64(samples)/float64(e.saturation))
}

// SampleCount returns the number of observed tasks for rec: the larger of
// the ledger task count and the evidence history length.
func SampleCount(rec domain.AgentRecord) int {
	n := len(rec.Evidence)
	if rec.Ledger != nil && rec.Ledger.TotalTasks > n {
		n = rec.Ledger.TotalTasks
	}
	return n
}
