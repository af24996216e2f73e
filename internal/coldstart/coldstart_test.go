package coldstart

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

func defaultEstimator() *Estimator {
	return NewEstimator(config.Defaults().Scoring.ColdStart)
}

func TestBonusDefaults(t *testing.T) {
	e := defaultEstimator()

	assert.InDelta(t, 15.0, e.Bonus(0), 1e-9)
	assert.InDelta(t, 13.5, e.Bonus(1), 1e-9)
	assert.InDelta(t, 7.5, e.Bonus(5), 1e-9)
	assert.Equal(t, 0.0, e.Bonus(10))
	assert.Equal(t, 0.0, e.Bonus(50))
	assert.InDelta(t, 15.0, e.Bonus(-3), 1e-9)
}

func TestBonusStrictlyDecreasesUntilSaturation(t *testing.T) {
	e := defaultEstimator()
	prev := e.Bonus(0)
	for n := 1; n <= 10; n++ {
		b := e.Bonus(n)
		assert.Less(t, b, prev, "bonus at %d samples", n)
		prev = b
	}
	for n := 11; n < 30; n++ {
		assert.Equal(t, 0.0, e.Bonus(n))
	}
}

func TestBonusZeroSaturationGuard(t *testing.T) {
	e := NewEstimator(config.ColdStartConfig{BaseBonus: 10, Saturation: 0})
	assert.InDelta(t, 10.0, e.Bonus(0), 1e-9)
	assert.Equal(t, 0.0, e.Bonus(1))
}

func TestSampleCount(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.AgentRecord
		want int
	}{
		{"nothing", domain.AgentRecord{}, 0},
		{"ledger only", domain.AgentRecord{Ledger: &domain.PerformanceLedger{TotalTasks: 7}}, 7},
		{"evidence only", domain.AgentRecord{Evidence: make([]domain.EvidenceEntry, 4)}, 4},
		{
			"larger wins",
			domain.AgentRecord{
				Ledger:   &domain.PerformanceLedger{TotalTasks: 3},
				Evidence: make([]domain.EvidenceEntry, 5),
			},
			5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SampleCount(tt.rec))
		})
	}
}
