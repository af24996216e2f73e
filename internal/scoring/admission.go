package scoring

import (
	"time"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// AdmissionPolicy decides whether an agent's lifecycle state allows it to
// receive work. The failure ceiling is checked separately.
type AdmissionPolicy interface {
	Admit(lc domain.LifecycleRecord, now time.Time) bool
	Name() string
}

// StrictPolicy admits only agents that are running or about to run.
// Agents with no reported state are admitted so new agents can get work.
type StrictPolicy struct{}

// Admit implements AdmissionPolicy.
func (StrictPolicy) Admit(lc domain.LifecycleRecord, _ time.Time) bool {
	switch lc.State {
	case domain.StateIdle, domain.StateWorking, domain.StateStarting, domain.StateUnknown:
		return true
	}
	return false
}

// Name implements AdmissionPolicy.
func (StrictPolicy) Name() string { return config.AdmissionStrict }

// CooldownPolicy behaves like StrictPolicy but also admits an agent in
// cooldown once its cooldown deadline has passed.
type CooldownPolicy struct{}

// Admit implements AdmissionPolicy.
func (CooldownPolicy) Admit(lc domain.LifecycleRecord, now time.Time) bool {
	if lc.State == domain.StateCooldown {
		return lc.CooldownUntil != nil && !now.Before(*lc.CooldownUntil)
	}
	return StrictPolicy{}.Admit(lc, now)
}

// Name implements AdmissionPolicy.
func (CooldownPolicy) Name() string { return config.AdmissionCooldown }

// PolicyFor returns the policy registered under name, defaulting to strict.
func PolicyFor(name string) AdmissionPolicy {
	if name == config.AdmissionCooldown {
		return CooldownPolicy{}
	}
	return StrictPolicy{}
}
