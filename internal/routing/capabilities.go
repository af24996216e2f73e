package routing

import "github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"

// Capabilities are the kinds of work an agent can perform.
type Capabilities struct {
	Physical bool `json:"physical"`
	Digital  bool `json:"digital"`
}

// DigitalOnly is assumed for agents without declared capabilities.
var DigitalOnly = Capabilities{Digital: true}

// CapabilityProvider reports what an agent can do. Implementations must be
// safe for concurrent use.
type CapabilityProvider interface {
	Capabilities(agentID string) Capabilities
}

// StaticCapabilities is a fixed capability table.
type StaticCapabilities map[string]Capabilities

// Capabilities implements CapabilityProvider.
func (s StaticCapabilities) Capabilities(agentID string) Capabilities {
	if c, ok := s[agentID]; ok {
		return c
	}
	return DigitalOnly
}

// CapabilitiesFromConfig builds a table from the agents section of the config.
func CapabilitiesFromConfig(entries []config.AgentEntry) StaticCapabilities {
	caps := make(StaticCapabilities, len(entries))
	for _, e := range entries {
		digital := true
		if e.Digital != nil {
			digital = *e.Digital
		}
		caps[e.ID] = Capabilities{Physical: e.Physical, Digital: digital}
	}
	return caps
}

// canServe reports whether caps allow a task with the given physical requirement.
func (c Capabilities) canServe(requiresPhysical bool) bool {
	if requiresPhysical {
		return c.Physical
	}
	return c.Digital
}
