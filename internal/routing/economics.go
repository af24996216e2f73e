package routing

import "math"

// Viability levels for bounties that cannot be rated against a cost history.
const (
	noBountyViability = 0.3
	unknownViability  = 0.5
	minViability      = 0.1
)

// EconomicViability rates a bounty against an agent's average task cost on
// a 0.1-1 scale. A bounty of zero or less rates 0.3 and an agent with no cost
// history rates 0.5. It informs operators and never changes fitness.
func EconomicViability(bountyUSD, avgCostUSD float64) float64 {
	if bountyUSD <= 0 {
		return noBountyViability
	}
	if avgCostUSD <= 0 {
		return unknownViability
	}
	margin := (bountyUSD - avgCostUSD) / bountyUSD
	switch {
	case margin > 0.7:
		return 1.0
	case margin > 0.4:
		return 0.8
	case margin > 0.1:
		return 0.6
	case margin > 0:
		return 0.4
	default:
		return math.Max(minViability, 0.3+margin)
	}
}

// unprofitable reports whether the agent's average cost exceeds the bounty.
func unprofitable(bountyUSD, avgCostUSD float64) bool {
	return bountyUSD > 0 && avgCostUSD > 0 && avgCostUSD > bountyUSD
}
