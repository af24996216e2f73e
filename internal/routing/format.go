package routing

import (
	"fmt"
	"strings"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// FormatDecision renders a routing decision for operators.
func FormatDecision(d domain.RoutingDecision) string {
	var b strings.Builder
	selected := d.SelectedAgent
	if selected == "" {
		selected = "NONE"
	}
	fmt.Fprintf(&b, "task=%s selected=%s confidence=%.2f candidates=%d\n",
		d.TaskID, selected, d.Confidence, len(d.CandidateScores))
	fmt.Fprintf(&b, "  reason: %s\n", d.Reasoning)
	for i, c := range d.CandidateScores {
		fmt.Fprintf(&b, "  %d. %s fitness=%.1f compound=%.1f boost=%.1f confidence=%.2f failures=%d viability=%.2f\n",
			i+1, c.AgentID, c.Fitness, c.CompoundScore, c.CategoryBoost, c.Confidence, c.ConsecutiveFailures, c.EconomicViability)
	}
	for _, w := range d.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", w)
	}
	return b.String()
}
