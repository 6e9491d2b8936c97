package metrics

import (
	"fmt"
	"sort"

	"github.com/verte-zerg/passplay/internal/model"
)

var stageInsights = map[int]string{
	1: "Initial pass commits to a solution quickly but lacks nuance. Single-factor thinking dominates.",
	2: "Second pass reviews the first and identifies gaps. Multi-factor thinking emerges but lacks integration.",
	3: "Third pass synthesizes multiple factors into coherent explanation. Begins connecting causal chains.",
	4: "Fourth pass adds technical depth and empirical grounding. Explains why certain factors matter more.",
	5: "Fifth pass achieves mastery: combines precision, impact, failure modes, and actionable recommendations.",
}

const defaultInsight = "Refinement improves reasoning quality with each iteration."

// Gain is the change of one metric between two passes.
type Gain struct {
	Metric string
	Delta  int
}

// PassLabel names a pass for timeline display, e.g. "Pass 1 (Initial)".
func PassLabel(index, total int) string {
	n := index + 1
	switch {
	case n == 1:
		return "Pass 1 (Initial)"
	case n == total:
		return fmt.Sprintf("Pass %d (Final)", n)
	default:
		return fmt.Sprintf("Pass %d", n)
	}
}

// Insight returns the narrative note for the zero-based pass index.
func Insight(index int) string {
	if text, ok := stageInsights[index+1]; ok {
		return text
	}
	return defaultInsight
}

// WeakestMetric returns the lowest scoring metric of a pass.
// Ties resolve in clarity, correctness, structure order.
func WeakestMetric(p model.Pass) string {
	name, lowest := "clarity", p.Scores.Clarity
	if p.Scores.Correctness < lowest {
		name, lowest = "correctness", p.Scores.Correctness
	}
	if p.Scores.Structure < lowest {
		name = "structure"
	}
	return name
}

// RankGains orders metric changes from first to current, largest gain first.
// Error reductions count as gains.
func RankGains(first, current model.Pass) []Gain {
	gains := []Gain{
		{Metric: "clarity", Delta: current.Scores.Clarity - first.Scores.Clarity},
		{Metric: "correctness", Delta: current.Scores.Correctness - first.Scores.Correctness},
		{Metric: "structure", Delta: current.Scores.Structure - first.Scores.Structure},
		{Metric: "errors", Delta: first.Errors - current.Errors},
	}
	sort.SliceStable(gains, func(i, j int) bool {
		return gains[i].Delta > gains[j].Delta
	})
	return gains
}
