// Package metrics derives display metrics from passes and renders them as text.
package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/model"
)

// NoChange is returned by DescribeChange when nothing improved.
const NoChange = "No significant changes detected"

// ErrInvalidPass is returned when a pass is missing.
var ErrInvalidPass = engine.ErrInvalidPass

// FormatMetrics returns the pass scores plus their rounded average.
func FormatMetrics(p *model.Pass) (model.Metrics, error) {
	if p == nil {
		return model.Metrics{}, fmt.Errorf("format metrics: %w", ErrInvalidPass)
	}
	sum := p.Scores.Clarity + p.Scores.Correctness + p.Scores.Structure
	return model.Metrics{
		Clarity:     p.Scores.Clarity,
		Correctness: p.Scores.Correctness,
		Structure:   p.Scores.Structure,
		Errors:      p.Errors,
		Average:     int(math.Floor(float64(sum)/3 + 0.5)),
	}, nil
}

// DescribeChange lists the metrics that improved from previous to current.
// Regressions are left out.
func DescribeChange(previous, current model.Pass) string {
	var improvements []string
	for _, m := range []struct {
		name      string
		prev, cur int
	}{
		{"clarity", previous.Scores.Clarity, current.Scores.Clarity},
		{"correctness", previous.Scores.Correctness, current.Scores.Correctness},
		{"structure", previous.Scores.Structure, current.Scores.Structure},
	} {
		if m.cur > m.prev {
			improvements = append(improvements, fmt.Sprintf("%s +%d%%", m.name, m.cur-m.prev))
		}
	}
	if current.Errors < previous.Errors {
		improvements = append(improvements, fmt.Sprintf("errors -%d", previous.Errors-current.Errors))
	}
	if len(improvements) == 0 {
		return NoChange
	}
	return "Improved: " + strings.Join(improvements, ", ")
}

// BuildSeries returns chart values for every visited pass followed by current.
func BuildSeries(history []model.Pass, current model.Metrics) model.Series {
	n := len(history) + 1
	s := model.Series{
		Clarity:     make([]int, 0, n),
		Correctness: make([]int, 0, n),
		Structure:   make([]int, 0, n),
	}
	for _, p := range history {
		s.Clarity = append(s.Clarity, p.Scores.Clarity)
		s.Correctness = append(s.Correctness, p.Scores.Correctness)
		s.Structure = append(s.Structure, p.Scores.Structure)
	}
	s.Clarity = append(s.Clarity, current.Clarity)
	s.Correctness = append(s.Correctness, current.Correctness)
	s.Structure = append(s.Structure, current.Structure)
	return s
}

// MetricHistory returns the scores and error counts of the first n passes.
func MetricHistory(p model.Problem, n int) model.Series {
	if n <= 0 || n > len(p.Passes) {
		n = len(p.Passes)
	}
	s := model.Series{
		Clarity:     make([]int, 0, n),
		Correctness: make([]int, 0, n),
		Structure:   make([]int, 0, n),
		Errors:      make([]int, 0, n),
	}
	for _, pass := range p.Passes[:n] {
		s.Clarity = append(s.Clarity, pass.Scores.Clarity)
		s.Correctness = append(s.Correctness, pass.Scores.Correctness)
		s.Structure = append(s.Structure, pass.Scores.Structure)
		s.Errors = append(s.Errors, pass.Errors)
	}
	return s
}

// ChartSeries converts score series into named plot series.
func ChartSeries(s model.Series) []Series {
	return []Series{
		{Name: "Clarity", Values: toFloats(s.Clarity)},
		{Name: "Correctness", Values: toFloats(s.Correctness)},
		{Name: "Structure", Values: toFloats(s.Structure)},
	}
}

func toFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
