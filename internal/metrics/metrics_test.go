package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/verte-zerg/passplay/internal/engine"
	"github.com/verte-zerg/passplay/internal/model"
)

func pass(clarity, correctness, structure, errs int) model.Pass {
	return model.Pass{
		Scores: model.Scores{Clarity: clarity, Correctness: correctness, Structure: structure},
		Errors: errs,
	}
}

func TestFormatMetricsAverage(t *testing.T) {
	for _, tc := range []struct {
		p    model.Pass
		want int
	}{
		{p: pass(90, 90, 90, 0), want: 90},
		{p: pass(90, 85, 80, 0), want: 85},
		{p: pass(35, 30, 40, 4), want: 35},
		{p: pass(98, 100, 98, 0), want: 99},
		{p: pass(0, 0, 1, 0), want: 0},
		{p: pass(0, 1, 1, 0), want: 1},
		{p: pass(100, 100, 100, 0), want: 100},
	} {
		p := tc.p
		m, err := FormatMetrics(&p)
		if err != nil {
			t.Fatalf("format: %v", err)
		}
		if m.Average != tc.want {
			t.Fatalf("scores %+v: expected average %d, got %d", p.Scores, tc.want, m.Average)
		}
		if m.Clarity != p.Scores.Clarity || m.Errors != p.Errors {
			t.Fatalf("expected scores to pass through: %+v", m)
		}
	}
}

func TestFormatMetricsNilPass(t *testing.T) {
	_, err := FormatMetrics(nil)
	if !errors.Is(err, engine.ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass, got %v", err)
	}
}

func TestDescribeChangeListsImprovements(t *testing.T) {
	got := DescribeChange(pass(75, 90, 80, 2), pass(95, 98, 95, 1))
	for _, want := range []string{"clarity +20%", "correctness +8%", "structure +15%", "errors -1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if !strings.HasPrefix(got, "Improved: ") {
		t.Fatalf("expected improved prefix: %q", got)
	}
}

func TestDescribeChangeOmitsRegressions(t *testing.T) {
	got := DescribeChange(pass(80, 90, 70, 1), pass(70, 95, 60, 3))
	if got != "Improved: correctness +5%" {
		t.Fatalf("unexpected description: %q", got)
	}
	if got := DescribeChange(pass(80, 80, 80, 0), pass(80, 70, 80, 2)); got != NoChange {
		t.Fatalf("expected no change sentinel, got %q", got)
	}
}

func TestBuildSeriesEndsWithCurrent(t *testing.T) {
	history := []model.Pass{pass(35, 30, 40, 4), pass(75, 90, 80, 2)}
	current := model.Metrics{Clarity: 95, Correctness: 98, Structure: 95}
	s := BuildSeries(history, current)
	if s.Len() != 3 || len(s.Correctness) != 3 || len(s.Structure) != 3 {
		t.Fatalf("expected 3 points per metric, got %+v", s)
	}
	want := []int{35, 75, 95}
	for i, v := range want {
		if s.Clarity[i] != v {
			t.Fatalf("clarity[%d]: expected %d, got %d", i, v, s.Clarity[i])
		}
	}
	if s.Structure[2] != 95 || s.Correctness[0] != 30 {
		t.Fatalf("unexpected series: %+v", s)
	}
}

func TestBuildSeriesWithoutHistory(t *testing.T) {
	s := BuildSeries(nil, model.Metrics{Clarity: 1, Correctness: 2, Structure: 3})
	if s.Len() != 1 || s.Clarity[0] != 1 || s.Correctness[0] != 2 || s.Structure[0] != 3 {
		t.Fatalf("unexpected series: %+v", s)
	}
}

func TestMetricHistoryClampsCount(t *testing.T) {
	p := model.Problem{Passes: []model.Pass{pass(10, 20, 30, 3), pass(40, 50, 60, 2), pass(70, 80, 90, 1)}}
	s := MetricHistory(p, 2)
	if s.Len() != 2 || s.Errors[1] != 2 {
		t.Fatalf("unexpected history: %+v", s)
	}
	if got := MetricHistory(p, 99); got.Len() != 3 {
		t.Fatalf("expected all passes, got %d", got.Len())
	}
}

func TestPassLabelAndInsight(t *testing.T) {
	if got := PassLabel(0, 4); got != "Pass 1 (Initial)" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := PassLabel(3, 4); got != "Pass 4 (Final)" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := PassLabel(1, 4); got != "Pass 2" {
		t.Fatalf("unexpected label %q", got)
	}
	if Insight(0) == Insight(1) {
		t.Fatalf("expected distinct stage insights")
	}
	if got := Insight(9); got != defaultInsight {
		t.Fatalf("expected fallback insight, got %q", got)
	}
}

func TestWeakestMetricAndGains(t *testing.T) {
	if got := WeakestMetric(pass(50, 40, 60, 0)); got != "correctness" {
		t.Fatalf("expected correctness, got %q", got)
	}
	if got := WeakestMetric(pass(50, 50, 50, 0)); got != "clarity" {
		t.Fatalf("expected tie to resolve to clarity, got %q", got)
	}
	gains := RankGains(pass(35, 50, 25, 5), pass(100, 100, 100, 0))
	if gains[0].Metric != "structure" || gains[0].Delta != 75 {
		t.Fatalf("expected structure first, got %+v", gains)
	}
	if gains[len(gains)-1].Metric != "errors" {
		t.Fatalf("expected errors last, got %+v", gains)
	}
}

func TestSparklineAndBar(t *testing.T) {
	if got := Sparkline([]float64{0, 100}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := ScoreBar(50, 4); got != "██░░" {
		t.Fatalf("unexpected bar %q", got)
	}
	if got := ScoreBar(150, 2); got != "██" {
		t.Fatalf("expected clamped bar, got %q", got)
	}
}
