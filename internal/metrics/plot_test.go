package metrics

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Quality Metrics Across Passes", []Series{
		{Name: "Clarity", Values: []float64{35, 75, 95, 100}},
		{Name: "Structure", Values: []float64{40, 80, 95, 100}},
	}, 12, 4)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Quality Metrics Across Passes") {
		t.Fatalf("expected title in output")
	}
	if !strings.Contains(out, "Clarity: ") || !strings.Contains(out, "now=100") {
		t.Fatalf("expected per-series summary in output: %s", out)
	}
	if !strings.Contains(out, "Legend:") {
		t.Fatalf("expected legend in output")
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	expectedMin := 1 + 2 + 4 + 1 + 1
	if len(lines) < expectedMin {
		t.Fatalf("expected at least %d lines of output, got %d", expectedMin, len(lines))
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "A"}}, 10, 4); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty series, got %q", buf.String())
	}
}

func TestPassAxisLabelsEachPass(t *testing.T) {
	axis := passAxis(4, 10)
	if utf8.RuneCountInString(axis) != 12 {
		t.Fatalf("expected axis of 12 runes, got %d", utf8.RuneCountInString(axis))
	}
	for _, label := range []string{"1", "2", "3", "4"} {
		if !strings.Contains(axis, label) {
			t.Fatalf("expected label %s in axis %q", label, axis)
		}
	}
	if !strings.HasPrefix(axis, "└─1") {
		t.Fatalf("expected first pass under the first plot column: %q", axis)
	}
}

func TestValueToRowFixedScale(t *testing.T) {
	if got := valueToRow(100, scoreMin, scoreMax, 40); got != 0 {
		t.Fatalf("expected top row for 100, got %d", got)
	}
	if got := valueToRow(0, scoreMin, scoreMax, 40); got != 39 {
		t.Fatalf("expected bottom row for 0, got %d", got)
	}
}

func TestPlotWidthFor(t *testing.T) {
	axisWidth := utf8.RuneCountInString(axisLabelTop) + utf8.RuneCountInString(axisSeparator)
	total := 80
	expected := total - axisWidth
	if expected < minPlotWidth {
		expected = minPlotWidth
	}
	if got := PlotWidthFor(total); got != expected {
		t.Fatalf("expected width %d, got %d", expected, got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestPassColumnSpread(t *testing.T) {
	if got := passColumn(0, 1, 20); got != 0 {
		t.Fatalf("single pass should sit at column 0, got %d", got)
	}
	if got := passColumn(3, 4, 20); got != 19 {
		t.Fatalf("last pass should sit at the last column, got %d", got)
	}
	if got := passColumn(1, 3, 21); got != 10 {
		t.Fatalf("middle pass should sit at column 10, got %d", got)
	}
}

func TestChartMergesLayers(t *testing.T) {
	c := newChart(2, 1, 2)
	c.set(0, 0, 0)
	c.set(1, 1, 3)
	c.set(1, 99, 99)
	r, layer := c.cell(0, 0)
	if r != rune(0x2800+0x01+0x80) || layer != 0 {
		t.Fatalf("unexpected cell %q layer %d", r, layer)
	}
	if r, layer := c.cell(1, 0); r != 0x2800 || layer != -1 {
		t.Fatalf("expected empty cell, got %q layer %d", r, layer)
	}
}
