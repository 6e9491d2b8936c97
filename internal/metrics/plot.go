package metrics

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelTop        = "100"
	axisLabelMid        = "50"
	axisLabelBottom     = "0"
	axisSeparator       = " │ "
	scoreMin            = 0.0
	scoreMax            = 100.0
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

// dash draws on dots of a line and skips the rest; period 1 is solid.
type dash struct {
	name   string
	period int
	on     int
}

func (d dash) draws(x int) bool {
	if d.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%d.period < d.on
}

var dashes = []dash{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
	{name: "dashdot", period: 8, on: 3},
}

// Clarity, correctness and structure plot in cyan, green and yellow.
var seriesColors = []string{
	"\x1b[36m",
	"\x1b[32m",
	"\x1b[33m",
	"\x1b[35m",
	"\x1b[34m",
}

// brailleDots maps a dot position inside a 2x4 cell to its braille bit.
var brailleDots = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// chart is a braille canvas with one dot layer per series.
type chart struct {
	cols   int
	rows   int
	layers [][]uint8
}

func newChart(cols, rows, layers int) *chart {
	c := &chart{cols: cols, rows: rows, layers: make([][]uint8, layers)}
	for i := range c.layers {
		c.layers[i] = make([]uint8, cols*rows)
	}
	return c
}

func (c *chart) dotWidth() int  { return c.cols * 2 }
func (c *chart) dotHeight() int { return c.rows * 4 }

func (c *chart) set(layer, x, y int) {
	if x < 0 || y < 0 || x >= c.dotWidth() || y >= c.dotHeight() {
		return
	}
	c.layers[layer][(y/4)*c.cols+x/2] |= brailleDots[x%2][y%4]
}

// stroke joins consecutive points with straight segments.
func (c *chart) stroke(layer int, d dash, xs, ys []int) {
	for i := range xs {
		if i == 0 {
			if d.draws(xs[0]) {
				c.set(layer, xs[0], ys[0])
			}
			continue
		}
		bresenham(xs[i-1], ys[i-1], xs[i], ys[i], func(x, y int) {
			if d.draws(x) {
				c.set(layer, x, y)
			}
		})
	}
}

// cell merges every layer at a terminal cell. The returned layer is the first
// one with a dot there, or -1 for an empty cell.
func (c *chart) cell(col, row int) (rune, int) {
	var mask uint8
	first := -1
	for i, layer := range c.layers {
		m := layer[row*c.cols+col]
		if m == 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		mask |= m
	}
	return rune(0x2800 + int(mask)), first
}

// PlotSeries renders score series (0-100) as a braille line chart with one
// x-axis label per pass.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return plotSeries(w, title, series, width, height, false)
}

// PlotSeriesWithColor renders a multi-line text plot with optional forced color output.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	return plotSeries(w, title, series, width, height, forceColor)
}

func plotSeries(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	series = nonEmptySeries(series)
	if len(series) == 0 {
		return nil
	}
	passes := 0
	for _, s := range series {
		passes = max(passes, len(s.Values))
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)

	c := newChart(width, height, len(series))
	for i, s := range series {
		xs := make([]int, len(s.Values))
		ys := make([]int, len(s.Values))
		for p, v := range s.Values {
			xs[p] = passColumn(p, passes, c.dotWidth())
			ys[p] = valueToRow(v, scoreMin, scoreMax, c.dotHeight())
		}
		c.stroke(i, dashes[i%len(dashes)], xs, ys)
	}

	colored := shouldUseColor(w, forceColor)
	lines := make([]string, 0, height+len(series)+4)
	if title != "" {
		lines = append(lines, title)
	}
	for _, s := range series {
		lines = append(lines, fmt.Sprintf("%s: %s  now=%.0f", s.Name, Sparkline(s.Values), s.Values[len(s.Values)-1]))
	}
	labels := axisLabels(height)
	for row := 0; row < height; row++ {
		var b strings.Builder
		fmt.Fprintf(&b, "%*s%s", len(axisLabelTop), labels[row], axisSeparator)
		for col := 0; col < width; col++ {
			r, layer := c.cell(col, row)
			if colored && layer >= 0 {
				b.WriteString(seriesColors[layer%len(seriesColors)])
				b.WriteRune(r)
				b.WriteString(colorReset)
				continue
			}
			b.WriteRune(r)
		}
		lines = append(lines, b.String())
	}
	lines = append(lines,
		strings.Repeat(" ", len(axisLabelTop)+1)+passAxis(passes, width),
		legend(series, colored),
		"",
	)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func nonEmptySeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// passColumn spreads passes evenly over span columns, first pass at 0 and last at span-1.
func passColumn(index, passes, span int) int {
	if passes <= 1 || span <= 1 {
		return 0
	}
	return int(math.Round(float64(index) * float64(span-1) / float64(passes-1)))
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := utf8.RuneCountInString(axisLabelTop) + utf8.RuneCountInString(axisSeparator)
	return max(totalWidth-axisWidth, minPlotWidth)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func axisLabels(height int) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = axisLabelTop
	if height > 2 {
		labels[height/2] = axisLabelMid
	}
	if height > 1 {
		labels[height-1] = axisLabelBottom
	}
	return labels
}

// valueToRow maps v onto rows dot rows, top row for maxVal.
func valueToRow(v, minVal, maxVal float64, rows int) int {
	if rows <= 1 || maxVal <= minVal {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(rows-1)))
	return min(max(row, 0), rows-1)
}

func legend(series []Series, colored bool) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		label := fmt.Sprintf("%c %s (%s)", rune(0x2800+int(brailleDots[0][0])), s.Name, dashes[i%len(dashes)].name)
		if colored {
			label = seriesColors[i%len(seriesColors)] + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

// passAxis marks where each pass lands across width columns.
func passAxis(passes, width int) string {
	axis := []rune(strings.Repeat("─", width+2))
	axis[0] = '└'
	if passes <= 0 || width <= 0 {
		return string(axis)
	}
	for i := 0; i < passes; i++ {
		col := passColumn(i, passes, width) + 2
		for _, r := range fmt.Sprintf("%d", i+1) {
			if col >= len(axis) {
				break
			}
			axis[col] = r
			col++
		}
	}
	return string(axis)
}

// bresenham visits every dot on the segment from (x0, y0) to (x1, y1).
func bresenham(x0, y0, x1, y1 int, visit func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		visit(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
