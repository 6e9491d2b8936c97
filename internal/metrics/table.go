package metrics

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/passplay/internal/model"
)

// FormatTable lays out rows in aligned columns separated by single spaces.
func FormatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = displayWidth(header)
	}
	for _, row := range rows {
		for i := 0; i < colCount; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if w := displayWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return b.String()
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := displayWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := width - valueWidth
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}

func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}

// PassTable renders the timeline of the first n passes with their metrics.
func PassTable(p model.Problem, n int) []string {
	if n <= 0 || n > len(p.Passes) {
		n = len(p.Passes)
	}
	headers := []string{"Pass", "Clarity", "Correctness", "Structure", "Errors", "Avg", "Change"}
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		pass := p.Passes[i]
		m, err := FormatMetrics(&pass)
		if err != nil {
			continue
		}
		change := "-"
		if i > 0 {
			change = DescribeChange(p.Passes[i-1], pass)
		}
		rows = append(rows, []string{
			PassLabel(i, n),
			fmt.Sprintf("%d%%", m.Clarity),
			fmt.Sprintf("%d%%", m.Correctness),
			fmt.Sprintf("%d%%", m.Structure),
			fmt.Sprintf("%d", m.Errors),
			fmt.Sprintf("%d", m.Average),
			change,
		})
	}
	return FormatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true})
}
