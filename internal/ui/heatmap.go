package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/loadstar/internal/load"
)

// heatCellWidth is the column width of one bucket in the heatmap.
const heatCellWidth = 9

// Heatmap prints one row per resource and one column per bucket, each cell
// showing utilization. Cells over capacity, at or above near, and below
// near are styled differently; empty cells show a dot.
func (p *Printer) Heatmap(loads []load.ResourceLoad, near float64) {
	if len(loads) == 0 || len(loads[0].Buckets) == 0 {
		fmt.Fprintln(p.out, "No resource load.")
		return
	}

	nameWidth := 8
	for _, rl := range loads {
		nameWidth = max(nameWidth, lipgloss.Width(resourceLabel(rl)))
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", nameWidth+1))
	for _, bl := range loads[0].Buckets {
		sb.WriteString(pad(bl.Bucket.Label, heatCellWidth))
	}
	fmt.Fprintln(p.out, p.paint(styleHeading, strings.TrimRight(sb.String(), " ")))

	for _, rl := range loads {
		sb.Reset()
		sb.WriteString(pad(resourceLabel(rl), nameWidth+1))
		for _, bl := range rl.Buckets {
			sb.WriteString(p.cell(bl, near))
		}
		fmt.Fprintln(p.out, strings.TrimRight(sb.String(), " "))
	}
}

func (p *Printer) cell(bl load.BucketLoad, near float64) string {
	if bl.Total == 0 {
		return pad(iconInfo, heatCellWidth)
	}
	text := percent(bl.Utilization)
	style := styleOK
	switch {
	case bl.Overallocated():
		style = styleOver
	case bl.Utilization >= near:
		style = styleNear
	}
	// Pad before painting so escape codes do not skew the column.
	return p.paint(style, pad(text, heatCellWidth))
}

func resourceLabel(rl load.ResourceLoad) string {
	if rl.Resource.Name != "" {
		return rl.Resource.Name
	}
	return rl.Resource.ID
}

// pad left-aligns s in a field of width visible columns.
func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s + " "
}
