package ui

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/loadstar/internal/dag"
)

// NetworkRenderer draws the task network as boxes stacked by level, with
// box-drawing connectors between consecutive levels. Critical tasks are
// highlighted and every box shows its earliest start and slack when a
// schedule is supplied. Large graphs fall back to a compact one line per
// task layout.
type NetworkRenderer struct {
	// Width is the available terminal width in columns.
	Width int

	// UseColor controls whether styles are applied.
	UseColor bool

	// Schedule supplies ES, slack and the critical set. May be nil.
	Schedule *dag.Schedule

	// TrackMap maps task ID to track ID. Tasks outside track 0 get a
	// double-line border.
	TrackMap map[string]int
}

// compactThreshold is the number of tasks above which the renderer
// switches to compact mode.
const compactThreshold = 10

// Render produces the network diagram. Waves are rows; deps maps a task to
// its predecessors and titles maps a task to its display name.
func (r *NetworkRenderer) Render(waves []dag.Wave, deps map[string][]string, titles map[string]string) string {
	total := 0
	for _, w := range waves {
		total += len(w.NodeIDs)
	}
	if total == 0 {
		return ""
	}

	width := r.Width
	if width <= 0 {
		width = 80
	}

	if total > compactThreshold {
		return r.renderCompact(waves, deps, titles)
	}
	return r.renderFull(waves, deps, titles, width)
}

func (r *NetworkRenderer) critical(id string) bool {
	return r.Schedule != nil && r.Schedule.IsCritical(id)
}

func (r *NetworkRenderer) style(id string) lipgloss.Style {
	if r.critical(id) {
		return styleCritical
	}
	return styleSlack
}

func (r *NetworkRenderer) paint(text, id string) string {
	if !r.UseColor {
		return text
	}
	return r.style(id).Render(text)
}

func titleOf(titles map[string]string, id string) string {
	if t := titles[id]; t != "" {
		return t
	}
	return id
}

// nodeBox is the rendered text and position of a single task box.
type nodeBox struct {
	id     string
	lines  []string
	width  int
	center int
}

func (r *NetworkRenderer) renderFull(waves []dag.Wave, deps map[string][]string, titles map[string]string, width int) string {
	boxes := make(map[string]*nodeBox)
	for _, w := range waves {
		for _, id := range w.NodeIDs {
			boxes[id] = r.buildBox(id, titleOf(titles, id))
		}
	}

	var sb strings.Builder
	for wi, w := range waves {
		row := make([]*nodeBox, len(w.NodeIDs))
		for i, id := range w.NodeIDs {
			row[i] = boxes[id]
		}
		layoutRow(row, width)
		if wi > 0 {
			drawConnectors(&sb, waves[wi-1], w, boxes, deps, width)
		}
		drawRow(&sb, row)
	}
	return sb.String()
}

// buildBox renders one task:
//
//	┌──────────────┐
//	│ Foundations  │
//	│ ES 3 slack 0 │
//	└──────────────┘
func (r *NetworkRenderer) buildBox(id, title string) *nodeBox {
	content := []string{title}
	if r.Schedule != nil {
		if ts, ok := r.Schedule.Tasks[id]; ok {
			content = append(content, fmt.Sprintf("ES %d slack %d", ts.ES, ts.Slack))
		}
	}

	inner := 6
	for _, line := range content {
		inner = max(inner, lipgloss.Width(line))
	}

	b := r.border(id)
	lines := make([]string, 0, len(content)+2)
	lines = append(lines, r.paint(string(b[0])+strings.Repeat(string(b[4]), inner+2)+string(b[1]), id))
	for _, cl := range content {
		padded := cl + strings.Repeat(" ", inner-lipgloss.Width(cl))
		lines = append(lines, r.paint(string(b[5])+" "+padded+" "+string(b[5]), id))
	}
	lines = append(lines, r.paint(string(b[2])+strings.Repeat(string(b[4]), inner+2)+string(b[3]), id))

	return &nodeBox{id: id, lines: lines, width: inner + 4}
}

// border returns [TL, TR, BL, BR, H, V].
func (r *NetworkRenderer) border(id string) [6]rune {
	if track, ok := r.TrackMap[id]; ok && track > 0 {
		return [6]rune{'╔', '╗', '╚', '╝', '═', '║'}
	}
	return [6]rune{'┌', '┐', '└', '┘', '─', '│'}
}

// layoutRow spaces boxes evenly across width and records their centers.
func layoutRow(row []*nodeBox, width int) {
	n := len(row)
	if n == 0 {
		return
	}
	if n == 1 {
		row[0].center = width / 2
		return
	}

	total := 0
	for _, b := range row {
		total += b.width
	}
	gap := 2
	if total < width {
		gap = max((width-total)/(n+1), 2)
	}

	x := gap
	for _, b := range row {
		b.center = x + b.width/2
		x += b.width + gap
	}
}

func drawRow(sb *strings.Builder, row []*nodeBox) {
	height := 0
	for _, b := range row {
		height = max(height, len(b.lines))
	}
	for li := range height {
		cursor := 0
		for _, b := range row {
			if li >= len(b.lines) {
				continue
			}
			start := max(b.center-b.width/2, 0)
			if start > cursor {
				sb.WriteString(strings.Repeat(" ", start-cursor))
				cursor = start
			}
			sb.WriteString(b.lines[li])
			cursor = start + lipgloss.Width(b.lines[li])
		}
		sb.WriteByte('\n')
	}
}

func blankLine(width int) []rune {
	line := make([]rune, width)
	for i := range line {
		line[i] = ' '
	}
	return line
}

// drawConnectors draws a drop line under each predecessor and a branch
// line fanning out to (or in from) the boxes of the current wave.
func drawConnectors(sb *strings.Builder, prev, curr dag.Wave, boxes map[string]*nodeBox, deps map[string][]string, width int) {
	type connection struct{ from, to int }
	var conns []connection
	for _, to := range curr.NodeIDs {
		for _, dep := range deps[to] {
			if slices.Contains(prev.NodeIDs, dep) {
				conns = append(conns, connection{boxes[dep].center, boxes[to].center})
			}
		}
	}
	if len(conns) == 0 {
		// Predecessors are further up; draw straight to them.
		for _, to := range curr.NodeIDs {
			for _, dep := range deps[to] {
				if fb := boxes[dep]; fb != nil {
					conns = append(conns, connection{fb.center, boxes[to].center})
				}
			}
		}
	}
	if len(conns) == 0 {
		return
	}

	inRange := func(col int) bool { return col >= 0 && col < width }

	drop := blankLine(width)
	for _, c := range conns {
		if inRange(c.from) {
			drop[c.from] = '│'
		}
	}
	sb.WriteString(strings.TrimRight(string(drop), " "))
	sb.WriteByte('\n')

	branch := blankLine(width)
	span := func(lo, hi int) {
		for col := max(lo, 0); col <= hi && col < width; col++ {
			if branch[col] == ' ' {
				branch[col] = '─'
			}
		}
	}

	fanOut := make(map[int][]int)
	fanIn := make(map[int][]int)
	for _, c := range conns {
		fanOut[c.from] = append(fanOut[c.from], c.to)
		fanIn[c.to] = append(fanIn[c.to], c.from)
	}

	for _, from := range sortedInts(fanOut) {
		tos := fanOut[from]
		if len(tos) == 1 && tos[0] == from {
			if inRange(from) {
				branch[from] = '│'
			}
			continue
		}
		sort.Ints(tos)
		lo, hi := min(tos[0], from), max(tos[len(tos)-1], from)
		span(lo, hi)
		if inRange(from) {
			branch[from] = '┴'
		}
		for _, to := range tos {
			if !inRange(to) {
				continue
			}
			switch to {
			case lo:
				branch[to] = '├'
			case hi:
				branch[to] = '┤'
			default:
				branch[to] = '┬'
			}
		}
	}

	for _, to := range sortedInts(fanIn) {
		froms := fanIn[to]
		if len(froms) <= 1 {
			continue
		}
		sort.Ints(froms)
		span(min(froms[0], to), max(froms[len(froms)-1], to))
		if inRange(to) {
			branch[to] = '┬'
		}
	}

	sb.WriteString(strings.TrimRight(string(branch), " "))
	sb.WriteByte('\n')
}

func sortedInts(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// renderCompact writes one line per task: "Level n: [title] → [successor]".
// Critical tasks are marked with a trailing asterisk when color is off.
func (r *NetworkRenderer) renderCompact(waves []dag.Wave, deps map[string][]string, titles map[string]string) string {
	successors := make(map[string][]string)
	for id, preds := range deps {
		for _, p := range preds {
			successors[p] = append(successors[p], id)
		}
	}
	for k := range successors {
		sort.Strings(successors[k])
	}

	var sb strings.Builder
	for wi, w := range waves {
		if wi > 0 {
			sb.WriteByte('\n')
		}
		label := fmt.Sprintf("Level %d: ", w.Number)
		if r.UseColor {
			sb.WriteString(styleMuted.Render(label))
		} else {
			sb.WriteString(label)
		}
		indent := strings.Repeat(" ", len(label))

		for ni, id := range w.NodeIDs {
			if ni > 0 {
				sb.WriteString(indent)
			}
			node := r.compactNode(id, titleOf(titles, id))
			sb.WriteString(node)
			for si, succ := range successors[id] {
				if si > 0 {
					sb.WriteByte('\n')
					sb.WriteString(indent + strings.Repeat(" ", lipgloss.Width(node)))
				}
				sb.WriteString(" → ")
				sb.WriteString(r.compactNode(succ, titleOf(titles, succ)))
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (r *NetworkRenderer) compactNode(id, title string) string {
	text := "[" + title + "]"
	if r.UseColor {
		return r.style(id).Render(text)
	}
	if r.critical(id) {
		return text + "*"
	}
	return text
}

// Dependencies returns the predecessor map of d in the shape Render takes.
func Dependencies(d *dag.DAG) map[string][]string {
	deps := make(map[string][]string, d.Len())
	for _, id := range d.Nodes() {
		if ds := d.Dependencies(id); len(ds) > 0 {
			deps[id] = ds
		}
	}
	return deps
}

// TrackMap returns the task to track assignment of tracks.
func TrackMap(tracks []dag.Track) map[string]int {
	m := make(map[string]int)
	for _, t := range tracks {
		for _, id := range t.NodeIDs {
			m[id] = t.ID
		}
	}
	return m
}
