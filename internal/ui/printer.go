// Package ui renders analysis results for the terminal: the schedule
// table, the task network, the resource heatmap, conflict lists and the
// run history. Styling uses lipgloss and is skipped when color is off.
package ui

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/papapumpkin/loadstar/internal/archive"
	"github.com/papapumpkin/loadstar/internal/bucket"
	"github.com/papapumpkin/loadstar/internal/conflict"
	"github.com/papapumpkin/loadstar/internal/dag"
	"github.com/papapumpkin/loadstar/internal/engine"
	"github.com/papapumpkin/loadstar/internal/model"
)

// Printer writes human-readable output. Results go to out; diagnostics
// (warnings, errors) go to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	color  bool
}

// New returns a Printer.
func New(out, errOut io.Writer, color bool) *Printer {
	return &Printer{out: out, errOut: errOut, color: color}
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// qty formats a quantity with at most two decimals and no trailing zeros.
func qty(v float64) string {
	return humanize.FtoaWithDigits(v, 2)
}

func percent(u float64) string {
	if math.IsInf(u, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.0f%%", u*100)
}

// Heading prints a section title.
func (p *Printer) Heading(title string) {
	fmt.Fprintln(p.out, p.paint(styleHeading, title))
}

// Info prints a de-emphasized line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.errOut, p.paint(styleMuted, msg))
}

// Error prints an error line.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.errOut, "%s %s\n", p.paint(styleOver, "error:"), msg)
}

// Warnings prints soft problems found during analysis.
func (p *Printer) Warnings(ws []model.Warning) {
	for _, w := range ws {
		fmt.Fprintf(p.errOut, "%s %s\n", p.paint(styleNear, iconWarning), w)
	}
}

// Schedule prints the CPM table in topological order. Critical tasks are
// marked.
func (p *Printer) Schedule(s *dag.Schedule, titles map[string]string) {
	p.Heading(fmt.Sprintf("Schedule: finish at day %d", s.Finish))
	if len(s.Order) == 0 {
		fmt.Fprintln(p.out, "No tasks in graph.")
		return
	}

	nameWidth := 4
	for _, id := range s.Order {
		nameWidth = max(nameWidth, lipgloss.Width(titleOf(titles, id)))
	}
	fmt.Fprintf(p.out, "  %-*s %5s %5s %5s %5s %5s\n", nameWidth, "task", "ES", "EF", "LS", "LF", "slack")
	for _, id := range s.Order {
		ts := s.Tasks[id]
		name := titleOf(titles, id)
		mark := " "
		style := styleSlack
		if ts.Critical {
			mark = iconCritical
			style = styleCritical
		}
		row := fmt.Sprintf("%s %-*s %5d %5d %5d %5d %5d", mark, nameWidth, name, ts.ES, ts.EF, ts.LS, ts.LF, ts.Slack)
		fmt.Fprintln(p.out, p.paint(style, row))
	}
	fmt.Fprintf(p.out, "critical path: %s\n", strings.Join(s.CriticalPath, " → "))
}

// Network prints the task network by level.
func (p *Printer) Network(a *dag.Analysis, titles map[string]string, width int) {
	r := &NetworkRenderer{
		Width:    width,
		UseColor: p.color,
		Schedule: a.Schedule,
		TrackMap: TrackMap(a.Tracks),
	}
	fmt.Fprint(p.out, r.Render(a.Waves, Dependencies(a.Graph), titles))
}

// Levels prints each task with its layout level, lowest level first.
func (p *Printer) Levels(levels map[string]int) {
	ids := make([]string, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if levels[ids[i]] != levels[ids[j]] {
			return levels[ids[i]] < levels[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		fmt.Fprintf(p.out, "%3d  %s\n", levels[id], id)
	}
}

// EdgeCheck prints whether adding "to depends on from" is safe.
func (p *Printer) EdgeCheck(from, to string, cyclic bool) {
	if cyclic {
		fmt.Fprintf(p.out, "%s %s → %s would create a cycle\n", p.paint(styleOver, iconCritical), from, to)
		return
	}
	fmt.Fprintf(p.out, "%s %s → %s is safe\n", p.paint(styleOK, iconOK), from, to)
}

// Buckets prints the bucket sequence.
func (p *Printer) Buckets(seq bucket.Sequence) {
	for b := range seq.All() {
		fmt.Fprintf(p.out, "%-10s %s .. %s\n", b.Label, b.Start, b.End)
	}
}

// Conflicts prints overallocation records, most severe first.
func (p *Printer) Conflicts(cs []conflict.Conflict) {
	if len(cs) == 0 {
		fmt.Fprintln(p.out, p.paint(styleOK, iconOK+" no resource conflicts"))
		return
	}
	p.Heading(fmt.Sprintf("%d resource conflict(s)", len(cs)))
	for _, c := range cs {
		icon, style := iconWarning, styleNear
		if c.Severity == conflict.SeverityCritical {
			icon, style = iconCritical, styleCritical
		}
		name := c.ResourceID
		if c.ResourceName != "" {
			name = c.ResourceName
		}
		fmt.Fprintf(p.out, "%s %s %s: %s of %s allocated (+%s, active %s, planning %s)\n",
			p.paint(style, icon), p.paint(style, c.Severity.String()), name+" "+c.Period.Label,
			qty(c.Allocated), qty(c.Capacity), qty(c.Overallocation),
			qty(c.ActiveAllocated), qty(c.PlanningAllocated))
		for _, pc := range c.Projects {
			fmt.Fprintf(p.out, "    %s %s %s (%s)\n", iconInfo, pc.ProjectID, qty(pc.Allocation), pc.Status)
		}
	}
}

// NearCapacity prints buckets that are close to full.
func (p *Printer) NearCapacity(ms []conflict.NearMiss) {
	for _, m := range ms {
		fmt.Fprintf(p.out, "%s %s %s at %s (%s of %s)\n",
			p.paint(styleNear, iconInfo), m.ResourceID, m.Period.Label,
			percent(m.Utilization), qty(m.Allocated), qty(m.Capacity))
	}
}

// Summary prints the headline numbers of a full analysis.
func (p *Printer) Summary(rep *engine.Report) {
	p.Heading("Portfolio analysis " + rep.RunID)
	s := rep.Graph.Schedule
	fmt.Fprintf(p.out, "tasks:      %s (%d critical, finish at day %d)\n",
		humanize.Comma(int64(len(s.Order))), len(s.CriticalPath), s.Finish)
	fmt.Fprintf(p.out, "buckets:    %d", len(rep.Buckets))
	if len(rep.Buckets) > 0 {
		fmt.Fprintf(p.out, " (%s .. %s)", rep.Buckets[0].Label, rep.Buckets[len(rep.Buckets)-1].Label)
	}
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "conflicts:  %d (%d critical)\n", len(rep.Conflicts), rep.Critical())
	fmt.Fprintf(p.out, "warnings:   %d\n", len(rep.Warnings))
}

// History prints archived runs relative to now.
func (p *Printer) History(runs []archive.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No archived runs.")
		return
	}
	for _, r := range runs {
		age := humanize.RelTime(r.StartedAt, now, "ago", "from now")
		fmt.Fprintf(p.out, "%s  %-14s %-20s finish %3d  %s conflict(s)  %s\n",
			shortID(r.ID), age, r.Snapshot, r.Finish,
			humanize.Comma(int64(r.ConflictCount)), p.paint(styleMuted, strings.Join(r.CriticalPath, "→")))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ResourceHistory prints archived conflicts of one resource, oldest
// period first.
func (p *Printer) ResourceHistory(resourceID string, recs []archive.ConflictRecord) {
	if len(recs) == 0 {
		fmt.Fprintf(p.out, "No archived conflicts for %s.\n", resourceID)
		return
	}
	p.Heading(fmt.Sprintf("Conflict history for %s", resourceID))
	for _, c := range recs {
		style := styleNear
		if c.Severity == conflict.SeverityCritical.String() {
			style = styleCritical
		}
		fmt.Fprintf(p.out, "%-10s %s  %s of %s (+%s)  %s\n",
			c.Period, shortID(c.RunID), qty(c.Allocated), qty(c.Capacity), qty(c.Overallocation),
			p.paint(style, c.Severity))
	}
}
