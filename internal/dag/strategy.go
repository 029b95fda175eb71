package dag

import (
	"fmt"
	"strings"
)

// ReportStrategy renders an Analysis as text. Each implementation is a
// different view of the same schedule.
type ReportStrategy interface {
	Render(a *Analysis) string
}

// SchedulePlanStrategy renders tasks in topological order with their
// earliest/latest times, slack, and dependencies, as Markdown.
type SchedulePlanStrategy struct{}

// Render produces a numbered schedule plan.
func (s SchedulePlanStrategy) Render(a *Analysis) string {
	if a.Schedule == nil || len(a.Schedule.Order) == 0 {
		return "No tasks in graph."
	}

	var b strings.Builder
	b.WriteString("# Schedule\n\n")
	fmt.Fprintf(&b, "Project finish: day %d\n\n", a.Schedule.Finish)
	for i, id := range a.Schedule.Order {
		ts := a.Schedule.Tasks[id]
		marker := ""
		if ts.Critical {
			marker = " **critical**"
		}
		fmt.Fprintf(&b, "%d. %s  ES=%d EF=%d LS=%d LF=%d slack=%d%s",
			i+1, id, ts.ES, ts.EF, ts.LS, ts.LF, ts.Slack, marker)
		if deps := a.Graph.Dependencies(id); len(deps) > 0 {
			fmt.Fprintf(&b, " [depends on: %s]", strings.Join(deps, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// CriticalPathStrategy lists only the zero-slack tasks.
type CriticalPathStrategy struct{}

// Render produces a critical path report.
func (s CriticalPathStrategy) Render(a *Analysis) string {
	if a.Schedule == nil || len(a.Schedule.Order) == 0 {
		return "No tasks in graph."
	}

	path := a.Schedule.CriticalPath
	total := len(a.Schedule.Order)

	var b strings.Builder
	b.WriteString("# Critical Path\n\n")
	fmt.Fprintf(&b, "%d of %d tasks have zero slack (%.0f%%); finish at day %d.\n\n",
		len(path), total, 100*float64(len(path))/float64(total), a.Schedule.Finish)
	for step, id := range path {
		ts := a.Schedule.Tasks[id]
		fmt.Fprintf(&b, "%d. %s (days %d–%d)\n", step+1, id, ts.ES, ts.EF)
	}
	return b.String()
}

// TrackStrategy renders independent tracks with their member tasks.
type TrackStrategy struct{}

// Render produces a track-by-track report.
func (s TrackStrategy) Render(a *Analysis) string {
	if len(a.Tracks) == 0 {
		return "No tracks computed."
	}

	var b strings.Builder
	b.WriteString("# Tracks\n\n")
	fmt.Fprintf(&b, "Total tracks: %d\n\n", len(a.Tracks))
	for _, tr := range a.Tracks {
		fmt.Fprintf(&b, "## Track %d (%d tasks, %d days of work)\n", tr.ID, len(tr.NodeIDs), tr.Duration)
		for _, id := range tr.NodeIDs {
			fmt.Fprintf(&b, "  - %s (level %d, slack %d)\n", id, a.Levels[id], a.Schedule.Tasks[id].Slack)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
