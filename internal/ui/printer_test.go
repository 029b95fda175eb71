package ui

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/loadstar/internal/archive"
	"github.com/papapumpkin/loadstar/internal/bucket"
	"github.com/papapumpkin/loadstar/internal/conflict"
	"github.com/papapumpkin/loadstar/internal/dag"
	"github.com/papapumpkin/loadstar/internal/engine"
	"github.com/papapumpkin/loadstar/internal/load"
	"github.com/papapumpkin/loadstar/internal/model"
)

func newTestPrinter() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut, false), &out, &errOut
}

var march = bucket.Bucket{Label: "Mar 2026", Start: model.NewDate(2026, 3, 1), End: model.NewDate(2026, 3, 31)}

func TestPrinter_Schedule(t *testing.T) {
	t.Parallel()

	d, _, _, titles := buildTestNetwork(t, diamond())
	sched, err := d.Schedule()
	require.NoError(t, err)

	p, out, _ := newTestPrinter()
	p.Schedule(sched, titles)

	s := out.String()
	assert.Contains(t, s, "finish at day 8")
	assert.Contains(t, s, "critical path: d → b → a")
	lines := strings.Split(s, "\n")
	var right string
	for _, l := range lines {
		if strings.Contains(l, "Right") {
			right = l
		}
	}
	assert.True(t, strings.HasPrefix(right, " "), "non-critical row should not be marked: %q", right)
	assert.True(t, strings.HasSuffix(right, "4"), "Right has slack 4: %q", right)
}

func TestPrinter_ScheduleEmpty(t *testing.T) {
	t.Parallel()

	sched, err := dag.New().Schedule()
	require.NoError(t, err)
	p, out, _ := newTestPrinter()
	p.Schedule(sched, nil)
	assert.Contains(t, out.String(), "No tasks in graph.")
}

func TestPrinter_Conflicts(t *testing.T) {
	t.Parallel()

	p, out, _ := newTestPrinter()
	p.Conflicts(nil)
	assert.Contains(t, out.String(), "no resource conflicts")

	out.Reset()
	p.Conflicts([]conflict.Conflict{{
		ResourceID: "R", ResourceName: "Crane crew", Period: march,
		Capacity: 5, Allocated: 7, ActiveAllocated: 3, PlanningAllocated: 4, Overallocation: 2,
		Projects: []load.Contribution{
			{ProjectID: "P1", Status: model.StatusActive, Allocation: 3},
			{ProjectID: "P2", Status: model.StatusPlanning, Allocation: 4},
		},
		Severity: conflict.SeverityCritical,
	}})
	s := out.String()
	assert.Contains(t, s, "1 resource conflict(s)")
	assert.Contains(t, s, "critical Crane crew Mar 2026: 7 of 5 allocated (+2, active 3, planning 4)")
	assert.Contains(t, s, "P2 4 (planning)")
}

func TestPrinter_Heatmap(t *testing.T) {
	t.Parallel()

	april := bucket.Bucket{Label: "Apr 2026", Start: model.NewDate(2026, 4, 1), End: model.NewDate(2026, 4, 30)}
	loads := []load.ResourceLoad{
		{
			Resource: model.ResourcePoolItem{ID: "R", Name: "Crane crew", TotalQuantity: 5},
			Buckets: []load.BucketLoad{
				{Bucket: march, Capacity: 5, Total: 7, Utilization: 1.4},
				{Bucket: april, Capacity: 5},
			},
		},
		{
			Resource: model.ResourcePoolItem{ID: "Q"},
			Buckets: []load.BucketLoad{
				{Bucket: march, Total: 1, Utilization: math.Inf(1)},
				{Bucket: april, Capacity: 4, Total: 2, Utilization: 0.5},
			},
		},
	}

	p, out, _ := newTestPrinter()
	p.Heatmap(loads, 0.85)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Mar 2026")
	assert.Contains(t, lines[0], "Apr 2026")
	assert.True(t, strings.HasPrefix(lines[1], "Crane crew"))
	assert.Contains(t, lines[1], "140%")
	assert.Contains(t, lines[1], iconInfo)
	assert.Contains(t, lines[2], "∞")
	assert.Contains(t, lines[2], "50%")

	out.Reset()
	p.Heatmap(nil, 0.85)
	assert.Contains(t, out.String(), "No resource load.")
}

func TestPrinter_History(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	runs := []archive.Run{{
		ID:            "0123456789abcdef",
		StartedAt:     now.Add(-3 * time.Hour),
		Snapshot:      "portfolio.toml",
		Finish:        9,
		CriticalPath:  []string{"A", "B", "D"},
		ConflictCount: 1200,
	}}

	p, out, _ := newTestPrinter()
	p.History(runs, now)
	s := out.String()
	assert.Contains(t, s, "01234567 ")
	assert.NotContains(t, s, "89abcdef")
	assert.Contains(t, s, "3 hours ago")
	assert.Contains(t, s, "1,200 conflict(s)")
	assert.Contains(t, s, "A→B→D")

	out.Reset()
	p.History(nil, now)
	assert.Contains(t, out.String(), "No archived runs.")
}

func TestPrinter_Summary(t *testing.T) {
	t.Parallel()

	snap := model.Snapshot{
		Tasks: []model.Task{
			{ID: "a", Start: model.NewDate(2026, 3, 1), End: model.NewDate(2026, 3, 3)},
			{ID: "b", Start: model.NewDate(2026, 3, 3), End: model.NewDate(2026, 3, 4), Dependencies: []string{"a"}},
		},
	}
	clock := func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	rep, err := engine.New(engine.WithClock(clock), engine.WithBucketCount(2)).Analyze(context.Background(), snap)
	require.NoError(t, err)

	p, out, _ := newTestPrinter()
	p.Summary(rep)
	s := out.String()
	assert.Contains(t, s, rep.RunID)
	assert.Contains(t, s, "tasks:      2 (2 critical, finish at day 3)")
	assert.Contains(t, s, "buckets:    2 (Mar 2026 .. Apr 2026)")
	assert.Contains(t, s, "conflicts:  0 (0 critical)")
}

func TestPrinter_Misc(t *testing.T) {
	t.Parallel()

	p, out, errOut := newTestPrinter()
	p.EdgeCheck("a", "b", true)
	p.EdgeCheck("b", "c", false)
	assert.Contains(t, out.String(), "a → b would create a cycle")
	assert.Contains(t, out.String(), "b → c is safe")

	out.Reset()
	p.Levels(map[string]int{"b": 1, "a": 0, "c": 1})
	assert.Equal(t, "  0  a\n  1  b\n  1  c\n", out.String())

	out.Reset()
	p.Buckets(bucket.Sequence{march})
	assert.Equal(t, "Mar 2026   2026-03-01 .. 2026-03-31\n", out.String())

	out.Reset()
	p.NearCapacity([]conflict.NearMiss{{ResourceID: "R", Period: march, Capacity: 10, Allocated: 9, Utilization: 0.9}})
	assert.Contains(t, out.String(), "R Mar 2026 at 90% (9 of 10)")

	p.Warnings([]model.Warning{{Kind: model.MissingReference, Subject: "t", Ref: "ghost", Message: "dependency not found"}})
	p.Error("boom")
	assert.Contains(t, errOut.String(), "ghost")
	assert.Contains(t, errOut.String(), "error: boom")
}
