package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/papapumpkin/loadstar/internal/conflict"
	"github.com/papapumpkin/loadstar/internal/dag"
	"github.com/papapumpkin/loadstar/internal/model"
	"github.com/papapumpkin/loadstar/internal/telemetry"
)

func d(month time.Month, day int) model.Date {
	return model.NewDate(2026, month, day)
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
}

// portfolio is the ABCD schedule over the March resource scenario: P1
// owns the critical chain A-B-D and P2 owns the slack task C.
func portfolio() model.Snapshot {
	req := func(count float64) []model.ResourceRequirement {
		return []model.ResourceRequirement{{ResourceID: "R", Count: count, Unit: model.UnitMonth}}
	}
	return model.Snapshot{
		Tasks: []model.Task{
			{ID: "A", Start: d(3, 1), End: d(3, 4), ProjectID: "P1"},
			{ID: "B", Start: d(3, 4), End: d(3, 9), Dependencies: []string{"A"}, ProjectID: "P1"},
			{ID: "C", Start: d(3, 4), End: d(3, 6), Dependencies: []string{"A"}, ProjectID: "P2"},
			{ID: "D", Start: d(3, 9), End: d(3, 10), Dependencies: []string{"B", "C"}, ProjectID: "P1"},
		},
		Projects: []model.Project{
			{ID: "P1", Status: model.StatusActive, Start: d(3, 1), End: d(3, 31), Requirements: req(3)},
			{ID: "P2", Status: model.StatusPlanning, Start: d(3, 1), End: d(3, 31), Requirements: req(4)},
		},
		Resources: []model.ResourcePoolItem{{ID: "R", Name: "Crane crew", TotalQuantity: 5}},
	}
}

func newEngine(opts ...Option) *Engine {
	base := []Option{WithClock(fixedClock), WithBucketCount(3), WithWorkers(2)}
	return New(append(base, opts...)...)
}

func TestAnalyze_Portfolio(t *testing.T) {
	t.Parallel()

	rep, err := newEngine().Analyze(context.Background(), portfolio())
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 9, rep.Graph.Schedule.Finish)
	assert.Equal(t, []string{"A", "B", "D"}, rep.Graph.Schedule.CriticalPath)
	assert.Equal(t, 3, rep.Graph.Schedule.Slack()["C"])

	require.Len(t, rep.Buckets, 3)
	assert.Equal(t, "Mar 2026", rep.Buckets[0].Label)

	require.Len(t, rep.Conflicts, 1)
	c := rep.Conflicts[0]
	assert.Equal(t, "R", c.ResourceID)
	assert.Equal(t, "Mar 2026", c.Period.Label)
	assert.Equal(t, 7.0, c.Allocated)
	assert.Equal(t, 2.0, c.Overallocation)
	// Active demand fits, but P1's critical chain runs in March.
	assert.Equal(t, conflict.SeverityCritical, c.Severity)
	assert.Equal(t, 1, rep.Critical())
	assert.Empty(t, rep.Warnings)
}

func TestAnalyze_LogsAndEmits(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	path := filepath.Join(t.TempDir(), "events.jsonl")
	em, err := telemetry.NewEmitter(path)
	require.NoError(t, err)

	snap := portfolio()
	snap.Tasks = append(snap.Tasks, model.Task{ID: "E", Dependencies: []string{"ghost"}, Type: model.TaskTypeMilestone})

	rep, err := newEngine(WithLogger(zap.New(core)), WithTelemetry(em)).Analyze(context.Background(), snap)
	require.NoError(t, err)
	require.NoError(t, em.Close())

	assert.Equal(t, 1, logs.FilterMessage("resource overallocated").Len())
	assert.Equal(t, 1, logs.FilterMessage("analysis finished").Len())
	assert.Equal(t, 1, logs.FilterMessage("snapshot warning").Len())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	events, err := telemetry.Read(f)
	require.NoError(t, err)

	var kinds []string
	for _, e := range events {
		assert.Equal(t, rep.RunID, e.RunID)
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{
		telemetry.KindAnalysisStart,
		telemetry.KindConflictFound,
		telemetry.KindWarning,
		telemetry.KindAnalysisDone,
	}, kinds)
}

func TestAnalyze_CycleRejected(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	snap := model.Snapshot{Tasks: []model.Task{
		{ID: "a", Dependencies: []string{"b"}, Type: model.TaskTypeMilestone},
		{ID: "b", Dependencies: []string{"a"}, Type: model.TaskTypeMilestone},
	}}

	_, err := newEngine(WithLogger(zap.New(core))).Analyze(context.Background(), snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, dag.ErrCycle)
	var ce *dag.CycleError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, []string{"a", "b"}, ce.TaskID)
	assert.Equal(t, 1, logs.FilterMessage("dependency cycle rejected").Len())
}

func TestAnalyze_SelfReference(t *testing.T) {
	t.Parallel()

	snap := model.Snapshot{Tasks: []model.Task{{ID: "a", Dependencies: []string{"a"}}}}
	_, err := newEngine().Analyze(context.Background(), snap)
	assert.ErrorIs(t, err, dag.ErrSelfEdge)
}

func TestAnalyze_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine().Analyze(ctx, portfolio())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCriticalPath(t *testing.T) {
	t.Parallel()

	s, warnings, err := newEngine().CriticalPath(portfolio().Tasks)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, s.IsCritical("D"))
	assert.False(t, s.IsCritical("C"))

	_, _, err = newEngine().CriticalPath([]model.Task{
		{ID: "x", Dependencies: []string{"y"}},
		{ID: "y", Dependencies: []string{"x"}},
	})
	assert.ErrorIs(t, err, dag.ErrCycle)
}

func TestDetectCircularDependency(t *testing.T) {
	t.Parallel()

	e := newEngine()
	tasks := portfolio().Tasks
	assert.True(t, e.DetectCircularDependency(tasks, "D", "A"))
	assert.True(t, e.DetectCircularDependency(tasks, "B", "B"))
	assert.False(t, e.DetectCircularDependency(tasks, "A", "D"))
	assert.False(t, e.DetectCircularDependency(tasks, "C", "B"))
}

func TestAssignLevels(t *testing.T) {
	t.Parallel()

	levels, warnings := newEngine().AssignLevels(portfolio().Tasks)
	assert.Empty(t, warnings)
	assert.Equal(t, map[string]int{"A": 0, "B": 1, "C": 1, "D": 2}, levels)
}

func TestGenerateTimeBuckets(t *testing.T) {
	t.Parallel()

	seq := newEngine(WithGranularity(model.GranularityQuarter), WithBucketCount(1)).GenerateTimeBuckets(nil)
	require.Len(t, seq, 1)
	assert.Equal(t, "Q1 2026", seq[0].Label)

	late := []model.Project{{ID: "p", Status: model.StatusActive, Start: d(9, 1), End: d(11, 15)}}
	seq = newEngine(WithGranularity(model.GranularityQuarter), WithBucketCount(1)).GenerateTimeBuckets(late)
	require.Len(t, seq, 4)
	assert.Equal(t, "Q4 2026", seq[3].Label)
}

func TestCalculateResourceLoadAndConflicts(t *testing.T) {
	t.Parallel()

	e := newEngine()
	snap := portfolio()
	buckets := e.GenerateTimeBuckets(snap.Projects)

	rep, err := e.CalculateResourceLoad(context.Background(), snap.Projects, snap.Resources, buckets)
	require.NoError(t, err)
	require.Len(t, rep.Loads, 1)
	assert.Equal(t, 7.0, rep.Loads[0].Buckets[0].Total)

	// Without a schedule nothing is weighted by critical work.
	conflicts := e.DetectResourceConflicts(rep.Loads, snap.Tasks, nil)
	require.Len(t, conflicts, 1)
	assert.Equal(t, conflict.SeverityWarning, conflicts[0].Severity)

	sched, _, err := e.CriticalPath(snap.Tasks)
	require.NoError(t, err)
	conflicts = e.DetectResourceConflicts(rep.Loads, snap.Tasks, sched)
	assert.Equal(t, conflict.SeverityCritical, conflicts[0].Severity)
}

func TestNearCapacityReported(t *testing.T) {
	t.Parallel()

	snap := portfolio()
	snap.Resources[0].TotalQuantity = 8
	rep, err := newEngine(WithNearCapacity(0.8)).Analyze(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, rep.Conflicts)
	require.Len(t, rep.NearCapacity, 1)
	assert.InDelta(t, 0.875, rep.NearCapacity[0].Utilization, 1e-9)
}
