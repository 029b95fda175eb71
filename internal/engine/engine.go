// Package engine is the entry point to loadstar's analyses. It wires the
// dependency graph, critical path, bucketing, load and conflict passes
// together over one portfolio snapshot, bounding each call with a timeout
// and reporting progress through zap and the telemetry stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papapumpkin/loadstar/internal/bucket"
	"github.com/papapumpkin/loadstar/internal/conflict"
	"github.com/papapumpkin/loadstar/internal/dag"
	"github.com/papapumpkin/loadstar/internal/load"
	"github.com/papapumpkin/loadstar/internal/model"
	"github.com/papapumpkin/loadstar/internal/telemetry"
)

// Defaults used when an Option does not override them.
const (
	DefaultBucketCount  = 6
	DefaultWorkers      = 4
	DefaultTimeout      = 30 * time.Second
	DefaultNearCapacity = 0.85
)

// Engine runs analyses. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	granularity  model.Granularity
	bucketCount  int
	workers      int
	timeout      time.Duration
	nearCapacity float64
	now          func() time.Time
	log          *zap.Logger
	events       *telemetry.Emitter
}

// Option configures an Engine.
type Option func(*Engine)

// WithGranularity sets the bucket width.
func WithGranularity(g model.Granularity) Option {
	return func(e *Engine) { e.granularity = g }
}

// WithBucketCount sets the minimum number of buckets generated.
func WithBucketCount(n int) Option {
	return func(e *Engine) { e.bucketCount = n }
}

// WithWorkers bounds the goroutines used per pass.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithTimeout bounds each analysis. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithNearCapacity sets the utilization at which a bucket is reported as
// near capacity.
func WithNearCapacity(threshold float64) Option {
	return func(e *Engine) { e.nearCapacity = threshold }
}

// WithClock overrides the clock used to place the first bucket.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTelemetry sets the event stream. A nil emitter records nothing.
func WithTelemetry(em *telemetry.Emitter) Option {
	return func(e *Engine) { e.events = em }
}

// New returns an Engine configured by opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		granularity:  model.GranularityMonth,
		bucketCount:  DefaultBucketCount,
		workers:      DefaultWorkers,
		timeout:      DefaultTimeout,
		nearCapacity: DefaultNearCapacity,
		now:          time.Now,
		log:          zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CriticalPath computes the CPM schedule of tasks.
func (e *Engine) CriticalPath(tasks []model.Task) (*dag.Schedule, []model.Warning, error) {
	s, warnings, err := dag.ComputeCriticalPath(tasks)
	if err != nil {
		e.rejected("", err)
		return nil, warnings, fmt.Errorf("critical path: %w", err)
	}
	e.log.Debug("critical path computed",
		zap.Int("tasks", len(tasks)),
		zap.Int("finish", s.Finish),
		zap.Strings("critical", s.CriticalPath),
	)
	return s, warnings, nil
}

// DetectCircularDependency reports whether making toID depend on fromID
// would close a cycle.
func (e *Engine) DetectCircularDependency(tasks []model.Task, fromID, toID string) bool {
	cyclic := dag.DetectCircularDependency(tasks, fromID, toID)
	if cyclic {
		e.log.Info("edge would create a cycle", zap.String("from", fromID), zap.String("to", toID))
	}
	return cyclic
}

// AssignLevels returns the layout level of each task.
func (e *Engine) AssignLevels(tasks []model.Task) (map[string]int, []model.Warning) {
	return dag.AssignLevels(tasks)
}

// GenerateTimeBuckets returns the bucket sequence covering projects.
func (e *Engine) GenerateTimeBuckets(projects []model.Project) bucket.Sequence {
	return bucket.Generate(e.now(), projects, e.bucketCount, e.granularity)
}

// CalculateResourceLoad computes per-resource load over buckets.
func (e *Engine) CalculateResourceLoad(ctx context.Context, projects []model.Project, resources []model.ResourcePoolItem, buckets bucket.Sequence) (*load.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return load.Calculate(ctx, projects, resources, buckets, load.Options{Workers: e.workers})
}

// DetectResourceConflicts finds overallocated buckets in loads. When sched
// is non-nil, conflicts touching critical work of tasks are weighted
// critical.
func (e *Engine) DetectResourceConflicts(loads []load.ResourceLoad, tasks []model.Task, sched *dag.Schedule) []conflict.Conflict {
	var critical conflict.CriticalWork
	if sched != nil {
		critical = conflict.CriticalWorkFrom(tasks, sched.CriticalSet())
	}
	return conflict.Detect(loads, critical)
}

// Report is the result of a full portfolio analysis.
type Report struct {
	RunID        string
	GeneratedAt  time.Time
	Graph        *dag.Analysis
	Buckets      bucket.Sequence
	Loads        []load.ResourceLoad
	Conflicts    []conflict.Conflict
	NearCapacity []conflict.NearMiss
	Warnings     []model.Warning
}

// Critical returns the number of conflicts with critical severity.
func (r *Report) Critical() int {
	n := 0
	for _, c := range r.Conflicts {
		if c.Severity == conflict.SeverityCritical {
			n++
		}
	}
	return n
}

// Analyze runs every pass over snap. Graph failures (self-references,
// duplicate ids, cycles) abort the analysis; soft problems are collected
// in Report.Warnings.
func (e *Engine) Analyze(ctx context.Context, snap model.Snapshot) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rep := &Report{RunID: uuid.NewString(), GeneratedAt: e.now().UTC()}
	log := e.log.With(zap.String("run", rep.RunID))
	start := time.Now()

	log.Info("analysis started",
		zap.Int("tasks", len(snap.Tasks)),
		zap.Int("projects", len(snap.Projects)),
		zap.Int("resources", len(snap.Resources)),
	)
	e.emit(telemetry.Event{Kind: telemetry.KindAnalysisStart, RunID: rep.RunID, Data: map[string]int{
		"tasks":     len(snap.Tasks),
		"projects":  len(snap.Projects),
		"resources": len(snap.Resources),
	}})

	graph, err := dag.Analyze(ctx, snap.Tasks, e.workers)
	if err != nil {
		e.rejected(rep.RunID, err)
		log.Error("graph analysis failed", zap.Error(err))
		return nil, fmt.Errorf("analyze graph: %w", err)
	}
	rep.Graph = graph
	rep.Warnings = append(rep.Warnings, graph.Warnings...)

	rep.Buckets = e.GenerateTimeBuckets(snap.Projects)
	loads, err := load.Calculate(ctx, snap.Projects, snap.Resources, rep.Buckets, load.Options{Workers: e.workers})
	if err != nil {
		log.Error("load calculation failed", zap.Error(err))
		return nil, fmt.Errorf("analyze load: %w", err)
	}
	rep.Loads = loads.Loads
	rep.Warnings = append(rep.Warnings, loads.Warnings...)

	rep.Conflicts = e.DetectResourceConflicts(rep.Loads, snap.Tasks, graph.Schedule)
	rep.NearCapacity = conflict.NearCapacity(rep.Loads, e.nearCapacity)

	for _, c := range rep.Conflicts {
		log.Warn("resource overallocated",
			zap.String("resource", c.ResourceID),
			zap.String("period", c.Period.Label),
			zap.Float64("capacity", c.Capacity),
			zap.Float64("allocated", c.Allocated),
			zap.Stringer("severity", c.Severity),
		)
		e.emit(telemetry.Event{Kind: telemetry.KindConflictFound, RunID: rep.RunID, Subject: c.ResourceID, Data: map[string]any{
			"period":         c.Period.Label,
			"capacity":       c.Capacity,
			"allocated":      c.Allocated,
			"overallocation": c.Overallocation,
			"severity":       c.Severity.String(),
		}})
	}
	for _, w := range rep.Warnings {
		log.Debug("snapshot warning", zap.Stringer("kind", w.Kind), zap.String("subject", w.Subject), zap.String("detail", w.Message))
		e.emit(telemetry.Event{Kind: telemetry.KindWarning, RunID: rep.RunID, Subject: w.Subject, Data: w.String()})
	}

	log.Info("analysis finished",
		zap.Int("finish", graph.Schedule.Finish),
		zap.Int("conflicts", len(rep.Conflicts)),
		zap.Int("critical_conflicts", rep.Critical()),
		zap.Int("warnings", len(rep.Warnings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	e.emit(telemetry.Event{Kind: telemetry.KindAnalysisDone, RunID: rep.RunID, Data: map[string]int{
		"finish":    graph.Schedule.Finish,
		"conflicts": len(rep.Conflicts),
		"warnings":  len(rep.Warnings),
	}})
	return rep, nil
}

func (e *Engine) rejected(runID string, err error) {
	var ce *dag.CycleError
	if !errors.As(err, &ce) {
		return
	}
	e.log.Warn("dependency cycle rejected", zap.String("task", ce.TaskID), zap.Strings("path", ce.Path))
	e.emit(telemetry.Event{Kind: telemetry.KindCycleRejected, RunID: runID, Subject: ce.TaskID, Data: ce.Path})
}

func (e *Engine) emit(evt telemetry.Event) {
	if err := e.events.Emit(evt); err != nil {
		e.log.Warn("telemetry emit failed", zap.Error(err))
	}
}
