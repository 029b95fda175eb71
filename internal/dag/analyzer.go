package dag

import (
	"context"

	"github.com/papapumpkin/loadstar/internal/model"
)

// Analysis bundles every graph-derived result for one task snapshot:
// the CPM schedule, layout levels and waves, and independent tracks.
type Analysis struct {
	Graph    *DAG
	Schedule *Schedule
	Levels   map[string]int
	Waves    []Wave
	Tracks   []Track
	Warnings []model.Warning
}

// Analyze builds the graph for tasks and runs all passes in one call.
// Scheduling is spread across tracks with at most workers goroutines.
// Hard failures (self-references, duplicate IDs, cycles) abort the
// analysis; soft problems are returned in Analysis.Warnings.
func Analyze(ctx context.Context, tasks []model.Task, workers int) (*Analysis, error) {
	d, warnings, err := build(tasks, false)
	if err != nil {
		return nil, err
	}
	sched, err := d.ScheduleConcurrent(ctx, workers)
	if err != nil {
		return nil, err
	}
	tracks, err := d.ComputeTracks()
	if err != nil {
		return nil, err
	}
	return &Analysis{
		Graph:    d,
		Schedule: sched,
		Levels:   d.Levels(),
		Waves:    d.ComputeWaves(),
		Tracks:   tracks,
		Warnings: warnings,
	}, nil
}

// Report renders the analysis with the given strategy.
func (a *Analysis) Report(strategy ReportStrategy) string {
	return strategy.Render(a)
}
