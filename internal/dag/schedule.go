package dag

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// TaskSchedule holds the CPM timing of a single task, in whole days
// relative to the project start.
type TaskSchedule struct {
	TaskID   string
	Duration int
	ES, EF   int // earliest start/finish
	LS, LF   int // latest start/finish
	Slack    int
	Critical bool
}

// Schedule is the result of a critical path analysis.
type Schedule struct {
	Tasks map[string]*TaskSchedule

	// Order is the topological order the passes ran in.
	Order []string

	// CriticalPath lists every zero-slack task in topological order. It is
	// a set rather than a single chain: branches that tie are all included.
	CriticalPath []string

	// Finish is the earliest possible project finish.
	Finish int
}

// Slack returns the slack of every task keyed by task ID.
func (s *Schedule) Slack() map[string]int {
	out := make(map[string]int, len(s.Tasks))
	for id, ts := range s.Tasks {
		out[id] = ts.Slack
	}
	return out
}

// IsCritical reports whether id is on the critical path.
func (s *Schedule) IsCritical(id string) bool {
	ts, ok := s.Tasks[id]
	return ok && ts.Critical
}

// CriticalSet returns the critical tasks as a set.
func (s *Schedule) CriticalSet() map[string]bool {
	set := make(map[string]bool, len(s.CriticalPath))
	for _, id := range s.CriticalPath {
		set[id] = true
	}
	return set
}

// Schedule runs the critical path method over the whole graph: a forward
// pass computing earliest times, a backward pass from the project finish
// computing latest times, and slack as LS − ES. Returns a *CycleError if
// the graph cannot be ordered.
func (d *DAG) Schedule() (*Schedule, error) {
	order, err := d.TopologicalSort()
	if err != nil {
		return nil, err
	}

	tasks := d.forwardPass(order)
	finish := d.finish(tasks)
	d.backwardPass(order, tasks, finish)

	return d.assemble(order, tasks, finish), nil
}

// ScheduleConcurrent produces the same result as Schedule, running the
// forward and backward passes of each independent track on its own
// goroutine. At most workers tracks run at once; workers < 1 means no
// limit. Each goroutine reads the shared graph and writes only its own
// slot, so no locking is needed.
func (d *DAG) ScheduleConcurrent(ctx context.Context, workers int) (*Schedule, error) {
	tracks, err := d.ComputeTracks()
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return d.Schedule()
	}

	slots := make([]map[string]*TaskSchedule, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, tr := range tracks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = d.forwardPass(tr.NodeIDs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}

	// The project finish spans all tracks, so slack in a short track is
	// measured against the longest one.
	finish := 0
	for _, slot := range slots {
		if f := d.finish(slot); f > finish {
			finish = f
		}
	}

	g, gctx = errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, tr := range tracks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d.backwardPass(tr.NodeIDs, slots[i], finish)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backward pass: %w", err)
	}

	order, err := d.TopologicalSort()
	if err != nil {
		return nil, err
	}
	merged := make(map[string]*TaskSchedule, d.Len())
	for _, slot := range slots {
		for id, ts := range slot {
			merged[id] = ts
		}
	}
	return d.assemble(order, merged, finish), nil
}

// forwardPass computes ES and EF for the nodes in order, which must be
// topological and closed under dependencies.
func (d *DAG) forwardPass(order []string) map[string]*TaskSchedule {
	tasks := make(map[string]*TaskSchedule, len(order))
	for _, id := range order {
		es := 0
		for dep := range d.adjacency[id] {
			if ef := tasks[dep].EF; ef > es {
				es = ef
			}
		}
		dur := d.nodes[id].Duration
		tasks[id] = &TaskSchedule{
			TaskID:   id,
			Duration: dur,
			ES:       es,
			EF:       es + dur,
		}
	}
	return tasks
}

// finish returns the latest EF among sink tasks (those nothing depends on).
func (d *DAG) finish(tasks map[string]*TaskSchedule) int {
	finish := 0
	for id, ts := range tasks {
		if len(d.reverse[id]) == 0 && ts.EF > finish {
			finish = ts.EF
		}
	}
	return finish
}

// backwardPass computes LS, LF, slack, and criticality in reverse order.
func (d *DAG) backwardPass(order []string, tasks map[string]*TaskSchedule, finish int) {
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := tasks[id]

		lf := finish
		if len(d.reverse[id]) > 0 {
			first := true
			for succ := range d.reverse[id] {
				if ls := tasks[succ].LS; first || ls < lf {
					lf = ls
					first = false
				}
			}
		}
		ts.LF = lf
		ts.LS = lf - ts.Duration
		ts.Slack = ts.LS - ts.ES
		ts.Critical = ts.Slack == 0
	}
}

func (d *DAG) assemble(order []string, tasks map[string]*TaskSchedule, finish int) *Schedule {
	s := &Schedule{
		Tasks:  tasks,
		Order:  order,
		Finish: finish,
	}
	for _, id := range order {
		if tasks[id].Critical {
			s.CriticalPath = append(s.CriticalPath, id)
		}
	}
	return s
}
