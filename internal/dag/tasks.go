package dag

import (
	"fmt"

	"github.com/papapumpkin/loadstar/internal/model"
)

// Build constructs a validated graph from tasks. Each task becomes a node
// and each declared dependency an edge. Unknown dependency IDs are skipped
// with a MissingReference warning; a task that depends on itself fails
// with ErrSelfEdge and duplicated task IDs with ErrDuplicateNode. If the
// dependencies form a cycle, Build returns a *CycleError.
func Build(tasks []model.Task) (*DAG, []model.Warning, error) {
	d, warnings, err := build(tasks, false)
	if err != nil {
		return nil, warnings, err
	}
	if _, err := d.TopologicalSort(); err != nil {
		return nil, warnings, err
	}
	return d, warnings, nil
}

// build loads tasks without rejecting cycles, leaving that to whichever
// pass runs next. When lenient is set, self-references are dropped with a
// warning instead of failing; layout uses this so a corrupted snapshot
// still renders.
func build(tasks []model.Task, lenient bool) (*DAG, []model.Warning, error) {
	var ws model.Warnings
	d := New()

	for _, t := range tasks {
		if t.Type != model.TaskTypeMilestone && !t.HasValidDates() {
			ws.Add(model.InvalidDateRange, t.ID, "", "start %q end %q; treating duration as 0", t.Start, t.End)
		}
		if err := d.AddNode(t.ID, t.Duration()); err != nil {
			return nil, ws.List(), err
		}
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				if lenient {
					ws.Add(model.MissingReference, t.ID, dep, "self-reference ignored")
					continue
				}
				return nil, ws.List(), fmt.Errorf("task %s: %w", t.ID, ErrSelfEdge)
			}
			if d.Node(dep) == nil {
				ws.Add(model.MissingReference, t.ID, dep, "dependency not found; edge skipped")
				continue
			}
			if err := d.addEdgeUnchecked(t.ID, dep); err != nil {
				return nil, ws.List(), fmt.Errorf("task %s: %w", t.ID, err)
			}
		}
	}
	return d, ws.List(), nil
}

// ComputeCriticalPath schedules tasks with the critical path method and
// returns the schedule together with any soft warnings. Task calendar
// dates only contribute durations; the schedule itself is the theoretical
// earliest one implied by precedence. A cyclic input fails with a
// *CycleError naming one task on the cycle.
func ComputeCriticalPath(tasks []model.Task) (*Schedule, []model.Warning, error) {
	d, warnings, err := build(tasks, false)
	if err != nil {
		return nil, warnings, err
	}
	s, err := d.Schedule()
	if err != nil {
		return nil, warnings, err
	}
	return s, warnings, nil
}

// DetectCircularDependency reports whether making toID depend on fromID
// would create a cycle among tasks. A task depending on itself always
// would. Unknown IDs cannot close a cycle and report false.
//
// Dependency IDs are resolved through an index at traversal time and the
// search stops at the first hit, so only the part of the graph reachable
// from fromID is visited.
func DetectCircularDependency(tasks []model.Task, fromID, toID string) bool {
	if fromID == toID {
		return true
	}
	byID := make(map[string]*model.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}
	if byID[fromID] == nil || byID[toID] == nil {
		return false
	}

	// A cycle appears iff fromID already depends, transitively, on toID.
	visited := map[string]bool{fromID: true}
	queue := []string{fromID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		t := byID[cur]
		if t == nil {
			continue
		}
		for _, dep := range t.Dependencies {
			if dep == toID {
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return false
}

// AssignLevels returns the layout level of every task. It never fails:
// self-references and cycles degrade to bounded levels with warnings.
func AssignLevels(tasks []model.Task) (map[string]int, []model.Warning) {
	d, warnings, err := build(tasks, true)
	if err != nil {
		// Only duplicate task IDs reach here. Lay out the first occurrence.
		levels, more := AssignLevels(dedupe(tasks))
		warnings = append(warnings, model.Warning{
			Kind:    model.MissingReference,
			Message: err.Error(),
		})
		return levels, append(warnings, more...)
	}
	return d.Levels(), warnings
}

func dedupe(tasks []model.Task) []model.Task {
	seen := make(map[string]bool, len(tasks))
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}
