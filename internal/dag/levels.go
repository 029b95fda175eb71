package dag

import "sort"

// Wave groups tasks that share a layout level. Wave n holds every task
// whose longest dependency chain has n predecessors.
type Wave struct {
	Number  int
	NodeIDs []string
}

type visitState uint8

const (
	unvisited visitState = iota
	onStack
	visited
)

// frame is one entry of the explicit DFS stack used by Levels.
type frame struct {
	id   string
	deps []string
	next int
}

// Levels assigns every task the length of the longest dependency chain
// ending at it: 0 for tasks with no dependencies, otherwise one more than
// its deepest dependency. The traversal uses an explicit stack and
// memoizes each task once, so diamond-shaped graphs stay linear. A
// dependency that is still on the stack closes a cycle and is ignored,
// which keeps levels bounded on corrupted input.
func (d *DAG) Levels() map[string]int {
	levels := make(map[string]int, len(d.nodes))
	state := make(map[string]visitState, len(d.nodes))

	for _, root := range d.Nodes() {
		if state[root] != unvisited {
			continue
		}
		state[root] = onStack
		stack := []*frame{{id: root, deps: d.Dependencies(root)}}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next < len(top.deps) {
				dep := top.deps[top.next]
				top.next++
				if state[dep] == unvisited {
					state[dep] = onStack
					stack = append(stack, &frame{id: dep, deps: d.Dependencies(dep)})
				}
				continue
			}

			level := 0
			for _, dep := range top.deps {
				if state[dep] == visited && levels[dep]+1 > level {
					level = levels[dep] + 1
				}
			}
			levels[top.id] = level
			state[top.id] = visited
			stack = stack[:len(stack)-1]
		}
	}
	return levels
}

// ComputeWaves groups tasks by level, in ascending level order with IDs
// sorted inside each wave. Returns nil for an empty graph.
func (d *DAG) ComputeWaves() []Wave {
	if len(d.nodes) == 0 {
		return nil
	}
	levels := d.Levels()

	byLevel := make(map[int][]string)
	maxLevel := 0
	for id, lvl := range levels {
		byLevel[lvl] = append(byLevel[lvl], id)
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	waves := make([]Wave, 0, maxLevel+1)
	for lvl := 0; lvl <= maxLevel; lvl++ {
		ids := byLevel[lvl]
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		waves = append(waves, Wave{Number: lvl, NodeIDs: ids})
	}
	return waves
}
