// Package dag provides the task dependency graph used for critical-path
// scheduling. It supports cycle pre-checks on edit, topological sorting,
// CPM forward/backward passes, layout levels, and partitioning into
// independent tracks.
package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle is returned when the graph contains a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// CycleError reports a dependency cycle found while ordering the graph.
// TaskID names one task on the cycle; Path lists the cycle in dependency
// order, starting and ending with TaskID.
type CycleError struct {
	TaskID string
	Path   []string
}

// Error names the task and, when known, the cycle through it.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%v: task %s", ErrCycle, e.TaskID)
	}
	return fmt.Sprintf("%v: task %s (%s)", ErrCycle, e.TaskID, strings.Join(e.Path, " → "))
}

// Unwrap lets errors.Is match ErrCycle.
func (e *CycleError) Unwrap() error { return ErrCycle }

// Node is a task in the graph.
type Node struct {
	ID       string
	Duration int // whole days; zero for milestones

	// TrackID is assigned by ComputeTracks.
	TrackID int
}

// DAG is a directed graph of tasks. Edges point from a task to its
// dependencies: if B depends on A there is an edge from B to A.
type DAG struct {
	nodes map[string]*Node
	// adjacency maps nodeID → set of dependency IDs (predecessors).
	adjacency map[string]map[string]bool
	// reverse maps nodeID → set of dependent IDs (successors).
	reverse map[string]map[string]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string]map[string]bool),
		reverse:   make(map[string]map[string]bool),
	}
}

// AddNode adds a node with the given ID and duration. Negative durations
// are stored as zero. Returns ErrDuplicateNode if the ID already exists.
func (d *DAG) AddNode(id string, duration int) error {
	if _, exists := d.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	if duration < 0 {
		duration = 0
	}
	d.nodes[id] = &Node{ID: id, Duration: duration}
	d.adjacency[id] = make(map[string]bool)
	d.reverse[id] = make(map[string]bool)
	return nil
}

// AddEdge records that from depends on to. Both nodes must already exist.
// Returns an error if either node is missing, the edge would be a
// self-loop, or the edge would introduce a cycle.
func (d *DAG) AddEdge(from, to string) error {
	if err := d.checkEdge(from, to); err != nil {
		return err
	}
	if d.adjacency[from][to] {
		return nil
	}
	if d.hasPath(to, from) {
		return fmt.Errorf("%w: edge %s → %s would create a cycle", ErrCycle, from, to)
	}
	d.link(from, to)
	return nil
}

// addEdgeUnchecked records the edge without the reachability check. It is
// used when loading snapshots that may already be corrupted, so that the
// scheduler can report the cycle instead of the loader.
func (d *DAG) addEdgeUnchecked(from, to string) error {
	if err := d.checkEdge(from, to); err != nil {
		return err
	}
	d.link(from, to)
	return nil
}

func (d *DAG) checkEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	return nil
}

func (d *DAG) link(from, to string) {
	d.adjacency[from][to] = true
	d.reverse[to][from] = true
}

// RemoveEdge deletes the dependency of from on to. Removing an edge that
// does not exist is a no-op.
func (d *DAG) RemoveEdge(from, to string) {
	delete(d.adjacency[from], to)
	delete(d.reverse[to], from)
}

// WouldCycle reports whether recording that from depends on to would
// create a cycle, without modifying the graph. The search only visits the
// part of the graph reachable from to.
func (d *DAG) WouldCycle(from, to string) bool {
	if from == to {
		return true
	}
	return d.hasPath(to, from)
}

// Node returns the node with the given ID, or nil if not found.
func (d *DAG) Node(id string) *Node {
	return d.nodes[id]
}

// Nodes returns all node IDs in the DAG, sorted alphabetically.
func (d *DAG) Nodes() []string {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes in the DAG.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// Dependencies returns the direct dependencies of id, sorted.
func (d *DAG) Dependencies(id string) []string {
	return sortedKeys(d.adjacency[id])
}

// Dependents returns the tasks that directly depend on id, sorted.
func (d *DAG) Dependents(id string) []string {
	return sortedKeys(d.reverse[id])
}

// TopologicalSort returns node IDs in a valid topological order
// (dependencies come before dependents), breaking ties alphabetically.
// Returns a *CycleError if the graph contains a cycle.
func (d *DAG) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		inDegree[id] = len(d.adjacency[id])
	}

	queue := d.zeroDegreeNodes(inDegree)
	sort.Strings(queue)

	sorted := make([]string, 0, len(d.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		var freed []string
		for dependent := range d.reverse[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(sorted) != len(d.nodes) {
		return nil, d.cycleError(inDegree)
	}
	return sorted, nil
}

// cycleError walks backwards through nodes Kahn's algorithm could not
// order. Every such node has at least one unordered dependency, so the
// walk must revisit a node, and the revisited stretch is a cycle.
func (d *DAG) cycleError(inDegree map[string]int) *CycleError {
	var start string
	for _, id := range d.Nodes() {
		if inDegree[id] > 0 {
			start = id
			break
		}
	}

	seenAt := make(map[string]int)
	var walk []string
	cur := start
	for {
		if i, ok := seenAt[cur]; ok {
			cycle := append([]string(nil), walk[i:]...)
			// walk follows dependencies; reverse into dependency order.
			for l, r := 0, len(cycle)-1; l < r; l, r = l+1, r-1 {
				cycle[l], cycle[r] = cycle[r], cycle[l]
			}
			cycle = append(cycle, cycle[0])
			return &CycleError{TaskID: cycle[0], Path: cycle}
		}
		seenAt[cur] = len(walk)
		walk = append(walk, cur)

		next := ""
		for _, dep := range d.Dependencies(cur) {
			if inDegree[dep] > 0 {
				next = dep
				break
			}
		}
		if next == "" {
			return &CycleError{TaskID: start}
		}
		cur = next
	}
}

// hasPath reports whether there is a directed path from src to dst
// through the dependency graph (forward edges).
func (d *DAG) hasPath(src, dst string) bool {
	if src == dst {
		return false
	}
	visited := make(map[string]bool)
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.adjacency[cur] {
			if dep == dst {
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

// zeroDegreeNodes returns IDs from the in-degree map that have zero value.
func (d *DAG) zeroDegreeNodes(inDegree map[string]int) []string {
	var result []string
	for id, deg := range inDegree {
		if deg == 0 {
			result = append(result, id)
		}
	}
	return result
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
