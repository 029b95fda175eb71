package dag

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
)

// nodeSpec describes a node for buildDAG: (id, duration, deps...).
type nodeSpec struct {
	id       string
	duration int
	deps     []string
}

func buildDAG(t *testing.T, specs []nodeSpec) *DAG {
	t.Helper()
	d := New()
	for _, s := range specs {
		if err := d.AddNode(s.id, s.duration); err != nil {
			t.Fatalf("AddNode(%q): %v", s.id, err)
		}
	}
	for _, s := range specs {
		for _, dep := range s.deps {
			if err := d.AddEdge(s.id, dep); err != nil {
				t.Fatalf("AddEdge(%q, %q): %v", s.id, dep, err)
			}
		}
	}
	return d
}

// validTopologicalOrder checks that every dependency appears before
// its dependent in the ordering.
func validTopologicalOrder(d *DAG, order []string) bool {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for id, deps := range d.adjacency {
		for dep := range deps {
			if pos[dep] >= pos[id] {
				return false
			}
		}
	}
	return true
}

// randomDAG builds an acyclic graph where node i may depend on any node
// with a lower index.
func randomDAG(t *testing.T, seed uint64, n int) *DAG {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed*7+1))
	d := New()
	for i := range n {
		if err := d.AddNode(fmt.Sprintf("t%02d", i), r.IntN(10)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i < n; i++ {
		for j := range i {
			if r.IntN(4) == 0 {
				if err := d.AddEdge(fmt.Sprintf("t%02d", i), fmt.Sprintf("t%02d", j)); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	return d
}

func TestNew(t *testing.T) {
	t.Parallel()
	d := New()
	if d.Len() != 0 {
		t.Errorf("new DAG has %d nodes, want 0", d.Len())
	}
	if nodes := d.Nodes(); len(nodes) != 0 {
		t.Errorf("new DAG Nodes() = %v, want empty", nodes)
	}
}

func TestAddNode(t *testing.T) {
	t.Parallel()

	t.Run("basic add", func(t *testing.T) {
		t.Parallel()
		d := New()
		if err := d.AddNode("a", 3); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		n := d.Node("a")
		if n == nil {
			t.Fatal("Node(a) returned nil")
		}
		if n.Duration != 3 {
			t.Errorf("Duration = %d, want 3", n.Duration)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		d := New()
		_ = d.AddNode("a", 1)
		err := d.AddNode("a", 2)
		if !errors.Is(err, ErrDuplicateNode) {
			t.Errorf("got %v, want ErrDuplicateNode", err)
		}
	})

	t.Run("negative duration clamps", func(t *testing.T) {
		t.Parallel()
		d := New()
		_ = d.AddNode("a", -4)
		if got := d.Node("a").Duration; got != 0 {
			t.Errorf("Duration = %d, want 0", got)
		}
	})
}

func TestAddEdge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{"valid", "b", "a", nil},
		{"self edge", "a", "a", ErrSelfEdge},
		{"missing from", "zz", "a", ErrNodeNotFound},
		{"missing to", "a", "zz", ErrNodeNotFound},
		{"closes cycle", "a", "c", ErrCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := buildDAG(t, []nodeSpec{
				{id: "a"},
				{id: "b"},
				{id: "c", deps: []string{"b"}},
			})
			_ = d.AddEdge("b", "a")
			err := d.AddEdge(tt.from, tt.to)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("AddEdge: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddEdge(%q, %q) = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}

	t.Run("duplicate edge is a no-op", func(t *testing.T) {
		t.Parallel()
		d := buildDAG(t, []nodeSpec{{id: "a"}, {id: "b", deps: []string{"a"}}})
		if err := d.AddEdge("b", "a"); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
		if deps := d.Dependencies("b"); len(deps) != 1 {
			t.Errorf("Dependencies(b) = %v, want [a]", deps)
		}
	})
}

func TestWouldCycle(t *testing.T) {
	t.Parallel()

	// a ← b ← c, and d stands alone.
	d := buildDAG(t, []nodeSpec{
		{id: "a"},
		{id: "b", deps: []string{"a"}},
		{id: "c", deps: []string{"b"}},
		{id: "d"},
	})

	tests := []struct {
		from, to string
		want     bool
	}{
		{"a", "c", true},  // a depending on c closes a→c→b→a
		{"a", "b", true},  // direct back edge
		{"c", "a", false}, // redundant but acyclic
		{"d", "c", false},
		{"c", "d", false},
		{"b", "b", true},
	}
	for _, tt := range tests {
		if got := d.WouldCycle(tt.from, tt.to); got != tt.want {
			t.Errorf("WouldCycle(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if d.Len() != 4 || len(d.Dependencies("a")) != 0 {
		t.Error("WouldCycle must not modify the graph")
	}
}

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		specs []nodeSpec
		want  []string
	}{
		{
			name: "linear",
			specs: []nodeSpec{
				{id: "c", deps: []string{"b"}},
				{id: "b", deps: []string{"a"}},
				{id: "a"},
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "diamond",
			specs: []nodeSpec{
				{id: "a"},
				{id: "b", deps: []string{"a"}},
				{id: "c", deps: []string{"a"}},
				{id: "d", deps: []string{"b", "c"}},
			},
			want: []string{"a", "b", "c", "d"},
		},
		{
			name:  "wide roots sorted alphabetically",
			specs: []nodeSpec{{id: "z"}, {id: "m"}, {id: "a"}},
			want:  []string{"a", "m", "z"},
		},
		{
			name:  "empty",
			specs: nil,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := buildDAG(t, tt.specs)
			order, err := d.TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort: %v", err)
			}
			if strings.Join(order, ",") != strings.Join(tt.want, ",") {
				t.Errorf("order = %v, want %v", order, tt.want)
			}
			if !validTopologicalOrder(d, order) {
				t.Errorf("order %v violates dependencies", order)
			}
		})
	}
}

func TestTopologicalSort_CycleError(t *testing.T) {
	t.Parallel()

	// x depends on the a→b→c→a cycle; nothing ever frees it.
	d := buildDAG(t, []nodeSpec{{id: "a"}, {id: "b"}, {id: "c"}, {id: "root"}, {id: "x"}})
	for _, e := range [][2]string{{"a", "c"}, {"b", "a"}, {"c", "b"}, {"x", "a"}, {"a", "root"}} {
		if err := d.addEdgeUnchecked(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}

	_, err := d.TopologicalSort()
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %T, want *CycleError", err)
	}
	onCycle := map[string]bool{"a": true, "b": true, "c": true}
	if !onCycle[ce.TaskID] {
		t.Errorf("TaskID = %q, want one of a, b, c", ce.TaskID)
	}
	if len(ce.Path) != 4 || ce.Path[0] != ce.Path[len(ce.Path)-1] {
		t.Errorf("Path = %v, want closed 3-cycle", ce.Path)
	}
	if !strings.Contains(err.Error(), "→") {
		t.Errorf("message %q should show the cycle path", err.Error())
	}
}

func TestRemoveEdge(t *testing.T) {
	t.Parallel()

	d := buildDAG(t, []nodeSpec{{id: "a"}, {id: "b", deps: []string{"a"}}})
	d.RemoveEdge("b", "a")
	if deps := d.Dependencies("b"); len(deps) != 0 {
		t.Errorf("Dependencies(b) = %v after RemoveEdge", deps)
	}
	if deps := d.Dependents("a"); len(deps) != 0 {
		t.Errorf("Dependents(a) = %v after RemoveEdge", deps)
	}
	d.RemoveEdge("b", "missing")
}

func TestSafeEdgesNeverIntroduceCycles(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 20; seed++ {
		d := randomDAG(t, seed, 15)
		r := rand.New(rand.NewPCG(seed, 99))
		ids := d.Nodes()
		for range 30 {
			from, to := ids[r.IntN(len(ids))], ids[r.IntN(len(ids))]
			if d.WouldCycle(from, to) {
				continue
			}
			if err := d.AddEdge(from, to); err != nil {
				t.Fatalf("seed %d: AddEdge(%s, %s) after WouldCycle=false: %v", seed, from, to, err)
			}
			if _, err := d.Schedule(); err != nil {
				t.Fatalf("seed %d: Schedule after safe edge %s→%s: %v", seed, from, to, err)
			}
		}
	}
}

func TestEdgeRemovalKeepsAcyclic(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 20; seed++ {
		d := randomDAG(t, seed, 12)
		for _, id := range d.Nodes() {
			for _, dep := range d.Dependencies(id) {
				d.RemoveEdge(id, dep)
				if _, err := d.TopologicalSort(); err != nil {
					t.Fatalf("seed %d: removing %s→%s introduced %v", seed, id, dep, err)
				}
			}
		}
	}
}

func TestLargeChainHasNoRecursionLimit(t *testing.T) {
	t.Parallel()

	const n = 20000
	d := New()
	prev := ""
	for i := range n {
		id := fmt.Sprintf("n%05d", i)
		_ = d.AddNode(id, 1)
		if prev != "" {
			if err := d.addEdgeUnchecked(id, prev); err != nil {
				t.Fatal(err)
			}
		}
		prev = id
	}
	levels := d.Levels()
	if got := levels[prev]; got != n-1 {
		t.Errorf("level of last node = %d, want %d", got, n-1)
	}
	s, err := d.Schedule()
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if s.Finish != n {
		t.Errorf("Finish = %d, want %d", s.Finish, n)
	}
}
