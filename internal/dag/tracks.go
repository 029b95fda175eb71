package dag

import "sort"

// Track is a connected component of the dependency graph. Tasks in
// different tracks share no dependency edges, so their CPM passes can run
// independently.
type Track struct {
	// ID is assigned after sorting, starting at 0.
	ID int

	// NodeIDs lists the track's tasks in topological order.
	NodeIDs []string

	// Duration is the sum of task durations in the track, used to put the
	// heaviest tracks first.
	Duration int
}

// ComputeTracks partitions the DAG into connected components using
// union-find, orders each component topologically, assigns Node.TrackID,
// and returns the tracks sorted by total duration descending, then size,
// then first node ID. Returns a *CycleError if the graph is cyclic.
func (d *DAG) ComputeTracks() ([]Track, error) {
	if len(d.nodes) == 0 {
		return nil, nil
	}

	topoOrder, err := d.TopologicalSort()
	if err != nil {
		return nil, err
	}
	topoPos := make(map[string]int, len(topoOrder))
	for i, id := range topoOrder {
		topoPos[id] = i
	}

	uf := NewUnionFind()
	for id := range d.nodes {
		uf.Add(id)
	}
	for from, deps := range d.adjacency {
		for to := range deps {
			uf.Union(from, to)
		}
	}

	components := uf.Components()
	tracks := make([]Track, 0, len(components))
	for _, members := range components {
		sort.Slice(members, func(i, j int) bool {
			return topoPos[members[i]] < topoPos[members[j]]
		})
		total := 0
		for _, id := range members {
			total += d.nodes[id].Duration
		}
		tracks = append(tracks, Track{NodeIDs: members, Duration: total})
	}

	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Duration != tracks[j].Duration {
			return tracks[i].Duration > tracks[j].Duration
		}
		if len(tracks[i].NodeIDs) != len(tracks[j].NodeIDs) {
			return len(tracks[i].NodeIDs) > len(tracks[j].NodeIDs)
		}
		return tracks[i].NodeIDs[0] < tracks[j].NodeIDs[0]
	})

	for i := range tracks {
		tracks[i].ID = i
		for _, id := range tracks[i].NodeIDs {
			d.nodes[id].TrackID = i
		}
	}
	return tracks, nil
}
