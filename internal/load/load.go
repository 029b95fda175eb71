// Package load aggregates resource demand per time bucket. For every
// resource in the pool and every bucket it sums the requirements of active
// and planning projects whose requirement window overlaps the bucket,
// keeping per-project attribution so conflicts can be traced back.
package load

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/loadstar/internal/bucket"
	"github.com/papapumpkin/loadstar/internal/model"
)

// Contribution is one project's demand on a resource within a bucket.
type Contribution struct {
	ProjectID  string
	Status     model.ProjectStatus
	Allocation float64
}

// BucketLoad is the demand on one resource during one bucket.
type BucketLoad struct {
	Bucket         bucket.Bucket
	Capacity       float64
	ActiveDemand   float64
	PlanningDemand float64
	Total          float64
	// Utilization is Total / Capacity, or 0 when both are zero. A positive
	// demand against zero capacity reports +Inf.
	Utilization   float64
	Contributions []Contribution
}

// Overallocated reports whether demand exceeds capacity.
func (b BucketLoad) Overallocated() bool {
	return b.Total > b.Capacity
}

// ResourceLoad is the bucketed demand timeline for one resource.
type ResourceLoad struct {
	Resource model.ResourcePoolItem
	Buckets  []BucketLoad
}

// Report is the result of Calculate.
type Report struct {
	Loads    []ResourceLoad
	Warnings []model.Warning
}

// Options tunes Calculate.
type Options struct {
	// Workers bounds how many resources are processed concurrently.
	// Values below 1 mean no limit.
	Workers int
}

// demand is a validated requirement ready for bucketing.
type demand struct {
	projectID  string
	status     model.ProjectStatus
	count      float64
	start, end model.Date
}

// Calculate computes the load of every resource over buckets. Only active
// and planning projects contribute; completed and on-hold projects never
// do. Projects with unusable dates and requirements naming unknown
// resources are skipped with warnings; negative counts and capacities are
// clamped to zero. Resources are processed concurrently; each worker only
// reads the shared inputs and writes its own slot of the result.
func Calculate(ctx context.Context, projects []model.Project, resources []model.ResourcePoolItem, buckets bucket.Sequence, opts Options) (*Report, error) {
	var ws model.Warnings

	known := make(map[string]bool, len(resources))
	pool := make([]model.ResourcePoolItem, len(resources))
	for i, r := range resources {
		if q, clamped := model.ClampNonNegative(r.TotalQuantity); clamped {
			ws.Add(model.ClampedValue, r.ID, "", "capacity %g clamped to 0", r.TotalQuantity)
			r.TotalQuantity = q
		}
		pool[i] = r
		known[r.ID] = true
	}

	byResource := collectDemand(projects, known, &ws)

	loads := make([]ResourceLoad, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, r := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			loads[i] = resourceLoad(r, byResource[r.ID], buckets)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("calculate load: %w", err)
	}

	return &Report{Loads: loads, Warnings: ws.List()}, nil
}

// collectDemand validates projects and groups their requirements by
// resource, merging repeated requirements of one project on one resource.
func collectDemand(projects []model.Project, known map[string]bool, ws *model.Warnings) map[string][]demand {
	byResource := make(map[string][]demand)
	for _, p := range projects {
		switch p.Status {
		case model.StatusActive, model.StatusPlanning:
		case model.StatusCompleted, model.StatusOnHold:
			continue
		}
		if !p.HasValidDates() {
			ws.Add(model.InvalidDateRange, p.ID, "", "start %q end %q; excluded from load", p.Start, p.End)
			continue
		}
		for _, req := range p.Requirements {
			if !known[req.ResourceID] {
				ws.Add(model.MissingReference, p.ID, req.ResourceID, "resource not in pool; requirement skipped")
				continue
			}
			count, clamped := model.ClampNonNegative(req.Count)
			if clamped {
				ws.Add(model.ClampedValue, p.ID, req.ResourceID, "count %g clamped to 0", req.Count)
			}
			if req.Duration < 0 {
				ws.Add(model.ClampedValue, p.ID, req.ResourceID, "duration %g clamped to 0", req.Duration)
			}
			start, end, _ := req.Window(p)
			byResource[req.ResourceID] = append(byResource[req.ResourceID], demand{
				projectID: p.ID,
				status:    p.Status,
				count:     count,
				start:     start,
				end:       end,
			})
		}
	}
	return byResource
}

func resourceLoad(r model.ResourcePoolItem, demands []demand, buckets bucket.Sequence) ResourceLoad {
	rl := ResourceLoad{Resource: r, Buckets: make([]BucketLoad, 0, len(buckets))}
	for b := range buckets.All() {
		bl := BucketLoad{Bucket: b, Capacity: r.TotalQuantity}
		perProject := make(map[string]*Contribution)
		for _, d := range demands {
			if !b.Overlaps(d.start, d.end) {
				continue
			}
			switch d.status {
			case model.StatusActive:
				bl.ActiveDemand += d.count
			case model.StatusPlanning:
				bl.PlanningDemand += d.count
			case model.StatusCompleted, model.StatusOnHold:
				continue
			}
			c, ok := perProject[d.projectID]
			if !ok {
				c = &Contribution{ProjectID: d.projectID, Status: d.status}
				perProject[d.projectID] = c
			}
			c.Allocation += d.count
		}
		bl.Total = bl.ActiveDemand + bl.PlanningDemand
		bl.Utilization = utilization(bl.Total, bl.Capacity)
		bl.Contributions = sortedContributions(perProject)
		rl.Buckets = append(rl.Buckets, bl)
	}
	return rl
}

func utilization(total, capacity float64) float64 {
	if capacity == 0 {
		if total == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return total / capacity
}

func sortedContributions(m map[string]*Contribution) []Contribution {
	if len(m) == 0 {
		return nil
	}
	out := make([]Contribution, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProjectID < out[j].ProjectID
	})
	return out
}
