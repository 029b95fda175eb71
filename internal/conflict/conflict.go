// Package conflict turns bucketed resource loads into overallocation
// records. A conflict exists for a resource in a bucket exactly when the
// summed demand exceeds the resource's capacity.
package conflict

import (
	"fmt"
	"sort"

	"github.com/papapumpkin/loadstar/internal/bucket"
	"github.com/papapumpkin/loadstar/internal/load"
	"github.com/papapumpkin/loadstar/internal/model"
)

// Severity ranks a conflict.
type Severity int

// Severities, lowest first.
const (
	SeverityWarning Severity = iota
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity converts a stored severity name back into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	}
	return 0, fmt.Errorf("%w: severity %q", model.ErrUnknownValue, s)
}

// Conflict is one overallocated (resource, bucket) pair.
type Conflict struct {
	ResourceID        string
	ResourceName      string
	Period            bucket.Bucket
	Capacity          float64
	Allocated         float64
	ActiveAllocated   float64
	PlanningAllocated float64
	// Overallocation is Allocated - Capacity and always positive.
	Overallocation float64
	Projects       []load.Contribution
	Severity       Severity
}

// Span is an inclusive date range.
type Span struct {
	Start, End model.Date
}

// CriticalWork maps a project id to the date ranges of its critical-path
// tasks. A nil CriticalWork weights nothing.
type CriticalWork map[string][]Span

// CriticalWorkFrom collects the dated critical tasks in tasks, keyed by
// their project. Tasks without a project or usable dates are ignored.
func CriticalWorkFrom(tasks []model.Task, critical map[string]bool) CriticalWork {
	cw := make(CriticalWork)
	for _, t := range tasks {
		if !critical[t.ID] || t.ProjectID == "" || !t.HasValidDates() {
			continue
		}
		cw[t.ProjectID] = append(cw[t.ProjectID], Span{Start: t.Start, End: t.End})
	}
	return cw
}

// overlaps reports whether project has critical work during b.
func (cw CriticalWork) overlaps(projectID string, b bucket.Bucket) bool {
	for _, s := range cw[projectID] {
		if b.Overlaps(s.Start, s.End) {
			return true
		}
	}
	return false
}

// Detect returns one Conflict per overallocated bucket across loads,
// sorted by overallocation descending, then resource id, then period
// start. A conflict is critical when active demand alone exceeds capacity
// or when a contributing project has critical work inside the period.
func Detect(loads []load.ResourceLoad, critical CriticalWork) []Conflict {
	var out []Conflict
	for _, rl := range loads {
		for _, bl := range rl.Buckets {
			if !bl.Overallocated() {
				continue
			}
			c := Conflict{
				ResourceID:        rl.Resource.ID,
				ResourceName:      rl.Resource.Name,
				Period:            bl.Bucket,
				Capacity:          bl.Capacity,
				Allocated:         bl.Total,
				ActiveAllocated:   bl.ActiveDemand,
				PlanningAllocated: bl.PlanningDemand,
				Overallocation:    bl.Total - bl.Capacity,
				Projects:          append([]load.Contribution(nil), bl.Contributions...),
			}
			c.Severity = severity(bl, critical)
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Overallocation != b.Overallocation {
			return a.Overallocation > b.Overallocation
		}
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		return a.Period.Start.Before(b.Period.Start)
	})
	return out
}

func severity(bl load.BucketLoad, critical CriticalWork) Severity {
	if bl.ActiveDemand > bl.Capacity {
		return SeverityCritical
	}
	for _, c := range bl.Contributions {
		if critical.overlaps(c.ProjectID, bl.Bucket) {
			return SeverityCritical
		}
	}
	return SeverityWarning
}

// NearMiss is a bucket running close to, but not over, capacity.
type NearMiss struct {
	ResourceID  string
	Period      bucket.Bucket
	Capacity    float64
	Allocated   float64
	Utilization float64
}

// NearCapacity returns buckets whose utilization is at least threshold
// without exceeding capacity, in resource then period order. Buckets with
// no capacity and no demand are never reported.
func NearCapacity(loads []load.ResourceLoad, threshold float64) []NearMiss {
	var out []NearMiss
	for _, rl := range loads {
		for _, bl := range rl.Buckets {
			if bl.Overallocated() || bl.Total == 0 || bl.Utilization < threshold {
				continue
			}
			out = append(out, NearMiss{
				ResourceID:  rl.Resource.ID,
				Period:      bl.Bucket,
				Capacity:    bl.Capacity,
				Allocated:   bl.Total,
				Utilization: bl.Utilization,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ResourceID != out[j].ResourceID {
			return out[i].ResourceID < out[j].ResourceID
		}
		return out[i].Period.Start.Before(out[j].Period.Start)
	})
	return out
}
