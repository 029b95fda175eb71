// Package model defines the read-only portfolio entities shared by the
// scheduling and resource planning engines: tasks, projects, and the
// resource pool. Values are snapshots; nothing in the engine mutates them.
package model

// Task is a unit of scheduled work. Dependencies lists predecessor task IDs
// that must finish before this task can start.
type Task struct {
	ID           string
	Name         string
	Start        Date
	End          Date
	Dependencies []string
	Type         TaskType

	// ProjectID optionally links the task to a project in the same
	// snapshot. Conflict severity uses it to weight critical work.
	ProjectID string
	Progress  int
}

// Duration returns the task length in whole days. Milestones, and tasks
// whose dates are missing or inverted, have zero duration.
func (t Task) Duration() int {
	switch t.Type {
	case TaskTypeMilestone:
		return 0
	case TaskTypeTask, TaskTypeGroup:
	}
	if !t.HasValidDates() {
		return 0
	}
	return t.End.DaysSince(t.Start)
}

// HasValidDates reports whether both dates are set and end is not before start.
func (t Task) HasValidDates() bool {
	return validRange(t.Start, t.End)
}

// ResourceRequirement states how many units of a resource a project needs
// and for how long, measured in Unit from the project start.
type ResourceRequirement struct {
	ResourceID string
	Count      float64
	Duration   float64
	Unit       DurationUnit
}

// Project groups tasks and declares the resources it consumes.
type Project struct {
	ID           string
	Name         string
	Status       ProjectStatus
	Start        Date
	End          Date
	Requirements []ResourceRequirement
}

// HasValidDates reports whether both dates are set and end is not before start.
func (p Project) HasValidDates() bool {
	return validRange(p.Start, p.End)
}

// ResourcePoolItem is a shared resource with a fixed capacity.
type ResourcePoolItem struct {
	ID            string
	Name          string
	TotalQuantity float64
	Members       []string
}

func validRange(start, end Date) bool {
	return !start.IsZero() && !end.IsZero() && !end.Before(start)
}

// ClampNonNegative returns v, or 0 when v is negative. The boolean reports
// whether clamping happened.
func ClampNonNegative(v float64) (float64, bool) {
	if v < 0 {
		return 0, true
	}
	return v, false
}

// Snapshot is an immutable view of the portfolio handed to the engine.
type Snapshot struct {
	Tasks     []Task
	Projects  []Project
	Resources []ResourcePoolItem
}
