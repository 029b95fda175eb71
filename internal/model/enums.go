package model

import "fmt"

// TaskType distinguishes regular tasks from zero-width milestones and
// summary groups.
type TaskType int

// Task types.
const (
	TaskTypeTask TaskType = iota
	TaskTypeMilestone
	TaskTypeGroup
)

// String returns the canonical lowercase name.
func (t TaskType) String() string {
	switch t {
	case TaskTypeTask:
		return "task"
	case TaskTypeMilestone:
		return "milestone"
	case TaskTypeGroup:
		return "group"
	}
	return fmt.Sprintf("TaskType(%d)", int(t))
}

// ParseTaskType converts a snapshot string into a TaskType. The empty
// string maps to TaskTypeTask.
func ParseTaskType(s string) (TaskType, error) {
	switch s {
	case "", "task":
		return TaskTypeTask, nil
	case "milestone":
		return TaskTypeMilestone, nil
	case "group":
		return TaskTypeGroup, nil
	}
	return 0, fmt.Errorf("%w: task type %q", ErrUnknownValue, s)
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus int

// Project statuses.
const (
	StatusPlanning ProjectStatus = iota
	StatusActive
	StatusCompleted
	StatusOnHold
)

// String returns the canonical name used in snapshots.
func (s ProjectStatus) String() string {
	switch s {
	case StatusPlanning:
		return "planning"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusOnHold:
		return "on-hold"
	}
	return fmt.Sprintf("ProjectStatus(%d)", int(s))
}

// ParseProjectStatus converts a snapshot string into a ProjectStatus.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch s {
	case "planning":
		return StatusPlanning, nil
	case "active":
		return StatusActive, nil
	case "completed":
		return StatusCompleted, nil
	case "on-hold", "on_hold", "onhold":
		return StatusOnHold, nil
	}
	return 0, fmt.Errorf("%w: project status %q", ErrUnknownValue, s)
}

// DurationUnit is the unit a resource requirement's duration is stated in.
type DurationUnit int

// Duration units.
const (
	UnitDay DurationUnit = iota
	UnitMonth
	UnitYear
)

// String returns the canonical unit name.
func (u DurationUnit) String() string {
	switch u {
	case UnitDay:
		return "day"
	case UnitMonth:
		return "month"
	case UnitYear:
		return "year"
	}
	return fmt.Sprintf("DurationUnit(%d)", int(u))
}

// ParseDurationUnit accepts singular and plural unit names. The empty
// string maps to UnitMonth, the unit resource plans are usually written in.
func ParseDurationUnit(s string) (DurationUnit, error) {
	switch s {
	case "day", "days":
		return UnitDay, nil
	case "", "month", "months":
		return UnitMonth, nil
	case "year", "years":
		return UnitYear, nil
	}
	return 0, fmt.Errorf("%w: duration unit %q", ErrUnknownValue, s)
}

// Months converts d, expressed in u, to a month basis: days are divided
// by 30 and years multiplied by 12.
func (u DurationUnit) Months(d float64) float64 {
	switch u {
	case UnitDay:
		return d / DaysPerMonth
	case UnitMonth:
		return d
	case UnitYear:
		return d * 12
	}
	return d
}

// DaysPerMonth is the fixed month length used when normalizing durations.
const DaysPerMonth = 30

// Granularity is the width of a time bucket.
type Granularity int

// Bucket granularities.
const (
	GranularityDay Granularity = iota
	GranularityWeek
	GranularityMonth
	GranularityQuarter
)

// String returns the canonical granularity name.
func (g Granularity) String() string {
	switch g {
	case GranularityDay:
		return "day"
	case GranularityWeek:
		return "week"
	case GranularityMonth:
		return "month"
	case GranularityQuarter:
		return "quarter"
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// ParseGranularity converts a flag or config value into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "day":
		return GranularityDay, nil
	case "week":
		return GranularityWeek, nil
	case "", "month":
		return GranularityMonth, nil
	case "quarter":
		return GranularityQuarter, nil
	}
	return 0, fmt.Errorf("%w: granularity %q", ErrUnknownValue, s)
}
