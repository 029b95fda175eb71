package model

import "math"

// Window returns the inclusive date range during which the requirement
// holds its resources for project p. The duration is normalized to a month
// basis and converted to days at DaysPerMonth, counted from the project
// start. A zero duration holds the resources for the whole project.
// ok is false when the project dates are unusable.
func (r ResourceRequirement) Window(p Project) (start, end Date, ok bool) {
	if !p.HasValidDates() {
		return Date{}, Date{}, false
	}
	dur, _ := ClampNonNegative(r.Duration)
	if dur == 0 {
		return p.Start, p.End, true
	}
	days := int(math.Ceil(r.Unit.Months(dur) * DaysPerMonth))
	if days < 1 {
		days = 1
	}
	return p.Start, p.Start.AddDays(days - 1), true
}

// Span returns the earliest start and latest end across the project and
// all of its requirement windows.
func (p Project) Span() (start, end Date, ok bool) {
	if !p.HasValidDates() {
		return Date{}, Date{}, false
	}
	start, end = p.Start, p.End
	for _, r := range p.Requirements {
		if _, e, ok := r.Window(p); ok {
			end = MaxDate(end, e)
		}
	}
	return start, end, true
}
