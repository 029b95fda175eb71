// Package bucket partitions a planning horizon into consecutive calendar
// periods (days, ISO weeks, months or quarters) for resource load analysis.
package bucket

import (
	"fmt"
	"iter"
	"time"

	"github.com/papapumpkin/loadstar/internal/model"
)

// Bucket is one period of the horizon. Start and End are inclusive.
type Bucket struct {
	Label string
	Start model.Date
	End   model.Date
}

// Contains reports whether d falls inside the bucket.
func (b Bucket) Contains(d model.Date) bool {
	return !d.Before(b.Start) && !d.After(b.End)
}

// Overlaps reports whether the inclusive range [start, end] shares a day
// with the bucket.
func (b Bucket) Overlaps(start, end model.Date) bool {
	return model.Overlaps(start, end, b.Start, b.End)
}

// Sequence is an ordered run of consecutive, non-overlapping buckets.
type Sequence []Bucket

// All yields the buckets in order.
func (s Sequence) All() iter.Seq[Bucket] {
	return func(yield func(Bucket) bool) {
		for _, b := range s {
			if !yield(b) {
				return
			}
		}
	}
}

// Index returns the position of the bucket containing d, or -1.
func (s Sequence) Index(d model.Date) int {
	for i, b := range s {
		if b.Contains(d) {
			return i
		}
	}
	return -1
}

// Generate returns count buckets of the given granularity starting with
// the period that contains now. The horizon is widened, never narrowed,
// so that every project with usable dates, including its resource
// requirement windows, falls inside it. count below 1 is treated as 1.
func Generate(now time.Time, projects []model.Project, count int, g model.Granularity) Sequence {
	if count < 1 {
		count = 1
	}

	first := PeriodStart(model.DateOf(now), g)
	last := first
	for range count - 1 {
		last = Next(last, g)
	}

	for _, p := range projects {
		start, end, ok := p.Span()
		if !ok {
			continue
		}
		if ps := PeriodStart(start, g); ps.Before(first) {
			first = ps
		}
		if pe := PeriodStart(end, g); pe.After(last) {
			last = pe
		}
	}

	var seq Sequence
	for cur := first; !cur.After(last); cur = Next(cur, g) {
		next := Next(cur, g)
		seq = append(seq, Bucket{
			Label: Label(cur, g),
			Start: cur,
			End:   next.AddDays(-1),
		})
	}
	return seq
}

// PeriodStart returns the first day of the period of granularity g that
// contains d. Weeks start on Monday.
func PeriodStart(d model.Date, g model.Granularity) model.Date {
	switch g {
	case model.GranularityDay:
		return d
	case model.GranularityWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDays(-offset)
	case model.GranularityMonth:
		return model.NewDate(d.Year(), d.Month(), 1)
	case model.GranularityQuarter:
		q := (int(d.Month()) - 1) / 3
		return model.NewDate(d.Year(), time.Month(q*3+1), 1)
	}
	return d
}

// Next returns the start of the period following the one starting at d.
func Next(d model.Date, g model.Granularity) model.Date {
	switch g {
	case model.GranularityDay:
		return d.AddDays(1)
	case model.GranularityWeek:
		return d.AddDays(7)
	case model.GranularityMonth:
		return d.AddMonths(1)
	case model.GranularityQuarter:
		return d.AddMonths(3)
	}
	return d.AddDays(1)
}

// Label formats the period starting at d: "2026-03-05", "2026-W10",
// "Mar 2026" or "Q1 2026".
func Label(d model.Date, g model.Granularity) string {
	switch g {
	case model.GranularityDay:
		return d.String()
	case model.GranularityWeek:
		year, week := d.Time().ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case model.GranularityMonth:
		return d.Time().Format("Jan 2006")
	case model.GranularityQuarter:
		return fmt.Sprintf("Q%d %d", (int(d.Month())-1)/3+1, d.Year())
	}
	return d.String()
}
