package load

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/loadstar/internal/bucket"
	"github.com/papapumpkin/loadstar/internal/model"
)

// monthBuckets returns n monthly buckets starting with the month of from.
func monthBuckets(from model.Date, n int) bucket.Sequence {
	return bucket.Generate(from.Time(), nil, n, model.GranularityMonth)
}

func march(id string, status model.ProjectStatus, count float64) model.Project {
	return model.Project{
		ID:     id,
		Status: status,
		Start:  model.NewDate(2026, 3, 1),
		End:    model.NewDate(2026, 3, 31),
		Requirements: []model.ResourceRequirement{
			{ResourceID: "R", Count: count, Unit: model.UnitMonth},
		},
	}
}

func calculate(t *testing.T, projects []model.Project, resources []model.ResourcePoolItem, buckets bucket.Sequence) *Report {
	t.Helper()
	rep, err := Calculate(context.Background(), projects, resources, buckets, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	return rep
}

func TestCalculate_ActiveAndPlanningSplit(t *testing.T) {
	t.Parallel()

	buckets := monthBuckets(model.NewDate(2026, 2, 1), 3)
	rep := calculate(t,
		[]model.Project{march("P1", model.StatusActive, 3), march("P2", model.StatusPlanning, 4)},
		[]model.ResourcePoolItem{{ID: "R", Name: "Rig", TotalQuantity: 5}},
		buckets,
	)

	if len(rep.Loads) != 1 || len(rep.Loads[0].Buckets) != 3 {
		t.Fatalf("unexpected shape: %+v", rep.Loads)
	}
	feb, mar, apr := rep.Loads[0].Buckets[0], rep.Loads[0].Buckets[1], rep.Loads[0].Buckets[2]

	if feb.Total != 0 || apr.Total != 0 {
		t.Errorf("Feb/Apr totals = %v/%v, want 0", feb.Total, apr.Total)
	}
	if mar.ActiveDemand != 3 || mar.PlanningDemand != 4 || mar.Total != 7 {
		t.Errorf("March = active %v planning %v total %v, want 3/4/7", mar.ActiveDemand, mar.PlanningDemand, mar.Total)
	}
	if !mar.Overallocated() {
		t.Error("March should be overallocated")
	}
	if got := mar.Utilization; got != 1.4 {
		t.Errorf("Utilization = %v, want 1.4", got)
	}
	want := []Contribution{
		{ProjectID: "P1", Status: model.StatusActive, Allocation: 3},
		{ProjectID: "P2", Status: model.StatusPlanning, Allocation: 4},
	}
	if diff := cmp.Diff(want, mar.Contributions); diff != "" {
		t.Errorf("Contributions mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculate_SingleBucketProjectSumsToCount(t *testing.T) {
	t.Parallel()

	units := []struct {
		unit     model.DurationUnit
		duration float64
	}{
		{model.UnitDay, 10},
		{model.UnitMonth, 0.3},
		{model.UnitYear, 0.02},
		{model.UnitMonth, 0},
	}
	for _, u := range units {
		t.Run(fmt.Sprintf("%v_%v", u.unit, u.duration), func(t *testing.T) {
			t.Parallel()
			p := model.Project{
				ID:     "p",
				Status: model.StatusActive,
				Start:  model.NewDate(2026, 3, 5),
				End:    model.NewDate(2026, 3, 20),
				Requirements: []model.ResourceRequirement{
					{ResourceID: "R", Count: 2.5, Duration: u.duration, Unit: u.unit},
				},
			}
			rep := calculate(t, []model.Project{p},
				[]model.ResourcePoolItem{{ID: "R", TotalQuantity: 10}},
				monthBuckets(model.NewDate(2026, 1, 1), 6),
			)
			sum := 0.0
			for _, b := range rep.Loads[0].Buckets {
				sum += b.Total
			}
			if sum != 2.5 {
				t.Errorf("sum over buckets = %v, want 2.5", sum)
			}
		})
	}
}

func TestCalculate_NormalizedWindowSpansBuckets(t *testing.T) {
	t.Parallel()

	// Two months from Jan 15 is 60 days: Jan 15 through Mar 15.
	p := model.Project{
		ID:     "p",
		Status: model.StatusPlanning,
		Start:  model.NewDate(2026, 1, 15),
		End:    model.NewDate(2026, 1, 31),
		Requirements: []model.ResourceRequirement{
			{ResourceID: "R", Count: 1, Duration: 2, Unit: model.UnitMonth},
		},
	}
	rep := calculate(t, []model.Project{p},
		[]model.ResourcePoolItem{{ID: "R", TotalQuantity: 1}},
		monthBuckets(model.NewDate(2026, 1, 1), 4),
	)
	var got []float64
	for _, b := range rep.Loads[0].Buckets {
		got = append(got, b.PlanningDemand)
	}
	if diff := cmp.Diff([]float64{1, 1, 1, 0}, got); diff != "" {
		t.Errorf("planning demand mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculate_StatusFilter(t *testing.T) {
	t.Parallel()

	rep := calculate(t,
		[]model.Project{march("done", model.StatusCompleted, 9), march("paused", model.StatusOnHold, 9)},
		[]model.ResourcePoolItem{{ID: "R", TotalQuantity: 1}},
		monthBuckets(model.NewDate(2026, 3, 1), 1),
	)
	b := rep.Loads[0].Buckets[0]
	if b.Total != 0 || len(b.Contributions) != 0 {
		t.Errorf("completed/on-hold contributed: %+v", b)
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rep.Warnings)
	}
}

func TestCalculate_SoftErrors(t *testing.T) {
	t.Parallel()

	undated := march("undated", model.StatusActive, 2)
	undated.End = model.Date{}
	inverted := march("inverted", model.StatusActive, 2)
	inverted.Start, inverted.End = inverted.End, inverted.Start
	ghost := march("ghost", model.StatusActive, 2)
	ghost.Requirements[0].ResourceID = "nope"
	negative := march("negative", model.StatusActive, -4)

	rep := calculate(t,
		[]model.Project{undated, inverted, ghost, negative, march("ok", model.StatusActive, 1)},
		[]model.ResourcePoolItem{{ID: "R", TotalQuantity: -2}},
		monthBuckets(model.NewDate(2026, 3, 1), 1),
	)

	kinds := make(map[model.WarningKind]int)
	for _, w := range rep.Warnings {
		kinds[w.Kind]++
	}
	if kinds[model.InvalidDateRange] != 2 {
		t.Errorf("InvalidDateRange warnings = %d, want 2", kinds[model.InvalidDateRange])
	}
	if kinds[model.MissingReference] != 1 {
		t.Errorf("MissingReference warnings = %d, want 1", kinds[model.MissingReference])
	}
	if kinds[model.ClampedValue] != 2 {
		t.Errorf("ClampedValue warnings = %d, want 2", kinds[model.ClampedValue])
	}

	b := rep.Loads[0].Buckets[0]
	if b.Capacity != 0 {
		t.Errorf("Capacity = %v, want 0", b.Capacity)
	}
	if b.Total != 1 {
		t.Errorf("Total = %v, want 1 (only the valid project)", b.Total)
	}
	if !math.IsInf(b.Utilization, 1) {
		t.Errorf("Utilization = %v, want +Inf", b.Utilization)
	}
}

func TestCalculate_MergesRepeatedRequirements(t *testing.T) {
	t.Parallel()

	p := march("p", model.StatusActive, 1)
	p.Requirements = append(p.Requirements, model.ResourceRequirement{ResourceID: "R", Count: 2, Duration: 5, Unit: model.UnitDay})

	rep := calculate(t, []model.Project{p},
		[]model.ResourcePoolItem{{ID: "R", TotalQuantity: 10}},
		monthBuckets(model.NewDate(2026, 3, 1), 1),
	)
	c := rep.Loads[0].Buckets[0].Contributions
	if len(c) != 1 || c[0].Allocation != 3 {
		t.Errorf("Contributions = %+v, want single entry of 3", c)
	}
}

func TestCalculate_ConcurrencyIsDeterministic(t *testing.T) {
	t.Parallel()

	var resources []model.ResourcePoolItem
	var projects []model.Project
	for i := range 20 {
		id := fmt.Sprintf("r%02d", i)
		resources = append(resources, model.ResourcePoolItem{ID: id, TotalQuantity: float64(i % 4)})
		p := march(fmt.Sprintf("p%02d", i), model.ProjectStatus(i%2), float64(i%5))
		p.Requirements[0].ResourceID = id
		p.Requirements = append(p.Requirements, model.ResourceRequirement{ResourceID: "r00", Count: 1, Unit: model.UnitMonth})
		projects = append(projects, p)
	}
	buckets := monthBuckets(model.NewDate(2026, 1, 1), 6)

	want, err := Calculate(context.Background(), projects, resources, buckets, Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, workers := range []int{0, 3, 50} {
		got, err := Calculate(context.Background(), projects, resources, buckets, Options{Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got, cmp.AllowUnexported(model.Date{})); diff != "" {
			t.Fatalf("workers=%d mismatch (-want +got):\n%s", workers, diff)
		}
	}
}

func TestCalculate_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Calculate(ctx, nil, []model.ResourcePoolItem{{ID: "R"}}, monthBuckets(model.NewDate(2026, 1, 1), 1), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
