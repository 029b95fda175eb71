package dag

import (
	"context"
	"strings"
	"testing"

	"github.com/papapumpkin/loadstar/internal/model"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	tasks := append(scenarioTasks(), model.Task{ID: "E", Name: "Side quest", Start: day(0), End: day(4)})
	a, err := Analyze(context.Background(), tasks, 2)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Schedule.Finish != 9 {
		t.Errorf("Finish = %d, want 9", a.Schedule.Finish)
	}
	if len(a.Tracks) != 2 {
		t.Errorf("got %d tracks, want 2", len(a.Tracks))
	}
	if a.Levels["D"] != 2 || a.Levels["E"] != 0 {
		t.Errorf("Levels = %v", a.Levels)
	}
	if len(a.Waves) != 3 {
		t.Errorf("got %d waves, want 3", len(a.Waves))
	}
	if got := a.Schedule.Tasks["E"].Slack; got != 5 {
		t.Errorf("slack(E) = %d, want 5", got)
	}
}

func TestAnalyze_Cycle(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}
	if _, err := Analyze(context.Background(), tasks, 1); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestReportStrategies(t *testing.T) {
	t.Parallel()

	a, err := Analyze(context.Background(), scenarioTasks(), 1)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	t.Run("schedule plan", func(t *testing.T) {
		t.Parallel()
		report := a.Report(SchedulePlanStrategy{})
		for _, want := range []string{"# Schedule", "Project finish: day 9", "slack=3", "depends on: B, C", "**critical**"} {
			if !strings.Contains(report, want) {
				t.Errorf("report missing %q:\n%s", want, report)
			}
		}
		if strings.Index(report, " A ") > strings.Index(report, " D ") {
			t.Error("A should be listed before D")
		}
	})

	t.Run("critical path", func(t *testing.T) {
		t.Parallel()
		report := a.Report(CriticalPathStrategy{})
		if !strings.Contains(report, "3 of 4 tasks have zero slack") {
			t.Errorf("unexpected report:\n%s", report)
		}
		if strings.Contains(report, "C (") {
			t.Error("C is not critical and should not be listed")
		}
	})

	t.Run("tracks", func(t *testing.T) {
		t.Parallel()
		report := a.Report(TrackStrategy{})
		if !strings.Contains(report, "Total tracks: 1") || !strings.Contains(report, "D (level 2, slack 0)") {
			t.Errorf("unexpected report:\n%s", report)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		empty, err := Analyze(context.Background(), nil, 1)
		if err != nil {
			t.Fatalf("Analyze(nil): %v", err)
		}
		if got := empty.Report(SchedulePlanStrategy{}); !strings.Contains(got, "No tasks") {
			t.Errorf("empty report = %q", got)
		}
		if got := empty.Report(TrackStrategy{}); !strings.Contains(got, "No tracks") {
			t.Errorf("empty report = %q", got)
		}
	})
}
