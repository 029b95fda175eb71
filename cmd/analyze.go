package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/loadstar/internal/archive"
	"github.com/papapumpkin/loadstar/internal/conflict"
	"github.com/papapumpkin/loadstar/internal/engine"
	"github.com/papapumpkin/loadstar/internal/model"
)

// errConflicts is returned by analyze --strict when any conflict is found.
var errConflicts = errors.New("resource conflicts found")

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run every analysis over a portfolio snapshot",
	Long: `Schedules the task network, buckets the portfolio horizon, computes
resource load and lists capacity conflicts in one pass.

When an archive is configured the run and its conflicts are recorded.
With --strict the command exits non-zero if any conflict is found.`,
	Args: cobra.NoArgs,
	RunE: withApp(runAnalyze),
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "write the report as JSON to stdout")
	analyzeCmd.Flags().Bool("strict", false, "fail when resource conflicts are found")
	analyzeCmd.Flags().Int("width", 100, "maximum width of the network drawing")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string, a *app) error {
	res, path, err := a.loadSnapshot(cmd)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}

	rep, err := a.engine.Analyze(cmd.Context(), res.Snapshot)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}

	if err := a.archive(cmd.Context(), rep, path, res.Snapshot); err != nil {
		return err
	}

	if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
		if err := writeReportJSON(cmd.OutOrStdout(), rep); err != nil {
			return err
		}
	} else {
		width, _ := cmd.Flags().GetInt("width")
		printReport(a, rep, titles(res.Snapshot.Tasks), width)
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict && len(rep.Conflicts) > 0 {
		return fmt.Errorf("%w: %d (%d critical)", errConflicts, len(rep.Conflicts), rep.Critical())
	}
	return nil
}

func printReport(a *app, rep *engine.Report, names map[string]string, width int) {
	a.printer.Summary(rep)
	a.printer.Schedule(rep.Graph.Schedule, names)
	a.printer.Network(rep.Graph, names, width)
	a.printer.Heatmap(rep.Loads, a.cfg.NearCapacity)
	a.printer.Conflicts(rep.Conflicts)
	a.printer.NearCapacity(rep.NearCapacity)
	a.printer.Warnings(rep.Warnings)
}

// archive records rep when an archive path is configured.
func (a *app) archive(ctx context.Context, rep *engine.Report, path string, snap model.Snapshot) error {
	if a.cfg.ArchivePath == "" {
		return nil
	}
	store, err := archive.Open(ctx, a.cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Record(ctx, archiveRun(rep, path, snap))
	if err != nil {
		return err
	}
	a.log.Debug("run archived", zap.String("run", id), zap.String("archive", a.cfg.ArchivePath))
	return nil
}

// archiveRun converts a report into its archived form.
func archiveRun(rep *engine.Report, path string, snap model.Snapshot) archive.Run {
	run := archive.Run{
		ID:        rep.RunID,
		StartedAt: rep.GeneratedAt,
		Snapshot:  filepath.Base(path),
		Tasks:     len(snap.Tasks),
		Projects:  len(snap.Projects),
		Resources: len(snap.Resources),
		Warnings:  len(rep.Warnings),
	}
	if rep.Graph != nil && rep.Graph.Schedule != nil {
		run.Finish = rep.Graph.Schedule.Finish
		run.CriticalPath = rep.Graph.Schedule.CriticalPath
	}
	for _, c := range rep.Conflicts {
		run.Conflicts = append(run.Conflicts, archive.ConflictRecord{
			RunID:          rep.RunID,
			ResourceID:     c.ResourceID,
			ResourceName:   c.ResourceName,
			Period:         c.Period.Label,
			PeriodStart:    c.Period.Start.String(),
			Capacity:       c.Capacity,
			Allocated:      c.Allocated,
			Overallocation: c.Overallocation,
			Severity:       c.Severity.String(),
		})
	}
	return run
}

// reportJSON is the structured form of a report for --json output.
type reportJSON struct {
	RunID        string         `json:"run_id"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Finish       int            `json:"finish"`
	CriticalPath []string       `json:"critical_path"`
	Tasks        []taskJSON     `json:"tasks"`
	Conflicts    []conflictJSON `json:"conflicts"`
	NearCapacity []nearJSON     `json:"near_capacity"`
	Warnings     []string       `json:"warnings"`
}

type taskJSON struct {
	ID       string `json:"id"`
	ES       int    `json:"es"`
	EF       int    `json:"ef"`
	LS       int    `json:"ls"`
	LF       int    `json:"lf"`
	Slack    int    `json:"slack"`
	Critical bool   `json:"critical"`
}

type conflictJSON struct {
	Resource       string             `json:"resource"`
	Period         string             `json:"period"`
	Capacity       float64            `json:"capacity"`
	Allocated      float64            `json:"allocated"`
	Overallocation float64            `json:"overallocation"`
	Severity       string             `json:"severity"`
	Projects       map[string]float64 `json:"projects"`
}

type nearJSON struct {
	Resource    string  `json:"resource"`
	Period      string  `json:"period"`
	Utilization float64 `json:"utilization"`
}

func writeReportJSON(w io.Writer, rep *engine.Report) error {
	s := rep.Graph.Schedule
	out := reportJSON{
		RunID:        rep.RunID,
		GeneratedAt:  rep.GeneratedAt,
		Finish:       s.Finish,
		CriticalPath: nonNil(s.CriticalPath),
		Tasks:        make([]taskJSON, 0, len(s.Order)),
		Conflicts:    make([]conflictJSON, 0, len(rep.Conflicts)),
		NearCapacity: make([]nearJSON, 0, len(rep.NearCapacity)),
		Warnings:     make([]string, 0, len(rep.Warnings)),
	}
	for _, id := range s.Order {
		ts := s.Tasks[id]
		out.Tasks = append(out.Tasks, taskJSON{
			ID: id, ES: ts.ES, EF: ts.EF, LS: ts.LS, LF: ts.LF, Slack: ts.Slack, Critical: ts.Critical,
		})
	}
	for _, c := range rep.Conflicts {
		projects := make(map[string]float64, len(c.Projects))
		for _, pc := range c.Projects {
			projects[pc.ProjectID] = pc.Allocation
		}
		out.Conflicts = append(out.Conflicts, conflictJSON{
			Resource:       c.ResourceID,
			Period:         c.Period.Label,
			Capacity:       c.Capacity,
			Allocated:      c.Allocated,
			Overallocation: c.Overallocation,
			Severity:       c.Severity.String(),
			Projects:       projects,
		})
	}
	for _, m := range rep.NearCapacity {
		out.NearCapacity = append(out.NearCapacity, nearJSON{Resource: m.ResourceID, Period: m.Period.Label, Utilization: m.Utilization})
	}
	for _, warn := range rep.Warnings {
		out.Warnings = append(out.Warnings, warn.String())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// severityCounts tallies conflicts by severity name.
func severityCounts(cs []conflict.Conflict) map[string]int {
	counts := make(map[string]int, 2)
	for _, c := range cs {
		counts[c.Severity.String()]++
	}
	return counts
}
