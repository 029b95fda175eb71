package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/loadstar/internal/conflict"
	"github.com/papapumpkin/loadstar/internal/dag"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List the time buckets covering the portfolio",
	Args:  cobra.NoArgs,
	RunE:  withApp(runBuckets),
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Show resource utilization per time bucket",
	Long: `Distributes each project's resource requirements over the time buckets and
prints a heatmap of utilization per resource. Buckets over capacity and
buckets near capacity are highlighted.`,
	Args: cobra.NoArgs,
	RunE: withApp(runLoad),
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List buckets where demand exceeds resource capacity",
	Long: `Lists every resource and time bucket whose allocated demand exceeds the
resource's quantity, most overallocated first. A conflict is critical when
active projects alone exceed capacity, or when a contributing project has
critical-path work in the bucket.

If the task network cannot be scheduled, severity falls back to project
status only.`,
	Args: cobra.NoArgs,
	RunE: withApp(runConflicts),
}

func init() {
	rootCmd.AddCommand(bucketsCmd, loadCmd, conflictsCmd)
}

func runBuckets(cmd *cobra.Command, _ []string, a *app) error {
	res, _, err := a.loadSnapshot(cmd)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	a.printer.Buckets(a.engine.GenerateTimeBuckets(res.Snapshot.Projects))
	return nil
}

func runLoad(cmd *cobra.Command, _ []string, a *app) error {
	res, _, err := a.loadSnapshot(cmd)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	snap := res.Snapshot

	buckets := a.engine.GenerateTimeBuckets(snap.Projects)
	report, err := a.engine.CalculateResourceLoad(cmd.Context(), snap.Projects, snap.Resources, buckets)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	a.printer.Warnings(report.Warnings)
	a.printer.Heatmap(report.Loads, a.cfg.NearCapacity)
	return nil
}

func runConflicts(cmd *cobra.Command, _ []string, a *app) error {
	res, _, err := a.loadSnapshot(cmd)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	snap := res.Snapshot

	var sched *dag.Schedule
	if len(snap.Tasks) > 0 {
		s, warnings, err := a.engine.CriticalPath(snap.Tasks)
		a.printer.Warnings(warnings)
		if err != nil {
			a.log.Warn("scheduling failed; severity uses project status only", zap.Error(err))
		} else {
			sched = s
		}
	}

	buckets := a.engine.GenerateTimeBuckets(snap.Projects)
	report, err := a.engine.CalculateResourceLoad(cmd.Context(), snap.Projects, snap.Resources, buckets)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	a.printer.Warnings(report.Warnings)

	a.printer.Conflicts(a.engine.DetectResourceConflicts(report.Loads, snap.Tasks, sched))
	a.printer.NearCapacity(conflict.NearCapacity(report.Loads, a.cfg.NearCapacity))
	return nil
}
