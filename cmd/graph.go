package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/loadstar/internal/dag"
)

// reportStrategies maps --markdown values onto report views.
var reportStrategies = map[string]dag.ReportStrategy{
	"plan":     dag.SchedulePlanStrategy{},
	"critical": dag.CriticalPathStrategy{},
	"tracks":   dag.TrackStrategy{},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compute the critical path and slack of every task",
	Long: `Runs the critical path method over the task network: earliest and latest
start and finish for every task, its slack, and the chain of zero-slack
tasks that fixes the portfolio's finish day.`,
	Args: cobra.NoArgs,
	RunE: withApp(runSchedule),
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Assign each task its layout level",
	Long: `Prints each task's level: 0 for tasks with no dependencies, otherwise one
more than the highest level among its dependencies. With --network the task
network is drawn level by level.`,
	Args: cobra.NoArgs,
	RunE: withApp(runLevels),
}

var checkEdgeCmd = &cobra.Command{
	Use:   "check-edge FROM TO",
	Short: "Check whether TO may depend on FROM without creating a cycle",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runCheckEdge),
}

func init() {
	scheduleCmd.Flags().String("markdown", "", "write a Markdown report instead: plan, critical or tracks")
	levelsCmd.Flags().Bool("network", false, "draw the task network by level")
	levelsCmd.Flags().Int("width", 100, "maximum width of the network drawing")
	rootCmd.AddCommand(scheduleCmd, levelsCmd, checkEdgeCmd)
}

func runSchedule(cmd *cobra.Command, _ []string, a *app) error {
	res, _, err := a.loadSnapshot(cmd)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	tasks := res.Snapshot.Tasks

	if view, _ := cmd.Flags().GetString("markdown"); view != "" {
		strategy, ok := reportStrategies[view]
		if !ok {
			return fmt.Errorf("unknown report %q (want plan, critical or tracks)", view)
		}
		analysis, err := dag.Analyze(cmd.Context(), tasks, a.cfg.Workers)
		if err != nil {
			a.printer.Error(err.Error())
			return fmt.Errorf("schedule: %w", err)
		}
		a.printer.Warnings(analysis.Warnings)
		fmt.Fprintln(cmd.OutOrStdout(), analysis.Report(strategy))
		return nil
	}

	sched, warnings, err := a.engine.CriticalPath(tasks)
	a.printer.Warnings(warnings)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	a.printer.Schedule(sched, titles(tasks))
	return nil
}

func runLevels(cmd *cobra.Command, _ []string, a *app) error {
	res, _, err := a.loadSnapshot(cmd)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	tasks := res.Snapshot.Tasks

	if network, _ := cmd.Flags().GetBool("network"); network {
		width, _ := cmd.Flags().GetInt("width")
		analysis, err := dag.Analyze(cmd.Context(), tasks, a.cfg.Workers)
		if err != nil {
			a.printer.Error(err.Error())
			return fmt.Errorf("levels: %w", err)
		}
		a.printer.Warnings(analysis.Warnings)
		a.printer.Network(analysis, titles(tasks), width)
		return nil
	}

	levels, warnings := a.engine.AssignLevels(tasks)
	a.printer.Warnings(warnings)
	a.printer.Levels(levels)
	return nil
}

func runCheckEdge(cmd *cobra.Command, args []string, a *app) error {
	res, _, err := a.loadSnapshot(cmd)
	if err != nil {
		a.printer.Error(err.Error())
		return err
	}
	from, to := args[0], args[1]

	cyclic := a.engine.DetectCircularDependency(res.Snapshot.Tasks, from, to)
	a.printer.EdgeCheck(from, to, cyclic)
	if cyclic {
		return fmt.Errorf("edge %s → %s: %w", from, to, dag.ErrCycle)
	}
	return nil
}
