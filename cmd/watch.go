package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/loadstar/internal/snapshot"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the analysis whenever the snapshot file changes",
	Long: `Analyzes the snapshot once, then watches the file and analyzes it again
after every save until interrupted. A snapshot that fails to load or to
schedule is reported and the previous result stands.`,
	Args: cobra.NoArgs,
	RunE: withApp(runWatch),
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string, a *app) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return errNoSnapshot
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := snapshot.NewWatcher(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Stop()

	res, err := snapshot.Load(path)
	a.analyzeChange(ctx, snapshot.Change{Path: path, Result: res, Err: err})
	a.printer.Info(fmt.Sprintf("watching %s (Ctrl-C to stop)", path))

	return a.watchLoop(ctx, w.Changes)
}

// watchLoop analyzes every change until ctx ends or changes closes.
func (a *app) watchLoop(ctx context.Context, changes <-chan snapshot.Change) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			a.analyzeChange(ctx, change)
		}
	}
}

func (a *app) analyzeChange(ctx context.Context, change snapshot.Change) {
	if change.Err != nil {
		a.log.Warn("snapshot reload failed", zap.String("path", change.Path), zap.Error(change.Err))
		a.printer.Error(change.Err.Error())
		return
	}
	a.printer.Warnings(change.Result.Warnings)

	rep, err := a.engine.Analyze(ctx, change.Result.Snapshot)
	if err != nil {
		a.printer.Error(err.Error())
		return
	}
	if err := a.archive(ctx, rep, change.Path, change.Result.Snapshot); err != nil {
		a.log.Error("archiving run failed", zap.String("run", rep.RunID), zap.Error(err))
	}

	counts := severityCounts(rep.Conflicts)
	a.log.Debug("snapshot analyzed",
		zap.String("run", rep.RunID),
		zap.Int("critical", counts["critical"]),
		zap.Int("warning", counts["warning"]),
	)
	a.printer.Summary(rep)
	a.printer.Conflicts(rep.Conflicts)
	a.printer.NearCapacity(rep.NearCapacity)
	a.printer.Warnings(rep.Warnings)
}
