package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/loadstar/internal/archive"
)

// errNoArchive is returned by history when no archive is configured.
var errNoArchive = errors.New("no archive configured (use --archive or archive_path)")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived analysis runs",
	Long: `Lists runs recorded in the archive, newest first. With --resource the
archived conflicts of one resource are listed instead. With --prune N all
but the newest N runs are deleted first.`,
	Args: cobra.NoArgs,
	RunE: withApp(runHistory),
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to list")
	historyCmd.Flags().String("resource", "", "list archived conflicts of this resource")
	historyCmd.Flags().Int("prune", -1, "keep only the newest N runs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string, a *app) error {
	if a.cfg.ArchivePath == "" {
		return errNoArchive
	}
	ctx := cmd.Context()

	store, err := archive.Open(ctx, a.cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if keep, _ := cmd.Flags().GetInt("prune"); keep >= 0 {
		n, err := store.Prune(ctx, keep)
		if err != nil {
			return err
		}
		a.log.Info("archive pruned", zap.Int64("removed", n), zap.Int("kept", keep))
		a.printer.Info(fmt.Sprintf("pruned %d run(s)", n))
	}

	if resource, _ := cmd.Flags().GetString("resource"); resource != "" {
		recs, err := store.ResourceHistory(ctx, resource)
		if err != nil {
			return err
		}
		a.printer.ResourceHistory(resource, recs)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	a.printer.History(runs, time.Now())
	return nil
}
