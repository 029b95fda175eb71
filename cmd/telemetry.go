package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/loadstar/internal/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry [FILE]",
	Short: "View the JSONL analysis event stream",
	Long: `Reads and formats a telemetry file written by earlier analyses.

Without FILE, the configured telemetry_path is read. Events can be narrowed
to one kind or one run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runTelemetry),
}

func init() {
	telemetryCmd.Flags().String("kind", "", "only show events of this kind")
	telemetryCmd.Flags().String("run", "", "only show events of this run")
	rootCmd.AddCommand(telemetryCmd)
}

func runTelemetry(cmd *cobra.Command, args []string, a *app) error {
	path := a.cfg.TelemetryPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return errors.New("no telemetry file given")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	defer f.Close()

	events, err := telemetry.Read(f)
	kind, _ := cmd.Flags().GetString("kind")
	run, _ := cmd.Flags().GetString("run")
	for _, evt := range events {
		if (kind != "" && evt.Kind != kind) || (run != "" && evt.RunID != run) {
			continue
		}
		printEvent(cmd.OutOrStdout(), evt)
	}
	// Print what decoded before reporting a malformed tail.
	return err
}

// printEvent formats one event as a single human-readable line.
func printEvent(w io.Writer, evt telemetry.Event) {
	line := fmt.Sprintf("%s  %-15s", evt.Timestamp.Format("2006-01-02 15:04:05"), evt.Kind)
	if evt.RunID != "" {
		line += "  " + shortRun(evt.RunID)
	}
	if evt.Subject != "" {
		line += "  " + evt.Subject
	}
	if evt.Data != nil {
		if data, err := json.Marshal(evt.Data); err == nil {
			line += "  " + string(data)
		}
	}
	fmt.Fprintln(w, line)
}

func shortRun(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
