package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papapumpkin/loadstar/internal/config"
	"github.com/papapumpkin/loadstar/internal/engine"
	"github.com/papapumpkin/loadstar/internal/logging"
	"github.com/papapumpkin/loadstar/internal/model"
	"github.com/papapumpkin/loadstar/internal/snapshot"
	"github.com/papapumpkin/loadstar/internal/telemetry"
	"github.com/papapumpkin/loadstar/internal/ui"
)

// errNoSnapshot is returned by commands that need --file when it is unset.
var errNoSnapshot = errors.New("no snapshot given (use --file)")

// app holds everything one command invocation needs.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	printer *ui.Printer
	events  *telemetry.Emitter
	engine  *engine.Engine
}

// newApp loads configuration and builds the logger, printer, telemetry
// stream and engine. Callers must call close when done.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if viper.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}

	log, err := logging.Build(cfg.Log, cmd.ErrOrStderr(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if configRead {
		log.WatchConfig()
	}

	var events *telemetry.Emitter
	if cfg.TelemetryPath != "" {
		events, err = telemetry.NewEmitter(cfg.TelemetryPath)
		if err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		printer: ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), !viper.GetBool("no_color")),
		events:  events,
	}
	a.engine = engine.New(
		engine.WithGranularity(cfg.GranularityValue()),
		engine.WithBucketCount(cfg.BucketCount),
		engine.WithWorkers(cfg.Workers),
		engine.WithTimeout(cfg.Timeout),
		engine.WithNearCapacity(cfg.NearCapacity),
		engine.WithLogger(log.Logger),
		engine.WithTelemetry(events),
	)
	return a, nil
}

func (a *app) close() {
	if err := a.events.Close(); err != nil {
		a.log.Warn("closing telemetry", zap.Error(err))
	}
	_ = a.log.Sync()
}

// loadSnapshot reads the snapshot named by --file and prints its warnings.
func (a *app) loadSnapshot(cmd *cobra.Command) (*snapshot.Result, string, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return nil, "", errNoSnapshot
	}
	res, err := snapshot.Load(path)
	if err != nil {
		return nil, path, err
	}
	a.log.Debug("snapshot loaded",
		zap.String("path", path),
		zap.Int("tasks", len(res.Snapshot.Tasks)),
		zap.Int("projects", len(res.Snapshot.Projects)),
		zap.Int("resources", len(res.Snapshot.Resources)),
	)
	a.printer.Warnings(res.Warnings)
	return res, path, nil
}

// titles maps task ids to display names, falling back to the id.
func titles(tasks []model.Task) map[string]string {
	m := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if strings.TrimSpace(t.Name) != "" {
			m[t.ID] = t.Name
		}
	}
	return m
}

// withApp adapts a command body that needs an app into a cobra RunE.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd, args, a)
	}
}
