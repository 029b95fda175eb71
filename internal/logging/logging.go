// Package logging builds the zap logger used by the engine and CLI.
// Info and below go to one sink, errors to another, and the level can be
// changed at runtime when the config file is edited.
package logging

import (
	"fmt"
	"io"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/papapumpkin/loadstar/internal/config"
)

// Logger pairs a zap logger with the level that gates it.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Build creates a logger writing sub-error entries to out and error
// entries to errOut using the configured encoding.
func Build(cfg config.LogConfig, out, errOut io.Writer) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: parse level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)
	if cfg.Encoding == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	high := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	low := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return level.Enabled(lvl) && lvl < zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(out), low),
		zapcore.NewCore(encoder, zapcore.AddSync(errOut), high),
	)
	return &Logger{Logger: zap.New(core, zap.AddCaller()), level: level}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// Level returns the current minimum enabled level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the level at runtime. Unknown names are logged and
// ignored.
func (l *Logger) SetLevel(name string) {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		l.Error("couldn't parse level", zap.String("value", name), zap.Error(err))
		return
	}
	if lvl == l.level.Level() {
		return
	}
	l.level.SetLevel(lvl)
	l.Info("log level updated", zap.String("value", name))
}

// WatchConfig re-reads log.level whenever viper's config file changes.
// It does nothing when no config file is in use.
func (l *Logger) WatchConfig() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(in fsnotify.Event) {
		if in.Op&fsnotify.Create == 0 {
			l.SetLevel(viper.GetString("log.level"))
		}
	})
	viper.WatchConfig()
}
