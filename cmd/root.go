package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "loadstar",
	Short: "Portfolio scheduling and resource capacity analysis",
	Long: `Loadstar reads a portfolio snapshot of tasks, projects and resources,
computes the critical path of the task network, and finds the time buckets
where project demand exceeds resource capacity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default .loadstar.yaml)")
	pf.StringP("file", "f", "", "portfolio snapshot (.toml, .yaml or .json)")
	pf.String("granularity", "month", "bucket width: day, week, month or quarter")
	pf.Int("buckets", 6, "minimum number of time buckets")
	pf.Int("workers", 4, "goroutines per analysis pass")
	pf.String("archive", "", "SQLite file that records analysis runs")
	pf.String("telemetry", "", "JSONL file that receives analysis events")
	pf.Bool("no-color", false, "disable styled output")
	pf.BoolP("verbose", "v", false, "verbose output")
}

// flagKeys maps persistent flags onto the config keys they override.
var flagKeys = map[string]string{
	"granularity": "granularity",
	"buckets":     "bucket_count",
	"workers":     "workers",
	"archive":     "archive_path",
	"telemetry":   "telemetry_path",
	"no-color":    "no_color",
	"verbose":     "verbose",
}

// configRead reports whether initConfig found a config file to watch.
var configRead bool

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".loadstar")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("LOADSTAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	for name, key := range flagKeys {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name))
	}

	// It's fine if no config file is found; we use defaults.
	configRead = viper.ReadInConfig() == nil
}
