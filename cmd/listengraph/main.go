package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/listengraph/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	flagConfig    string
	flagFmt       string
	flagLogLevel  string
	flagLogFormat string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("listengraph version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}

	return fmt.Sprintf("listengraph version %s", config.Version)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "listengraph",
		Short:        "Migrate tabular listening history into a graph-shaped store",
		Version:      versionString(),
		SilenceUsage: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file (overrides env)")
	root.PersistentFlags().StringVar(&flagFmt, "format", "table", "Output format: table|json")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (env: LOG_LEVEL)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text|json (env: LOG_FORMAT)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newIndexesCmd())
	root.AddCommand(newCheckpointCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

// globalOverrides applies the persistent flags the user set.
func globalOverrides(cmd *cobra.Command) func(*config.Config) {
	changed := cmd.Flags().Changed

	return func(c *config.Config) {
		if changed("log-level") {
			c.LogLevel = flagLogLevel
		}
		if changed("log-format") {
			c.LogFormat = flagLogFormat
		}
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

func checkFormat() error {
	if flagFmt != "table" && flagFmt != "json" {
		return fmt.Errorf("--format must be table or json, got %q", flagFmt)
	}

	return nil
}
