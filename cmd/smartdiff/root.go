package main

import (
	"os"

	"github.com/spf13/cobra"

	"smartdiff/internal/logging"
	"smartdiff/internal/version"
)

var (
	// logLevelFlag is the CLI --log-level flag value
	logLevelFlag string
	// logFormatFlag is the CLI --log-format flag value
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "smartdiff",
	Short: "smartdiff - structure-aware code comparison",
	Long: `smartdiff compares two versions of a codebase at the syntax-tree level
instead of line by line. It matches functions across files, detects moves,
renames, splits, and merges, and classifies every change it finds.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("smartdiff version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, or error (default: info)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: human or json (default: human)")
}

// newLogger builds a logger from the persistent flags, falling back to
// the SMARTDIFF_LOG_LEVEL and SMARTDIFF_LOG_FORMAT environment variables.
func newLogger() *logging.Logger {
	level := logLevelFlag
	if level == "" {
		level = os.Getenv("SMARTDIFF_LOG_LEVEL")
	}
	format := logFormatFlag
	if format == "" {
		format = os.Getenv("SMARTDIFF_LOG_FORMAT")
	}
	return logging.NewLogger(logging.Config{
		Format: logging.ParseFormat(format),
		Level:  logging.ParseLevel(level),
		Output: os.Stderr,
	})
}
