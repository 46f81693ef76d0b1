package cmd

import (
	"errors"

	"VelArchiver/internal/config"

	"github.com/spf13/cobra"
)

var (
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "velarchiver",
	Short: "Archive recently modified S3 objects into compressed batches",
	Long: "Velarchiver lists objects modified within a lookback window, compresses them in bounded batches, " +
		"writes each archive with a manifest to the target bucket and deletes the originals once the archive is verified.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
			config.ExplicitPath = f.Value.String()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $VELARCHIVER_CONFIG or "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Override log.format (console, json)")
}

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}
