package cmd

import (
	"VelArchiver/internal/config"
	"VelArchiver/internal/pipeline"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	cmd.Printf("Configuration OK\n")
	cmd.Printf("  source:   s3://%s/%s\n", cfg.Source.Bucket, opts.SourcePrefix)
	cmd.Printf("  target:   s3://%s/%s\n", cfg.Target.Bucket, cfg.Target.Prefix)
	cmd.Printf("  lookback: %s\n", opts.Lookback)
	cmd.Printf("  format:   %s\n", opts.Archive.Format)
	cmd.Printf("  delete:   %v\n", opts.DeleteEnabled)
	if config.SameBucket(cfg) {
		cmd.Printf("  shared bucket, excluding %v\n", opts.ExcludePrefixes)
	}
	return nil
}
