package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"VelArchiver/internal/config"

	"github.com/spf13/cobra"
)

var (
	initSourceBucket string
	initTargetBucket string
	initForce        bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initSourceBucket, "source-bucket", "my-source-bucket", "Source bucket name")
	initCmd.Flags().StringVar(&initTargetBucket, "target-bucket", "", "Target bucket name (default: same as source)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := config.ResolveConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := config.Write(config.Sample(initSourceBucket, initTargetBucket), path); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}
