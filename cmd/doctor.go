package cmd

import (
	"context"
	"fmt"

	"VelArchiver/internal/doctor"
	"VelArchiver/internal/lock"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, S3 connectivity, spool dir and lock backend",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(true)
	if err != nil {
		cmd.Printf("Config: ERROR: %v\n", err)
		return err
	}

	var deps doctor.Deps
	if c, err := newSourceClient(ctx, cfg); err != nil {
		cmd.Printf("%-12s ERROR: %v\n", "source", err)
	} else {
		deps.Source = c
	}
	if c, err := newTargetClient(ctx, cfg); err != nil {
		cmd.Printf("%-12s ERROR: %v\n", "target", err)
	} else {
		deps.Target = c
		if l, err := lock.FromConfig(cfg.Lock, c); err != nil {
			cmd.Printf("%-12s ERROR: %v\n", "lock", err)
		} else {
			deps.Locker = l
			if r, ok := l.(*lock.RedisLocker); ok {
				defer r.Close()
			}
		}
	}

	results := doctor.Run(ctx, cfg, deps)
	for _, r := range results {
		status := "OK"
		if !r.OK {
			status = "ERROR"
		}
		cmd.Printf("%-12s %s: %s\n", r.Name, status, r.Detail)
	}
	if !doctor.AllOK(results) {
		return fmt.Errorf("one or more checks failed; see output above")
	}
	return nil
}
