package cmd

import (
	"context"
	"time"

	"VelArchiver/internal/logger"
	"VelArchiver/internal/prune"

	"github.com/spf13/cobra"
)

var pruneDryRun bool

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Show what would be deleted")
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archives past retention and orphan archives without a manifest",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	target, err := newTargetClient(ctx, cfg)
	if err != nil {
		return err
	}

	res, err := prune.Run(ctx, target, prune.Options{
		Retention: cfg.Retention,
		Now:       time.Now(),
		DryRun:    pruneDryRun,
	}, logger.Log)
	if err != nil {
		return err
	}

	verb := "Deleted"
	if res.DryRun {
		verb = "Would delete"
	}
	for _, k := range res.Expired {
		cmd.Printf("%s expired %s\n", verb, k)
	}
	for _, k := range res.Orphans {
		cmd.Printf("%s orphan %s\n", verb, k)
	}
	cmd.Printf("Kept %d, expired %d, orphans %d\n", res.Kept, len(res.Expired), len(res.Orphans))

	notif := NotifierFromConfig(cfg, func(msg string) { cmd.PrintErrln("Warning:", msg) })
	if err := notif.NotifyPrune(ctx, res); err != nil {
		cmd.PrintErrln("Warning: notification failed:", err)
	}
	return res.Err()
}
