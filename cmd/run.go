package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"VelArchiver/internal/lock"
	"VelArchiver/internal/logger"
	"VelArchiver/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	runDryRun   bool
	runNoDelete bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "List and plan batches without writing or deleting anything")
	runCmd.Flags().BoolVar(&runNoDelete, "no-delete", false, "Archive and verify but keep the source objects")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one archive pass over the configured window",
	Long: "Run lists the source objects modified in the lookback window, archives them in batches and, when delete.enabled is set, " +
		"removes the originals that are covered by a verified archive. The report is printed as JSON. " +
		"Exit code 0 means success, 1 a fatal error, 2 a completed run with failed batches or delete errors.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	log := logger.Log

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if runDryRun {
		opts.DryRun = true
	}
	if runNoDelete {
		opts.DeleteEnabled = false
	}

	source, err := newSourceClient(ctx, cfg)
	if err != nil {
		return err
	}
	target, err := newTargetClient(ctx, cfg)
	if err != nil {
		return err
	}
	locker, err := lock.FromConfig(cfg.Lock, target)
	if err != nil {
		return err
	}
	if r, ok := locker.(*lock.RedisLocker); ok {
		defer r.Close()
	}

	notif := NotifierFromConfig(cfg, func(msg string) { log.Warn().Msg(msg) })

	rep, err := pipeline.New(source, target, locker, opts, log).Run(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			log.Warn().Err(err).Msg("another run holds the lock, nothing done")
		} else {
			log.Error().Err(err).Msg("run aborted")
		}
		if nerr := notif.NotifyError(context.WithoutCancel(ctx), err); nerr != nil {
			log.Warn().Err(nerr).Msg("notification failed")
		}
		return err
	}

	rep.Log(log)
	out, err := rep.JSON()
	if err != nil {
		return err
	}
	// the report goes to stdout; cobra prints to stderr
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if nerr := notif.NotifyRun(context.WithoutCancel(ctx), rep); nerr != nil {
		log.Warn().Err(nerr).Msg("notification failed")
	}
	if rep.HasFailures() {
		return &exitError{code: 2, err: fmt.Errorf("%d failed batches, %d delete errors", rep.BatchesFailed, rep.DeleteErrors)}
	}
	return nil
}
