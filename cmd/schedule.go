package cmd

import (
	"fmt"
	"time"

	"VelArchiver/internal/schedule"
	"VelArchiver/internal/systemd"
	"VelArchiver/internal/window"

	"github.com/spf13/cobra"
)

var (
	scheduleCron  string
	scheduleCount int
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron expression of the external trigger (5 fields or @every)")
	scheduleCmd.Flags().IntVar(&scheduleCount, "count", 5, "Number of upcoming fire times to show")
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Check that the external trigger covers the lookback window",
	Long:  "Schedule compares the gaps between trigger fires with the configured lookback. A gap longer than the lookback leaves objects that no run lists.",
	Args:  cobra.NoArgs,
	RunE:  runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	lookback, err := window.Lookback(cfg.Window.MinutesBack, cfg.Window.HoursBack)
	if err != nil {
		return err
	}
	suggested, _ := schedule.SuggestedCron(lookback)
	cal, hasCal := systemd.OnCalendar(lookback)

	if scheduleCron == "" {
		cmd.Printf("Lookback %s\n", lookback)
		cmd.Printf("  cron:       %s\n", suggested)
		if hasCal {
			cmd.Printf("  OnCalendar: %s\n", cal)
		}
		return nil
	}

	c, err := schedule.Analyze(scheduleCron, lookback, time.Now().UTC(), 0, scheduleCount)
	if err != nil {
		return err
	}
	cmd.Printf("Trigger %q, lookback %s\n", c.Expr, lookback)
	for _, t := range c.Next {
		cmd.Printf("  %s\n", t.Format(time.RFC3339))
	}
	cmd.Printf("Gap between fires: min %s, max %s\n", c.MinGap, c.MaxGap)
	if c.Overlap {
		cmd.Printf("Note: windows overlap; without delete.enabled objects are archived more than once\n")
	}
	if !c.Covered {
		cmd.Printf("Suggested trigger: %s\n", suggested)
		return fmt.Errorf("longest gap %s exceeds lookback %s; objects modified in the gap are never archived", c.MaxGap, lookback)
	}
	cmd.Println("Trigger covers the lookback")
	return nil
}
