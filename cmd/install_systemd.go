package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"VelArchiver/internal/config"
	"VelArchiver/internal/systemd"
	"VelArchiver/internal/window"

	"github.com/spf13/cobra"
)

var (
	installSystemdUnitDir string
	installSystemdName    string
	installSystemdBinary  string
	installNoHardening    bool
	installNoEnable       bool
)

func init() {
	rootCmd.AddCommand(installSystemdCmd)
	installSystemdCmd.Flags().StringVar(&installSystemdUnitDir, "unit-dir", systemd.DefaultUnitDir, "Directory for systemd unit files")
	installSystemdCmd.Flags().StringVar(&installSystemdName, "name", systemd.DefaultName, "Unit name")
	installSystemdCmd.Flags().StringVar(&installSystemdBinary, "binary", "", "Path to the velarchiver binary (default: this executable)")
	installSystemdCmd.Flags().BoolVar(&installNoHardening, "no-hardening", false, "Omit sandboxing options from the service")
	installSystemdCmd.Flags().BoolVar(&installNoEnable, "no-enable", false, "Write the units without enabling the timer")
}

var installSystemdCmd = &cobra.Command{
	Use:   "install-systemd",
	Short: "Install a systemd timer that triggers one run per lookback interval",
	Args:  cobra.NoArgs,
	RunE:  runInstallSystemd,
}

func runInstallSystemd(cmd *cobra.Command, args []string) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("install-systemd is only supported on Linux")
	}
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	lookback, err := window.Lookback(cfg.Window.MinutesBack, cfg.Window.HoursBack)
	if err != nil {
		return err
	}
	binary := installSystemdBinary
	if binary == "" {
		if binary, err = os.Executable(); err != nil {
			return err
		}
	}
	configPath, _ := config.ResolveConfigPath()
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}

	units, err := systemd.Generate(systemd.GeneratorOptions{
		Name:       installSystemdName,
		Binary:     binary,
		ConfigPath: configPath,
		Lookback:   lookback,
		Timeout:    time.Duration(cfg.Run.TimeoutSeconds) * time.Second,
		SpoolDir:   cfg.Archive.SpoolDir,
		Hardening:  !installNoHardening,
	})
	if err != nil {
		return err
	}

	svcPath := filepath.Join(installSystemdUnitDir, units.ServiceName)
	timerPath := filepath.Join(installSystemdUnitDir, units.TimerName)
	if err := os.WriteFile(svcPath, []byte(units.Service), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", svcPath, err)
	}
	if err := os.WriteFile(timerPath, []byte(units.Timer), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", timerPath, err)
	}
	cmd.Printf("Wrote %s and %s\n", svcPath, timerPath)

	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	if installNoEnable {
		return nil
	}
	if out, err := exec.Command("systemctl", "enable", "--now", units.TimerName).CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl enable %s: %w: %s", units.TimerName, err, out)
	}
	cmd.Printf("Enabled %s\n", units.TimerName)
	return nil
}
