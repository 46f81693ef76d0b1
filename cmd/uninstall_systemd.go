package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"VelArchiver/internal/systemd"

	"github.com/spf13/cobra"
)

var (
	uninstallSystemdUnitDir string
	uninstallSystemdName    string
)

func init() {
	rootCmd.AddCommand(uninstallSystemdCmd)
	uninstallSystemdCmd.Flags().StringVar(&uninstallSystemdUnitDir, "unit-dir", systemd.DefaultUnitDir, "Directory for systemd unit files")
	uninstallSystemdCmd.Flags().StringVar(&uninstallSystemdName, "name", systemd.DefaultName, "Unit name")
}

var uninstallSystemdCmd = &cobra.Command{
	Use:   "uninstall-systemd",
	Short: "Remove the systemd service and timer units",
	Args:  cobra.NoArgs,
	RunE:  runUninstallSystemd,
}

func runUninstallSystemd(cmd *cobra.Command, args []string) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("uninstall-systemd is only supported on Linux")
	}

	svcName, timerName := systemd.UnitFileNames(uninstallSystemdName)
	svcPath := filepath.Join(uninstallSystemdUnitDir, svcName)
	timerPath := filepath.Join(uninstallSystemdUnitDir, timerName)

	_ = exec.Command("systemctl", "disable", "--now", timerName).Run()

	if err := os.Remove(timerPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", timerPath, err)
	}
	if err := os.Remove(svcPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", svcPath, err)
	}
	cmd.Printf("Removed %s and %s\n", svcName, timerName)

	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	cmd.Println("Reloaded systemd daemon")
	return nil
}
