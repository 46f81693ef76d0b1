// Package systemd renders the service and timer that trigger one archive
// run per lookback interval.
package systemd

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultUnitDir    = "/etc/systemd/system"
	DefaultBinary     = "/usr/local/bin/velarchiver"
	DefaultConfigPath = "/etc/velarchiver/config.yaml"
	DefaultName       = "velarchiver"
)

type GeneratorOptions struct {
	Name       string
	Binary     string
	ConfigPath string
	// Lookback sets the timer period so consecutive windows tile.
	Lookback time.Duration
	// Timeout caps the service run time; zero leaves the systemd default.
	Timeout   time.Duration
	SpoolDir  string
	Hardening bool
}

type GeneratedUnits struct {
	ServiceName string
	TimerName   string
	Service     string
	Timer       string
}

func UnitFileNames(name string) (service, timer string) {
	safe := sanitizeUnitName(name)
	return safe + ".service", safe + ".timer"
}

func Generate(opts GeneratorOptions) (*GeneratedUnits, error) {
	if opts.Lookback <= 0 {
		return nil, fmt.Errorf("lookback is required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = DefaultConfigPath
	}
	svcName, timerName := UnitFileNames(opts.Name)
	return &GeneratedUnits{
		ServiceName: svcName,
		TimerName:   timerName,
		Service:     buildService(opts),
		Timer:       buildTimer(opts, svcName),
	}, nil
}

func buildService(opts GeneratorOptions) string {
	var b strings.Builder

	b.WriteString("[Unit]\n")
	b.WriteString("Description=VelArchiver archive run\n")
	b.WriteString("After=network-online.target\n")
	b.WriteString("Wants=network-online.target\n\n")

	b.WriteString("[Service]\n")
	b.WriteString("Type=oneshot\n")
	b.WriteString(fmt.Sprintf("ExecStart=%s run\n", opts.Binary))
	b.WriteString("Environment=VELARCHIVER_CONFIG=" + opts.ConfigPath + "\n")
	// exit 2 is a completed run with failed batches
	b.WriteString("SuccessExitStatus=2\n")
	if opts.Timeout > 0 {
		b.WriteString(fmt.Sprintf("TimeoutStartSec=%d\n", int(opts.Timeout.Seconds())))
	}

	if opts.Hardening {
		b.WriteString("ProtectSystem=full\n")
		b.WriteString("ProtectHome=read-only\n")
		b.WriteString("PrivateTmp=yes\n")
		b.WriteString("NoNewPrivileges=yes\n")
		b.WriteString("ProtectKernelTunables=yes\n")
		b.WriteString("ProtectKernelModules=yes\n")
		b.WriteString("ProtectControlGroups=yes\n")
		b.WriteString("RestrictRealtime=yes\n")
		b.WriteString("RestrictSUIDSGID=yes\n")
		b.WriteString("LockPersonality=yes\n")
		b.WriteString("ProtectClock=yes\n")
		b.WriteString("ProtectHostname=yes\n")
		b.WriteString("ProtectKernelLogs=yes\n")
		b.WriteString("RestrictNamespaces=yes\n")
		b.WriteString("RestrictAddressFamilies=AF_UNIX AF_INET AF_INET6\n")
		if opts.SpoolDir != "" {
			b.WriteString("ReadWritePaths=" + opts.SpoolDir + "\n")
		}
	}
	return b.String()
}

func buildTimer(opts GeneratorOptions, serviceName string) string {
	var b strings.Builder

	b.WriteString("[Unit]\n")
	b.WriteString(fmt.Sprintf("Description=VelArchiver trigger every %s\n", opts.Lookback))
	b.WriteString("Requires=" + serviceName + "\n\n")

	b.WriteString("[Timer]\n")
	if cal, ok := OnCalendar(opts.Lookback); ok {
		b.WriteString("OnCalendar=" + cal + "\n")
		b.WriteString("AccuracySec=1s\n")
		b.WriteString("Persistent=yes\n")
	} else {
		secs := int(opts.Lookback.Seconds())
		b.WriteString(fmt.Sprintf("OnBootSec=%d\n", secs))
		b.WriteString(fmt.Sprintf("OnUnitActiveSec=%d\n", secs))
		b.WriteString("AccuracySec=1s\n")
	}

	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=timers.target\n")
	return b.String()
}

// OnCalendar returns a calendar expression firing once per lookback when
// the lookback divides an hour or a day evenly.
func OnCalendar(lookback time.Duration) (string, bool) {
	switch {
	case lookback <= 0:
		return "", false
	case lookback < time.Hour && lookback%time.Minute == 0 && 60%int(lookback/time.Minute) == 0:
		return fmt.Sprintf("*-*-* *:00/%d:00", int(lookback/time.Minute)), true
	case lookback == time.Hour:
		return "hourly", true
	case lookback < 24*time.Hour && lookback%time.Hour == 0 && 24%int(lookback/time.Hour) == 0:
		return fmt.Sprintf("*-*-* 00/%d:00:00", int(lookback/time.Hour)), true
	case lookback == 24*time.Hour:
		return "daily", true
	}
	return "", false
}

func sanitizeUnitName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else if r == ' ' || r == '.' {
			b.WriteRune('-')
		}
	}
	s := b.String()
	if s == "" {
		return DefaultName
	}
	return s
}
