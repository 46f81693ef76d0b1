package systemd

import (
	"strings"
	"testing"
	"time"
)

func TestGenerate_ServiceAndTimer(t *testing.T) {
	units, err := Generate(GeneratorOptions{
		Binary:     "/usr/local/bin/velarchiver",
		ConfigPath: "/etc/velarchiver/config.yaml",
		Lookback:   15 * time.Minute,
		Timeout:    14 * time.Minute,
		SpoolDir:   "/var/spool/velarchiver",
		Hardening:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if units.ServiceName != "velarchiver.service" || units.TimerName != "velarchiver.timer" {
		t.Errorf("names = %s, %s", units.ServiceName, units.TimerName)
	}

	for _, want := range []string{
		"[Service]",
		"Type=oneshot",
		"ExecStart=/usr/local/bin/velarchiver run\n",
		"Environment=VELARCHIVER_CONFIG=/etc/velarchiver/config.yaml",
		"SuccessExitStatus=2",
		"TimeoutStartSec=840",
		"ProtectSystem=full",
		"ReadWritePaths=/var/spool/velarchiver",
	} {
		if !strings.Contains(units.Service, want) {
			t.Errorf("service missing %q:\n%s", want, units.Service)
		}
	}
	if strings.Contains(units.Service, "[Install]") {
		t.Error("oneshot service is started by the timer and needs no [Install]")
	}

	for _, want := range []string{
		"Requires=velarchiver.service",
		"OnCalendar=*-*-* *:00/15:00",
		"Persistent=yes",
		"WantedBy=timers.target",
	} {
		if !strings.Contains(units.Timer, want) {
			t.Errorf("timer missing %q:\n%s", want, units.Timer)
		}
	}
}

func TestGenerate_IrregularLookbackUsesMonotonicTimer(t *testing.T) {
	units, err := Generate(GeneratorOptions{Name: "logs archiver", Lookback: 7 * time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if units.TimerName != "logs-archiver.timer" {
		t.Errorf("TimerName = %s", units.TimerName)
	}
	if !strings.Contains(units.Timer, "OnUnitActiveSec=420") {
		t.Errorf("timer = %s", units.Timer)
	}
	if strings.Contains(units.Timer, "OnCalendar=") {
		t.Error("unexpected OnCalendar")
	}
	if strings.Contains(units.Service, "ProtectSystem") {
		t.Error("hardening not requested")
	}
}

func TestGenerate_LookbackRequired(t *testing.T) {
	if _, err := Generate(GeneratorOptions{}); err == nil {
		t.Error("expected error without lookback")
	}
}

func TestOnCalendar(t *testing.T) {
	tests := []struct {
		lookback time.Duration
		want     string
		ok       bool
	}{
		{5 * time.Minute, "*-*-* *:00/5:00", true},
		{time.Hour, "hourly", true},
		{6 * time.Hour, "*-*-* 00/6:00:00", true},
		{24 * time.Hour, "daily", true},
		{45 * time.Minute, "", false},
		{36 * time.Hour, "", false},
	}
	for _, tt := range tests {
		got, ok := OnCalendar(tt.lookback)
		if got != tt.want || ok != tt.ok {
			t.Errorf("OnCalendar(%s) = %q, %v; want %q, %v", tt.lookback, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSanitizeUnitName(t *testing.T) {
	tests := map[string]string{
		"velarchiver": "velarchiver",
		"logs.prod":   "logs-prod",
		"a/b":         "ab",
		"///":         "velarchiver",
	}
	for in, want := range tests {
		if got := sanitizeUnitName(in); got != want {
			t.Errorf("sanitizeUnitName(%q) = %q, want %q", in, got, want)
		}
	}
}
