package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir  = "/etc/velarchiver"
	DefaultConfigName = "config.yaml"
)

const EnvConfigPath = "VELARCHIVER_CONFIG"

// ExplicitPath is set from the --config flag.
var ExplicitPath string

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir, DefaultConfigName)
}

// ResolveConfigPath reports the config path and whether the operator chose it.
func ResolveConfigPath() (string, bool) {
	if ExplicitPath != "" {
		return ExplicitPath, true
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, true
	}
	return DefaultConfigPath(), false
}
