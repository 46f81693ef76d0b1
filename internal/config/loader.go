package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// legacyEnv maps config keys to the plain environment names the job has
// always accepted. VELARCHIVER_<KEY> works for every key as well.
var legacyEnv = map[string][]string{
	"source.bucket":       {"SOURCE_BUCKET"},
	"source.prefix":       {"SOURCE_PREFIX"},
	"source.region":       {"AWS_REGION"},
	"source.endpoint":     {"S3_ENDPOINT"},
	"target.bucket":       {"TARGET_BUCKET"},
	"target.prefix":       {"TARGET_PREFIX"},
	"window.minutes_back": {"MINUTES_BACK"},
	"window.hours_back":   {"HOURS_BACK"},
	"listing.max_objects": {"MAX_FILES"},
	"delete.enabled":      {"DELETE_ORIGINAL"},
	"log.level":           {"LOG_LEVEL"},
	"log.format":          {"LOG_FORMAT"},
}

// Load reads the config file at ResolveConfigPath. A missing file is not an
// error when the path was not set explicitly, so the job can run from the
// environment alone.
func Load(checkPerms bool) (*viper.Viper, error) {
	path, explicit := ResolveConfigPath()
	return LoadFrom(path, explicit, checkPerms)
}

func LoadFrom(path string, required, checkPerms bool) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return v, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if checkPerms {
		if err := checkConfigPermissions(path); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return v, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.region", "us-east-1")
	v.SetDefault("listing.max_objects", 1000)
	v.SetDefault("listing.page_size", 1000)
	v.SetDefault("listing.skip_empty", true)
	v.SetDefault("listing.exclude_suffixes", []string{".zip"})
	v.SetDefault("batch.max_objects", 100)
	v.SetDefault("batch.max_bytes", 512<<20)
	v.SetDefault("archive.format", FormatZip)
	v.SetDefault("archive.memory_threshold_bytes", 8<<20)
	v.SetDefault("upload.multipart_threshold_bytes", 64<<20)
	v.SetDefault("upload.part_size_bytes", 16<<20)
	v.SetDefault("upload.verify", VerifyETag)
	v.SetDefault("upload.server_side_encryption", "AES256")
	v.SetDefault("upload.if_none_match", true)
	v.SetDefault("upload.retry.max_attempts", 3)
	v.SetDefault("upload.retry.initial_backoff_ms", 500)
	v.SetDefault("upload.retry.max_backoff_ms", 10000)
	v.SetDefault("upload.retry.multiplier", 2.0)
	v.SetDefault("delete.enabled", false)
	v.SetDefault("delete.unconditional", false)
	v.SetDefault("delete.concurrency", 8)
	v.SetDefault("run.timeout_seconds", 840)
	v.SetDefault("run.safety_margin_seconds", 30)
	v.SetDefault("run.concurrency", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("VELARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := "VELARCHIVER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func checkConfigPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	mode := info.Mode().Perm()

	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %s (recommended: 0600)", path, mode)
	}
	return nil
}
