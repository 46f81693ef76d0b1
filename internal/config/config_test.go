package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestUnmarshal_SourceAndWindow(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("source.bucket", "incoming")
	v.Set("source.prefix", "uploads/")
	v.Set("window.minutes_back", 15)
	cfg, err := Unmarshal(v)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Source.Bucket != "incoming" {
		t.Errorf("source.bucket = %q, want incoming", cfg.Source.Bucket)
	}
	if cfg.Window.MinutesBack != 15 {
		t.Errorf("window.minutes_back = %d, want 15", cfg.Window.MinutesBack)
	}
	if cfg.Listing.MaxObjects != 1000 {
		t.Errorf("listing.max_objects = %d, want default 1000", cfg.Listing.MaxObjects)
	}
	if cfg.Archive.Format != FormatZip {
		t.Errorf("archive.format = %q, want %q", cfg.Archive.Format, FormatZip)
	}
	if len(cfg.Listing.ExcludeSuffixes) != 1 || cfg.Listing.ExcludeSuffixes[0] != ".zip" {
		t.Errorf("listing.exclude_suffixes = %v, want [.zip]", cfg.Listing.ExcludeSuffixes)
	}
}

func TestLoadFrom_LegacyEnvironment(t *testing.T) {
	t.Setenv("SOURCE_BUCKET", "raw-data")
	t.Setenv("TARGET_BUCKET", "cold-data")
	t.Setenv("SOURCE_PREFIX", "logs")
	t.Setenv("HOURS_BACK", "6")
	t.Setenv("MAX_FILES", "250")
	t.Setenv("DELETE_ORIGINAL", "true")
	t.Setenv("AWS_REGION", "eu-west-1")

	v, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), false, false)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	cfg, err := Unmarshal(v)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Source.Bucket != "raw-data" || cfg.Target.Bucket != "cold-data" {
		t.Errorf("buckets = %q -> %q", cfg.Source.Bucket, cfg.Target.Bucket)
	}
	if cfg.Source.Prefix != "logs" {
		t.Errorf("source.prefix = %q, want logs", cfg.Source.Prefix)
	}
	if cfg.Window.HoursBack != 6 {
		t.Errorf("window.hours_back = %d, want 6", cfg.Window.HoursBack)
	}
	if cfg.Listing.MaxObjects != 250 {
		t.Errorf("listing.max_objects = %d, want 250", cfg.Listing.MaxObjects)
	}
	if !cfg.Delete.Enabled {
		t.Error("delete.enabled should be true from DELETE_ORIGINAL")
	}
	if cfg.Target.Region != "eu-west-1" {
		t.Errorf("target.region = %q, want inherited eu-west-1", cfg.Target.Region)
	}
}

func TestLoadFrom_RequiredFileMissing(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), true, false)
	if err == nil {
		t.Fatal("LoadFrom should fail when an explicit config file is missing")
	}
}

func TestLoadFrom_PermissiveFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source:\n  bucket: b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path, true, true); err == nil {
		t.Fatal("LoadFrom with permission check should reject mode 0644")
	}
	if _, err := LoadFrom(path, true, false); err != nil {
		t.Fatalf("LoadFrom without permission check: %v", err)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Sample("incoming", "archive")
	if err := Write(cfg, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	v, err := LoadFrom(path, true, true)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	loaded, err := Unmarshal(v)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := Validate(loaded); err != nil {
		t.Fatalf("Validate(sample): %v", err)
	}
	if loaded.Source.Bucket != "incoming" || loaded.Target.Bucket != "archive" {
		t.Errorf("buckets = %q -> %q", loaded.Source.Bucket, loaded.Target.Bucket)
	}
	if loaded.Window.HoursBack != 24 {
		t.Errorf("window.hours_back = %d, want 24", loaded.Window.HoursBack)
	}
	if loaded.Upload.Retry.MaxAttempts != 3 {
		t.Errorf("upload.retry.max_attempts = %d, want 3", loaded.Upload.Retry.MaxAttempts)
	}
}

func TestPathStyle(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name string
		b    BucketConfig
		want bool
	}{
		{"aws default", BucketConfig{}, false},
		{"custom endpoint", BucketConfig{Endpoint: "http://minio:9000"}, true},
		{"explicit off", BucketConfig{Endpoint: "http://minio:9000", PathStyle: &no}, false},
		{"explicit on", BucketConfig{PathStyle: &yes}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathStyle(tt.b); got != tt.want {
				t.Errorf("PathStyle = %v, want %v", got, tt.want)
			}
		})
	}
}
