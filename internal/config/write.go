package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func Write(cfg *Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Sample returns a config populated with the defaults, ready to be edited.
func Sample(sourceBucket, targetBucket string) *Config {
	return &Config{
		Source: BucketConfig{Bucket: sourceBucket, Region: "us-east-1", Prefix: "incoming"},
		Target: BucketConfig{Bucket: targetBucket, Prefix: "compressed"},
		Window: WindowConfig{HoursBack: 24},
		Listing: ListingConfig{
			MaxObjects:      1000,
			PageSize:        1000,
			SkipEmpty:       true,
			ExcludeSuffixes: []string{".zip"},
		},
		Batch:   BatchConfig{MaxObjects: 100, MaxBytes: 512 << 20},
		Archive: ArchiveConfig{Format: FormatZip, MemoryThresholdBytes: 8 << 20},
		Upload: UploadConfig{
			MultipartThresholdBytes: 64 << 20,
			PartSizeBytes:           16 << 20,
			Verify:                  VerifyETag,
			ServerSideEncryption:    "AES256",
			IfNoneMatch:             true,
			Retry:                   RetryConfig{MaxAttempts: 3, InitialBackoffMs: 500, MaxBackoffMs: 10000, Multiplier: 2},
		},
		Delete:    DeleteConfig{Enabled: false, Concurrency: 8},
		Run:       RunConfig{TimeoutSeconds: 840, SafetyMarginSeconds: 30, Concurrency: 2},
		Log:       LogConfig{Level: "info", Format: "console"},
		Lock:      &LockConfig{Backend: LockNone},
		Retention: &RetentionConfig{Days: 90, OrphanGraceHours: 24},
	}
}
