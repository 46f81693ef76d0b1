package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrConfig = errors.New("invalid configuration")

var (
	ErrWindowConflict = fmt.Errorf("%w: set exactly one of window.minutes_back (MINUTES_BACK) and window.hours_back (HOURS_BACK), not both", ErrConfig)
	ErrWindowMissing  = fmt.Errorf("%w: one of window.minutes_back (MINUTES_BACK) or window.hours_back (HOURS_BACK) is required", ErrConfig)
	ErrSourceBucket   = fmt.Errorf("%w: source.bucket (SOURCE_BUCKET) is required", ErrConfig)
)

// Validate checks cfg, fills inherited target settings and normalises
// prefixes. It performs no I/O.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfig)
	}

	cfg.Source.Bucket = strings.TrimSpace(cfg.Source.Bucket)
	if cfg.Source.Bucket == "" {
		return ErrSourceBucket
	}
	inheritTarget(&cfg.Source, &cfg.Target)
	cfg.Source.Prefix = SourcePrefix(cfg.Source.Prefix)
	target, err := TargetPrefix(cfg.Target.Prefix)
	if err != nil {
		return err
	}
	cfg.Target.Prefix = target

	if err := validateWindow(cfg.Window); err != nil {
		return err
	}

	if cfg.Listing.MaxObjects <= 0 {
		return fmt.Errorf("%w: listing.max_objects must be positive, got %d", ErrConfig, cfg.Listing.MaxObjects)
	}
	if cfg.Listing.PageSize <= 0 || cfg.Listing.PageSize > 1000 {
		cfg.Listing.PageSize = 1000
	}
	if cfg.Batch.MaxObjects <= 0 {
		return fmt.Errorf("%w: batch.max_objects must be positive, got %d", ErrConfig, cfg.Batch.MaxObjects)
	}
	if cfg.Batch.MaxBytes <= 0 {
		return fmt.Errorf("%w: batch.max_bytes must be positive, got %d", ErrConfig, cfg.Batch.MaxBytes)
	}

	switch cfg.Archive.Format {
	case "":
		cfg.Archive.Format = FormatZip
	case FormatZip, FormatTarGz, FormatTarZst:
	default:
		return fmt.Errorf("%w: archive.format must be zip, tar.gz or tar.zst, got %q", ErrConfig, cfg.Archive.Format)
	}

	switch cfg.Upload.Verify {
	case "":
		cfg.Upload.Verify = VerifyETag
	case VerifyETag, VerifyReadback:
	default:
		return fmt.Errorf("%w: upload.verify must be etag or readback, got %q", ErrConfig, cfg.Upload.Verify)
	}
	if cfg.Upload.PartSizeBytes < MinPartSizeBytes {
		cfg.Upload.PartSizeBytes = MinPartSizeBytes
	}
	if cfg.Upload.MultipartThresholdBytes < cfg.Upload.PartSizeBytes {
		cfg.Upload.MultipartThresholdBytes = cfg.Upload.PartSizeBytes
	}
	if cfg.Upload.Retry.MaxAttempts < 1 {
		cfg.Upload.Retry.MaxAttempts = 1
	}

	if cfg.Delete.Concurrency < 1 {
		cfg.Delete.Concurrency = 1
	}
	if cfg.Run.Concurrency < 1 {
		cfg.Run.Concurrency = 1
	}
	if cfg.Run.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: run.timeout_seconds must be positive, got %d", ErrConfig, cfg.Run.TimeoutSeconds)
	}
	if cfg.Run.SafetyMarginSeconds < 0 || cfg.Run.SafetyMarginSeconds >= cfg.Run.TimeoutSeconds {
		return fmt.Errorf("%w: run.safety_margin_seconds must be in [0, %d)", ErrConfig, cfg.Run.TimeoutSeconds)
	}

	return validateLock(cfg.Lock)
}

func validateWindow(w WindowConfig) error {
	switch {
	case w.MinutesBack != 0 && w.HoursBack != 0:
		return ErrWindowConflict
	case w.MinutesBack == 0 && w.HoursBack == 0:
		return ErrWindowMissing
	case w.MinutesBack < 0:
		return fmt.Errorf("%w: window.minutes_back must be positive, got %d", ErrConfig, w.MinutesBack)
	case w.HoursBack < 0:
		return fmt.Errorf("%w: window.hours_back must be positive, got %d", ErrConfig, w.HoursBack)
	}
	return nil
}

func validateLock(l *LockConfig) error {
	if l == nil {
		return nil
	}
	switch l.Backend {
	case "", LockNone, LockLocal, LockS3, LockRedis:
		return nil
	default:
		return fmt.Errorf("%w: lock.backend must be none, local, s3 or redis, got %q", ErrConfig, l.Backend)
	}
}

func inheritTarget(src, dst *BucketConfig) {
	if dst.Bucket == "" {
		dst.Bucket = src.Bucket
	}
	if dst.Endpoint == "" {
		dst.Endpoint = src.Endpoint
	}
	if dst.Region == "" {
		dst.Region = src.Region
	}
	if dst.AccessKey == "" && dst.SecretKey == "" {
		dst.AccessKey = src.AccessKey
		dst.SecretKey = src.SecretKey
	}
	if dst.PathStyle == nil {
		dst.PathStyle = src.PathStyle
	}
	if !dst.DisableRequestChecksums {
		dst.DisableRequestChecksums = src.DisableRequestChecksums
	}
	if dst.TLS == nil {
		dst.TLS = src.TLS
	}
}

// normalizeSourcePrefix keeps a trailing slash so "logs/" does not match
// "logs-old/...".
// SameBucket reports whether source and target resolve to one bucket on one endpoint.
func SameBucket(cfg *Config) bool {
	return cfg.Source.Bucket == cfg.Target.Bucket && cfg.Source.Endpoint == cfg.Target.Endpoint
}
