package pipeline

import (
	"path"
	"time"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/config"
	"VelArchiver/internal/deleter"
	"VelArchiver/internal/s3"
	"VelArchiver/internal/upload"
	"VelArchiver/internal/window"
)

// Options is everything a run needs, resolved from a validated config.
type Options struct {
	SourceBucket string
	// SourcePrefix is the raw key prefix listed in the source bucket.
	SourcePrefix string
	Lookback     time.Duration

	MaxObjects      int
	PageSize        int32
	SkipEmpty       bool
	ExcludeSuffixes []string
	ExcludePrefixes []string

	BatchMaxObjects int
	BatchMaxBytes   int64

	Archive archive.Options
	Upload  upload.Options

	DeleteEnabled bool
	Delete        deleter.Options

	Timeout      time.Duration
	SafetyMargin time.Duration
	Concurrency  int
	DryRun       bool

	// Now and RunID are fixed in tests; zero values mean wall clock and a
	// random UUID.
	Now   func() time.Time
	RunID string
}

// OptionsFromConfig maps a validated config onto run options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	lookback, err := window.Lookback(cfg.Window.MinutesBack, cfg.Window.HoursBack)
	if err != nil {
		return Options{}, err
	}
	format, err := archive.ParseFormat(cfg.Archive.Format)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		SourceBucket:    cfg.Source.Bucket,
		SourcePrefix:    cfg.Source.Prefix,
		Lookback:        lookback,
		MaxObjects:      cfg.Listing.MaxObjects,
		PageSize:        cfg.Listing.PageSize,
		SkipEmpty:       cfg.Listing.SkipEmpty,
		ExcludeSuffixes: cfg.Listing.ExcludeSuffixes,
		BatchMaxObjects: cfg.Batch.MaxObjects,
		BatchMaxBytes:   cfg.Batch.MaxBytes,
		Archive: archive.Options{
			Format:          format,
			Level:           cfg.Archive.Level,
			SpoolDir:        cfg.Archive.SpoolDir,
			MemoryThreshold: cfg.Archive.MemoryThresholdBytes,
		},
		Upload: upload.Options{
			MultipartThreshold:   cfg.Upload.MultipartThresholdBytes,
			PartSize:             cfg.Upload.PartSizeBytes,
			Verify:               cfg.Upload.Verify,
			ServerSideEncryption: cfg.Upload.ServerSideEncryption,
			IfNoneMatch:          cfg.Upload.IfNoneMatch,
			Retry: upload.RetryPolicy{
				MaxAttempts:    cfg.Upload.Retry.MaxAttempts,
				InitialBackoff: time.Duration(cfg.Upload.Retry.InitialBackoffMs) * time.Millisecond,
				MaxBackoff:     time.Duration(cfg.Upload.Retry.MaxBackoffMs) * time.Millisecond,
				Multiplier:     cfg.Upload.Retry.Multiplier,
			},
		},
		DeleteEnabled: cfg.Delete.Enabled,
		Delete: deleter.Options{
			Concurrency:   cfg.Delete.Concurrency,
			Unconditional: cfg.Delete.Unconditional,
		},
		Timeout:      time.Duration(cfg.Run.TimeoutSeconds) * time.Second,
		SafetyMargin: time.Duration(cfg.Run.SafetyMarginSeconds) * time.Second,
		Concurrency:  cfg.Run.Concurrency,
		DryRun:       cfg.Run.DryRun,
	}
	if config.SameBucket(cfg) {
		opts.ExcludePrefixes = OwnOutputPrefixes(cfg.Target.Prefix)
	}
	return opts, nil
}

// OwnOutputPrefixes are the full-key prefixes written under a target
// prefix. They are never archived again.
func OwnOutputPrefixes(targetPrefix string) []string {
	out := make([]string, 0, 3)
	for _, p := range []string{s3.ArchivesPrefix, s3.ManifestsPrefix, s3.LocksPrefix} {
		out = append(out, path.Join(targetPrefix, p)+"/")
	}
	return out
}
