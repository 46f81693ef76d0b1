package cmd

import (
	"context"
	"fmt"

	"VelArchiver/internal/config"
	"VelArchiver/internal/logger"
	"VelArchiver/internal/s3"
)

// loadConfig loads, validates and applies the logging settings.
func loadConfig(checkPerms bool) (*config.Config, error) {
	v, err := config.Load(checkPerms)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	format, level := cfg.Log.Format, cfg.Log.Level
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger.Setup(format, level)
}

func bucketOptions(b config.BucketConfig, prefix string) s3.Options {
	return s3.Options{
		Endpoint:                b.Endpoint,
		Region:                  b.Region,
		AccessKey:               b.AccessKey,
		SecretKey:               b.SecretKey,
		Bucket:                  b.Bucket,
		Prefix:                  prefix,
		PathStyle:               config.PathStyle(b),
		DisableRequestChecksums: b.DisableRequestChecksums,
		InsecureSkipVerify:      b.TLS != nil && b.TLS.InsecureSkipVerify,
	}
}

// newSourceClient has no client prefix; listing uses the raw source prefix
// so archived entries keep their full keys.
func newSourceClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	c, err := s3.New(ctx, bucketOptions(cfg.Source, ""))
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return c, nil
}

func newTargetClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	c, err := s3.New(ctx, bucketOptions(cfg.Target, cfg.Target.Prefix))
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	return c, nil
}
