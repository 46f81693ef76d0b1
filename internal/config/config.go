package config

import "github.com/spf13/viper"

const (
	FormatZip    = "zip"
	FormatTarGz  = "tar.gz"
	FormatTarZst = "tar.zst"
)

const (
	VerifyETag     = "etag"
	VerifyReadback = "readback"
)

// MinPartSizeBytes is the smallest multipart part S3 accepts.
const MinPartSizeBytes = 5 << 20

const (
	LockNone  = "none"
	LockLocal = "local"
	LockS3    = "s3"
	LockRedis = "redis"
)

type Config struct {
	Source        BucketConfig         `mapstructure:"source" yaml:"source"`
	Target        BucketConfig         `mapstructure:"target" yaml:"target"`
	Window        WindowConfig         `mapstructure:"window" yaml:"window"`
	Listing       ListingConfig        `mapstructure:"listing" yaml:"listing"`
	Batch         BatchConfig          `mapstructure:"batch" yaml:"batch"`
	Archive       ArchiveConfig        `mapstructure:"archive" yaml:"archive"`
	Upload        UploadConfig         `mapstructure:"upload" yaml:"upload"`
	Delete        DeleteConfig         `mapstructure:"delete" yaml:"delete"`
	Run           RunConfig            `mapstructure:"run" yaml:"run"`
	Log           LogConfig            `mapstructure:"log" yaml:"log"`
	Lock          *LockConfig          `mapstructure:"lock" yaml:"lock,omitempty"`
	Retention     *RetentionConfig     `mapstructure:"retention" yaml:"retention,omitempty"`
	Notifications *NotificationsConfig `mapstructure:"notifications" yaml:"notifications,omitempty"`
}

// BucketConfig describes one S3-compatible location. Target fields left
// empty are inherited from Source during validation.
type BucketConfig struct {
	Endpoint                string     `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Region                  string     `mapstructure:"region" yaml:"region,omitempty"`
	AccessKey               string     `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey               string     `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	Bucket                  string     `mapstructure:"bucket" yaml:"bucket"`
	Prefix                  string     `mapstructure:"prefix" yaml:"prefix,omitempty"`
	PathStyle               *bool      `mapstructure:"path_style" yaml:"path_style,omitempty"`
	DisableRequestChecksums bool       `mapstructure:"disable_request_checksums" yaml:"disable_request_checksums,omitempty"`
	TLS                     *TLSConfig `mapstructure:"tls" yaml:"tls,omitempty"`
}

type TLSConfig struct {
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// WindowConfig selects the lookback. Exactly one of the two must be set.
type WindowConfig struct {
	MinutesBack int `mapstructure:"minutes_back" yaml:"minutes_back,omitempty"`
	HoursBack   int `mapstructure:"hours_back" yaml:"hours_back,omitempty"`
}

type ListingConfig struct {
	MaxObjects      int      `mapstructure:"max_objects" yaml:"max_objects"`
	PageSize        int32    `mapstructure:"page_size" yaml:"page_size"`
	SkipEmpty       bool     `mapstructure:"skip_empty" yaml:"skip_empty"`
	ExcludeSuffixes []string `mapstructure:"exclude_suffixes" yaml:"exclude_suffixes"`
}

type BatchConfig struct {
	MaxObjects int   `mapstructure:"max_objects" yaml:"max_objects"`
	MaxBytes   int64 `mapstructure:"max_bytes" yaml:"max_bytes"`
}

type ArchiveConfig struct {
	Format               string `mapstructure:"format" yaml:"format"`
	Level                int    `mapstructure:"level" yaml:"level,omitempty"`
	SpoolDir             string `mapstructure:"spool_dir" yaml:"spool_dir,omitempty"`
	MemoryThresholdBytes int64  `mapstructure:"memory_threshold_bytes" yaml:"memory_threshold_bytes"`
}

type UploadConfig struct {
	MultipartThresholdBytes int64       `mapstructure:"multipart_threshold_bytes" yaml:"multipart_threshold_bytes"`
	PartSizeBytes           int64       `mapstructure:"part_size_bytes" yaml:"part_size_bytes"`
	Verify                  string      `mapstructure:"verify" yaml:"verify"`
	ServerSideEncryption    string      `mapstructure:"server_side_encryption" yaml:"server_side_encryption,omitempty"`
	IfNoneMatch             bool        `mapstructure:"if_none_match" yaml:"if_none_match"`
	Retry                   RetryConfig `mapstructure:"retry" yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts      int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialBackoffMs int     `mapstructure:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms"`
	Multiplier       float64 `mapstructure:"multiplier" yaml:"multiplier"`
}

type DeleteConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	Unconditional bool `mapstructure:"unconditional" yaml:"unconditional"`
	Concurrency   int  `mapstructure:"concurrency" yaml:"concurrency"`
}

type RunConfig struct {
	TimeoutSeconds      int  `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	SafetyMarginSeconds int  `mapstructure:"safety_margin_seconds" yaml:"safety_margin_seconds"`
	Concurrency         int  `mapstructure:"concurrency" yaml:"concurrency"`
	DryRun              bool `mapstructure:"dry_run" yaml:"dry_run,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type LockConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	Name          string `mapstructure:"name" yaml:"name,omitempty"`
	TTLSeconds    int    `mapstructure:"ttl_seconds" yaml:"ttl_seconds,omitempty"`
	Dir           string `mapstructure:"dir" yaml:"dir,omitempty"`
	RedisURL      string `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
	RedisHost     string `mapstructure:"redis_host" yaml:"redis_host,omitempty"`
	RedisPort     string `mapstructure:"redis_port" yaml:"redis_port,omitempty"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db,omitempty"`
}

// RetentionConfig drives the prune command. Archives are never pruned by run.
type RetentionConfig struct {
	Days             int `mapstructure:"days" yaml:"days"`
	Weeks            int `mapstructure:"weeks" yaml:"weeks,omitempty"`
	Months           int `mapstructure:"months" yaml:"months,omitempty"`
	OrphanGraceHours int `mapstructure:"orphan_grace_hours" yaml:"orphan_grace_hours,omitempty"`
}

type NotificationsConfig struct {
	Enabled bool           `mapstructure:"enabled" yaml:"enabled"`
	Discord *DiscordConfig `mapstructure:"discord" yaml:"discord,omitempty"`
}

type DiscordConfig struct {
	Enabled        bool             `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL     string           `mapstructure:"webhook_url" yaml:"webhook_url"`
	TimeoutSeconds int              `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
	Events         []string         `mapstructure:"events" yaml:"events,omitempty"`
	Retry          *DiscordRetry    `mapstructure:"retry" yaml:"retry,omitempty"`
	Mentions       *DiscordMentions `mapstructure:"mentions" yaml:"mentions,omitempty"`
}

type DiscordRetry struct {
	Attempts  int `mapstructure:"attempts" yaml:"attempts"`
	BackoffMs int `mapstructure:"backoff_ms" yaml:"backoff_ms"`
}

type DiscordMentions struct {
	OnError string `mapstructure:"on_error" yaml:"on_error"`
}

func Unmarshal(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func NotificationsEnabled(n *NotificationsConfig) bool {
	return n != nil && n.Enabled
}

// PathStyle defaults to true whenever a custom endpoint is configured.
func PathStyle(b BucketConfig) bool {
	if b.PathStyle == nil {
		return b.Endpoint != ""
	}
	return *b.PathStyle
}
