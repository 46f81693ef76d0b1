package pipeline

import (
	"testing"
	"time"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Unmarshal(v)
	require.NoError(t, err)
	cfg.Source.Bucket = "logs"
	cfg.Source.Prefix = "incoming/"
	cfg.Window.MinutesBack = 15
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Target.Prefix = "compressed"

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "logs", opts.SourceBucket)
	assert.Equal(t, "incoming/", opts.SourcePrefix)
	assert.Equal(t, 15*time.Minute, opts.Lookback)
	assert.Equal(t, archive.FormatZip, opts.Archive.Format)
	assert.Equal(t, 840*time.Second, opts.Timeout)
	assert.Equal(t, 30*time.Second, opts.SafetyMargin)
	assert.Equal(t, 3, opts.Upload.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.Upload.Retry.InitialBackoff)
	assert.False(t, opts.DeleteEnabled)
	assert.False(t, opts.Delete.Unconditional)
	assert.Equal(t, []string{"compressed/archives/", "compressed/manifests/", "compressed/locks/"}, opts.ExcludePrefixes)
}

func TestOptionsFromConfig_SeparateTarget(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Target.Bucket = "archive"

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Empty(t, opts.ExcludePrefixes)
}

func TestOwnOutputPrefixes_NoPrefix(t *testing.T) {
	assert.Equal(t, []string{"archives/", "manifests/", "locks/"}, OwnOutputPrefixes(""))
}
