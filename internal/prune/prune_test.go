package prune

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/config"
	"VelArchiver/internal/s3"
	"VelArchiver/internal/s3/s3mem"
	"VelArchiver/internal/upload"
	"VelArchiver/internal/window"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// put writes an archive and, unless orphan, its manifest for a run at runAt.
func put(t *testing.T, store *s3mem.Store, runAt time.Time, orphan bool) (archiveKey, manifestKey string) {
	t.Helper()
	archiveKey, manifestKey = upload.Keys(upload.KeyParams{
		RunAt:  runAt,
		RunID:  "5c6d7e8f-0000-4000-8000-000000000000",
		Window: window.TimeWindow{Start: runAt.Add(-time.Hour), End: runAt},
		Batch:  1,
		Format: archive.FormatTarGz,
	})
	store.Raw().Put(store.Key(archiveKey), []byte("archive bytes"), runAt)
	if orphan {
		return archiveKey, ""
	}
	data, err := (&archive.Manifest{Version: archive.ManifestVersion, ArchiveKey: archiveKey, Format: archive.FormatTarGz}).Marshal()
	require.NoError(t, err)
	store.Raw().Put(store.Key(manifestKey), data, runAt)
	return archiveKey, manifestKey
}

func exists(store *s3mem.Store, key string) bool {
	_, ok := store.Raw().Get(store.Key(key))
	return ok
}

func TestRun_ExpiresPastRetention(t *testing.T) {
	store := s3mem.NewBucket("archive").Store("compressed")
	oldArchive, oldManifest := put(t, store, now.AddDate(0, 0, -40), false)
	newArchive, newManifest := put(t, store, now.AddDate(0, 0, -5), false)

	res, err := Run(context.Background(), store, Options{Retention: &config.RetentionConfig{Days: 30}, Now: now}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{oldManifest}, res.Expired)
	assert.Equal(t, 1, res.Kept)
	assert.Empty(t, res.Orphans)
	require.NoError(t, res.Err())

	assert.False(t, exists(store, oldArchive))
	assert.False(t, exists(store, oldManifest))
	assert.True(t, exists(store, newArchive))
	assert.True(t, exists(store, newManifest))
}

func TestRun_DryRunDeletesNothing(t *testing.T) {
	store := s3mem.New("archive")
	oldArchive, oldManifest := put(t, store, now.AddDate(0, 0, -40), false)
	orphan, _ := put(t, store, now.AddDate(0, 0, -3), true)

	res, err := Run(context.Background(), store, Options{Retention: &config.RetentionConfig{Days: 30}, Now: now, DryRun: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, []string{oldManifest}, res.Expired)
	assert.Equal(t, []string{orphan}, res.Orphans)
	assert.Zero(t, store.Raw().DeleteCalls())
	assert.True(t, exists(store, oldArchive))
}

func TestRun_NoRetentionKeepsEverything(t *testing.T) {
	store := s3mem.New("archive")
	put(t, store, now.AddDate(-1, 0, 0), false)

	res, err := Run(context.Background(), store, Options{Now: now}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, res.Expired)
	assert.Equal(t, 1, res.Kept)
}

func TestRun_OrphanSweepHonoursGrace(t *testing.T) {
	store := s3mem.New("archive")
	stale, _ := put(t, store, now.Add(-48*time.Hour), true)
	fresh, _ := put(t, store, now.Add(-time.Hour), true)

	res, err := Run(context.Background(), store, Options{Retention: &config.RetentionConfig{OrphanGraceHours: 24}, Now: now}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, res.Orphans)
	assert.False(t, exists(store, stale))
	assert.True(t, exists(store, fresh))
}

func TestRun_ArchiveWithManifestIsNotOrphan(t *testing.T) {
	store := s3mem.New("archive")
	archiveKey, _ := put(t, store, now.AddDate(0, 0, -10), false)

	res, err := Run(context.Background(), store, Options{Now: now}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, res.Orphans)
	assert.True(t, exists(store, archiveKey))
}

func TestRun_DeleteFailureIsCollected(t *testing.T) {
	bucket := s3mem.NewBucket("archive")
	store := bucket.Store("")
	_, oldManifest := put(t, store, now.AddDate(0, 0, -40), false)
	bucket.DeleteErr = func(key string) error {
		if strings.HasPrefix(key, "archives/") {
			return errors.New("access denied")
		}
		return nil
	}

	res, err := Run(context.Background(), store, Options{Retention: &config.RetentionConfig{Days: 30}, Now: now}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, res.Expired)
	require.Len(t, res.Failures, 1)
	assert.ErrorContains(t, res.Err(), "access denied")
	assert.True(t, exists(store, oldManifest))
}

func TestRun_ListFailureAborts(t *testing.T) {
	bucket := s3mem.NewBucket("archive")
	bucket.ListErr = func(string) error { return errors.New("list denied") }

	_, err := Run(context.Background(), bucket.Store(""), Options{Now: now}, zerolog.Nop())
	assert.ErrorContains(t, err, "list denied")
}

func TestArchivedAt_FallsBackToLastModified(t *testing.T) {
	lm := now.Add(-time.Hour)
	assert.Equal(t, lm, archivedAt(s3.ObjectInfo{Key: "manifests/2025/01/01/custom.json", LastModified: lm}))
}
