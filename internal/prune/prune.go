// Package prune removes archives past retention together with their
// manifests, and sweeps archives left without a manifest by failed runs.
package prune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/config"
	"VelArchiver/internal/s3"
	"VelArchiver/internal/upload"

	"github.com/rs/zerolog"
)

type Store interface {
	ListObjects(ctx context.Context, prefix string, maxKeys int32) ([]s3.ObjectInfo, error)
	GetObject(ctx context.Context, key, ifMatch string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key, ifMatch string) error
}

type Options struct {
	Retention *config.RetentionConfig
	Now       time.Time
	DryRun    bool
}

type Result struct {
	Expired  []string `json:"expired"`
	Orphans  []string `json:"orphans"`
	Kept     int      `json:"kept"`
	DryRun   bool     `json:"dry_run"`
	Failures []string `json:"failures,omitempty"`
}

// Run lists both trees once. Per-key delete failures are collected in the
// result; only listing errors abort.
func Run(ctx context.Context, store Store, opts Options, log zerolog.Logger) (*Result, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	manifests, err := store.ListObjects(ctx, s3.ManifestsPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	archives, err := store.ListObjects(ctx, s3.ArchivesPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	res := &Result{DryRun: opts.DryRun}
	cutoff := config.RetainUntil(opts.Now, opts.Retention)
	hasManifest := make(map[string]bool, len(manifests))
	removed := make(map[string]bool)

	for _, m := range manifests {
		hasManifest[m.Key] = true
		if cutoff.IsZero() || !archivedAt(m).Before(cutoff) {
			res.Kept++
			continue
		}
		archiveKey, err := archiveKeyOf(ctx, store, m.Key)
		if err != nil {
			res.Failures = append(res.Failures, err.Error())
			continue
		}
		log.Info().Str("manifest", m.Key).Str("archive", archiveKey).Bool("dry_run", opts.DryRun).Msg("archive expired")
		if !opts.DryRun {
			if err := remove(ctx, store, archiveKey); err != nil {
				res.Failures = append(res.Failures, err.Error())
				continue
			}
			if err := remove(ctx, store, m.Key); err != nil {
				res.Failures = append(res.Failures, err.Error())
				continue
			}
		}
		removed[archiveKey] = true
		res.Expired = append(res.Expired, m.Key)
	}

	orphanBefore := config.OrphanCutoff(opts.Now, opts.Retention)
	for _, a := range archives {
		if removed[a.Key] || hasManifest[s3.ManifestKeyForArchive(a.Key)] {
			continue
		}
		if !a.LastModified.Before(orphanBefore) {
			continue
		}
		log.Warn().Str("archive", a.Key).Time("last_modified", a.LastModified).Bool("dry_run", opts.DryRun).Msg("orphan archive")
		if !opts.DryRun {
			if err := remove(ctx, store, a.Key); err != nil {
				res.Failures = append(res.Failures, err.Error())
				continue
			}
		}
		res.Orphans = append(res.Orphans, a.Key)
	}
	return res, nil
}

// Err joins the per-key failures.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, errors.New(f))
	}
	return errors.Join(errs...)
}

// archivedAt prefers the run stamp in the key over LastModified, which a
// copy or restore of the bucket would reset.
func archivedAt(o s3.ObjectInfo) time.Time {
	if t, ok := upload.RunTimeFromName(path.Base(o.Key)); ok {
		return t
	}
	return o.LastModified
}

func archiveKeyOf(ctx context.Context, store Store, manifestKey string) (string, error) {
	rc, err := store.GetObject(ctx, manifestKey, "")
	if err != nil {
		return "", fmt.Errorf("get manifest %s: %w", manifestKey, err)
	}
	defer rc.Close()
	m, err := archive.ParseManifest(rc)
	if err != nil {
		return "", fmt.Errorf("manifest %s: %w", manifestKey, err)
	}
	return m.ArchiveKey, nil
}

func remove(ctx context.Context, store Store, key string) error {
	if err := store.DeleteObject(ctx, key, ""); err != nil && !errors.Is(err, s3.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
