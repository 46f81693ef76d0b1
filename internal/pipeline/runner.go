// Package pipeline runs one archive pass: list the window, batch, then per
// batch compress, upload, verify and delete.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/batch"
	"VelArchiver/internal/deleter"
	"VelArchiver/internal/listing"
	"VelArchiver/internal/lock"
	"VelArchiver/internal/upload"
	"VelArchiver/internal/window"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrListing aborts a run before anything is archived.
var ErrListing = listing.ErrListing

// SourceStore is read, listed and deleted from.
type SourceStore interface {
	listing.PageLister
	archive.ObjectReader
	deleter.Store
}

type Runner struct {
	source SourceStore
	target upload.Store
	locker lock.Locker
	opts   Options
	log    zerolog.Logger

	encoder  *archive.Encoder
	uploader *upload.Uploader
	deleter  *deleter.Deleter
}

func New(source SourceStore, target upload.Store, locker lock.Locker, opts Options, log zerolog.Logger) *Runner {
	if locker == nil {
		locker = lock.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{
		source:   source,
		target:   target,
		locker:   locker,
		opts:     opts,
		log:      log,
		encoder:  archive.NewEncoder(source, opts.Archive, log),
		uploader: upload.New(target, opts.Upload, log),
		deleter:  deleter.New(source, opts.Delete, log),
	}
}

// Run executes one pass. It returns an error only for lock contention and
// listing failures; everything else is recorded in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := r.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	started := r.opts.Now().UTC()
	log := r.log.With().Str("run_id", upload.ShortRunID(runID)).Logger()

	if err := r.locker.Acquire(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("release lock failed")
		}
	}()

	win, err := window.Select(started, r.opts.Lookback)
	if err != nil {
		return nil, err
	}
	log.Info().Str("window", win.String()).Str("prefix", r.opts.SourcePrefix).Msg("listing source")

	lister := listing.New(r.source, listing.Options{
		Prefix:          r.opts.SourcePrefix,
		Window:          win,
		MaxObjects:      r.opts.MaxObjects,
		PageSize:        r.opts.PageSize,
		SkipEmpty:       r.opts.SkipEmpty,
		ExcludeSuffixes: r.opts.ExcludeSuffixes,
		ExcludePrefixes: r.opts.ExcludePrefixes,
	}, log)
	objects, err := lister.Collect(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:         runID,
		StartedAt:     started,
		Window:        win,
		DryRun:        r.opts.DryRun,
		Listing:       lister.Stats(),
		ObjectsListed: len(objects),
	}
	if lister.Stats().Capped {
		log.Warn().Int("max_objects", r.opts.MaxObjects).Msg("listing capped, remaining objects wait for the next run")
	}

	batches := batch.Partition(objects, r.opts.BatchMaxObjects, r.opts.BatchMaxBytes)
	log.Info().Int("objects", len(objects)).Int("batches", len(batches)).Msg("batches planned")

	if r.opts.DryRun {
		for _, b := range batches {
			rep.Batches = append(rep.Batches, BatchReport{Index: b.Index, Status: b.Status, Objects: len(b.Objects), Bytes: b.TotalBytes, Keys: objectKeys(b)})
		}
		rep.finalize(r.opts.Now().UTC())
		return rep, nil
	}

	deadline := started.Add(r.opts.Timeout - r.opts.SafetyMargin)
	reports := make([]BatchReport, len(batches))
	errs := make([][]ObjectError, len(batches))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, b := range batches {
		g.Go(func() error {
			if reason := r.stopReason(ctx, deadline); reason != "" {
				b.Status = batch.StatusDeferred
				reports[i] = BatchReport{Index: b.Index, Status: b.Status, Objects: len(b.Objects), Bytes: b.TotalBytes, Error: reason, Keys: objectKeys(b)}
				log.Warn().Int("batch", b.Index).Str("reason", reason).Msg("batch deferred")
				return nil
			}
			// a started batch always reaches its verify/delete decision
			reports[i], errs[i] = r.processBatch(context.WithoutCancel(ctx), b, runID, started, win, log)
			return nil
		})
	}
	_ = g.Wait()

	rep.Batches = reports
	for _, e := range errs {
		rep.Errors = append(rep.Errors, e...)
	}
	rep.finalize(r.opts.Now().UTC())
	return rep, nil
}

func (r *Runner) stopReason(ctx context.Context, deadline time.Time) string {
	if err := ctx.Err(); err != nil {
		return "cancelled: " + err.Error()
	}
	if r.opts.Timeout > 0 && !r.opts.Now().Before(deadline) {
		return "time budget exhausted"
	}
	return ""
}

func (r *Runner) processBatch(ctx context.Context, b *batch.Batch, runID string, runAt time.Time, win window.TimeWindow, runLog zerolog.Logger) (BatchReport, []ObjectError) {
	log := runLog.With().Int("batch", b.Index).Logger()
	br := BatchReport{Index: b.Index, Objects: len(b.Objects), Bytes: b.TotalBytes}
	var objErrs []ObjectError
	fail := func(err error) (BatchReport, []ObjectError) {
		b.Status = batch.StatusFailed
		br.Status = b.Status
		br.Error = err.Error()
		log.Error().Err(err).Msg("batch failed, sources kept for the next run")
		return br, objErrs
	}

	res, err := r.encoder.Encode(ctx, b.Objects)
	if res != nil {
		defer func() {
			if err := res.Remove(); err != nil {
				log.Warn().Err(err).Str("path", res.Path).Msg("remove local archive failed")
			}
		}()
		for _, f := range res.Failures {
			objErrs = append(objErrs, ObjectError{Key: f.Key, Batch: b.Index, Stage: StageRead, Error: f.Err.Error()})
		}
	}
	if err != nil {
		return fail(err)
	}
	b.Status = batch.StatusCompressed
	br.Archived = len(res.Entries)
	br.ArchivedBytes = res.SourceBytes()
	br.ArchiveSize = res.Size

	archiveKey, manifestKey := upload.Keys(upload.KeyParams{
		RunAt:  runAt,
		RunID:  runID,
		Window: win,
		Batch:  b.Index,
		Format: res.Format,
	})
	b.ArchiveKey = archiveKey
	br.ArchiveKey = archiveKey

	stored, err := r.uploader.Archive(ctx, archiveKey, res)
	if err != nil {
		return fail(err)
	}
	b.Status = batch.StatusUploaded

	manifest := &archive.Manifest{
		Version:       archive.ManifestVersion,
		RunID:         runID,
		Batch:         b.Index,
		CreatedAt:     r.opts.Now().UTC(),
		Window:        win,
		SourceBucket:  r.opts.SourceBucket,
		ArchiveKey:    archiveKey,
		Format:        res.Format,
		ArchiveSize:   res.Size,
		ArchiveBlake3: res.Blake3,
		ArchiveETag:   stored.ETag,
		Entries:       res.Entries,
	}
	if err := r.uploader.Manifest(ctx, manifestKey, manifest); err != nil {
		return fail(fmt.Errorf("manifest: %w", err))
	}
	b.Status = batch.StatusVerified
	br.Status = b.Status
	br.ManifestKey = manifestKey
	log.Info().
		Str("archive", archiveKey).
		Int("entries", len(res.Entries)).
		Int("skipped", len(res.Failures)).
		Msg("batch archived")

	if !r.opts.DeleteEnabled {
		return br, objErrs
	}

	for _, dr := range r.deleter.Delete(ctx, manifest.Entries) {
		switch dr.Outcome {
		case deleter.OutcomeDeleted:
			br.Deleted++
		case deleter.OutcomeSkippedModified:
			br.SkippedModified++
			objErrs = append(objErrs, ObjectError{Key: dr.Key, Batch: b.Index, Stage: StageSkippedModified, Error: errText(dr.Err)})
		default:
			br.DeleteErrors++
			objErrs = append(objErrs, ObjectError{Key: dr.Key, Batch: b.Index, Stage: StageDelete, Error: errText(dr.Err)})
		}
	}
	b.Status = batch.StatusDeleted
	br.Status = b.Status
	log.Info().
		Int("deleted", br.Deleted).
		Int("skipped_modified", br.SkippedModified).
		Int("errors", br.DeleteErrors).
		Msg("source objects removed")
	return br, objErrs
}

func objectKeys(b *batch.Batch) []string {
	keys := make([]string, 0, len(b.Objects))
	for _, o := range b.Objects {
		keys = append(keys, o.Key)
	}
	return keys
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
