// Package deleter removes archived source objects, but only while they still
// carry the fingerprint recorded in the manifest.
package deleter

import (
	"context"
	"errors"
	"fmt"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/s3"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDeleteRace marks an object that changed or vanished after it was
	// archived. It is left alone and is not a run failure.
	ErrDeleteRace = errors.New("object modified since archiving")
	ErrDelete     = errors.New("delete failed")
)

type Outcome string

const (
	OutcomeDeleted         Outcome = "deleted"
	OutcomeSkippedModified Outcome = "skipped-modified"
	OutcomeFailed          Outcome = "failed"
)

type Store interface {
	HeadObject(ctx context.Context, key string) (s3.ObjectInfo, error)
	DeleteObject(ctx context.Context, key, ifMatch string) error
}

type Options struct {
	Concurrency int
	// Unconditional drops If-Match from each delete, for stores that reject
	// conditional DeleteObject. Only the HEAD comparison then guards the key.
	Unconditional bool
}

type Result struct {
	Key     string
	Outcome Outcome
	Err     error
}

type Deleter struct {
	store Store
	opts  Options
	log   zerolog.Logger
}

func New(store Store, opts Options, log zerolog.Logger) *Deleter {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Deleter{store: store, opts: opts, log: log}
}

// Delete removes every manifest entry from the source. Entries are handled
// independently; the result slice follows manifest order.
func (d *Deleter) Delete(ctx context.Context, entries []archive.Entry) []Result {
	results := make([]Result, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for i, e := range entries {
		g.Go(func() error {
			results[i] = d.deleteOne(gctx, e)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Deleter) deleteOne(ctx context.Context, e archive.Entry) Result {
	log := d.log.With().Str("key", e.Key).Logger()
	head, err := d.store.HeadObject(ctx, e.Key)
	switch {
	case errors.Is(err, s3.ErrNotFound):
		log.Info().Msg("object gone before delete, skipping")
		return Result{Key: e.Key, Outcome: OutcomeSkippedModified, Err: fmt.Errorf("%w: %s: %w", ErrDeleteRace, e.Key, err)}
	case err != nil:
		log.Error().Err(err).Msg("head before delete failed")
		return Result{Key: e.Key, Outcome: OutcomeFailed, Err: fmt.Errorf("%w: %s: %w", ErrDelete, e.Key, err)}
	}
	if s3.TrimETag(head.ETag) != s3.TrimETag(e.ETag) {
		log.Warn().Str("archived_etag", e.ETag).Str("current_etag", head.ETag).Msg("object modified since archiving, skipping")
		return Result{Key: e.Key, Outcome: OutcomeSkippedModified, Err: fmt.Errorf("%w: %s etag %s, archived %s", ErrDeleteRace, e.Key, head.ETag, e.ETag)}
	}

	ifMatch := e.ETag
	if d.opts.Unconditional {
		ifMatch = ""
	}
	err = d.store.DeleteObject(ctx, e.Key, ifMatch)
	switch {
	case err == nil:
		log.Debug().Msg("source object deleted")
		return Result{Key: e.Key, Outcome: OutcomeDeleted}
	case errors.Is(err, s3.ErrPreconditionFailed), errors.Is(err, s3.ErrNotFound):
		log.Warn().Err(err).Msg("conditional delete rejected, skipping")
		return Result{Key: e.Key, Outcome: OutcomeSkippedModified, Err: fmt.Errorf("%w: %s: %w", ErrDeleteRace, e.Key, err)}
	default:
		log.Error().Err(err).Msg("delete failed")
		return Result{Key: e.Key, Outcome: OutcomeFailed, Err: fmt.Errorf("%w: %s: %w", ErrDelete, e.Key, err)}
	}
}
