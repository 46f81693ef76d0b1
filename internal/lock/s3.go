package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"VelArchiver/internal/s3"
)

// ObjectStore is the subset of the target store the S3 lock uses.
type ObjectStore interface {
	HeadObject(ctx context.Context, key string) (s3.ObjectInfo, error)
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts s3.PutOptions) (string, error)
	DeleteObject(ctx context.Context, key, ifMatch string) error
}

// S3Locker keeps a lock object under locks/ in the target. Creation uses
// If-None-Match so two runs cannot both win; release deletes only the
// object this holder wrote.
type S3Locker struct {
	store ObjectStore
	key   string
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	etag  string
	held  bool
}

type S3Options struct {
	Store ObjectStore
	Name  string
	TTL   time.Duration
}

func NewS3(opts S3Options) (*S3Locker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("s3 lock: store is required")
	}
	return &S3Locker{
		store: opts.Store,
		key:   s3.LockKey(safeName(opts.Name)),
		ttl:   opts.TTL,
		now:   time.Now,
	}, nil
}

func (l *S3Locker) Key() string {
	return l.key
}

func (l *S3Locker) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return fmt.Errorf("s3 lock already held by this process")
	}

	head, err := l.store.HeadObject(ctx, l.key)
	switch {
	case errors.Is(err, s3.ErrNotFound):
	case err != nil:
		return fmt.Errorf("s3 lock head: %w", err)
	default:
		if l.ttl <= 0 || l.now().Sub(head.LastModified) < l.ttl {
			return fmt.Errorf("%w: %s written %s", ErrLocked, l.key, head.LastModified.Format(time.RFC3339))
		}
		if err := l.store.DeleteObject(ctx, l.key, head.ETag); err != nil && !errors.Is(err, s3.ErrNotFound) {
			if errors.Is(err, s3.ErrPreconditionFailed) {
				return fmt.Errorf("%w: %s replaced concurrently", ErrLocked, l.key)
			}
			return fmt.Errorf("s3 lock stale but delete failed: %w", err)
		}
	}

	body := l.now().UTC().Format(time.RFC3339Nano)
	etag, err := l.store.PutObject(ctx, l.key, strings.NewReader(body), int64(len(body)), s3.PutOptions{
		ContentType: "text/plain",
		IfNoneMatch: true,
	})
	if errors.Is(err, s3.ErrPreconditionFailed) {
		return fmt.Errorf("%w: %s", ErrLocked, l.key)
	}
	if err != nil {
		return fmt.Errorf("s3 lock put: %w", err)
	}
	l.etag = etag
	l.held = true
	return nil
}

func (l *S3Locker) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false
	err := l.store.DeleteObject(ctx, l.key, l.etag)
	if err != nil && !errors.Is(err, s3.ErrNotFound) && !errors.Is(err, s3.ErrPreconditionFailed) {
		return fmt.Errorf("s3 lock release: %w", err)
	}
	return nil
}
