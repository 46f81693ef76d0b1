// Package archive builds compressed archives from batches of source objects
// and reads them back for verification.
package archive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"VelArchiver/internal/listing"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

var (
	ErrObjectRead   = errors.New("object read failed")
	ErrBatchRead    = errors.New("no object in batch could be read")
	ErrArchiveWrite = errors.New("archive write failed")
)

const DefaultMemoryThreshold = 8 << 20

// ObjectReader opens source objects, failing when the ETag no longer matches.
type ObjectReader interface {
	GetObject(ctx context.Context, key, ifMatch string) (io.ReadCloser, error)
}

type Options struct {
	Format          Format
	Level           int
	SpoolDir        string
	MemoryThreshold int64
}

// ObjectFailure is a batch member left out of the archive.
type ObjectFailure struct {
	Key string
	Err error
}

// Result is a finished archive on local disk.
type Result struct {
	Path     string
	Format   Format
	Size     int64
	Blake3   string
	Entries  []Entry
	Failures []ObjectFailure
}

// SourceBytes is the uncompressed size of everything archived.
func (r *Result) SourceBytes() int64 {
	var n int64
	for _, e := range r.Entries {
		n += e.Size
	}
	return n
}

// Remove deletes the local archive file.
func (r *Result) Remove() error {
	if r == nil || r.Path == "" {
		return nil
	}
	err := os.Remove(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type Encoder struct {
	store ObjectReader
	opts  Options
	log   zerolog.Logger
}

func NewEncoder(store ObjectReader, opts Options, log zerolog.Logger) *Encoder {
	if opts.Format == "" {
		opts.Format = FormatZip
	}
	if opts.MemoryThreshold <= 0 {
		opts.MemoryThreshold = DefaultMemoryThreshold
	}
	return &Encoder{store: store, opts: opts, log: log}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Encode reads every object with a conditional GET and writes the readable
// ones into a new archive file. Unreadable objects are reported in
// Result.Failures and wrap ErrObjectRead. When nothing could be read the
// error wraps ErrBatchRead and no file is left behind; the returned Result
// still carries the failures.
func (e *Encoder) Encode(ctx context.Context, objects []listing.SourceObject) (*Result, error) {
	f, err := os.CreateTemp(e.opts.SpoolDir, "velarchiver-*"+e.opts.Format.Extension())
	if err != nil {
		return nil, fmt.Errorf("%w: create archive file: %w", ErrArchiveWrite, err)
	}
	res := &Result{Path: f.Name(), Format: e.opts.Format}
	fail := func(err error) (*Result, error) {
		_ = f.Close()
		_ = res.Remove()
		res.Path = ""
		return res, err
	}

	h := blake3.New()
	cw := &countingWriter{w: io.MultiWriter(f, h)}
	c, err := newContainer(cw, e.opts.Format, e.opts.Level)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrArchiveWrite, err))
	}

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		sp, err := e.fetch(ctx, obj)
		if err != nil {
			res.Failures = append(res.Failures, ObjectFailure{Key: obj.Key, Err: err})
			e.log.Warn().Err(err).Str("key", obj.Key).Msg("skipping unreadable object")
			continue
		}
		r, err := sp.reader()
		if err == nil {
			err = c.Add(obj.Key, sp.size, obj.LastModified, r)
		}
		sp.release()
		if err != nil {
			return fail(fmt.Errorf("%w: %w", ErrArchiveWrite, err))
		}
		res.Entries = append(res.Entries, Entry{
			Key:          obj.Key,
			Size:         sp.size,
			Checksum:     sp.checksum,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}

	if len(res.Entries) == 0 {
		_ = c.Close()
		return fail(fmt.Errorf("%w: %d of %d objects failed", ErrBatchRead, len(res.Failures), len(objects)))
	}
	if err := c.Close(); err != nil {
		return fail(fmt.Errorf("%w: finish archive: %w", ErrArchiveWrite, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("%w: sync archive: %w", ErrArchiveWrite, err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("%w: close archive: %w", ErrArchiveWrite, err))
	}

	res.Size = cw.n
	res.Blake3 = hex.EncodeToString(h.Sum(nil))
	e.log.Debug().
		Int("entries", len(res.Entries)).
		Int("failed", len(res.Failures)).
		Int64("size", res.Size).
		Msg("archive encoded")
	return res, nil
}

func (e *Encoder) fetch(ctx context.Context, obj listing.SourceObject) (*spooled, error) {
	rc, err := e.store.GetObject(ctx, obj.Key, obj.ETag)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrObjectRead, obj.Key, err)
	}
	defer rc.Close()
	sp, err := spool(rc, obj.Size, e.opts.MemoryThreshold, e.opts.SpoolDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrObjectRead, obj.Key, err)
	}
	return sp, nil
}
