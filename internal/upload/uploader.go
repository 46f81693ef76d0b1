// Package upload writes finished archives and manifests to the target store
// and proves the stored bytes match what was written.
package upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/s3"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

var (
	ErrUpload       = errors.New("upload failed")
	ErrVerification = errors.New("upload verification failed")
)

const (
	VerifyETag     = "etag"
	VerifyReadback = "readback"
)

// Store is the target side of the object store.
type Store interface {
	HeadObject(ctx context.Context, key string) (s3.ObjectInfo, error)
	GetObject(ctx context.Context, key, ifMatch string) (io.ReadCloser, error)
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts s3.PutOptions) (string, error)
	DeleteObject(ctx context.Context, key, ifMatch string) error
	CreateMultipartUpload(ctx context.Context, key string, opts s3.PutOptions) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64, contentMD5 string) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []s3.CompletedPart, ifNoneMatch bool) (string, error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

type Options struct {
	MultipartThreshold   int64
	PartSize             int64
	Verify               string
	ServerSideEncryption string
	IfNoneMatch          bool
	Retry                RetryPolicy
}

// Stored describes an archive that passed verification.
type Stored struct {
	Key        string
	ETag       string
	Size       int64
	Parts      int
	VerifiedBy string
}

type Uploader struct {
	store Store
	opts  Options
	log   zerolog.Logger
}

func New(store Store, opts Options, log zerolog.Logger) *Uploader {
	if opts.PartSize < s3.MinPartSizeBytes {
		opts.PartSize = s3.MinPartSizeBytes
	}
	if opts.MultipartThreshold < opts.PartSize {
		opts.MultipartThreshold = opts.PartSize
	}
	if opts.Verify == "" {
		opts.Verify = VerifyETag
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Uploader{store: store, opts: opts, log: log}
}

// Archive uploads the encoded archive under key and verifies it. Errors wrap
// ErrUpload or ErrVerification. On any failure the partial or unverified
// object is removed best-effort.
func (u *Uploader) Archive(ctx context.Context, key string, res *archive.Result) (Stored, error) {
	f, err := os.Open(res.Path)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: open %s: %w", ErrUpload, res.Path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Stored{}, fmt.Errorf("%w: stat %s: %w", ErrUpload, res.Path, err)
	}
	size := st.Size()

	put := s3.PutOptions{
		ContentType:          res.Format.ContentType(),
		ServerSideEncryption: u.opts.ServerSideEncryption,
		IfNoneMatch:          u.opts.IfNoneMatch,
	}

	var stored Stored
	var expected string
	if size < u.opts.MultipartThreshold {
		stored, expected, err = u.putSingle(ctx, key, f, size, put)
	} else {
		stored, expected, err = u.putMultipart(ctx, key, f, size, put)
	}
	if err != nil {
		// a collision means the key belongs to someone else
		if !errors.Is(err, s3.ErrPreconditionFailed) {
			u.discard(ctx, key)
		}
		return Stored{}, err
	}

	if err := u.verify(ctx, &stored, expected, res.Blake3); err != nil {
		u.discard(ctx, key)
		return Stored{}, err
	}
	u.log.Info().
		Str("key", key).
		Int64("size", stored.Size).
		Int("parts", stored.Parts).
		Str("verified_by", stored.VerifiedBy).
		Msg("archive uploaded")
	return stored, nil
}

func (u *Uploader) putSingle(ctx context.Context, key string, f *os.File, size int64, put s3.PutOptions) (Stored, string, error) {
	h := md5.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, size)); err != nil {
		return Stored{}, "", fmt.Errorf("%w: hash %s: %w", ErrUpload, key, err)
	}
	sum := h.Sum(nil)
	put.ContentMD5 = s3.ContentMD5(sum)

	md5Hex := hex.EncodeToString(sum)
	var etag string
	err := u.opts.Retry.Do(ctx, func(attempt int) error {
		var err error
		etag, err = u.store.PutObject(ctx, key, io.NewSectionReader(f, 0, size), size, put)
		if errors.Is(err, s3.ErrPreconditionFailed) && attempt > 1 {
			if own, ok := u.earlierWrite(ctx, key, size, md5Hex); ok {
				etag = own
				return nil
			}
		}
		if err != nil {
			u.log.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("put archive failed")
		}
		return err
	})
	if err != nil {
		return Stored{}, "", fmt.Errorf("%w: put %s: %w", ErrUpload, key, err)
	}
	return Stored{Key: key, ETag: etag, Size: size, Parts: 1}, md5Hex, nil
}

// earlierWrite reports whether the object already at key is the one a
// previous attempt wrote before its response was lost. Only an MD5 ETag can
// prove that; anything else stays a collision.
func (u *Uploader) earlierWrite(ctx context.Context, key string, size int64, md5Hex string) (string, bool) {
	head, err := u.store.HeadObject(ctx, key)
	if err != nil || head.Size != size || !s3.IsMD5ETag(head.ETag) || s3.TrimETag(head.ETag) != md5Hex {
		return "", false
	}
	u.log.Info().Str("key", key).Msg("object from an earlier attempt already stored")
	return head.ETag, true
}

// partSize grows the configured part size when the file would need more
// parts than S3 allows.
func (u *Uploader) partSize(size int64) int64 {
	ps := u.opts.PartSize
	if n := (size + ps - 1) / ps; n > s3.MaxParts {
		ps = (size + s3.MaxParts - 1) / s3.MaxParts
	}
	return ps
}

func (u *Uploader) putMultipart(ctx context.Context, key string, f *os.File, size int64, put s3.PutOptions) (Stored, string, error) {
	uploadID, err := u.store.CreateMultipartUpload(ctx, key, put)
	if err != nil {
		return Stored{}, "", fmt.Errorf("%w: %s: %w", ErrUpload, key, err)
	}
	abort := func() {
		if err := u.store.AbortMultipartUpload(context.WithoutCancel(ctx), key, uploadID); err != nil {
			u.log.Warn().Err(err).Str("key", key).Str("upload_id", uploadID).Msg("abort multipart upload failed")
		}
	}

	ps := u.partSize(size)
	var parts []s3.CompletedPart
	var sums [][]byte
	for off, n := int64(0), int32(1); off < size; off, n = off+ps, n+1 {
		length := min(ps, size-off)
		h := md5.New()
		if _, err := io.Copy(h, io.NewSectionReader(f, off, length)); err != nil {
			abort()
			return Stored{}, "", fmt.Errorf("%w: hash part %d of %s: %w", ErrUpload, n, key, err)
		}
		sum := h.Sum(nil)

		var etag string
		err := u.opts.Retry.Do(ctx, func(attempt int) error {
			var err error
			etag, err = u.store.UploadPart(ctx, key, uploadID, n, io.NewSectionReader(f, off, length), length, s3.ContentMD5(sum))
			if err != nil {
				u.log.Warn().Err(err).Str("key", key).Int32("part", n).Int("attempt", attempt).Msg("upload part failed")
			}
			return err
		})
		if err != nil {
			abort()
			return Stored{}, "", fmt.Errorf("%w: %s part %d: %w", ErrUpload, key, n, err)
		}
		if s3.TrimETag(etag) != hex.EncodeToString(sum) && s3.IsMD5ETag(etag) {
			abort()
			return Stored{}, "", fmt.Errorf("%w: %s part %d etag %s, expected %x", ErrVerification, key, n, etag, sum)
		}
		parts = append(parts, s3.CompletedPart{PartNumber: n, ETag: etag})
		sums = append(sums, sum)
	}

	etag, err := u.store.CompleteMultipartUpload(ctx, key, uploadID, parts, put.IfNoneMatch)
	if err != nil {
		abort()
		return Stored{}, "", fmt.Errorf("%w: complete %s: %w", ErrUpload, key, err)
	}
	return Stored{Key: key, ETag: etag, Size: size, Parts: len(parts)}, s3.MultipartETag(sums), nil
}

func (u *Uploader) verify(ctx context.Context, stored *Stored, expectedETag, blake3Hex string) error {
	head, err := u.store.HeadObject(ctx, stored.Key)
	if err != nil {
		return fmt.Errorf("%w: head %s: %w", ErrVerification, stored.Key, err)
	}
	if head.Size != stored.Size {
		return fmt.Errorf("%w: %s stored size %d, local %d", ErrVerification, stored.Key, head.Size, stored.Size)
	}
	stored.ETag = head.ETag

	if u.opts.Verify == VerifyETag && s3.IsMD5ETag(head.ETag) {
		if s3.TrimETag(head.ETag) != expectedETag {
			return fmt.Errorf("%w: %s etag %s, expected %s", ErrVerification, stored.Key, head.ETag, expectedETag)
		}
		stored.VerifiedBy = VerifyETag
		return nil
	}
	if err := u.readback(ctx, stored.Key, head.ETag, blake3Hex); err != nil {
		return err
	}
	stored.VerifiedBy = VerifyReadback
	return nil
}

func (u *Uploader) readback(ctx context.Context, key, etag, want string) error {
	rc, err := u.store.GetObject(ctx, key, etag)
	if err != nil {
		return fmt.Errorf("%w: readback %s: %w", ErrVerification, key, err)
	}
	defer rc.Close()
	h := blake3.New()
	if _, err := io.Copy(h, rc); err != nil {
		return fmt.Errorf("%w: readback %s: %w", ErrVerification, key, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		return fmt.Errorf("%w: %s blake3 %s, local %s", ErrVerification, key, got, want)
	}
	return nil
}

func (u *Uploader) discard(ctx context.Context, key string) {
	if err := u.store.DeleteObject(context.WithoutCancel(ctx), key, ""); err != nil {
		u.log.Warn().Err(err).Str("key", key).Msg("could not remove unverified archive")
	}
}

// Manifest writes m as JSON under key. It must only be called after the
// archive it describes was verified.
func (u *Uploader) Manifest(ctx context.Context, key string, m *archive.Manifest) error {
	body, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("%w: encode manifest: %w", ErrUpload, err)
	}
	sum := md5.Sum(body)
	put := s3.PutOptions{
		ContentMD5:           s3.ContentMD5(sum[:]),
		ContentType:          "application/json",
		ServerSideEncryption: u.opts.ServerSideEncryption,
		IfNoneMatch:          u.opts.IfNoneMatch,
	}
	err = u.opts.Retry.Do(ctx, func(attempt int) error {
		etag, err := u.store.PutObject(ctx, key, bytes.NewReader(body), int64(len(body)), put)
		if errors.Is(err, s3.ErrPreconditionFailed) && attempt > 1 {
			if _, ok := u.earlierWrite(ctx, key, int64(len(body)), hex.EncodeToString(sum[:])); ok {
				return nil
			}
		}
		if err != nil {
			u.log.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("put manifest failed")
			return err
		}
		if s3.IsMD5ETag(etag) && s3.TrimETag(etag) != hex.EncodeToString(sum[:]) {
			return fmt.Errorf("%w: manifest %s etag %s", ErrVerification, key, etag)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVerification) {
			return err
		}
		return fmt.Errorf("%w: manifest %s: %w", ErrUpload, key, err)
	}
	return nil
}
