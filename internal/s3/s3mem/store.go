// Package s3mem is an in-memory stand-in for one S3 bucket with the same
// method set as s3.Client. It honours conditional requests and computes
// ETags the way S3 does, which makes it usable for end-to-end pipeline tests.
package s3mem

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"VelArchiver/internal/s3"
)

// Bucket holds the objects. The hook fields are read without locking and
// must be set before the bucket is shared.
type Bucket struct {
	Name string

	// Now stamps LastModified on writes. Defaults to time.Now.
	Now func() time.Time
	// ListErr, GetErr, PutErr and DeleteErr inject failures per key or prefix.
	ListErr   func(prefix string) error
	GetErr    func(key string) error
	PutErr    func(key string) error
	DeleteErr func(key string) error
	// BeforeDelete runs outside the lock right before a delete is applied.
	BeforeDelete func(key string)
	// MutatePut rewrites the bytes a PutObject or multipart completion stores.
	MutatePut func(key string, data []byte) []byte
	// AfterPut runs once a PutObject has stored its object. A non-nil error
	// replaces the response, as if the reply was lost.
	AfterPut func(key string) error
	// IgnoreIfMatch makes deletes unconditional, like stores that do not
	// support conditional DeleteObject.
	IgnoreIfMatch bool

	mu       sync.Mutex
	objects  map[string]*object
	uploads  map[string]*upload
	nextID   int
	deletes  int
	getCalls int
}

type object struct {
	data         []byte
	etag         string
	lastModified time.Time
}

type upload struct {
	key   string
	opts  s3.PutOptions
	parts map[int32][]byte
}

// Store is a view of a Bucket under an optional key prefix.
type Store struct {
	b      *Bucket
	prefix string
}

func NewBucket(name string) *Bucket {
	return &Bucket{
		Name:    name,
		Now:     time.Now,
		objects: make(map[string]*object),
		uploads: make(map[string]*upload),
	}
}

// New returns a store over a fresh bucket without prefix.
func New(name string) *Store {
	return NewBucket(name).Store("")
}

func (b *Bucket) Store(prefix string) *Store {
	return &Store{b: b, prefix: strings.Trim(prefix, "/")}
}

// Put stores data under the full key with an explicit LastModified.
func (b *Bucket) Put(key string, data []byte, lastModified time.Time) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])
	b.objects[key] = &object{data: append([]byte(nil), data...), etag: etag, lastModified: lastModified.UTC()}
	return etag
}

func (b *Bucket) Get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// Keys returns all full keys in lexicographic order.
func (b *Bucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedKeysLocked("")
}

func (b *Bucket) DeleteCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletes
}

func (b *Bucket) GetCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getCalls
}

func (b *Bucket) PendingUploads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

func (b *Bucket) sortedKeysLocked(prefix string) []string {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (b *Bucket) now() time.Time {
	if b.Now == nil {
		return time.Now().UTC()
	}
	return b.Now().UTC()
}

func (s *Store) Bucket() string {
	return s.b.Name
}

func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) Raw() *Bucket {
	return s.b
}

func (s *Store) Key(relative string) string {
	if s.prefix == "" {
		return relative
	}
	return path.Join(s.prefix, strings.Trim(relative, "/"))
}

func (s *Store) Relative(fullKey string) string {
	if s.prefix == "" {
		return fullKey
	}
	return strings.TrimPrefix(strings.TrimPrefix(fullKey, s.prefix), "/")
}

// ListPage pages through full keys under prefix. The continuation token is
// the last key of the previous page.
func (s *Store) ListPage(ctx context.Context, prefix, token string, pageSize int32) (s3.Page, error) {
	if err := ctx.Err(); err != nil {
		return s3.Page{}, err
	}
	if s.b.ListErr != nil {
		if err := s.b.ListErr(prefix); err != nil {
			return s3.Page{}, err
		}
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	var page s3.Page
	for _, k := range s.b.sortedKeysLocked(prefix) {
		if token != "" && k <= token {
			continue
		}
		if int32(len(page.Objects)) == pageSize {
			page.Truncated = true
			page.NextToken = page.Objects[len(page.Objects)-1].Key
			break
		}
		o := s.b.objects[k]
		page.Objects = append(page.Objects, s3.ObjectInfo{
			Key:          k,
			Size:         int64(len(o.data)),
			LastModified: o.lastModified,
			ETag:         o.etag,
		})
	}
	return page, nil
}

func (s *Store) ListObjects(ctx context.Context, prefix string, maxKeys int32) ([]s3.ObjectInfo, error) {
	fullPrefix := s.Key(prefix)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}
	var out []s3.ObjectInfo
	token := ""
	for {
		page, err := s.ListPage(ctx, fullPrefix, token, 1000)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Objects {
			o.Key = s.Relative(o.Key)
			out = append(out, o)
			if maxKeys > 0 && int32(len(out)) >= maxKeys {
				return out, nil
			}
		}
		if !page.Truncated {
			return out, nil
		}
		token = page.NextToken
	}
}

func (s *Store) HeadObject(ctx context.Context, key string) (s3.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return s3.ObjectInfo{}, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	o, ok := s.b.objects[s.Key(key)]
	if !ok {
		return s3.ObjectInfo{}, fmt.Errorf("head %s: %w", key, s3.ErrNotFound)
	}
	return s3.ObjectInfo{Key: key, Size: int64(len(o.data)), LastModified: o.lastModified, ETag: o.etag}, nil
}

func (s *Store) GetObject(ctx context.Context, key, ifMatch string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.b.GetErr != nil {
		if err := s.b.GetErr(key); err != nil {
			return nil, err
		}
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.getCalls++
	o, ok := s.b.objects[s.Key(key)]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, s3.ErrNotFound)
	}
	if ifMatch != "" && s3.TrimETag(ifMatch) != o.etag {
		return nil, fmt.Errorf("get %s: %w", key, s3.ErrPreconditionFailed)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), o.data...))), nil
}

func (s *Store) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts s3.PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.b.PutErr != nil {
		if err := s.b.PutErr(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != contentLength {
		return "", fmt.Errorf("put %s: content length %d does not match body %d", key, contentLength, len(data))
	}
	sum := md5.Sum(data)
	if opts.ContentMD5 != "" && opts.ContentMD5 != s3.ContentMD5(sum[:]) {
		return "", fmt.Errorf("put %s: BadDigest", key)
	}
	etag, err := s.store(key, data, hex.EncodeToString(sum[:]), opts.IfNoneMatch)
	if err == nil && s.b.AfterPut != nil {
		if err := s.b.AfterPut(key); err != nil {
			return "", err
		}
	}
	return etag, err
}

func (s *Store) store(key string, data []byte, etag string, ifNoneMatch bool) (string, error) {
	if s.b.MutatePut != nil {
		data = s.b.MutatePut(key, data)
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	full := s.Key(key)
	if _, exists := s.b.objects[full]; exists && ifNoneMatch {
		return "", fmt.Errorf("put %s: %w", key, s3.ErrPreconditionFailed)
	}
	s.b.objects[full] = &object{data: data, etag: etag, lastModified: s.b.now()}
	return etag, nil
}

func (s *Store) CreateMultipartUpload(ctx context.Context, key string, opts s3.PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.nextID++
	id := fmt.Sprintf("upload-%d", s.b.nextID)
	s.b.uploads[id] = &upload{key: key, opts: opts, parts: make(map[int32][]byte)}
	return id, nil
}

func (s *Store) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64, contentMD5 string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.b.PutErr != nil {
		if err := s.b.PutErr(fmt.Sprintf("%s#%d", key, partNumber)); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("upload part %d: size mismatch", partNumber)
	}
	sum := md5.Sum(data)
	if contentMD5 != "" && contentMD5 != s3.ContentMD5(sum[:]) {
		return "", fmt.Errorf("upload part %d: BadDigest", partNumber)
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	u, ok := s.b.uploads[uploadID]
	if !ok || u.key != key {
		return "", fmt.Errorf("upload part %d: NoSuchUpload", partNumber)
	}
	u.parts[partNumber] = data
	return hex.EncodeToString(sum[:]), nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []s3.CompletedPart, ifNoneMatch bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no parts uploaded")
	}
	s.b.mu.Lock()
	u, ok := s.b.uploads[uploadID]
	if !ok || u.key != key {
		s.b.mu.Unlock()
		return "", fmt.Errorf("complete multipart upload: NoSuchUpload")
	}
	var buf bytes.Buffer
	sums := make([][]byte, 0, len(parts))
	for i, p := range parts {
		if p.PartNumber != int32(i+1) {
			s.b.mu.Unlock()
			return "", fmt.Errorf("complete multipart upload: InvalidPartOrder")
		}
		data, ok := u.parts[p.PartNumber]
		if !ok {
			s.b.mu.Unlock()
			return "", fmt.Errorf("complete multipart upload: InvalidPart %d", p.PartNumber)
		}
		sum := md5.Sum(data)
		if hex.EncodeToString(sum[:]) != s3.TrimETag(p.ETag) {
			s.b.mu.Unlock()
			return "", fmt.Errorf("complete multipart upload: InvalidPart %d etag", p.PartNumber)
		}
		sums = append(sums, sum[:])
		buf.Write(data)
	}
	delete(s.b.uploads, uploadID)
	s.b.mu.Unlock()

	return s.store(key, buf.Bytes(), s3.MultipartETag(sums), ifNoneMatch)
}

func (s *Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	delete(s.b.uploads, uploadID)
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, key, ifMatch string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.b.BeforeDelete != nil {
		s.b.BeforeDelete(key)
	}
	if s.b.DeleteErr != nil {
		if err := s.b.DeleteErr(key); err != nil {
			return err
		}
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.deletes++
	full := s.Key(key)
	o, ok := s.b.objects[full]
	if !ok {
		if ifMatch != "" && !s.b.IgnoreIfMatch {
			return fmt.Errorf("delete %s: %w", key, s3.ErrNotFound)
		}
		return nil
	}
	if ifMatch != "" && !s.b.IgnoreIfMatch && s3.TrimETag(ifMatch) != o.etag {
		return fmt.Errorf("delete %s: %w", key, s3.ErrPreconditionFailed)
	}
	delete(s.b.objects, full)
	return nil
}
