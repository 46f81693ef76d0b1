//go:build integration

package integration

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/lock"
	"VelArchiver/internal/pipeline"
	"VelArchiver/internal/prune"
	"VelArchiver/internal/restore"
	"VelArchiver/internal/s3"
	"VelArchiver/internal/upload"

	"github.com/rs/zerolog"
)

func newClient(t *testing.T, ctx context.Context, prefix string) *s3.Client {
	t.Helper()
	endpoint, accessKey, secretKey, bucket := getMinIOEnv()
	c, err := s3.New(ctx, s3.Options{
		Endpoint:           endpoint,
		Region:             "us-east-1",
		AccessKey:          accessKey,
		SecretKey:          secretKey,
		Bucket:             bucket,
		Prefix:             prefix,
		PathStyle:          true,
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("s3.New: %v", err)
	}
	return c
}

func TestMinIO_RunVerifyPrune(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root := "integration-test/run-" + time.Now().Format("20060102150405")
	source := newClient(t, ctx, "")
	target := newClient(t, ctx, root+"/compressed")
	if err := source.CreateBucket(ctx); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	files := map[string]string{
		root + "/incoming/a.log":        "alpha\n",
		root + "/incoming/nested/b.log": strings.Repeat("bravo\n", 4096),
		root + "/incoming/c.log":        "charlie\n",
	}
	for key, body := range files {
		if _, err := source.PutObject(ctx, key, bytes.NewReader([]byte(body)), int64(len(body)), s3.PutOptions{}); err != nil {
			t.Fatalf("PutObject %s: %v", key, err)
		}
	}

	locker, err := lock.NewS3(lock.S3Options{Store: target, Name: "it", TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	opts := pipeline.Options{
		SourceBucket:    source.Bucket(),
		SourcePrefix:    root + "/incoming/",
		Lookback:        time.Hour,
		MaxObjects:      100,
		SkipEmpty:       true,
		ExcludePrefixes: pipeline.OwnOutputPrefixes(root + "/compressed"),
		BatchMaxObjects: 2,
		BatchMaxBytes:   1 << 30,
		Archive:         archive.Options{Format: archive.FormatTarZst, SpoolDir: t.TempDir()},
		Upload: upload.Options{
			MultipartThreshold: 64 << 20,
			PartSize:           5 << 20,
			Verify:             upload.VerifyReadback,
			Retry:              upload.DefaultRetryPolicy(),
		},
		DeleteEnabled: true,
		Timeout:       2 * time.Minute,
		Concurrency:   2,
		// tolerate clock skew between this host and MinIO
		Now: func() time.Time { return time.Now().Add(time.Minute) },
	}

	rep, err := pipeline.New(source, target, locker, opts, zerolog.Nop()).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.HasFailures() {
		t.Fatalf("report has failures: %+v", rep)
	}
	if rep.ObjectsArchived != len(files) || rep.ObjectsDeleted != len(files) {
		t.Fatalf("archived %d, deleted %d, want %d", rep.ObjectsArchived, rep.ObjectsDeleted, len(files))
	}
	if len(rep.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(rep.Batches))
	}

	for key := range files {
		if _, err := source.HeadObject(ctx, key); !errors.Is(err, s3.ErrNotFound) {
			t.Errorf("source %s still present (err=%v)", key, err)
		}
	}

	out := t.TempDir()
	for _, b := range rep.Batches {
		res, err := restore.Verify(ctx, target, b.ManifestKey, restore.Options{SpoolDir: t.TempDir(), ExtractDir: out})
		if err != nil {
			t.Fatalf("Verify %s: %v", b.ManifestKey, err)
		}
		if res.Verified != b.Archived {
			t.Errorf("verified %d, want %d", res.Verified, b.Archived)
		}
	}
	for key, body := range files {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(key)))
		if err != nil {
			t.Fatalf("ReadFile %s: %v", key, err)
		}
		if string(got) != body {
			t.Errorf("%s restored with %d bytes, want %d", key, len(got), len(body))
		}
	}

	// a second run sees an empty window
	rep, err = pipeline.New(source, target, locker, opts, zerolog.Nop()).Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if rep.ObjectsListed != 0 {
		t.Errorf("second run listed %d objects", rep.ObjectsListed)
	}

	res, err := prune.Run(ctx, target, prune.Options{Now: time.Now(), DryRun: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if res.Kept != 2 || len(res.Expired) != 0 || len(res.Orphans) != 0 {
		t.Errorf("prune = %+v", res)
	}

	cleanup, err := target.ListObjects(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	for _, o := range cleanup {
		_ = target.DeleteObject(ctx, o.Key, "")
	}
}
