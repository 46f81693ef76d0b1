package doctor

import (
	"context"
	"errors"
	"testing"

	"VelArchiver/internal/config"
	"VelArchiver/internal/lock"
	"VelArchiver/internal/s3/s3mem"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Source:  config.BucketConfig{Bucket: "logs", Prefix: "incoming/"},
		Target:  config.BucketConfig{Bucket: "archive", Prefix: "compressed"},
		Archive: config.ArchiveConfig{SpoolDir: t.TempDir()},
	}
}

func byName(results []CheckResult) map[string]CheckResult {
	out := make(map[string]CheckResult, len(results))
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

func TestRun_AllOK(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lock = &config.LockConfig{Backend: config.LockLocal, Dir: t.TempDir()}
	locker := lock.NewLocal(lock.LocalOptions{Dir: cfg.Lock.Dir, Name: "velarchiver"})

	results := Run(context.Background(), cfg, Deps{
		Source: s3mem.New("logs"),
		Target: s3mem.New("archive"),
		Locker: locker,
	})
	if !AllOK(results) {
		t.Fatalf("expected all checks OK, got %+v", results)
	}
	got := byName(results)
	for _, name := range []string{"config", "source", "target", "spool", "lock"} {
		if _, ok := got[name]; !ok {
			t.Errorf("missing check %q", name)
		}
	}
	if _, ok := got["layout"]; ok {
		t.Error("layout check only applies to a shared bucket")
	}
}

func TestRun_ListFailure(t *testing.T) {
	cfg := testConfig(t)
	target := s3mem.NewBucket("archive")
	target.ListErr = func(string) error { return errors.New("access denied") }

	results := Run(context.Background(), cfg, Deps{Source: s3mem.New("logs"), Target: target.Store("")})
	if AllOK(results) {
		t.Fatal("expected a failed check")
	}
	got := byName(results)
	if !got["source"].OK || got["target"].OK {
		t.Errorf("source=%+v target=%+v", got["source"], got["target"])
	}
}

func TestRun_MissingClientAndSpool(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.SpoolDir = "/nonexistent/velarchiver-spool"

	got := byName(Run(context.Background(), cfg, Deps{Target: s3mem.New("archive")}))
	if got["source"].OK {
		t.Error("nil source should fail")
	}
	if got["spool"].OK {
		t.Error("missing spool dir should fail")
	}
	if !got["lock"].OK || got["lock"].Detail != "locking disabled" {
		t.Errorf("lock = %+v", got["lock"])
	}
}

func TestRun_SharedBucketLayout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Target.Bucket = "logs"
	got := byName(Run(context.Background(), cfg, Deps{Source: s3mem.New("logs"), Target: s3mem.New("logs")}))
	if !got["layout"].OK {
		t.Errorf("layout = %+v", got["layout"])
	}
}

func TestRun_NilConfig(t *testing.T) {
	results := Run(context.Background(), nil, Deps{})
	if len(results) != 1 || results[0].OK {
		t.Errorf("results = %+v", results)
	}
}
