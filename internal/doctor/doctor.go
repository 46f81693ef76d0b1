// Package doctor runs read-only environment checks before the job is
// scheduled.
package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"VelArchiver/internal/config"
	"VelArchiver/internal/lock"
	"VelArchiver/internal/s3"
)

const checkTimeout = 5 * time.Second

type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

type Lister interface {
	ListObjects(ctx context.Context, prefix string, maxKeys int32) ([]s3.ObjectInfo, error)
}

// Deps are the already constructed clients. A nil Source or Target is
// reported as a failed check.
type Deps struct {
	Source Lister
	Target Lister
	Locker lock.Locker
}

func Run(ctx context.Context, cfg *config.Config, deps Deps) []CheckResult {
	results := []CheckResult{{Name: "config", OK: cfg != nil, Detail: "configuration loaded and valid"}}
	if cfg == nil {
		return results
	}

	ok, detail := checkList(ctx, deps.Source, cfg.Source.Prefix, cfg.Source)
	results = append(results, CheckResult{Name: "source", OK: ok, Detail: detail})

	ok, detail = checkList(ctx, deps.Target, "", cfg.Target)
	results = append(results, CheckResult{Name: "target", OK: ok, Detail: detail})

	if config.SameBucket(cfg) {
		results = append(results, CheckResult{Name: "layout", OK: true, Detail: fmt.Sprintf("source and target share bucket %s; archives under %q are excluded from listing", cfg.Source.Bucket, cfg.Target.Prefix)})
	}

	ok, detail = checkSpool(cfg.Archive.SpoolDir)
	results = append(results, CheckResult{Name: "spool", OK: ok, Detail: detail})

	ok, detail = checkLock(ctx, cfg.Lock, deps.Locker)
	results = append(results, CheckResult{Name: "lock", OK: ok, Detail: detail})

	return results
}

// AllOK reports whether every check passed.
func AllOK(results []CheckResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

func checkList(ctx context.Context, l Lister, prefix string, b config.BucketConfig) (bool, string) {
	if l == nil {
		return false, "client not configured"
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if _, err := l.ListObjects(ctx, prefix, 1); err != nil {
		return false, fmt.Sprintf("list failed (bucket=%s, prefix=%s): %v", b.Bucket, b.Prefix, err)
	}
	endpoint := b.Endpoint
	if endpoint == "" {
		endpoint = "aws"
	}
	return true, fmt.Sprintf("list OK (endpoint=%s, bucket=%s, prefix=%s)", endpoint, b.Bucket, b.Prefix)
}

func checkSpool(dir string) (bool, string) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "velarchiver-doctor-*")
	if err != nil {
		return false, fmt.Sprintf("create temp file failed in %s: %v", dir, err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString("test"); err != nil {
		_ = f.Close()
		return false, fmt.Sprintf("write temp file failed: %v", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Sprintf("close temp file failed: %v", err)
	}
	return true, fmt.Sprintf("spool dir writable (%s)", dir)
}

func checkLock(ctx context.Context, cfg *config.LockConfig, l lock.Locker) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	switch l := l.(type) {
	case *lock.RedisLocker:
		if err := l.Ping(ctx); err != nil {
			return false, fmt.Sprintf("redis ping failed: %v", err)
		}
		return true, "redis reachable"
	case *lock.S3Locker:
		return true, fmt.Sprintf("s3 lock object %s in target", l.Key())
	case *lock.LocalLocker:
		dir := ""
		if cfg != nil {
			dir = cfg.Dir
		}
		probe := lock.NewLocal(lock.LocalOptions{Dir: dir, Name: "doctor"})
		if err := probe.Acquire(ctx); err != nil {
			return false, fmt.Sprintf("local lock acquire failed: %v", err)
		}
		if err := probe.Release(context.Background()); err != nil {
			return false, fmt.Sprintf("local lock release failed: %v", err)
		}
		return true, fmt.Sprintf("local lock dir accessible (%s)", l.Path())
	default:
		return true, "locking disabled"
	}
}
