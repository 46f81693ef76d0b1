package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultLockDir = "/var/run/velarchiver"

// LocalLocker is an O_EXCL lock file holding "pid host acquired-at". A
// holder older than TTL is treated as left behind by a crashed run.
type LocalLocker struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu   sync.Mutex
	held bool
}

type LocalOptions struct {
	Dir  string
	Name string
	TTL  time.Duration
}

type holder struct {
	pid      int
	host     string
	acquired time.Time
}

func (h holder) String() string {
	return fmt.Sprintf("pid %d on %s since %s", h.pid, h.host, h.acquired.Format(time.RFC3339))
}

func NewLocal(opts LocalOptions) *LocalLocker {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultLockDir
	}
	return &LocalLocker{
		path: filepath.Join(dir, safeName(opts.Name)+".lock"),
		ttl:  opts.TTL,
		now:  time.Now,
	}
}

func (l *LocalLocker) Path() string {
	return l.path
}

func (l *LocalLocker) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return fmt.Errorf("lock already held by this process")
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	// second attempt only after removing a stale file
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := l.create()
		if err == nil {
			l.held = true
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return err
		}
		h, age := l.inspect()
		if l.ttl <= 0 || age < l.ttl {
			return fmt.Errorf("%w: %s held by %s", ErrLocked, l.path, h)
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale lock %s: %w", l.path, err)
		}
	}
	return fmt.Errorf("%w: %s re-created concurrently", ErrLocked, l.path)
}

func (l *LocalLocker) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return fmt.Errorf("create lock file: %w", err)
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	_, werr := fmt.Fprintf(f, "%d %s %s\n", os.Getpid(), host, l.now().UTC().Format(time.RFC3339))
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(l.path)
		return fmt.Errorf("write lock file: %w", werr)
	}
	return nil
}

// inspect reads the current holder. Unparseable files fall back to the
// file modification time.
func (l *LocalLocker) inspect() (holder, time.Duration) {
	var h holder
	if data, err := os.ReadFile(l.path); err == nil {
		if f := strings.Fields(string(data)); len(f) == 3 {
			h.pid, _ = strconv.Atoi(f[0])
			h.host = f[1]
			h.acquired, _ = time.Parse(time.RFC3339, f[2])
		}
	}
	if h.acquired.IsZero() {
		if info, err := os.Stat(l.path); err == nil {
			h.acquired = info.ModTime()
		}
	}
	return h, l.now().Sub(h.acquired)
}

func (l *LocalLocker) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
