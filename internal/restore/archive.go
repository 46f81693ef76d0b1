// Package restore downloads archives from the target, checks them against
// their manifests and optionally unpacks them.
package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/s3"
)

var ErrArchiveChecksum = errors.New("archive checksum does not match manifest")

type Store interface {
	GetObject(ctx context.Context, key, ifMatch string) (io.ReadCloser, error)
}

type Options struct {
	// SpoolDir receives the downloaded archive; empty means os.TempDir.
	SpoolDir string
	// ExtractDir, when set, receives the archive contents after a
	// successful verification.
	ExtractDir string
	DryRun     bool
}

type Result struct {
	Manifest  *archive.Manifest
	Verified  int
	Extracted int
}

func FetchManifest(ctx context.Context, store Store, manifestKey string) (*archive.Manifest, error) {
	rc, err := store.GetObject(ctx, manifestKey, "")
	if err != nil {
		return nil, fmt.Errorf("get manifest %s: %w", manifestKey, err)
	}
	defer rc.Close()
	m, err := archive.ParseManifest(rc)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", manifestKey, err)
	}
	return m, nil
}

// ManifestKeyFor accepts either an archive or a manifest key.
func ManifestKeyFor(key string) (string, error) {
	key = strings.Trim(key, "/")
	if strings.HasPrefix(key, s3.ManifestsPrefix+"/") && strings.HasSuffix(key, ".json") {
		return key, nil
	}
	if mk := s3.ManifestKeyForArchive(key); mk != "" {
		return mk, nil
	}
	return "", fmt.Errorf("%q is neither an archive nor a manifest key", key)
}

// Verify downloads the archive described by the manifest at manifestKey,
// checks its blake3 digest and every entry, then extracts it when
// opts.ExtractDir is set.
func Verify(ctx context.Context, store Store, manifestKey string, opts Options) (*Result, error) {
	m, err := FetchManifest(ctx, store, manifestKey)
	if err != nil {
		return nil, err
	}
	local, err := download(ctx, store, m, opts.SpoolDir)
	if err != nil {
		return nil, err
	}
	defer os.Remove(local)

	sum, _, err := archive.FileBlake3(local)
	if err != nil {
		return nil, err
	}
	if m.ArchiveBlake3 != "" && sum != m.ArchiveBlake3 {
		return nil, fmt.Errorf("%w: %s blake3 %s, manifest %s", ErrArchiveChecksum, m.ArchiveKey, sum, m.ArchiveBlake3)
	}
	if err := archive.VerifyFile(local, m); err != nil {
		return nil, fmt.Errorf("%s: %w", m.ArchiveKey, err)
	}
	res := &Result{Manifest: m, Verified: len(m.Entries)}

	if opts.ExtractDir != "" {
		n, err := Extract(local, m.Format, opts.ExtractDir, opts.DryRun)
		if err != nil {
			return res, err
		}
		res.Extracted = n
	}
	return res, nil
}

func download(ctx context.Context, store Store, m *archive.Manifest, dir string) (string, error) {
	rc, err := store.GetObject(ctx, m.ArchiveKey, m.ArchiveETag)
	if err != nil {
		return "", fmt.Errorf("get archive %s: %w", m.ArchiveKey, err)
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, "velarchiver-verify-*"+m.Format.Extension())
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("download %s: %w", m.ArchiveKey, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Extract writes every entry below targetDir, keeping the original object
// keys as relative paths. Entries that would escape targetDir are skipped.
func Extract(archivePath string, format archive.Format, targetDir string, dryRun bool) (int, error) {
	n := 0
	err := archive.Walk(archivePath, format, func(name string, _ int64, r io.Reader) error {
		clean := cleanEntryName(name)
		if clean == "" {
			return nil
		}
		n++
		if dryRun {
			return nil
		}
		dst := filepath.Join(targetDir, filepath.FromSlash(clean))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			_ = f.Close()
			return fmt.Errorf("extract %s: %w", clean, err)
		}
		return f.Close()
	})
	return n, err
}

func cleanEntryName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	name = strings.TrimLeft(name, "/")
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return ""
	}
	return name
}
