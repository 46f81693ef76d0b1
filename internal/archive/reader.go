package archive

import (
	"archive/tar"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

var ErrContentMismatch = errors.New("archive content does not match manifest")

// WalkFunc receives each regular entry. r is only valid during the call.
type WalkFunc func(name string, size int64, r io.Reader) error

// Walk visits every regular file entry of the archive at path in stored order.
func Walk(path string, format Format, fn WalkFunc) error {
	if format == FormatZip {
		return walkZip(path, fn)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case FormatTarGz:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gr.Close()
		r = gr
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return fmt.Errorf("unknown archive format %q", format)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := fn(hdr.Name, hdr.Size, tr); err != nil {
			return err
		}
	}
}

func walkZip(path string, fn WalkFunc) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", zf.Name, err)
		}
		err = fn(zf.Name, int64(zf.UncompressedSize64), rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// VerifyFile decompresses the archive at path and checks that it holds
// exactly the manifest entries with matching sizes and blake3 checksums.
func VerifyFile(path string, m *Manifest) error {
	want := m.Lookup()
	seen := make(map[string]bool, len(want))
	err := Walk(path, m.Format, func(name string, _ int64, r io.Reader) error {
		entry, ok := want[name]
		if !ok {
			return fmt.Errorf("%w: unexpected entry %q", ErrContentMismatch, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate entry %q", ErrContentMismatch, name)
		}
		seen[name] = true
		h := blake3.New()
		n, err := io.Copy(h, r)
		if err != nil {
			return fmt.Errorf("read entry %s: %w", name, err)
		}
		if n != entry.Size {
			return fmt.Errorf("%w: %s size %d, manifest %d", ErrContentMismatch, name, n, entry.Size)
		}
		if sum := hex.EncodeToString(h.Sum(nil)); sum != entry.Checksum {
			return fmt.Errorf("%w: %s checksum %s, manifest %s", ErrContentMismatch, name, sum, entry.Checksum)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(seen) != len(want) {
		return fmt.Errorf("%w: %d of %d manifest entries present", ErrContentMismatch, len(seen), len(want))
	}
	return nil
}

// FileBlake3 hashes a whole file.
func FileBlake3(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
