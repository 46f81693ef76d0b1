package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// container appends named entries to a compressed archive stream.
type container interface {
	Add(name string, size int64, modified time.Time, r io.Reader) error
	Close() error
}

func newContainer(w io.Writer, format Format, level int) (container, error) {
	switch format {
	case FormatZip:
		return newZipContainer(w, level), nil
	case FormatTarGz:
		if level == 0 || level < gzip.HuffmanOnly || level > gzip.BestCompression {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("gzip writer: %w", err)
		}
		return &tarContainer{tw: tar.NewWriter(gw), compressor: gw}, nil
	case FormatTarZst:
		opts := []zstd.EOption{}
		if level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		zw, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return &tarContainer{tw: tar.NewWriter(zw), compressor: zw}, nil
	default:
		return nil, fmt.Errorf("unknown archive format %q", format)
	}
}

type zipContainer struct {
	zw *zip.Writer
}

func newZipContainer(w io.Writer, level int) *zipContainer {
	if level == 0 || level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &zipContainer{zw: zw}
}

func (z *zipContainer) Add(name string, size int64, modified time.Time, r io.Reader) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified.UTC(),
	}
	hdr.SetMode(0o644)
	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	return nil
}

func (z *zipContainer) Close() error {
	return z.zw.Close()
}

type tarContainer struct {
	tw         *tar.Writer
	compressor io.WriteCloser
}

func (t *tarContainer) Add(name string, size int64, modified time.Time, r io.Reader) error {
	hdr := &tar.Header{
		Name:     name,
		Size:     size,
		Mode:     0o644,
		ModTime:  modified.UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header %s: %w", name, err)
	}
	if _, err := io.Copy(t.tw, r); err != nil {
		return fmt.Errorf("tar entry %s: %w", name, err)
	}
	return nil
}

func (t *tarContainer) Close() error {
	if err := t.tw.Close(); err != nil {
		_ = t.compressor.Close()
		return err
	}
	return t.compressor.Close()
}
