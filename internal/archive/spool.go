package archive

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// spooled holds one fully read object, in memory or in a temp file.
type spooled struct {
	buf      *bytes.Reader
	file     *os.File
	size     int64
	checksum string
}

func (s *spooled) reader() (io.Reader, error) {
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return s.file, nil
	}
	return s.buf, nil
}

func (s *spooled) release() {
	if s.file != nil {
		name := s.file.Name()
		_ = s.file.Close()
		_ = os.Remove(name)
		s.file = nil
	}
	s.buf = nil
}

// spool copies r fully, hashing as it goes. Objects up to threshold bytes
// stay in memory, larger ones go to a temp file in dir. The copy fails if
// the byte count differs from want.
func spool(r io.Reader, want, threshold int64, dir string) (*spooled, error) {
	h := blake3.New()
	if want <= threshold {
		var buf bytes.Buffer
		buf.Grow(int(want))
		n, err := io.Copy(io.MultiWriter(&buf, h), r)
		if err != nil {
			return nil, err
		}
		if n != want {
			return nil, fmt.Errorf("read %d bytes, listing reported %d", n, want)
		}
		return &spooled{buf: bytes.NewReader(buf.Bytes()), size: n, checksum: hex.EncodeToString(h.Sum(nil))}, nil
	}

	f, err := os.CreateTemp(dir, "velarchiver-spool-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	s := &spooled{file: f}
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		s.release()
		return nil, err
	}
	if n != want {
		s.release()
		return nil, fmt.Errorf("read %d bytes, listing reported %d", n, want)
	}
	s.size = n
	s.checksum = hex.EncodeToString(h.Sum(nil))
	return s, nil
}
