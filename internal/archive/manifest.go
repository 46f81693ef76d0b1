package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"VelArchiver/internal/window"
)

const ManifestVersion = 1

// Entry records one object written into an archive. Checksum is the hex
// blake3-256 of the object bytes.
type Entry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"blake3"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
}

// Manifest describes one archive. Only objects listed here may be deleted
// from the source, and only after the archive was verified.
type Manifest struct {
	Version       int               `json:"version"`
	RunID         string            `json:"run_id"`
	Batch         int               `json:"batch"`
	CreatedAt     time.Time         `json:"created_at"`
	Window        window.TimeWindow `json:"window"`
	SourceBucket  string            `json:"source_bucket"`
	ArchiveKey    string            `json:"archive_key"`
	Format        Format            `json:"format"`
	ArchiveSize   int64             `json:"archive_size"`
	ArchiveBlake3 string            `json:"archive_blake3"`
	ArchiveETag   string            `json:"archive_etag"`
	Entries       []Entry           `json:"entries"`
}

func (m *Manifest) TotalBytes() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

// Lookup indexes entries by key.
func (m *Manifest) Lookup() map[string]Entry {
	out := make(map[string]Entry, len(m.Entries))
	for _, e := range m.Entries {
		out[e.Key] = e
	}
	return out
}

func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest decode: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest version %d not supported", m.Version)
	}
	return &m, nil
}
