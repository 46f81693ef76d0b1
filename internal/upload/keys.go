package upload

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"VelArchiver/internal/archive"
	"VelArchiver/internal/s3"
	"VelArchiver/internal/window"
)

const stampLayout = "20060102T150405Z"

// KeyParams identifies one batch archive of one run.
type KeyParams struct {
	RunAt  time.Time
	RunID  string
	Window window.TimeWindow
	Batch  int
	Format archive.Format
}

// ShortRunID returns the first 8 hex characters of a run id.
func ShortRunID(runID string) string {
	id := sanitizeRe.ReplaceAllString(strings.ReplaceAll(runID, "-", ""), "")
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return "00000000"
	}
	return strings.ToLower(id)
}

// ArchiveName is archive-<runTS>-<windowStart>-<windowEnd>-<runID8>-b<index><ext>.
func ArchiveName(p KeyParams) string {
	return fmt.Sprintf("archive-%s-%s-%s-%s-b%03d%s",
		p.RunAt.UTC().Format(stampLayout),
		p.Window.Start.UTC().Format(stampLayout),
		p.Window.End.UTC().Format(stampLayout),
		ShortRunID(p.RunID),
		p.Batch,
		p.Format.Extension(),
	)
}

// Keys returns the archive and manifest keys, relative to the target prefix.
// Both live under the run date.
func Keys(p KeyParams) (archiveKey, manifestKey string) {
	at := p.RunAt.UTC()
	yyyy, mm, dd := at.Format("2006"), at.Format("01"), at.Format("02")
	name := ArchiveName(p)
	return s3.ArchiveObjectKey(yyyy, mm, dd, name), s3.ManifestKey(yyyy, mm, dd, s3.ArchiveStem(name))
}

var sanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9]`)

// RunTimeFromName recovers the run timestamp from an archive or manifest
// file name produced by ArchiveName.
func RunTimeFromName(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, "archive-")
	if !ok || len(rest) < len(stampLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(stampLayout, rest[:len(stampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
