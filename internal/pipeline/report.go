package pipeline

import (
	"encoding/json"
	"time"

	"VelArchiver/internal/batch"
	"VelArchiver/internal/listing"
	"VelArchiver/internal/window"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Stages of an ObjectError. Only read and delete count as failures; a
// skipped-modified object changed after archiving and stays in the source.
const (
	StageRead            = "read"
	StageDelete          = "delete"
	StageSkippedModified = "skipped-modified"
)

// ObjectError is a per-object problem that did not stop the run.
type ObjectError struct {
	Key   string `json:"key"`
	Batch int    `json:"batch"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type BatchReport struct {
	Index           int          `json:"index"`
	Status          batch.Status `json:"status"`
	Objects         int          `json:"objects"`
	Bytes           int64        `json:"bytes"`
	Archived        int          `json:"archived"`
	ArchivedBytes   int64        `json:"archived_bytes"`
	ArchiveKey      string       `json:"archive_key,omitempty"`
	ManifestKey     string       `json:"manifest_key,omitempty"`
	ArchiveSize     int64        `json:"archive_size,omitempty"`
	Deleted         int          `json:"deleted"`
	SkippedModified int          `json:"skipped_modified"`
	DeleteErrors    int          `json:"delete_errors"`
	Error           string       `json:"error,omitempty"`
	Keys            []string     `json:"keys,omitempty"`
}

// Report is the outcome of one run, printed as JSON on stdout.
type Report struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Duration   string            `json:"duration"`
	Window     window.TimeWindow `json:"window"`
	DryRun     bool              `json:"dry_run"`
	Listing    listing.Stats     `json:"listing"`

	ObjectsListed          int `json:"objects_listed"`
	ObjectsArchived        int `json:"objects_archived"`
	ObjectsDeleted         int `json:"objects_deleted"`
	ObjectsSkippedModified int `json:"objects_skipped_modified"`
	ObjectsFailed          int `json:"objects_failed"`
	ObjectsDeferred        int `json:"objects_deferred"`

	BatchesTotal    int `json:"batches_total"`
	BatchesFailed   int `json:"batches_failed"`
	BatchesDeferred int `json:"batches_deferred"`
	DeleteErrors    int `json:"delete_errors"`

	BytesArchived    int64   `json:"bytes_archived"`
	BytesCompressed  int64   `json:"bytes_compressed"`
	CompressionRatio float64 `json:"compression_ratio"`

	Batches []BatchReport `json:"batches"`
	Errors  []ObjectError `json:"errors,omitempty"`
}

// HasFailures reports failed batches or delete errors; the CLI maps it to
// exit code 2.
func (r *Report) HasFailures() bool {
	return r.BatchesFailed > 0 || r.DeleteErrors > 0
}

func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// finalize derives the totals from the per-batch reports.
func (r *Report) finalize(finished time.Time) {
	r.FinishedAt = finished
	r.Duration = finished.Sub(r.StartedAt).Round(time.Millisecond).String()
	r.BatchesTotal = len(r.Batches)
	for _, b := range r.Batches {
		switch b.Status {
		case batch.StatusFailed:
			r.BatchesFailed++
		case batch.StatusDeferred:
			r.BatchesDeferred++
			r.ObjectsDeferred += b.Objects
		}
		if b.Status == batch.StatusVerified || b.Status == batch.StatusDeleted {
			r.ObjectsArchived += b.Archived
			r.BytesArchived += b.ArchivedBytes
			r.BytesCompressed += b.ArchiveSize
		}
		r.ObjectsDeleted += b.Deleted
		r.ObjectsSkippedModified += b.SkippedModified
		r.DeleteErrors += b.DeleteErrors
	}
	for _, e := range r.Errors {
		if e.Stage == StageRead {
			r.ObjectsFailed++
		}
	}
	if r.BytesCompressed > 0 {
		r.CompressionRatio = float64(r.BytesArchived) / float64(r.BytesCompressed)
	}
}

// Log writes a one-line summary.
func (r *Report) Log(log zerolog.Logger) {
	ev := log.Info()
	if r.HasFailures() {
		ev = log.Warn()
	}
	ev.Str("run_id", r.RunID).
		Str("window", r.Window.String()).
		Bool("dry_run", r.DryRun).
		Int("listed", r.ObjectsListed).
		Int("archived", r.ObjectsArchived).
		Int("deleted", r.ObjectsDeleted).
		Int("skipped_modified", r.ObjectsSkippedModified).
		Int("failed", r.ObjectsFailed).
		Int("deferred", r.ObjectsDeferred).
		Int("batches", r.BatchesTotal).
		Int("batches_failed", r.BatchesFailed).
		Str("original", humanize.IBytes(uint64(max(r.BytesArchived, 0)))).
		Str("compressed", humanize.IBytes(uint64(max(r.BytesCompressed, 0)))).
		Str("ratio", humanize.FtoaWithDigits(r.CompressionRatio, 2)).
		Str("duration", r.Duration).
		Msg("run finished")
}
