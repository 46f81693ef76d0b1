// Package listing enumerates source objects eligible for archiving.
package listing

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"VelArchiver/internal/s3"
	"VelArchiver/internal/window"

	"github.com/rs/zerolog"
)

var ErrListing = errors.New("listing failed")

// PageLister is the part of the object store the lister needs.
type PageLister interface {
	ListPage(ctx context.Context, prefix, token string, pageSize int32) (s3.Page, error)
}

// SourceObject is the snapshot of one object taken at listing time. ETag is
// the fingerprint later stages compare against.
type SourceObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

type Options struct {
	Prefix          string
	Window          window.TimeWindow
	MaxObjects      int
	PageSize        int32
	SkipEmpty       bool
	ExcludeSuffixes []string
	// ExcludePrefixes hides full-key prefixes, typically the job's own
	// output when source and target share a bucket.
	ExcludePrefixes []string
}

// Stats counts what the lister saw. Skip reasons are keyed by a short label.
type Stats struct {
	Pages   int            `json:"pages"`
	Scanned int            `json:"scanned"`
	Matched int            `json:"matched"`
	Skipped map[string]int `json:"skipped,omitempty"`
	Capped  bool           `json:"capped"`
}

type Lister struct {
	store PageLister
	opts  Options
	log   zerolog.Logger
	stats Stats
}

func New(store PageLister, opts Options, log zerolog.Logger) *Lister {
	if opts.PageSize <= 0 || opts.PageSize > 1000 {
		opts.PageSize = 1000
	}
	return &Lister{store: store, opts: opts, log: log, stats: Stats{Skipped: make(map[string]int)}}
}

func (l *Lister) Stats() Stats {
	return l.stats
}

// All yields eligible objects page by page in key order. It stops requesting
// pages once MaxObjects objects have been yielded. A listing failure is
// yielded once as an error wrapping ErrListing, after which iteration ends.
func (l *Lister) All(ctx context.Context) iter.Seq2[SourceObject, error] {
	return func(yield func(SourceObject, error) bool) {
		token := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(SourceObject{}, fmt.Errorf("%w: %w", ErrListing, err))
				return
			}
			page, err := l.store.ListPage(ctx, l.opts.Prefix, token, l.opts.PageSize)
			if err != nil {
				yield(SourceObject{}, fmt.Errorf("%w: page %d under %q: %w", ErrListing, l.stats.Pages+1, l.opts.Prefix, err))
				return
			}
			l.stats.Pages++
			l.log.Debug().Int("page", l.stats.Pages).Int("objects", len(page.Objects)).Msg("listed page")

			for _, obj := range page.Objects {
				l.stats.Scanned++
				if reason := l.skipReason(obj); reason != "" {
					l.stats.Skipped[reason]++
					continue
				}
				if l.opts.MaxObjects > 0 && l.stats.Matched >= l.opts.MaxObjects {
					l.stats.Capped = true
					return
				}
				l.stats.Matched++
				if !yield(SourceObject{
					Key:          obj.Key,
					Size:         obj.Size,
					LastModified: obj.LastModified,
					ETag:         obj.ETag,
				}, nil) {
					return
				}
			}
			if l.opts.MaxObjects > 0 && l.stats.Matched >= l.opts.MaxObjects {
				l.stats.Capped = page.Truncated
				return
			}
			if !page.Truncated || page.NextToken == "" {
				return
			}
			token = page.NextToken
		}
	}
}

// Collect drains All into a key-sorted slice.
func (l *Lister) Collect(ctx context.Context) ([]SourceObject, error) {
	var out []SourceObject
	for obj, err := range l.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	slices.SortStableFunc(out, func(a, b SourceObject) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out, nil
}

func (l *Lister) skipReason(obj s3.ObjectInfo) string {
	switch {
	case strings.HasSuffix(obj.Key, "/"):
		return "directory"
	case l.opts.SkipEmpty && obj.Size == 0:
		return "empty"
	case !l.opts.Window.Contains(obj.LastModified):
		return "outside_window"
	}
	for _, p := range l.opts.ExcludePrefixes {
		if p != "" && strings.HasPrefix(obj.Key, p) {
			return "own_output"
		}
	}
	lower := strings.ToLower(obj.Key)
	for _, suffix := range l.opts.ExcludeSuffixes {
		if suffix != "" && strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return "excluded_suffix"
		}
	}
	return ""
}
