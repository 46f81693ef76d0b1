package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"VelArchiver/internal/s3"
	"VelArchiver/internal/s3/s3mem"
	"VelArchiver/internal/window"

	"github.com/rs/zerolog"
)

type countingStore struct {
	*s3mem.Store
	calls int
}

func (c *countingStore) ListPage(ctx context.Context, prefix, token string, pageSize int32) (s3.Page, error) {
	c.calls++
	return c.Store.ListPage(ctx, prefix, token, pageSize)
}

var (
	end = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	win = window.TimeWindow{Start: end.Add(-time.Hour), End: end}
	in  = end.Add(-10 * time.Minute)
)

func TestAll_FiltersIneligible(t *testing.T) {
	store := s3mem.New("src")
	b := store.Raw()
	b.Put("data/a.json", []byte("a"), in)
	b.Put("data/old.json", []byte("old"), win.Start.Add(-time.Second))
	b.Put("data/at-end.json", []byte("end"), end)
	b.Put("data/at-start.json", []byte("start"), win.Start)
	b.Put("data/dir/", nil, in)
	b.Put("data/empty.json", nil, in)
	b.Put("data/bundle.ZIP", []byte("zip"), in)
	b.Put("data/compressed/archives/2025/03/01/x.zip.part", []byte("own"), in)
	b.Put("other/b.json", []byte("b"), in)

	l := New(store, Options{
		Prefix:          "data/",
		Window:          win,
		MaxObjects:      100,
		SkipEmpty:       true,
		ExcludeSuffixes: []string{".zip"},
		ExcludePrefixes: []string{"data/compressed/"},
	}, zerolog.Nop())

	got, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var keys []string
	for _, o := range got {
		keys = append(keys, o.Key)
	}
	want := []string{"data/a.json", "data/at-start.json"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}

	st := l.Stats()
	if st.Skipped["outside_window"] != 2 {
		t.Errorf("outside_window = %d, want 2", st.Skipped["outside_window"])
	}
	for _, reason := range []string{"directory", "empty", "excluded_suffix", "own_output"} {
		if st.Skipped[reason] != 1 {
			t.Errorf("skipped[%s] = %d, want 1", reason, st.Skipped[reason])
		}
	}
}

func TestAll_SnapshotCarriesFingerprint(t *testing.T) {
	store := s3mem.New("src")
	etag := store.Raw().Put("k", []byte("payload"), in)

	l := New(store, Options{Window: win, MaxObjects: 10}, zerolog.Nop())
	got, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ETag != etag || got[0].Size != 7 || !got[0].LastModified.Equal(in) {
		t.Errorf("snapshot = %+v", got[0])
	}
}

func TestAll_CapStopsPaging(t *testing.T) {
	store := &countingStore{Store: s3mem.New("src")}
	for i := 0; i < 50; i++ {
		store.Raw().Put(fmt.Sprintf("obj-%03d", i), []byte("x"), in)
	}

	l := New(store, Options{Window: win, MaxObjects: 12, PageSize: 5}, zerolog.Nop())
	got, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("len = %d, want 12", len(got))
	}
	if got[0].Key != "obj-000" || got[11].Key != "obj-011" {
		t.Errorf("first/last = %s/%s", got[0].Key, got[11].Key)
	}
	if store.calls != 3 {
		t.Errorf("ListPage calls = %d, want 3", store.calls)
	}
	if !l.Stats().Capped {
		t.Error("Stats().Capped should be true")
	}
}

func TestAll_EmptyWindow(t *testing.T) {
	store := s3mem.New("src")
	store.Raw().Put("k", []byte("x"), win.Start.Add(-time.Hour))

	l := New(store, Options{Window: win, MaxObjects: 10}, zerolog.Nop())
	got, err := l.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestAll_ListFailure(t *testing.T) {
	store := s3mem.New("src")
	store.Raw().Put("k", []byte("x"), in)
	store.Raw().ListErr = func(string) error { return errors.New("access denied") }

	l := New(store, Options{Window: win, MaxObjects: 10}, zerolog.Nop())
	_, err := l.Collect(context.Background())
	if !errors.Is(err, ErrListing) {
		t.Fatalf("Collect err = %v, want ErrListing", err)
	}
}

func TestAll_EarlyBreak(t *testing.T) {
	store := &countingStore{Store: s3mem.New("src")}
	for i := 0; i < 10; i++ {
		store.Raw().Put(fmt.Sprintf("obj-%d", i), []byte("x"), in)
	}
	l := New(store, Options{Window: win, MaxObjects: 100, PageSize: 2}, zerolog.Nop())

	n := 0
	for _, err := range l.All(context.Background()) {
		if err != nil {
			t.Fatal(err)
		}
		n++
		if n == 3 {
			break
		}
	}
	if store.calls != 2 {
		t.Errorf("ListPage calls = %d, want 2", store.calls)
	}
}
