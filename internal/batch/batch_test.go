package batch

import (
	"testing"

	"VelArchiver/internal/listing"
)

const mb = 1 << 20

func objs(sizes map[string]int64, order ...string) []listing.SourceObject {
	out := make([]listing.SourceObject, 0, len(order))
	for _, k := range order {
		out = append(out, listing.SourceObject{Key: k, Size: sizes[k]})
	}
	return out
}

func keysOf(b *Batch) []string {
	var keys []string
	for _, o := range b.Objects {
		keys = append(keys, o.Key)
	}
	return keys
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name     string
		sizes    map[string]int64
		order    []string
		maxCount int
		maxBytes int64
		want     [][]string
	}{
		{
			name:     "count bound",
			sizes:    map[string]int64{"A": mb, "B": mb, "C": mb},
			order:    []string{"A", "B", "C"},
			maxCount: 2,
			maxBytes: 100 * mb,
			want:     [][]string{{"A", "B"}, {"C"}},
		},
		{
			name:     "byte bound",
			sizes:    map[string]int64{"A": 3 * mb, "B": 3 * mb, "C": 3 * mb},
			order:    []string{"A", "B", "C"},
			maxCount: 10,
			maxBytes: 7 * mb,
			want:     [][]string{{"A", "B"}, {"C"}},
		},
		{
			name:     "exact fit stays together",
			sizes:    map[string]int64{"A": 2 * mb, "B": 2 * mb},
			order:    []string{"A", "B"},
			maxCount: 10,
			maxBytes: 4 * mb,
			want:     [][]string{{"A", "B"}},
		},
		{
			name:     "oversized object is a singleton",
			sizes:    map[string]int64{"A": mb, "HUGE": 50 * mb, "C": mb},
			order:    []string{"A", "HUGE", "C"},
			maxCount: 10,
			maxBytes: 10 * mb,
			want:     [][]string{{"A"}, {"HUGE"}, {"C"}},
		},
		{
			name:     "empty input",
			sizes:    nil,
			order:    nil,
			maxCount: 2,
			maxBytes: mb,
			want:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Partition(objs(tt.sizes, tt.order...), tt.maxCount, tt.maxBytes)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d batches, want %d", len(got), len(tt.want))
			}
			for i, b := range got {
				if b.Index != i {
					t.Errorf("batch %d has Index %d", i, b.Index)
				}
				if b.Status != StatusPending {
					t.Errorf("batch %d status = %s, want pending", i, b.Status)
				}
				keys := keysOf(b)
				if len(keys) != len(tt.want[i]) {
					t.Fatalf("batch %d = %v, want %v", i, keys, tt.want[i])
				}
				for j := range keys {
					if keys[j] != tt.want[i][j] {
						t.Errorf("batch %d = %v, want %v", i, keys, tt.want[i])
					}
				}
			}
		})
	}
}

func TestPartition_Deterministic(t *testing.T) {
	in := objs(map[string]int64{"A": mb, "B": mb, "C": mb}, "A", "B", "C")
	first := Partition(in, 2, 10*mb)
	second := Partition(in, 2, 10*mb)
	for i := range first {
		if first[i].TotalBytes != second[i].TotalBytes || len(first[i].Objects) != len(second[i].Objects) {
			t.Fatalf("partition not deterministic at batch %d", i)
		}
	}
}

func TestPartition_EveryObjectOnce(t *testing.T) {
	sizes := map[string]int64{}
	var order []string
	for i := 0; i < 37; i++ {
		k := string(rune('a'+i%26)) + string(rune('0'+i/26))
		sizes[k] = int64(i%5+1) * mb
		order = append(order, k)
	}
	seen := map[string]int{}
	for _, b := range Partition(objs(sizes, order...), 4, 6*mb) {
		if len(b.Objects) > 4 {
			t.Errorf("batch %d has %d objects", b.Index, len(b.Objects))
		}
		for _, o := range b.Objects {
			seen[o.Key]++
		}
	}
	for _, k := range order {
		if seen[k] != 1 {
			t.Errorf("%s seen %d times", k, seen[k])
		}
	}
}
