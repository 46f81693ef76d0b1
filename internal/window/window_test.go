package window

import (
	"errors"
	"testing"
	"time"
)

func TestLookback(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		hours   int
		want    time.Duration
		wantErr bool
	}{
		{"minutes", 15, 0, 15 * time.Minute, false},
		{"hours", 0, 24, 24 * time.Hour, false},
		{"both", 15, 1, 0, true},
		{"neither", 0, 0, 0, true},
		{"negative minutes", -1, 0, 0, true},
		{"negative hours", 0, -3, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookback(tt.minutes, tt.hours)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLookback) {
					t.Fatalf("Lookback(%d, %d) err = %v, want ErrInvalidLookback", tt.minutes, tt.hours, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookback: %v", err)
			}
			if got != tt.want {
				t.Errorf("Lookback(%d, %d) = %v, want %v", tt.minutes, tt.hours, got, tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, loc)

	w, err := Select(now, 30*time.Minute)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	wantEnd := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if !w.End.Equal(wantEnd) || w.End.Location() != time.UTC {
		t.Errorf("End = %v, want %v in UTC", w.End, wantEnd)
	}
	if !w.Start.Equal(wantEnd.Add(-30 * time.Minute)) {
		t.Errorf("Start = %v", w.Start)
	}
	if !w.Start.Before(w.End) {
		t.Error("Start must be before End")
	}
	if w.Duration() != 30*time.Minute {
		t.Errorf("Duration = %v", w.Duration())
	}
}

func TestSelect_InvalidLookback(t *testing.T) {
	if _, err := Select(time.Now(), 0); !errors.Is(err, ErrInvalidLookback) {
		t.Fatalf("Select(0) err = %v", err)
	}
}

func TestContains_HalfOpen(t *testing.T) {
	end := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w := TimeWindow{Start: end.Add(-time.Hour), End: end}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start is included", w.Start, true},
		{"middle", end.Add(-30 * time.Minute), true},
		{"end is excluded", end, false},
		{"before start", w.Start.Add(-time.Nanosecond), false},
		{"after end", end.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
