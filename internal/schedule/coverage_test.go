package schedule

import (
	"testing"
	"time"
)

var from = time.Date(2025, 3, 1, 12, 3, 0, 0, time.UTC)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name        string
		expr        string
		lookback    time.Duration
		wantMaxGap  time.Duration
		wantCovered bool
		wantOverlap bool
	}{
		{"every 15m matches", "*/15 * * * *", 15 * time.Minute, 15 * time.Minute, true, false},
		{"hourly too short window", "0 * * * *", 30 * time.Minute, time.Hour, false, false},
		{"hourly with longer window", "0 * * * *", 2 * time.Hour, time.Hour, true, true},
		{"weekday nights leave weekend gap", "0 2 * * 1-5", 24 * time.Hour, 72 * time.Hour, false, false},
		{"descriptor", "@every 10m", 10 * time.Minute, 10 * time.Minute, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Analyze(tt.expr, tt.lookback, from, 0, 3)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if c.MaxGap != tt.wantMaxGap {
				t.Errorf("MaxGap = %s, want %s", c.MaxGap, tt.wantMaxGap)
			}
			if c.Covered != tt.wantCovered {
				t.Errorf("Covered = %v, want %v", c.Covered, tt.wantCovered)
			}
			if c.Overlap != tt.wantOverlap {
				t.Errorf("Overlap = %v, want %v", c.Overlap, tt.wantOverlap)
			}
			if len(c.Next) != 3 {
				t.Errorf("len(Next) = %d, want 3", len(c.Next))
			}
		})
	}
}

func TestAnalyze_NextTimes(t *testing.T) {
	c, err := Analyze("*/15 * * * *", 15*time.Minute, from, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{
		time.Date(2025, 3, 1, 12, 15, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	if len(c.Next) != len(want) {
		t.Fatalf("Next = %v", c.Next)
	}
	for i := range want {
		if !c.Next[i].Equal(want[i]) {
			t.Errorf("Next[%d] = %s, want %s", i, c.Next[i], want[i])
		}
	}
}

func TestAnalyze_InvalidExpr(t *testing.T) {
	if _, err := Analyze("61 * * * *", time.Hour, from, 0, 0); err == nil {
		t.Error("expected parse error")
	}
}

func TestSuggestedCron(t *testing.T) {
	tests := map[time.Duration]string{
		15 * time.Minute: "*/15 * * * *",
		time.Hour:        "0 * * * *",
		6 * time.Hour:    "0 */6 * * *",
		24 * time.Hour:   "0 0 * * *",
		7 * time.Minute:  "@every 7m0s",
	}
	for lookback, want := range tests {
		got, ok := SuggestedCron(lookback)
		if !ok || got != want {
			t.Errorf("SuggestedCron(%s) = %q, %v; want %q", lookback, got, ok, want)
		}
		c, err := Analyze(got, lookback, from, 500, 0)
		if err != nil {
			t.Fatalf("Analyze(%q): %v", got, err)
		}
		if !c.Covered {
			t.Errorf("suggested %q does not cover %s (max gap %s)", got, lookback, c.MaxGap)
		}
	}
}
