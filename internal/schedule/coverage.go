// Package schedule checks an external trigger's cron expression against the
// configured lookback. A window shorter than the longest gap between two
// fires leaves objects that no run ever lists.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSamples is how many fire times Analyze walks when n is not positive.
// One week of a five-minute trigger fits.
const DefaultSamples = 2016

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Coverage struct {
	Expr     string        `json:"expr"`
	Next     []time.Time   `json:"next"`
	MaxGap   time.Duration `json:"max_gap"`
	MinGap   time.Duration `json:"min_gap"`
	Lookback time.Duration `json:"lookback"`
	// Covered is false when some gap between consecutive fires exceeds the
	// lookback.
	Covered bool `json:"covered"`
	// Overlap is true when the lookback exceeds the shortest gap, so
	// consecutive runs list the same objects. Harmless when delete is
	// enabled, duplicate archives otherwise.
	Overlap bool `json:"overlap"`
}

// Parse accepts standard five-field expressions and descriptors such as
// @hourly or @every 15m.
func Parse(expr string) (cron.Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cron %q: %w", expr, err)
	}
	return s, nil
}

// Analyze walks n fire times after from. The first show entries are kept in
// Next.
func Analyze(expr string, lookback time.Duration, from time.Time, n, show int) (Coverage, error) {
	sched, err := Parse(expr)
	if err != nil {
		return Coverage{}, err
	}
	if n <= 0 {
		n = DefaultSamples
	}
	n = max(n, 2)
	c := Coverage{Expr: expr, Lookback: lookback}

	prev := sched.Next(from)
	if prev.IsZero() {
		return c, fmt.Errorf("cron %q never fires", expr)
	}
	if show > 0 {
		c.Next = append(c.Next, prev)
	}
	for i := 1; i < n; i++ {
		next := sched.Next(prev)
		if next.IsZero() {
			break
		}
		gap := next.Sub(prev)
		c.MaxGap = max(c.MaxGap, gap)
		if c.MinGap == 0 || gap < c.MinGap {
			c.MinGap = gap
		}
		if len(c.Next) < show {
			c.Next = append(c.Next, next)
		}
		prev = next
	}
	c.Covered = c.MaxGap > 0 && c.MaxGap <= lookback
	c.Overlap = c.MinGap > 0 && lookback > c.MinGap
	return c, nil
}

// SuggestedCron returns a cron expression firing once per lookback for the
// lookbacks a plain cron line can express exactly.
func SuggestedCron(lookback time.Duration) (string, bool) {
	switch {
	case lookback <= 0:
		return "", false
	case lookback < time.Hour && lookback%time.Minute == 0 && 60%int(lookback/time.Minute) == 0:
		return fmt.Sprintf("*/%d * * * *", int(lookback/time.Minute)), true
	case lookback == time.Hour:
		return "0 * * * *", true
	case lookback < 24*time.Hour && lookback%time.Hour == 0 && 24%int(lookback/time.Hour) == 0:
		return fmt.Sprintf("0 */%d * * *", int(lookback/time.Hour)), true
	case lookback == 24*time.Hour:
		return "0 0 * * *", true
	}
	return fmt.Sprintf("@every %s", lookback), true
}
