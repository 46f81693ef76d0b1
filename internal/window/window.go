// Package window computes the half-open modification-time interval a run covers.
package window

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidLookback = errors.New("invalid lookback")

// TimeWindow is the interval [Start, End). Start is always before End.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Lookback converts the configured minutes or hours into a duration. Exactly
// one of the two must be positive.
func Lookback(minutes, hours int) (time.Duration, error) {
	switch {
	case minutes != 0 && hours != 0:
		return 0, fmt.Errorf("%w: minutes (%d) and hours (%d) are mutually exclusive", ErrInvalidLookback, minutes, hours)
	case minutes > 0:
		return time.Duration(minutes) * time.Minute, nil
	case hours > 0:
		return time.Duration(hours) * time.Hour, nil
	case minutes < 0 || hours < 0:
		return 0, fmt.Errorf("%w: lookback must be positive", ErrInvalidLookback)
	default:
		return 0, fmt.Errorf("%w: one of minutes or hours is required", ErrInvalidLookback)
	}
}

// Select returns [now-lookback, now) in UTC.
func Select(now time.Time, lookback time.Duration) (TimeWindow, error) {
	if lookback <= 0 {
		return TimeWindow{}, fmt.Errorf("%w: %s", ErrInvalidLookback, lookback)
	}
	end := now.UTC()
	return TimeWindow{Start: end.Add(-lookback), End: end}, nil
}
