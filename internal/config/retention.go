package config

import "time"

const DefaultOrphanGrace = 24 * time.Hour

// RetainUntil returns the cutoff before which archives are expired. The
// longest of days, weeks and months wins. Zero means keep forever.
func RetainUntil(now time.Time, r *RetentionConfig) time.Time {
	if r == nil {
		return time.Time{}
	}
	days := r.Days
	if r.Weeks*7 > days {
		days = r.Weeks * 7
	}
	if r.Months*30 > days {
		days = r.Months * 30
	}
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}

func IsExpired(archivedAt, now time.Time, r *RetentionConfig) bool {
	cutoff := RetainUntil(now, r)
	if cutoff.IsZero() {
		return false
	}
	return archivedAt.Before(cutoff)
}

// OrphanCutoff is the instant before which an archive without a manifest is
// considered abandoned by a failed run rather than still being written.
func OrphanCutoff(now time.Time, r *RetentionConfig) time.Time {
	grace := DefaultOrphanGrace
	if r != nil && r.OrphanGraceHours > 0 {
		grace = time.Duration(r.OrphanGraceHours) * time.Hour
	}
	return now.Add(-grace)
}
