package domain

import "time"

// DateKey derives the calendar-day key ("2006-01-02") for a batch.
//
// The key is always the UTC date. Both the fetcher (producer) and the
// notification run (consumer) must go through this one function; deriving the
// key from server-local time on one side silently loses batches around
// midnight.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
