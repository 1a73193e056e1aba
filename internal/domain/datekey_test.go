package domain

import (
	"testing"
	"time"
)

func TestDateKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{"utc midday", time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), "2026-08-31"},
		{"utc midnight", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), "2026-08-31"},
		{
			// 23:30 in UTC-5 is already the next UTC day; the key follows UTC.
			"local evening crosses utc midnight",
			time.Date(2026, 8, 30, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)),
			"2026-08-31",
		},
		{
			"local morning behind utc",
			time.Date(2026, 9, 1, 3, 0, 0, 0, time.FixedZone("JST", 9*3600)),
			"2026-08-31",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DateKey(tc.in); got != tc.want {
				t.Fatalf("DateKey(%s) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
