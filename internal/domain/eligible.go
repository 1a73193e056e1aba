package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowMinutes is the delivery tolerance: a user is due from WindowMinutes
// before their preferred time up to the preferred minute itself. Once the
// preferred minute has passed (negative diff) the user is not due again until
// the next day. This is intentional: the notification run fires on a cadence
// no larger than the window, so every preferred time is covered by at least
// one run before it arrives.
const WindowMinutes = 5

// Eligible reports whether nowUTC falls inside u's delivery window.
//
// Both sides are truncated to whole minutes: seconds in the preferred time
// and in the current clock are ignored, so "09:00:30" behaves as "09:00".
// Pure function of its inputs; callers inject the clock.
//
// Invalid timezone or malformed preferred time returns (false, err); the
// caller logs and skips the user (fail closed) instead of aborting the run.
func Eligible(u User, nowUTC time.Time) (bool, error) {
	return EligibleWithin(u, nowUTC, WindowMinutes)
}

// EligibleWithin is Eligible with an explicit window size, for deployments
// that tune the cadence/window pair in config.
func EligibleWithin(u User, nowUTC time.Time, windowMinutes int) (bool, error) {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return false, fmt.Errorf("timezone %q: %w", u.Timezone, err)
	}

	local := nowUTC.In(loc)
	current := local.Hour()*60 + local.Minute()

	preferred, err := parsePreferredMinutes(u.PreferredTime)
	if err != nil {
		return false, err
	}

	diff := preferred - current
	return diff >= 0 && diff <= windowMinutes, nil
}

// parsePreferredMinutes parses "HH:MM:SS" (or "HH:MM") into minutes since
// midnight, dropping seconds.
func parsePreferredMinutes(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("preferred time %q: want HH:MM:SS", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("preferred time %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("preferred time %q: %w", s, err)
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return 0, fmt.Errorf("preferred time %q: %w", s, err)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("preferred time %q: out of range", s)
	}
	return h*60 + m, nil
}
