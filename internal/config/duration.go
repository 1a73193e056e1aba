package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration fields arrive as Go duration strings ("24h", "1s"). Empty means
// unset; the typed accessors below substitute this service's defaults.

func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func durationOr(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// RecencyWindowDuration is the notifier's trailing interaction gate.
func (c NotifyConfig) RecencyWindowDuration() (time.Duration, error) {
	return durationOr("notify.recency_window", c.RecencyWindow, DefaultRecencyWindow)
}

// BatchDelayDuration is the dispatcher's inter-batch pause.
func (c NotifyConfig) BatchDelayDuration() (time.Duration, error) {
	return durationOr("notify.batch_delay", c.BatchDelay, DefaultBatchDelay)
}

// BusyTimeoutDuration is how long SQLite waits on a locked database.
func (c StorageConfig) BusyTimeoutDuration() (time.Duration, error) {
	return durationOr("storage.busy_timeout", c.BusyTimeout, DefaultBusyTimeout)
}
