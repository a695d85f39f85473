package config

import "time"

// Duration accessors for string-typed config fields. Validation guarantees
// these parse; the fallbacks only matter for hand-built configs in tests.

// Timeout returns the parsed snippet timeout.
func (r RuntimeConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(r.SnippetTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// MaxAgeDuration returns the parsed retention age limit.
func (r RetentionConfig) MaxAgeDuration() time.Duration {
	d, err := time.ParseDuration(r.MaxAge)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// SweepIntervalDuration returns the parsed retention sweep interval.
func (r RetentionConfig) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(r.SweepInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}
