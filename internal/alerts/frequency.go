// Package alerts delivers saved job searches on their configured cadence.
package alerts

import (
	"errors"
	"fmt"
	"time"

	"jobboard-workers/internal/models"
)

var ErrUnknownFrequency = errors.New("UNKNOWN_FREQUENCY")

const (
	Daily    = "daily"
	Weekly   = "weekly"
	Biweekly = "biweekly"
	Monthly  = "monthly"
)

const day = 24 * time.Hour

var intervals = map[string]time.Duration{
	Daily:    day,
	Weekly:   7 * day,
	Biweekly: 14 * day,
	Monthly:  30 * day,
}

// Interval returns the minimum time between two sends of an alert. A month
// is a fixed thirty days.
func Interval(frequency string) (time.Duration, error) {
	d, ok := intervals[frequency]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
	return d, nil
}

// IsDue reports whether alert should be sent at now. An alert that was never
// sent is due; one with an unknown frequency never is.
func IsDue(alert models.JobAlert, now time.Time) bool {
	interval, err := Interval(alert.Frequency)
	if err != nil {
		return false
	}
	if alert.LastSentAt == nil {
		return true
	}
	return now.Sub(*alert.LastSentAt) >= interval
}
