package fraud

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxReadingAge is the oldest reading accepted by CheckFreshness.
	DefaultMaxReadingAge = 2 * time.Minute
	// DefaultMaxAccuracyMeters is the worst accuracy accepted by CheckAccuracy.
	DefaultMaxAccuracyMeters = 50.0
)

var (
	// ErrStaleReading is returned when a reading is older than the allowed age.
	ErrStaleReading = errors.New("reading is too old")
	// ErrInsufficientAccuracy is returned when accuracy is missing or too coarse.
	ErrInsufficientAccuracy = errors.New("reading accuracy is insufficient")
)

// CheckFreshness rejects readings older than maxAge at now. A reading without
// a capture time cannot be aged here; the metadata heuristic flags it instead.
func CheckFreshness(capturedAt *time.Time, now time.Time, maxAge time.Duration) error {
	if capturedAt == nil {
		return nil
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxReadingAge
	}
	if age := now.Sub(*capturedAt); age > maxAge {
		return fmt.Errorf("%w: age %s exceeds %s", ErrStaleReading, age.Truncate(time.Second), maxAge)
	}
	return nil
}

// CheckAccuracy rejects readings whose accuracy is absent or above maxMeters.
func CheckAccuracy(accuracy *float64, maxMeters float64) error {
	if maxMeters <= 0 {
		maxMeters = DefaultMaxAccuracyMeters
	}
	if accuracy == nil {
		return fmt.Errorf("%w: accuracy not reported", ErrInsufficientAccuracy)
	}
	if *accuracy > maxMeters {
		return fmt.Errorf("%w: %.0f m exceeds %.0f m", ErrInsufficientAccuracy, *accuracy, maxMeters)
	}
	return nil
}
