// Package fraud turns a location reading and the submitting user's recent
// history into severity-tagged suspicion flags.
//
// The package has two halves:
//   - stateless input validators (freshness and accuracy gates), and
//   - a Detector that keeps a bounded per-user history and runs the anomaly
//     heuristics (identical locations, low variation, implausible speed,
//     coordinate shape, metadata plausibility).
//
// Flags are signals, not verdicts; the risk package aggregates them.
package fraud

import "fmt"

// Severity grades a flag.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// MarshalText renders the severity by name in JSON.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	for _, v := range []Severity{SeverityLow, SeverityMedium, SeverityHigh} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", b)
}

// Kind identifies the heuristic that raised a flag.
type Kind int

const (
	KindIdenticalLocations Kind = iota + 1
	KindLowGPSVariation
	KindImpossibleSpeed
	KindPerfectCoordinates
	KindExcessivePrecision
	KindRoundedCoordinates
	KindSuspiciousAccuracy
	KindMissingTimestamp
	KindAbnormalAccuracy
)

// Kinds lists every flag kind in declaration order.
var Kinds = []Kind{
	KindIdenticalLocations,
	KindLowGPSVariation,
	KindImpossibleSpeed,
	KindPerfectCoordinates,
	KindExcessivePrecision,
	KindRoundedCoordinates,
	KindSuspiciousAccuracy,
	KindMissingTimestamp,
	KindAbnormalAccuracy,
}

func (k Kind) String() string {
	switch k {
	case KindIdenticalLocations:
		return "IDENTICAL_LOCATIONS"
	case KindLowGPSVariation:
		return "LOW_GPS_VARIATION"
	case KindImpossibleSpeed:
		return "IMPOSSIBLE_SPEED"
	case KindPerfectCoordinates:
		return "PERFECT_COORDINATES"
	case KindExcessivePrecision:
		return "EXCESSIVE_PRECISION"
	case KindRoundedCoordinates:
		return "ROUNDED_COORDINATES"
	case KindSuspiciousAccuracy:
		return "SUSPICIOUS_ACCURACY"
	case KindMissingTimestamp:
		return "MISSING_TIMESTAMP"
	case KindAbnormalAccuracy:
		return "ABNORMAL_ACCURACY"
	}
	return "UNKNOWN"
}

// MarshalText renders the kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, v := range Kinds {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown flag kind %q", b)
}

// Severity is fixed per kind.
func (k Kind) Severity() Severity {
	switch k {
	case KindIdenticalLocations, KindImpossibleSpeed, KindPerfectCoordinates,
		KindRoundedCoordinates, KindMissingTimestamp:
		return SeverityHigh
	case KindLowGPSVariation, KindExcessivePrecision, KindSuspiciousAccuracy:
		return SeverityMedium
	case KindAbnormalAccuracy:
		return SeverityLow
	}
	return SeverityLow
}

// Flag is one suspicion signal produced for a single validation.
type Flag struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func newFlag(k Kind, msg string) Flag {
	return Flag{Kind: k, Severity: k.Severity(), Message: msg}
}

// CountBySeverity returns how many flags carry severity s.
func CountBySeverity(flags []Flag, s Severity) int {
	n := 0
	for _, f := range flags {
		if f.Severity == s {
			n++
		}
	}
	return n
}
