package fraud

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/kv"
)

const (
	// HistorySize bounds the per-user history buffer.
	HistorySize = 10

	identicalRepeatThreshold = 3
	lowVariationWindow       = 3
	lowVariationDegrees      = 0.00001
	maxSpeedKmh              = 100.0
	minSpeedSegmentMeters    = 1000.0
	maxFractionDigits        = 10
)

// HistoryEntry is one observed position of a user.
type HistoryEntry struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Sample is a reading that already passed the coordinate check.
// ReceivedAt is the server time; it stands in for CapturedAt in history when
// the device did not report one.
type Sample struct {
	Lat            float64
	Lng            float64
	AccuracyMeters *float64
	CapturedAt     *time.Time
	ReceivedAt     time.Time
}

// Detector runs the anomaly heuristics over a bounded per-user history.
// Callers serialize events per user; the store itself is concurrency-safe.
type Detector struct {
	history kv.Store[[]HistoryEntry]
}

// NewDetector returns a Detector backed by store.
func NewDetector(store kv.Store[[]HistoryEntry]) *Detector {
	return &Detector{history: store}
}

// History returns a copy of the user's buffer, oldest first.
func (d *Detector) History(userID string) []HistoryEntry {
	h, _ := d.history.Get(userID)
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out
}

// Reset forgets the user's history.
func (d *Detector) Reset(userID string) { d.history.Delete(userID) }

// Observe appends e to the user's buffer, evicting the oldest entries beyond
// HistorySize, and returns the updated buffer.
func (d *Detector) Observe(userID string, e HistoryEntry) []HistoryEntry {
	prev, _ := d.history.Get(userID)
	next := make([]HistoryEntry, 0, HistorySize)
	if over := len(prev) + 1 - HistorySize; over > 0 {
		prev = prev[over:]
	}
	next = append(next, prev...)
	next = append(next, e)
	d.history.Set(userID, next)
	return next
}

// Analyze records the sample in the user's history and returns every flag
// raised by the history, coordinate-shape, and metadata heuristics.
func (d *Detector) Analyze(userID string, s Sample) []Flag {
	ts := s.ReceivedAt
	if s.CapturedAt != nil {
		ts = *s.CapturedAt
	}
	h := d.Observe(userID, HistoryEntry{Lat: s.Lat, Lng: s.Lng, Timestamp: ts})

	var flags []Flag
	flags = append(flags, identicalLocations(h)...)
	flags = append(flags, lowVariation(h)...)
	flags = append(flags, implausibleSpeed(h)...)
	flags = append(flags, coordinateShape(s.Lat, s.Lng)...)
	flags = append(flags, metadata(s.AccuracyMeters, s.CapturedAt)...)
	return flags
}

// identicalLocations flags when at least three entries immediately before the
// newest one carry bit-identical coordinates.
func identicalLocations(h []HistoryEntry) []Flag {
	if len(h) < identicalRepeatThreshold+1 {
		return nil
	}
	cur := h[len(h)-1]
	repeats := 0
	for i := len(h) - 2; i >= 0; i-- {
		if h[i].Lat != cur.Lat || h[i].Lng != cur.Lng {
			break
		}
		repeats++
	}
	if repeats < identicalRepeatThreshold {
		return nil
	}
	return []Flag{newFlag(KindIdenticalLocations,
		fmt.Sprintf("Ubicación idéntica repetida %d veces seguidas", repeats+1))}
}

// lowVariation sums |Δlat|+|Δlng| over the last three entries.
func lowVariation(h []HistoryEntry) []Flag {
	if len(h) < lowVariationWindow {
		return nil
	}
	w := h[len(h)-lowVariationWindow:]
	total := 0.0
	for i := 1; i < len(w); i++ {
		total += math.Abs(w[i].Lat-w[i-1].Lat) + math.Abs(w[i].Lng-w[i-1].Lng)
	}
	if total >= lowVariationDegrees {
		return nil
	}
	return []Flag{newFlag(KindLowGPSVariation, "Variación GPS anormalmente baja entre lecturas")}
}

// implausibleSpeed compares the two most recent entries. Both the speed and
// the segment length must exceed their limits; a non-positive time delta
// counts as infinite speed.
func implausibleSpeed(h []HistoryEntry) []Flag {
	if len(h) < 2 {
		return nil
	}
	prev, cur := h[len(h)-2], h[len(h)-1]
	meters := geofence.Distance(prev.Lat, prev.Lng, cur.Lat, cur.Lng)
	if meters <= minSpeedSegmentMeters {
		return nil
	}
	hours := cur.Timestamp.Sub(prev.Timestamp).Seconds() / 3600
	speed := math.Inf(1)
	if hours > 0 {
		speed = (meters / 1000) / hours
	}
	if speed <= maxSpeedKmh {
		return nil
	}
	msg := fmt.Sprintf("Desplazamiento imposible: %.0f m a más de %.0f km/h", meters, maxSpeedKmh)
	if !math.IsInf(speed, 1) {
		msg = fmt.Sprintf("Desplazamiento imposible: %.0f m a %.0f km/h", meters, speed)
	}
	return []Flag{newFlag(KindImpossibleSpeed, msg)}
}

// coordinateShape inspects the decimal rendering of each coordinate.
// At most one flag per kind is raised even when both coordinates match.
func coordinateShape(lat, lng float64) []Flag {
	var zeroRun, precise, rounded []string
	for _, c := range []struct {
		name string
		v    float64
	}{{"latitud", lat}, {"longitud", lng}} {
		frac := fractionDigits(c.v)
		if strings.Contains(frac, "000") {
			zeroRun = append(zeroRun, c.name)
		}
		if len(frac) > maxFractionDigits {
			precise = append(precise, c.name)
		}
		if strings.HasSuffix(strconv.FormatFloat(c.v, 'f', 6, 64), ".000000") {
			rounded = append(rounded, c.name)
		}
	}

	var flags []Flag
	if len(zeroRun) > 0 {
		flags = append(flags, newFlag(KindPerfectCoordinates,
			"Coordenadas con secuencia de ceros sospechosa ("+strings.Join(zeroRun, ", ")+")"))
	}
	if len(precise) > 0 {
		flags = append(flags, newFlag(KindExcessivePrecision,
			"Precisión decimal excesiva ("+strings.Join(precise, ", ")+")"))
	}
	if len(rounded) > 0 {
		flags = append(flags, newFlag(KindRoundedCoordinates,
			"Coordenadas redondeadas ("+strings.Join(rounded, ", ")+")"))
	}
	return flags
}

// fractionDigits returns the digits after the decimal point of the shortest
// exact rendering of v.
func fractionDigits(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func metadata(accuracy *float64, capturedAt *time.Time) []Flag {
	var flags []Flag
	if accuracy != nil {
		a := *accuracy
		switch math.Floor(a) {
		case 1, 2, 3:
			flags = append(flags, newFlag(KindSuspiciousAccuracy,
				fmt.Sprintf("Precisión sospechosamente exacta (%.0f m)", a)))
		}
		if a < 5 || a > 100 {
			flags = append(flags, newFlag(KindAbnormalAccuracy,
				fmt.Sprintf("Precisión fuera de rango normal (%.1f m)", a)))
		}
	}
	if capturedAt == nil {
		flags = append(flags, newFlag(KindMissingTimestamp, "La lectura no incluye marca de tiempo"))
	}
	return flags
}
