// Package geothrottle suppresses GPS forwards that carry no new
// information: a fix is only worth persisting when the person has moved a
// significant distance or the last stored fix has gone stale.
package geothrottle

import (
	"fmt"
	"math"
	"time"
)

// Defaults.
const (
	DefaultSignificantDistanceKm = 0.5
	DefaultMaxStaleness          = 4 * time.Hour

	earthRadiusKm = 6371
)

// Config holds the throttling thresholds.
type Config struct {
	// SignificantDistanceKm is the minimum movement that always forwards.
	SignificantDistanceKm float64
	// MaxStaleness forces a heartbeat forward even without movement.
	MaxStaleness time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SignificantDistanceKm: DefaultSignificantDistanceKm,
		MaxStaleness:          DefaultMaxStaleness,
	}
}

// Sample is a GPS fix observed on the device.
type Sample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ObservedAt time.Time `json:"observed_at"`
}

// Validate rejects out-of-range coordinates. Invalid samples are dropped by
// the caller and leave throttle state unchanged.
func (s Sample) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range", s.Longitude)
	}
	return nil
}

// State is the persisted per-device throttle state: the last fix that was
// actually stored remotely.
type State struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	StoredAt  time.Time `json:"stored_at"`
}

// ShouldThrottle reports whether the sample may be suppressed (true) or
// must be forwarded (false). A nil prev means no fix was ever stored, which
// always forwards. Threshold comparisons are inclusive.
func (c Config) ShouldThrottle(now time.Time, sample Sample, prev *State) bool {
	if prev == nil {
		return false
	}
	if Haversine(sample.Latitude, sample.Longitude, prev.Latitude, prev.Longitude) >= c.SignificantDistanceKm {
		return false
	}
	if now.Sub(prev.StoredAt) >= c.MaxStaleness {
		return false
	}
	return true
}

// RecordStored advances the state after a successful remote write.
func (s *State) RecordStored(sample Sample, now time.Time) {
	s.Latitude = sample.Latitude
	s.Longitude = sample.Longitude
	s.StoredAt = now
}

// Haversine returns the great-circle distance in kilometers between two
// points given in decimal degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
