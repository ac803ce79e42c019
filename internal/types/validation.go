package types

import (
	"math"
)

// Validation constraint constants.
const (
	MinLat          = -90.0
	MaxLat          = 90.0
	MinLon          = -180.0
	MaxLon          = 180.0
	MaxZoneIDLength = 64
	MinZoneRadiusM  = 1.0
	MaxZoneRadiusM  = 500_000.0
)

// ValidLat reports whether lat is a finite latitude in degrees.
// NaN fails every comparison, so malformed values fail closed here even
// though the containment evaluator itself never validates its inputs.
func ValidLat(lat float64) bool {
	return !math.IsNaN(lat) && lat >= MinLat && lat <= MaxLat
}

// ValidLon reports whether lon is a finite longitude in degrees.
func ValidLon(lon float64) bool {
	return !math.IsNaN(lon) && lon >= MinLon && lon <= MaxLon
}

// ValidatePoint checks a coordinate pair, returning the field-specific
// validation error for the first failing component.
func ValidatePoint(p GeoPoint) error {
	if !ValidLat(p.Lat) {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLat,
			"latitude must be between -90 and 90", nil,
			map[string]any{"lat": p.Lat})
	}
	if !ValidLon(p.Lon) {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLon,
			"longitude must be between -180 and 180", nil,
			map[string]any{"lon": p.Lon})
	}
	return nil
}
