// Package geo implements the distance and containment evaluator: great-circle
// distance between WGS-84 coordinates and boundary-inclusive circular zone
// containment.
//
// Both functions are pure and never validate input. Malformed coordinates
// (NaN, out-of-range degrees) propagate as NaN distances and false
// containment; callers that need validation use types.ValidatePoint before
// evaluating.
package geo

import (
	"math"

	"zonewatch/internal/types"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000

// Distance returns the great-circle distance in meters between two points,
// computed with the haversine formula.
func Distance(a, b types.GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Contains reports whether the point lies within the zone's radius of its
// center. The boundary is inclusive: a point exactly radius meters from the
// center is inside.
func Contains(zone types.DisasterZone, p types.GeoPoint) bool {
	return Distance(zone.Center, p) <= zone.RadiusM
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
