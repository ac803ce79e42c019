package catalog

import "zonewatch/internal/types"

// seedZones is the built-in zone catalog for the current release. Zones are
// defined per release and never updated remotely; changing this list requires
// a deploy.
//
// Coverage: Northern and Central California flood basins, fire perimeters,
// fault corridors, storm cells, and evacuation areas.
var seedZones = []types.DisasterZone{
	{
		ID:            "sac-river-flood-basin",
		Category:      types.CategoryFlood,
		Severity:      types.SeverityHigh,
		Center:        types.GeoPoint{Lat: 38.5816, Lon: -121.4944},
		RadiusM:       4000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Sacramento River flood basin with levee overflow risk",
	},
	{
		ID:            "natomas-basin-flood",
		Category:      types.CategoryFlood,
		Severity:      types.SeverityWarning,
		Center:        types.GeoPoint{Lat: 38.6600, Lon: -121.5300},
		RadiusM:       3500,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Natomas basin seasonal flooding area",
	},
	{
		ID:            "caldor-fire-perimeter",
		Category:      types.CategoryFire,
		Severity:      types.SeverityCritical,
		Center:        types.GeoPoint{Lat: 38.6880, Lon: -120.3440},
		RadiusM:       12000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Active wildfire perimeter in the Eldorado National Forest",
	},
	{
		ID:            "napa-hills-fire-watch",
		Category:      types.CategoryFire,
		Severity:      types.SeverityWarning,
		Center:        types.GeoPoint{Lat: 38.4100, Lon: -122.3600},
		RadiusM:       6000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Red-flag fire watch over the Napa hills",
	},
	{
		ID:            "hayward-fault-corridor",
		Category:      types.CategoryEarthquake,
		Severity:      types.SeverityHigh,
		Center:        types.GeoPoint{Lat: 37.6690, Lon: -122.0810},
		RadiusM:       8000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Hayward fault corridor with elevated seismic hazard",
	},
	{
		ID:            "ridgecrest-aftershock-zone",
		Category:      types.CategoryEarthquake,
		Severity:      types.SeverityInfo,
		Center:        types.GeoPoint{Lat: 35.6225, Lon: -117.6710},
		RadiusM:       15000,
		NotifyOnEnter: true,
		NotifyOnExit:  false,
		Description:   "Ridgecrest aftershock monitoring area",
	},
	{
		ID:            "delta-wind-storm-cell",
		Category:      types.CategoryStorm,
		Severity:      types.SeverityWarning,
		Center:        types.GeoPoint{Lat: 38.0570, Lon: -121.7500},
		RadiusM:       9000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "High-wind storm cell over the Sacramento delta",
	},
	{
		ID:            "monterey-surge-front",
		Category:      types.CategoryStorm,
		Severity:      types.SeverityCritical,
		Center:        types.GeoPoint{Lat: 36.6000, Lon: -121.8900},
		RadiusM:       5000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Coastal storm surge front near Monterey Bay",
	},
	{
		ID:            "paradise-evac-staging",
		Category:      types.CategoryEvacuation,
		Severity:      types.SeverityCritical,
		Center:        types.GeoPoint{Lat: 39.7596, Lon: -121.6219},
		RadiusM:       3000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Mandatory evacuation staging area around Paradise",
	},
	{
		ID:            "yuba-evac-advisory",
		Category:      types.CategoryEvacuation,
		Severity:      types.SeverityInfo,
		Center:        types.GeoPoint{Lat: 39.1400, Lon: -121.6170},
		RadiusM:       5000,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
		Description:   "Evacuation advisory area along the Yuba River",
	},
}
