// Package notify composes and dispatches transition alerts.
//
// Composition is a pure lookup: (category, severity, direction) selects fixed
// content. Entry alerts escalate wording and delivery priority with severity;
// exits share one calmer template at default priority regardless of the zone.
package notify

import (
	"fmt"

	"zonewatch/internal/types"
)

// entryKey addresses the entry content table.
type entryKey struct {
	Category types.ZoneCategory
	Severity types.ZoneSeverity
}

// entryText is the wording for one (category, severity) pair. Sound and
// priority are derived from severity in Compose, not stored here.
type entryText struct {
	title  string
	body   string
	action string
}

// entryTable covers every declared (category, severity) pair. A missing pair
// is a programming error surfaced by Compose as a panic, and the table is
// checked for totality against the declared enumerations in tests.
var entryTable = map[entryKey]entryText{
	{types.CategoryFlood, types.SeverityInfo}: {
		title:  "Flood Advisory",
		body:   "You have entered a flood advisory area. Water levels are being monitored; no action is needed right now.",
		action: "View area details",
	},
	{types.CategoryFlood, types.SeverityWarning}: {
		title:  "Flood Watch",
		body:   "You have entered a flood watch area. Water levels may rise quickly; avoid low-lying roads and stay informed.",
		action: "Check flood guidance",
	},
	{types.CategoryFlood, types.SeverityHigh}: {
		title:  "Flood Warning",
		body:   "You are inside an active flood zone. Move to higher ground and do not drive through standing water.",
		action: "Find higher ground",
	},
	{types.CategoryFlood, types.SeverityCritical}: {
		title:  "Flood Emergency",
		body:   "EMERGENCY: You are inside a life-threatening flood zone. Get to high ground immediately and follow official instructions.",
		action: "Act immediately",
	},

	{types.CategoryFire, types.SeverityInfo}: {
		title:  "Fire Advisory",
		body:   "You have entered a fire advisory area. Crews are monitoring activity nearby; stay aware of your surroundings.",
		action: "View area details",
	},
	{types.CategoryFire, types.SeverityWarning}: {
		title:  "Fire Watch",
		body:   "You have entered a fire watch area. Smoke and spot fires are possible; know your exit routes.",
		action: "Review exit routes",
	},
	{types.CategoryFire, types.SeverityHigh}: {
		title:  "Fire Danger",
		body:   "You are inside an active fire zone. Be ready to leave at short notice and keep clear of fire crews.",
		action: "Prepare to leave",
	},
	{types.CategoryFire, types.SeverityCritical}: {
		title:  "Fire Emergency",
		body:   "EMERGENCY: You are inside an active fire perimeter. Leave now by the nearest safe route and follow evacuation orders.",
		action: "Leave now",
	},

	{types.CategoryEvacuation, types.SeverityInfo}: {
		title:  "Evacuation Notice",
		body:   "You have entered an area under an evacuation notice. No order is in effect for your location yet; stay informed.",
		action: "View notice",
	},
	{types.CategoryEvacuation, types.SeverityWarning}: {
		title:  "Evacuation Advisory",
		body:   "You have entered an evacuation advisory area. Prepare essentials in case an order is issued.",
		action: "Prepare essentials",
	},
	{types.CategoryEvacuation, types.SeverityHigh}: {
		title:  "Evacuation Order",
		body:   "You are inside an area under an evacuation order. Gather essentials and leave as directed by authorities.",
		action: "Follow the order",
	},
	{types.CategoryEvacuation, types.SeverityCritical}: {
		title:  "Evacuation Emergency",
		body:   "EMERGENCY: You are inside a mandatory evacuation area. Leave immediately by the posted routes.",
		action: "Evacuate now",
	},

	{types.CategoryStorm, types.SeverityInfo}: {
		title:  "Storm Advisory",
		body:   "You have entered a storm advisory area. Conditions are being watched; no action is needed right now.",
		action: "View area details",
	},
	{types.CategoryStorm, types.SeverityWarning}: {
		title:  "Storm Watch",
		body:   "You have entered a storm watch area. High winds and rain are possible; secure loose items and stay informed.",
		action: "Check the forecast",
	},
	{types.CategoryStorm, types.SeverityHigh}: {
		title:  "Storm Warning",
		body:   "You are inside an active storm zone. Seek sturdy shelter and stay away from windows and flood channels.",
		action: "Seek shelter",
	},
	{types.CategoryStorm, types.SeverityCritical}: {
		title:  "Storm Emergency",
		body:   "EMERGENCY: You are inside a destructive storm zone. Shelter in place now and stay away from exterior walls.",
		action: "Shelter now",
	},

	{types.CategoryEarthquake, types.SeverityInfo}: {
		title:  "Seismic Notice",
		body:   "You have entered a seismically active area. Minor shaking is possible; no action is needed right now.",
		action: "View area details",
	},
	{types.CategoryEarthquake, types.SeverityWarning}: {
		title:  "Seismic Advisory",
		body:   "You have entered a seismic advisory area. Aftershocks are possible; note safe spots away from glass and heavy fixtures.",
		action: "Review safety tips",
	},
	{types.CategoryEarthquake, types.SeverityHigh}: {
		title:  "Earthquake Hazard",
		body:   "You are inside an elevated earthquake hazard zone. Identify sturdy cover nearby and be ready to use it.",
		action: "Find safe cover",
	},
	{types.CategoryEarthquake, types.SeverityCritical}: {
		title:  "Earthquake Emergency",
		body:   "EMERGENCY: You are inside a severe earthquake hazard zone. Take cover away from glass and unreinforced walls now.",
		action: "Take cover now",
	},
}

// exitContent is the single shared exit template. Exits are deliberately calm:
// default priority, no sound, the same wording for every zone.
var exitContent = types.AlertContent{
	Title:    "Zone Exited",
	Body:     "You have exited the alert zone. Conditions can change quickly; stay alert and keep monitoring local guidance.",
	Action:   "View recent activity",
	Sound:    false,
	Priority: types.PriorityDefault,
}

// Compose returns the alert content for one transition. It is total over the
// declared category, severity, and direction enumerations; an undefined
// combination is a programming error and panics rather than degrading into a
// silent wrong alert.
func Compose(category types.ZoneCategory, severity types.ZoneSeverity, direction types.TransitionDirection) types.AlertContent {
	switch direction {
	case types.DirectionExit:
		return exitContent
	case types.DirectionEnter:
		text, ok := entryTable[entryKey{Category: category, Severity: severity}]
		if !ok {
			panic(fmt.Sprintf("notify: no entry template for category %q severity %q", category, severity))
		}
		return types.AlertContent{
			Title:    text.title,
			Body:     text.body,
			Action:   text.action,
			Sound:    severity != types.SeverityInfo,
			Priority: entryPriority(severity),
		}
	default:
		panic(fmt.Sprintf("notify: unknown transition direction %q", direction))
	}
}

// entryPriority maps severity to delivery priority for entry alerts.
// CRITICAL always gets maximum priority so the platform can bypass
// do-not-disturb style suppression.
func entryPriority(severity types.ZoneSeverity) types.AlertPriority {
	switch severity {
	case types.SeverityCritical:
		return types.PriorityMax
	case types.SeverityHigh, types.SeverityWarning:
		return types.PriorityHigh
	default:
		return types.PriorityDefault
	}
}
