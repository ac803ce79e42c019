package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"
)

// snakeCaseRegexp matches strings that are strictly snake_case:
// lowercase letters, digits, and underscores only. Single-word keys
// like "lat" or "note" are valid snake_case.
var snakeCaseRegexp = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)

// isSnakeCase returns true if the key conforms to strict snake_case convention.
func isSnakeCase(key string) bool {
	return snakeCaseRegexp.MatchString(key)
}

// assertAllKeysSnakeCase recursively walks a JSON value and asserts that every
// object key is strictly snake_case. The path parameter tracks the JSON path
// for clear error messages (e.g., "point.lat").
func assertAllKeysSnakeCase(t *testing.T, path string, v interface{}) {
	t.Helper()

	switch val := v.(type) {
	case map[string]interface{}:
		for key, child := range val {
			fullPath := key
			if path != "" {
				fullPath = path + "." + key
			}
			if !isSnakeCase(key) {
				t.Errorf("JSON key %q at path %q is not snake_case", key, fullPath)
			}
			assertAllKeysSnakeCase(t, fullPath, child)
		}
	case []interface{}:
		for i, item := range val {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			assertAllKeysSnakeCase(t, itemPath, item)
		}
	// Scalar types (string, float64, bool, nil) have no keys to check.
	default:
	}
}

// TestTransitionMessageSnakeCaseContract verifies that all JSON keys produced
// by marshalling TransitionMessage are strictly snake_case, as required by the
// downstream queue-consumer contract. The test fails if a field is missing its
// json tag (Go defaults to PascalCase field names).
func TestTransitionMessageSnakeCaseContract(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	msg := TransitionMessage{
		EventID:    "evt_001",
		ZoneID:     "flood-basin",
		Direction:  DirectionEnter,
		Category:   CategoryFlood,
		Severity:   SeverityHigh,
		OccurredAt: now,
		Trigger:    TriggerInitialCheck,
		Point:      &GeoPoint{Lat: 38.58, Lon: -121.49},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal TransitionMessage: %v", err)
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal TransitionMessage to interface{}: %v", err)
	}

	assertAllKeysSnakeCase(t, "", raw)

	topLevel, ok := raw.(map[string]interface{})
	if !ok {
		t.Fatal("TransitionMessage did not marshal to a JSON object")
	}

	// With the point present, all 8 fields should appear.
	expectedKeys := 8
	if len(topLevel) != expectedKeys {
		t.Errorf("TransitionMessage has %d top-level keys, expected %d; fields may be missing json tags",
			len(topLevel), expectedKeys)
	}
}

// TestTransitionMessageOmitsPointForSignals verifies signal-based messages,
// which carry no observed point, omit the key entirely.
func TestTransitionMessageOmitsPointForSignals(t *testing.T) {
	msg := TransitionMessage{
		EventID:    "evt_002",
		ZoneID:     "fire-ridge",
		Direction:  DirectionExit,
		Category:   CategoryFire,
		Severity:   SeverityCritical,
		OccurredAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Trigger:    TriggerRegionSignal,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal TransitionMessage: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal TransitionMessage: %v", err)
	}

	if _, ok := raw["point"]; ok {
		t.Error("point should be omitted when nil")
	}
	if len(raw) != 7 {
		t.Errorf("TransitionMessage (no point) has %d keys, expected 7", len(raw))
	}
}

// TestTransitionEventSnakeCaseContract exercises the log-entry shape the
// presentation layer reads, including the degraded diagnostic form.
func TestTransitionEventSnakeCaseContract(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	full := TransitionEvent{
		ID:          "evt_003",
		Direction:   DirectionEnter,
		Timestamp:   now,
		ZoneID:      "storm-coast",
		Category:    CategoryStorm,
		Severity:    SeverityWarning,
		Description: "Coastal storm surge watch area",
		Point:       &GeoPoint{Lat: 36.95, Lon: -122.02},
	}

	data, err := json.Marshal(full)
	if err != nil {
		t.Fatalf("Failed to marshal TransitionEvent: %v", err)
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal TransitionEvent: %v", err)
	}
	assertAllKeysSnakeCase(t, "", raw)

	// Diagnostic entries omit every zone field and the direction.
	diag := TransitionEvent{
		ID:        "evt_004",
		Timestamp: now,
		Note:      "positioning unavailable: request timed out",
	}
	data, err = json.Marshal(diag)
	if err != nil {
		t.Fatalf("Failed to marshal diagnostic TransitionEvent: %v", err)
	}
	var diagRaw map[string]interface{}
	if err := json.Unmarshal(data, &diagRaw); err != nil {
		t.Fatalf("Failed to unmarshal diagnostic TransitionEvent: %v", err)
	}
	for _, absent := range []string{"direction", "zone_id", "category", "severity", "description", "point"} {
		if _, ok := diagRaw[absent]; ok {
			t.Errorf("diagnostic entry should omit %q", absent)
		}
	}
	if _, ok := diagRaw["note"]; !ok {
		t.Error("diagnostic entry should carry its note")
	}
}

// TestSnakeCaseHelperFunction validates the isSnakeCase helper itself to ensure
// the contract test's foundation is correct.
func TestSnakeCaseHelperFunction(t *testing.T) {
	valid := []string{
		"event_id",
		"zone_id",
		"direction",
		"category",
		"severity",
		"occurred_at",
		"trigger",
		"point",
		"lat",
		"lon",
		"accuracy_m",
		"timestamp",
		"zone_ids",
		"updated_at",
		"radius_m",
		"notify_on_enter",
		"notify_on_exit",
		"description",
		"note",
	}

	for _, key := range valid {
		if !isSnakeCase(key) {
			t.Errorf("Expected %q to be valid snake_case", key)
		}
	}

	invalid := []string{
		"EventID",       // PascalCase (missing json tag)
		"zoneId",        // camelCase
		"OccurredAt",    // PascalCase
		"_leading",      // leading underscore
		"trailing_",     // trailing underscore
		"double__under", // double underscore
		"ALLCAPS",       // all caps
		"mixedCASE",     // mixed case
	}

	for _, key := range invalid {
		if isSnakeCase(key) {
			t.Errorf("Expected %q to be invalid snake_case", key)
		}
	}
}
