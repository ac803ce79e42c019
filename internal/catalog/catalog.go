// Package catalog holds the static disaster-zone catalog. The catalog is
// fixed at process start: zones are validated once during construction and
// the collection is read-only afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"zonewatch/internal/types"
)

// validate is the shared validator instance for zone definitions.
var validate = validator.New()

// Catalog is an ordered, immutable collection of disaster zones with
// constant-time identifier lookup. Iteration order is definition order.
type Catalog struct {
	zones []types.DisasterZone
	byID  map[string]types.DisasterZone
}

// New builds a catalog from the given zone definitions, validating every
// zone and rejecting duplicate identifiers. The input slice is copied.
func New(zones []types.DisasterZone) (*Catalog, error) {
	c := &Catalog{
		zones: make([]types.DisasterZone, 0, len(zones)),
		byID:  make(map[string]types.DisasterZone, len(zones)),
	}
	for i, z := range zones {
		if err := validateZone(z); err != nil {
			return nil, fmt.Errorf("catalog.New: zone %d (%q): %w", i, z.ID, err)
		}
		if _, exists := c.byID[z.ID]; exists {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationDuplicateID,
				"duplicate zone identifier in catalog", nil,
				map[string]any{"zone_id": z.ID})
		}
		c.zones = append(c.zones, z)
		c.byID[z.ID] = z
	}
	return c, nil
}

// Default builds the catalog from the built-in zone definitions.
func Default() (*Catalog, error) {
	return New(seedZones)
}

// MustDefault builds the built-in catalog, panicking on a definition error.
// Intended for process initialization, where a malformed seed is fatal.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("catalog.MustDefault: %v", err))
	}
	return c
}

// LoadFile builds a catalog from a JSON file containing an array of zone
// definitions. The file replaces the built-in seed set entirely; the same
// validation rules apply.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog.LoadFile: reading %s: %w", path, err)
	}
	var zones []types.DisasterZone
	if err := json.Unmarshal(data, &zones); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidZone,
			fmt.Sprintf("zone file %s is not a valid JSON zone array", path), err)
	}
	if len(zones) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidZone,
			fmt.Sprintf("zone file %s defines no zones", path), nil)
	}
	return New(zones)
}

// All returns the zones in definition order. The returned slice is a copy;
// mutating it does not affect the catalog.
func (c *Catalog) All() []types.DisasterZone {
	out := make([]types.DisasterZone, len(c.zones))
	copy(out, c.zones)
	return out
}

// Get returns the zone for the given identifier.
func (c *Catalog) Get(id string) (types.DisasterZone, bool) {
	z, ok := c.byID[id]
	return z, ok
}

// Len returns the number of zones in the catalog.
func (c *Catalog) Len() int {
	return len(c.zones)
}

// Regions returns the circular regions to register with the positioning
// collaborator, one per zone, in definition order.
func (c *Catalog) Regions() []types.Region {
	out := make([]types.Region, len(c.zones))
	for i, z := range c.zones {
		out[i] = z.Region()
	}
	return out
}

// validateZone applies struct-tag validation plus the coordinate and radius
// checks the tags cannot express.
func validateZone(z types.DisasterZone) error {
	if err := validate.Struct(z); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidZone,
			"zone definition failed validation", err)
	}
	if err := types.ValidatePoint(z.Center); err != nil {
		return err
	}
	if z.RadiusM < types.MinZoneRadiusM || z.RadiusM > types.MaxZoneRadiusM {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidZone,
			fmt.Sprintf("zone radius must be between %.0f and %.0f meters",
				types.MinZoneRadiusM, types.MaxZoneRadiusM), nil,
			map[string]any{"zone_id": z.ID, "radius_m": z.RadiusM})
	}
	return nil
}
