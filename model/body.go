package model

import (
	"fmt"
	"strings"
)

// BodyKind classifies a registry entry.
type BodyKind string

const (
	KindStar      BodyKind = "star"
	KindPlanet    BodyKind = "planet"
	KindDwarf     BodyKind = "dwarf"
	KindMoon      BodyKind = "moon"
	KindSatellite BodyKind = "satellite"
)

// Position is a point in scene units. For planets it is relative to the
// system origin; for moons it is relative to the parent body.
type Position struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
	Z float64 `json:"z" toml:"z"`
}

// TLE holds the two element lines for an SGP4-propagated satellite.
type TLE struct {
	Line1 string `json:"line1" toml:"line1"`
	Line2 string `json:"line2" toml:"line2"`
}

// Valid reports whether both lines have the fixed 69-column layout and the
// right line numbers. SGP4 parsing aborts the process on malformed input, so
// nothing reaches it without passing this check.
func (t *TLE) Valid() bool {
	if t == nil {
		return false
	}
	l1, l2 := strings.TrimSpace(t.Line1), strings.TrimSpace(t.Line2)
	return len(l1) == 69 && len(l2) == 69 && l1[0] == '1' && l2[0] == '2'
}

// RingDefinition describes a flat ring around a body, in the body's local units.
type RingDefinition struct {
	Inner   float64 `json:"inner" toml:"inner"`
	Outer   float64 `json:"outer" toml:"outer"`
	Color   string  `json:"color,omitempty" toml:"color,omitempty"`
	Texture string  `json:"texture,omitempty" toml:"texture,omitempty"`
}

// MoonDefinition describes a sub-body riding on a planet.
type MoonDefinition struct {
	ID           string   `json:"id" toml:"id"`
	Kind         BodyKind `json:"kind,omitempty" toml:"kind,omitempty"` // moon (default) or satellite
	DisplayScale float64  `json:"scale" toml:"scale"`
	// Distance from the parent centre in parent-local units (1 = parent radius).
	Distance    float64  `json:"distance" toml:"distance"`
	OrbitPeriod *float64 `json:"orbit_period,omitempty" toml:"orbit_period,omitempty"`
	Color       string   `json:"color,omitempty" toml:"color,omitempty"`
	Texture     string   `json:"texture,omitempty" toml:"texture,omitempty"`
	TLE         *TLE     `json:"tle,omitempty" toml:"tle,omitempty"`
}

// BodyDefinition is one row of the body registry.
type BodyDefinition struct {
	ID           string   `json:"id" toml:"id"`
	Name         string   `json:"name,omitempty" toml:"name,omitempty"`
	Kind         BodyKind `json:"kind,omitempty" toml:"kind,omitempty"`
	DisplayScale float64  `json:"scale" toml:"scale"`
	BasePosition Position `json:"position" toml:"position"`
	// OrbitPeriod is optional; nil means "use the fallback period".
	OrbitPeriod *float64         `json:"orbit_period,omitempty" toml:"orbit_period,omitempty"`
	Color       string           `json:"color,omitempty" toml:"color,omitempty"`
	Texture     string           `json:"texture,omitempty" toml:"texture,omitempty"`
	Moons       []MoonDefinition `json:"moons,omitempty" toml:"moons,omitempty"`
	Ring        *RingDefinition  `json:"ring,omitempty" toml:"ring,omitempty"`
}

// DisplayName returns Name, or ID when no name was given.
func (d *BodyDefinition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Orbits reports whether the body revolves around the system origin.
func (d *BodyDefinition) Orbits() bool {
	return d.Kind != KindStar
}

// Period returns a float pointer, for table literals.
func Period(p float64) *float64 { return &p }

// ConfigError reports a registry entry that cannot be accepted.
type ConfigError struct {
	Body   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("invalid body: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid body %q: %s %s", e.Body, e.Field, e.Reason)
}

// ValidatePeriod rejects a declared period that is zero or negative.
// A nil period is accepted; callers substitute their fallback.
func ValidatePeriod(id string, period *float64) error {
	if period == nil {
		return nil
	}
	if !(*period > 0) {
		return &ConfigError{Body: id, Field: "orbit_period", Reason: fmt.Sprintf("must be > 0, got %v", *period)}
	}
	return nil
}

// Validate checks a definition and its moons.
func (d *BodyDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return &ConfigError{Field: "id", Reason: "must not be empty"}
	}
	switch d.Kind {
	case "", KindStar, KindPlanet, KindDwarf:
	default:
		return &ConfigError{Body: d.ID, Field: "kind", Reason: fmt.Sprintf("%q is not a top-level kind", d.Kind)}
	}
	if !(d.DisplayScale > 0) {
		return &ConfigError{Body: d.ID, Field: "scale", Reason: "must be > 0"}
	}
	if err := ValidatePeriod(d.ID, d.OrbitPeriod); err != nil {
		return err
	}
	if d.Ring != nil && !(d.Ring.Outer > d.Ring.Inner && d.Ring.Inner >= 0) {
		return &ConfigError{Body: d.ID, Field: "ring", Reason: "needs 0 <= inner < outer"}
	}

	seen := make(map[string]struct{}, len(d.Moons))
	for _, m := range d.Moons {
		if strings.TrimSpace(m.ID) == "" {
			return &ConfigError{Body: d.ID, Field: "moons.id", Reason: "must not be empty"}
		}
		if m.ID == d.ID {
			return &ConfigError{Body: d.ID, Field: "moons.id", Reason: "must differ from the parent id"}
		}
		if _, dup := seen[m.ID]; dup {
			return &ConfigError{Body: m.ID, Field: "id", Reason: "is listed twice"}
		}
		seen[m.ID] = struct{}{}

		if !(m.DisplayScale > 0) {
			return &ConfigError{Body: m.ID, Field: "scale", Reason: "must be > 0"}
		}
		switch m.Kind {
		case "", KindMoon:
			if err := ValidatePeriod(m.ID, m.OrbitPeriod); err != nil {
				return err
			}
		case KindSatellite:
			if !m.TLE.Valid() {
				return &ConfigError{Body: m.ID, Field: "tle", Reason: "satellites need both TLE lines"}
			}
		default:
			return &ConfigError{Body: m.ID, Field: "kind", Reason: fmt.Sprintf("%q is not a moon kind", m.Kind)}
		}
	}
	return nil
}

// BodyIDs returns the definition's own id followed by its moon ids.
func (d *BodyDefinition) BodyIDs() []string {
	ids := make([]string, 0, 1+len(d.Moons))
	ids = append(ids, d.ID)
	for _, m := range d.Moons {
		ids = append(ids, m.ID)
	}
	return ids
}
