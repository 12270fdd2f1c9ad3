package kb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/orrery/model"
)

const registryJSON = `{"bodies": [
	{"id": "sun", "kind": "star", "scale": 10, "color": "#FDB813"},
	{"id": "earth", "scale": 0.91, "orbit_period": 60, "position": {"x": -19.42, "y": 4.74, "z": 0},
	 "moons": [{"id": "moon", "scale": 0.25, "distance": 2.5}]}
]}`

const registryTOML = `
[[bodies]]
id = "sun"
kind = "star"
scale = 10

[[bodies]]
id = "saturn"
scale = 1.5
orbit_period = 180.0
position = { x = 12, y = 0, z = 3 }
ring = { inner = 1.2, outer = 2.3, color = "#C2B280" }
`

func TestLoadBodiesJSON(t *testing.T) {
	defs, err := LoadBodies(strings.NewReader(registryJSON), FormatJSON)
	if err != nil {
		t.Fatalf("LoadBodies error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d bodies, want 2", len(defs))
	}
	earth := defs[1]
	if earth.Kind != model.KindPlanet {
		t.Fatalf("missing kind should default to planet, got %q", earth.Kind)
	}
	if earth.OrbitPeriod == nil || *earth.OrbitPeriod != 60 {
		t.Fatalf("orbit_period = %v, want 60", earth.OrbitPeriod)
	}
	if earth.BasePosition.X != -19.42 || len(earth.Moons) != 1 || earth.Moons[0].Distance != 2.5 {
		t.Fatalf("earth decoded as %+v", earth)
	}
	if defs[0].OrbitPeriod != nil {
		t.Fatalf("the sun declares no period")
	}
}

func TestLoadBodiesTOML(t *testing.T) {
	defs, err := LoadBodies(strings.NewReader(registryTOML), FormatTOML)
	if err != nil {
		t.Fatalf("LoadBodies error: %v", err)
	}
	saturn := defs[1]
	if saturn.Ring == nil || saturn.Ring.Outer != 2.3 {
		t.Fatalf("ring = %+v", saturn.Ring)
	}
	if saturn.BasePosition.Z != 3 || *saturn.OrbitPeriod != 180 {
		t.Fatalf("saturn decoded as %+v", saturn)
	}
}

func TestLoadBodiesRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		doc    string
		format Format
	}{
		{"unknown json field", `{"bodies": [{"id": "x", "scale": 1, "mass": 5}]}`, FormatJSON},
		{"unknown toml field", "[[bodies]]\nid = \"x\"\nscale = 1\nmass = 5\n", FormatTOML},
		{"malformed json", `{"bodies": [`, FormatJSON},
		{"zero period", `{"bodies": [{"id": "x", "scale": 1, "orbit_period": 0}]}`, FormatJSON},
		{"null body", `{"bodies": [null]}`, FormatJSON},
		{"unknown format", `{}`, Format("yaml")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadBodies(strings.NewReader(tc.doc), tc.format); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	_, err := LoadBodies(strings.NewReader(`{"bodies": [{"id": "x", "scale": 1, "orbit_period": -3}]}`), FormatJSON)
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "orbit_period" {
		t.Fatalf("got %v, want an orbit_period ConfigError", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"bodies.json":  FormatJSON,
		"BODIES.JSON":  FormatJSON,
		"a/b.toml":     FormatTOML,
		"registry.tml": FormatTOML,
	} {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Fatalf("FormatFromPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("bodies.yaml"); err == nil {
		t.Fatalf("yaml should be rejected")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bodies.toml")
	if err := os.WriteFile(path, []byte(registryTOML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	defs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d bodies, want 2", len(defs))
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("missing file should fail")
	}
	if _, err := LoadFile(filepath.Join(dir, "bodies.txt")); err == nil {
		t.Fatalf("unknown extension should fail")
	}
}
