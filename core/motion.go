package core

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orrery/model"
)

// EarthRadiusKm converts SGP4 kilometres into parent-radius units.
const EarthRadiusKm = 6371.0

// MotionModel reports a tracked body's position, in its parent's local
// frame, at a given simulation time. ok is false when no position can be
// produced for t.
type MotionModel interface {
	Position(t time.Time) (pos mgl64.Vec3, ok bool)
}

// StaticMotionModel always reports the same position.
type StaticMotionModel struct {
	At mgl64.Vec3
}

// Position returns the fixed position.
func (m StaticMotionModel) Position(time.Time) (mgl64.Vec3, bool) {
	return m.At, true
}

// SGP4MotionModel propagates a TLE with SGP4 and maps the ECI result into
// scene axes (scene Y is the orbital-plane normal, ECI Z).
type SGP4MotionModel struct {
	sat satellite.Satellite
	// Scale multiplies the position after dividing by EarthRadiusKm.
	Scale float64
}

// NewSGP4Model constructs an SGP4 model from TLE lines.
func NewSGP4Model(tle model.TLE) (*SGP4MotionModel, error) {
	if !tle.Valid() {
		return nil, &ConfigError{Field: "tle", Reason: "needs two lines starting with 1 and 2"}
	}
	sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, &ConfigError{Field: "tle", Reason: "sgp4 initialisation failed"}
	}
	return &SGP4MotionModel{sat: sat, Scale: 1}, nil
}

// Position propagates the satellite to t and returns its position in
// parent-radius units.
func (m *SGP4MotionModel) Position(t time.Time) (mgl64.Vec3, bool) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	eci, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	if math.IsNaN(eci.X) || math.IsNaN(eci.Y) || math.IsNaN(eci.Z) {
		return mgl64.Vec3{}, false
	}
	if eci.X == 0 && eci.Y == 0 && eci.Z == 0 {
		return mgl64.Vec3{}, false
	}
	s := m.Scale / EarthRadiusKm
	return mgl64.Vec3{eci.X * s, eci.Z * s, -eci.Y * s}, true
}
