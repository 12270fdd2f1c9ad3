package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// OrbitControls keeps a camera on a sphere around Pivot. Yaw and pitch are
// in radians; Distance in world units.
type OrbitControls struct {
	Pivot    mgl64.Vec3
	Yaw      float64
	Pitch    float64
	Distance float64

	MinDistance float64
	MaxDistance float64
}

const maxPitch = math.Pi/2 - 0.01

// NewOrbitControls derives yaw, pitch and distance from the camera's current pose.
func NewOrbitControls(cam *Camera) *OrbitControls {
	oc := &OrbitControls{MinDistance: 0.5, MaxDistance: 2000}
	oc.SyncFrom(cam)
	return oc
}

// SyncFrom reads the camera pose into the controls without moving the camera.
func (oc *OrbitControls) SyncFrom(cam *Camera) {
	oc.Pivot = cam.Target
	off := cam.Position.Sub(cam.Target)
	oc.Distance = off.Len()
	if oc.Distance < 1e-9 {
		oc.Yaw, oc.Pitch = 0, 0
		return
	}
	oc.Yaw = math.Atan2(off.X(), off.Z())
	oc.Pitch = math.Asin(mgl64.Clamp(off.Y()/oc.Distance, -1, 1))
}

// Orbit rotates the camera around the pivot.
func (oc *OrbitControls) Orbit(dYaw, dPitch float64) {
	oc.Yaw += dYaw
	oc.Pitch = mgl64.Clamp(oc.Pitch+dPitch, -maxPitch, maxPitch)
}

// Zoom multiplies the distance by factor, within limits.
func (oc *OrbitControls) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	d := oc.Distance * factor
	if oc.MinDistance > 0 && d < oc.MinDistance {
		d = oc.MinDistance
	}
	if oc.MaxDistance > 0 && d > oc.MaxDistance {
		d = oc.MaxDistance
	}
	oc.Distance = d
}

// Apply positions cam from the controls' spherical coordinates.
func (oc *OrbitControls) Apply(cam *Camera) {
	cp := math.Cos(oc.Pitch)
	off := mgl64.Vec3{
		oc.Distance * cp * math.Sin(oc.Yaw),
		oc.Distance * math.Sin(oc.Pitch),
		oc.Distance * cp * math.Cos(oc.Yaw),
	}
	cam.Position = oc.Pivot.Add(off)
	cam.LookAt(oc.Pivot)
}
