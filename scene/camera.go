package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3

	FovY   float64 // radians
	Aspect float64 // width / height
	Near   float64
	Far    float64
}

// NewCamera returns a camera with the given vertical field of view in degrees.
func NewCamera(fovDeg, aspect, near, far float64) *Camera {
	if aspect <= 0 {
		aspect = 1
	}
	return &Camera{
		Up:     AxisY,
		FovY:   mgl64.DegToRad(fovDeg),
		Aspect: aspect,
		Near:   near,
		Far:    far,
	}
}

// LookAt points the camera at target.
func (c *Camera) LookAt(target mgl64.Vec3) {
	c.Target = target
}

// Forward is the unit view direction.
func (c *Camera) Forward() mgl64.Vec3 {
	d := c.Target.Sub(c.Position)
	if d.Len() < 1e-12 {
		return mgl64.Vec3{0, 0, -1}
	}
	return d.Normalize()
}

// up returns an up vector that is not parallel to the view direction.
func (c *Camera) up() mgl64.Vec3 {
	up := c.Up
	if up.Len() < 1e-12 {
		up = AxisY
	}
	up = up.Normalize()
	if math.Abs(c.Forward().Dot(up)) > 0.999 {
		return AxisZ
	}
	return up
}

// Orientation is the rotation taking the camera's local -Z onto Forward.
func (c *Camera) Orientation() mgl64.Quat {
	return mgl64.QuatLookAtV(c.Position, c.Position.Add(c.Forward()), c.up())
}

// View returns the world-to-camera matrix.
func (c *Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position, c.Position.Add(c.Forward()), c.up())
}

// Projection returns the perspective matrix.
func (c *Camera) Projection() mgl64.Mat4 {
	return mgl64.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// Project maps a world point to normalised device coordinates. ok is false
// when the point is behind the camera or outside the depth range.
func (c *Camera) Project(p mgl64.Vec3) (ndc mgl64.Vec3, ok bool) {
	clip := c.Projection().Mul4(c.View()).Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return mgl64.Vec3{}, false
	}
	ndc = clip.Vec3().Mul(1 / clip.W())
	return ndc, ndc.Z() >= -1 && ndc.Z() <= 1
}

// ProjectedRadius returns the approximate NDC-height radius of a sphere of
// the given world radius at distance dist.
func (c *Camera) ProjectedRadius(radius, dist float64) float64 {
	if dist <= 0 {
		return 0
	}
	return radius / (dist * math.Tan(c.FovY/2))
}

// RayFromNDC returns the world-space ray through the NDC point (x, y).
func (c *Camera) RayFromNDC(x, y float64) Ray {
	inv := c.Projection().Mul4(c.View()).Inv()
	near := inv.Mul4x1(mgl64.Vec4{x, y, -1, 1})
	far := inv.Mul4x1(mgl64.Vec4{x, y, 1, 1})
	n := near.Vec3().Mul(1 / near.W())
	f := far.Vec3().Mul(1 / far.W())
	return Ray{Origin: c.Position, Dir: f.Sub(n).Normalize()}
}
