package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is a half-line from Origin along unit Dir.
type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

// At returns the point at parameter t.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// IntersectSphere returns the nearest non-negative ray parameter where the
// ray meets the sphere. A ray starting inside the sphere hits its far side.
func (r Ray) IntersectSphere(center mgl64.Vec3, radius float64) (float64, bool) {
	if radius <= 0 {
		return 0, false
	}
	// Solve |o + t d - c|^2 = r^2 with |d| = 1.
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// IntersectAnnulus intersects the ray with a flat ring lying in the plane
// through center with the given normal.
func (r Ray) IntersectAnnulus(center, normal mgl64.Vec3, inner, outer float64) (float64, bool) {
	denom := normal.Dot(r.Dir)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	t := center.Sub(r.Origin).Dot(normal) / denom
	if t < 0 {
		return 0, false
	}
	d := r.At(t).Sub(center).Len()
	if d < inner || d > outer {
		return 0, false
	}
	return t, true
}

// Hit is a picking result.
type Hit struct {
	Node     *Node
	Distance float64
	Point    mgl64.Vec3
}

// Pick returns the nearest visible, pickable node under root hit by ray.
func Pick(root *Node, ray Ray) (Hit, bool) {
	var (
		best  Hit
		found bool
	)
	root.Walk(func(n *Node) bool {
		if !n.Visible || !n.Pickable {
			return true
		}
		t, ok := intersectNode(ray, n)
		if ok && (!found || t < best.Distance) {
			best = Hit{Node: n, Distance: t, Point: ray.At(t)}
			found = true
		}
		return true
	})
	return best, found
}

func intersectNode(ray Ray, n *Node) (float64, bool) {
	scale := n.WorldScale()
	switch n.Look.Shape {
	case ShapeSphere:
		return ray.IntersectSphere(n.WorldPosition(), scale)
	case ShapeRing:
		// Rings lie in their local XZ plane.
		normal := n.WorldOrientation().Rotate(AxisY)
		return ray.IntersectAnnulus(n.WorldPosition(), normal, n.Look.Inner*scale, n.Look.Outer*scale)
	default:
		return 0, false
	}
}
