// Package scene is a small scene graph: transformable nodes with
// parent/child links, a perspective camera, orbit controls and ray picking.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Common rotation axes.
var (
	AxisX = mgl64.Vec3{1, 0, 0}
	AxisY = mgl64.Vec3{0, 1, 0}
	AxisZ = mgl64.Vec3{0, 0, 1}
)

// Appearance describes how a renderer should draw a node.
type Appearance struct {
	Shape   Shape
	Color   [3]uint8
	Texture Sampler // nil means flat Color
	// Emissive nodes ignore lighting (the sun).
	Emissive bool
	// Ring radii in local units, for ShapeRing.
	Inner, Outer float64
}

// Shape selects the drawing primitive.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeSphere
	ShapeRing
)

// Sampler returns the colour at texture coordinates u, v in [0, 1].
type Sampler interface {
	Sample(u, v float64) [3]uint8
}

// Node is a transformable entity: local position, rotation and uniform
// scale, composed with its parent's world transform.
type Node struct {
	Name     string
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    float64

	// BodyID is set on nodes that represent a registered body and is what
	// picking reports. Empty for pivots, rings and other decoration.
	BodyID string
	// Pickable nodes take part in ray picking using their Look shape:
	// spheres have unit local radius, rings use Look.Inner/Outer.
	Pickable bool
	Visible  bool
	Look     Appearance

	parent   *Node
	children []*Node
}

// NewNode returns a visible node with identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: mgl64.QuatIdent(),
		Scale:    1,
		Visible:  true,
	}
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Add attaches child under n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	child.Detach()
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child if it is a direct child of n.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Detach removes n from its parent.
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.Remove(n)
	}
}

// Attached reports whether n hangs off root (or is root).
func (n *Node) Attached(root *Node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == root {
			return true
		}
	}
	return false
}

// SetRotation assigns an absolute rotation of angle radians about axis.
func (n *Node) SetRotation(axis mgl64.Vec3, angle float64) {
	n.Rotation = mgl64.QuatRotate(angle, axis.Normalize())
}

// Rotate applies an incremental rotation about a local axis.
func (n *Node) Rotate(axis mgl64.Vec3, delta float64) {
	n.Rotation = n.Rotation.Mul(mgl64.QuatRotate(delta, axis.Normalize())).Normalize()
}

// LocalMatrix returns T * R * S.
func (n *Node) LocalMatrix() mgl64.Mat4 {
	t := mgl64.Translate3D(n.Position.X(), n.Position.Y(), n.Position.Z())
	s := mgl64.Scale3D(n.Scale, n.Scale, n.Scale)
	return t.Mul4(n.Rotation.Mat4()).Mul4(s)
}

// WorldMatrix composes local matrices from the root down.
func (n *Node) WorldMatrix() mgl64.Mat4 {
	if n.parent == nil {
		return n.LocalMatrix()
	}
	return n.parent.WorldMatrix().Mul4(n.LocalMatrix())
}

// WorldPosition is the node origin in world space.
func (n *Node) WorldPosition() mgl64.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// WorldOrientation composes rotations from the root down.
func (n *Node) WorldOrientation() mgl64.Quat {
	if n.parent == nil {
		return n.Rotation
	}
	return n.parent.WorldOrientation().Mul(n.Rotation).Normalize()
}

// WorldScale multiplies uniform scales from the root down.
func (n *Node) WorldScale() float64 {
	if n.parent == nil {
		return n.Scale
	}
	return n.parent.WorldScale() * n.Scale
}

// Walk visits n and its descendants depth-first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}
