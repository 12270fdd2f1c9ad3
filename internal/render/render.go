// Package render draws the scene graph into a terminal with tcell.
package render

import (
	"fmt"
	"math"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/scene"
)

// CellAspect is the height of a terminal cell in units of its width.
const CellAspect = 2.0

// HUDRows is the number of rows the HUD reserves below the view.
const HUDRows = 2

const (
	ringBands    = 3
	ringSegments = 120
	ambient      = 0.12
)

// DefaultHelp is the key summary shown on the last HUD row.
const DefaultHelp = "click:follow  s/space:stop  arrows:orbit  +/-:zoom  f:fullscreen  q:quit"

var (
	nightSide = colorful.Color{R: 0.01, G: 0.01, B: 0.03}
	labelFg   = tcell.NewRGBColor(235, 235, 240)
	statusFg  = tcell.NewRGBColor(150, 150, 160)
	helpFg    = tcell.NewRGBColor(100, 100, 110)
)

// HUD is the text shown under the view when not in fullscreen.
type HUD struct {
	// Label is the focus label, e.g. "Following earth" or "Stopping in 2".
	Label  string
	Status string
}

// Renderer projects sphere and ring nodes onto a tcell screen.
type Renderer struct {
	screen     tcell.Screen
	fullscreen bool

	// Light is the world position of the point light (the sun).
	Light mgl64.Vec3
	Help  string
}

// NewRenderer wraps an initialised screen.
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen, Help: DefaultHelp}
}

// Fullscreen reports whether the HUD is hidden.
func (r *Renderer) Fullscreen() bool { return r.fullscreen }

// SetFullscreen shows or hides the HUD.
func (r *Renderer) SetFullscreen(on bool) { r.fullscreen = on }

// ToggleFullscreen flips fullscreen and returns the new value.
func (r *Renderer) ToggleFullscreen() bool {
	r.fullscreen = !r.fullscreen
	return r.fullscreen
}

// ViewSize is the drawable area in cells, excluding HUD rows.
func (r *Renderer) ViewSize() (int, int) {
	w, h := r.screen.Size()
	if !r.fullscreen {
		h -= HUDRows
	}
	if h < 1 {
		h = 1
	}
	if w < 1 {
		w = 1
	}
	return w, h
}

// Aspect is the camera aspect ratio for the current view.
func (r *Renderer) Aspect() float64 {
	w, h := r.ViewSize()
	return float64(w) / (float64(h) * CellAspect)
}

// CellToNDC maps a screen cell to normalised device coordinates. ok is
// false for cells in the HUD.
func (r *Renderer) CellToNDC(x, y int) (float64, float64, bool) {
	w, h := r.ViewSize()
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0, 0, false
	}
	nx, ny := core.ScreenToNDC(x, y, w, h)
	return nx, ny, true
}

type drawable struct {
	depth float64
	draw  func()
}

// Draw renders every visible sphere and ring under root as seen by cam,
// then the HUD, and shows the screen. It returns the number of spheres
// that landed in the view.
func (r *Renderer) Draw(root *scene.Node, cam *scene.Camera, hud HUD) int {
	r.screen.Clear()
	w, h := r.ViewSize()

	view := cam.View()
	basis := viewBasis{
		right: view.Row(0).Vec3(),
		up:    view.Row(1).Vec3(),
		back:  view.Row(2).Vec3(),
	}

	var (
		items   []drawable
		spheres int
	)
	// An invisible node hides its subtree.
	var collect func(n *scene.Node)
	collect = func(n *scene.Node) {
		if n == nil || !n.Visible {
			return
		}
		switch n.Look.Shape {
		case scene.ShapeSphere:
			if d, ok := r.sphere(n, cam, basis, w, h); ok {
				items = append(items, d)
				spheres++
			}
		case scene.ShapeRing:
			items = append(items, r.ring(n, cam, w, h)...)
		}
		for _, c := range n.Children() {
			collect(c)
		}
	}
	collect(root)

	// Far to near.
	sort.SliceStable(items, func(i, j int) bool { return items[i].depth > items[j].depth })
	for _, it := range items {
		it.draw()
	}

	if !r.fullscreen {
		r.drawHUD(hud)
	}
	r.screen.Show()
	return spheres
}

type viewBasis struct {
	right, up, back mgl64.Vec3
}

func (b viewBasis) toWorld(x, y, z float64) mgl64.Vec3 {
	return b.right.Mul(x).Add(b.up.Mul(y)).Add(b.back.Mul(z))
}

func (r *Renderer) toCell(ndc mgl64.Vec3, w, h int) (float64, float64) {
	return (ndc.X() + 1) / 2 * float64(w), (1 - ndc.Y()) / 2 * float64(h)
}

func (r *Renderer) sphere(n *scene.Node, cam *scene.Camera, basis viewBasis, w, h int) (drawable, bool) {
	center := n.WorldPosition()
	radius := n.WorldScale()
	ndc, ok := cam.Project(center)
	if !ok || radius <= 0 {
		return drawable{}, false
	}
	depth := center.Sub(cam.Position).Dot(cam.Forward())
	if depth <= cam.Near {
		return drawable{}, false
	}
	cx, cy := r.toCell(ndc, w, h)
	ry := cam.ProjectedRadius(radius, depth) * float64(h) / 2
	rx := ry * float64(w) / (float64(h) * cam.Aspect)

	if cx+rx < 0 || cx-rx >= float64(w) || cy+ry < 0 || cy-ry >= float64(h) {
		return drawable{}, false
	}

	return drawable{depth: depth, draw: func() {
		if ry < 0.5 {
			x, y := int(cx), int(cy)
			if x >= 0 && x < w && y >= 0 && y < h {
				c := r.shade(n, center, basis.back, colorOf(n, basis.back))
				r.screen.SetContent(x, y, '•', nil, tcell.StyleDefault.Foreground(c))
			}
			return
		}
		minX := max(0, int(math.Floor(cx-rx)))
		maxX := min(w-1, int(math.Ceil(cx+rx)))
		minY := max(0, int(math.Floor(cy-ry)))
		maxY := min(h-1, int(math.Ceil(cy+ry)))
		for sy := minY; sy <= maxY; sy++ {
			for sx := minX; sx <= maxX; sx++ {
				nx := (float64(sx) + 0.5 - cx) / rx
				ny := -(float64(sy) + 0.5 - cy) / ry
				d2 := nx*nx + ny*ny
				if d2 > 1 {
					continue
				}
				normal := basis.toWorld(nx, ny, math.Sqrt(1-d2))
				c := r.shade(n, center, normal, colorOf(n, normal))
				r.screen.SetContent(sx, sy, ' ', nil, tcell.StyleDefault.Background(c))
			}
		}
	}}, true
}

// colorOf returns the unlit surface colour where the world-space normal
// leaves the sphere.
func colorOf(n *scene.Node, normal mgl64.Vec3) colorful.Color {
	if n.Look.Texture == nil {
		return fromRGB(n.Look.Color)
	}
	local := n.WorldOrientation().Conjugate().Rotate(normal.Normalize())
	u := 0.5 + math.Atan2(local.X(), local.Z())/(2*math.Pi)
	v := 0.5 - math.Asin(mgl64.Clamp(local.Y(), -1, 1))/math.Pi
	return fromRGB(n.Look.Texture.Sample(u, v))
}

func (r *Renderer) shade(n *scene.Node, center, normal mgl64.Vec3, base colorful.Color) tcell.Color {
	if n.Look.Emissive {
		return toTcell(base)
	}
	lit := 1.0
	if toLight := r.Light.Sub(center); toLight.Len() > 1e-9 {
		lit = ambient + (1-ambient)*math.Max(0, normal.Normalize().Dot(toLight.Normalize()))
	}
	return toTcell(base.BlendLab(nightSide, 1-lit))
}

func (r *Renderer) ring(n *scene.Node, cam *scene.Camera, w, h int) []drawable {
	inner, outer := n.Look.Inner, n.Look.Outer
	if outer <= inner {
		return nil
	}
	m := n.WorldMatrix()
	items := make([]drawable, 0, ringBands*ringSegments)
	for b := 0; b < ringBands; b++ {
		frac := (float64(b) + 0.5) / ringBands
		rad := inner + (outer-inner)*frac
		col := fromRGB(n.Look.Color)
		if n.Look.Texture != nil {
			col = fromRGB(n.Look.Texture.Sample(frac, 0.5))
		}
		style := tcell.StyleDefault.Foreground(toTcell(col))
		for s := 0; s < ringSegments; s++ {
			theta := 2 * math.Pi * float64(s) / ringSegments
			p := m.Mul4x1(mgl64.Vec4{rad * math.Cos(theta), 0, rad * math.Sin(theta), 1}).Vec3()
			ndc, ok := cam.Project(p)
			if !ok {
				continue
			}
			x, y := r.toCell(ndc, w, h)
			cx, cy := int(x), int(y)
			if cx < 0 || cx >= w || cy < 0 || cy >= h {
				continue
			}
			items = append(items, drawable{
				depth: p.Sub(cam.Position).Dot(cam.Forward()),
				draw: func() {
					r.screen.SetContent(cx, cy, '·', nil, style)
				},
			})
		}
	}
	return items
}

func (r *Renderer) drawHUD(hud HUD) {
	w, h := r.screen.Size()
	labelY, helpY := h-2, h-1
	if labelY < 0 {
		return
	}
	label := hud.Label
	if label == "" {
		label = "Click a body to follow it"
	}
	writeStr(r.screen, 1, labelY, label, tcell.StyleDefault.Foreground(labelFg).Bold(true))
	if hud.Status != "" {
		writeStr(r.screen, w-len([]rune(hud.Status))-1, labelY, hud.Status, tcell.StyleDefault.Foreground(statusFg))
	}
	writeStr(r.screen, 1, helpY, r.Help, tcell.StyleDefault.Foreground(helpFg))
}

func writeStr(s tcell.Screen, x, y int, str string, style tcell.Style) {
	for _, ch := range str {
		s.SetContent(x, y, ch, nil, style)
		x++
	}
}

// Status formats the right-hand HUD text.
func Status(elapsed float64, bodies int) string {
	return fmt.Sprintf("t=%.1fs  bodies=%d", elapsed, bodies)
}

func fromRGB(c [3]uint8) colorful.Color {
	return colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
