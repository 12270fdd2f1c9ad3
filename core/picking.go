package core

import (
	"github.com/signalsfoundry/orrery/scene"
)

// Pick casts a ray from cam through the NDC point and takes the nearest
// node it hits. The click counts only when that node is a registered body;
// a ring or stray node in front of a body swallows it.
func Pick(w *AnimationWorld, cam *scene.Camera, ndcX, ndcY float64) (string, bool) {
	if w == nil || cam == nil {
		return "", false
	}
	hit, ok := scene.Pick(w.Root, cam.RayFromNDC(ndcX, ndcY))
	if !ok || hit.Node.BodyID == "" {
		return "", false
	}
	b, ok := w.Body(hit.Node.BodyID)
	if !ok || b.Node != hit.Node {
		return "", false
	}
	return b.ID, true
}

// ScreenToNDC converts a cell position on a width x height grid to
// normalised device coordinates, sampling the cell centre. Y grows upward.
func ScreenToNDC(x, y, width, height int) (float64, float64) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	nx := (float64(x)+0.5)/float64(width)*2 - 1
	ny := 1 - (float64(y)+0.5)/float64(height)*2
	return nx, ny
}
