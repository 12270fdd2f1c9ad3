// Package assets loads body textures off the frame goroutine and hands them
// back as futures.
package assets

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxTextureWidth bounds decoded textures; terminals never sample finer.
const MaxTextureWidth = 256

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Texture is an equirectangular RGBA image sampled by (u, v) in [0, 1].
type Texture struct {
	img *image.RGBA
	avg [3]uint8
}

// Decode reads a png, jpeg, bmp or webp image and downscales it so its width
// is at most maxWidth (0 means MaxTextureWidth).
func Decode(r io.Reader, maxWidth int) (*Texture, string, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode texture: %w", err)
	}
	tex, err := FromImage(src, maxWidth)
	return tex, format, err
}

// FromImage copies src into a texture, downscaling with bilinear filtering.
func FromImage(src image.Image, maxWidth int) (*Texture, error) {
	if maxWidth <= 0 {
		maxWidth = MaxTextureWidth
	}
	sz := src.Bounds().Size()
	if sz.X <= 0 || sz.Y <= 0 {
		return nil, ErrEmptyImage
	}
	tsz := sz
	if sz.X > maxWidth {
		tsz.X = maxWidth
		tsz.Y = int(math.Max(1, math.Round(float64(sz.Y)*float64(maxWidth)/float64(sz.X))))
	}
	dst := image.NewRGBA(image.Rect(0, 0, tsz.X, tsz.Y))
	if tsz == sz {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	t := &Texture{img: dst}
	t.avg = t.average()
	return t, nil
}

// Size returns the texture dimensions in pixels.
func (t *Texture) Size() (int, int) {
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

// Sample returns the nearest texel at (u, v). u wraps; v is clamped.
func (t *Texture) Sample(u, v float64) [3]uint8 {
	w, h := t.Size()
	u = u - math.Floor(u)
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	x := int(u * float64(w))
	y := int(v * float64(h))
	if x >= w {
		x = w - 1
	}
	if y >= h {
		y = h - 1
	}
	c := t.img.RGBAAt(x, y)
	return [3]uint8{c.R, c.G, c.B}
}

// Average returns the mean colour, used when a body is too small to sample.
func (t *Texture) Average() [3]uint8 { return t.avg }

func (t *Texture) average() [3]uint8 {
	var r, g, b, n uint64
	pix := t.img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r += uint64(pix[i])
		g += uint64(pix[i+1])
		b += uint64(pix[i+2])
		n++
	}
	if n == 0 {
		return [3]uint8{}
	}
	return [3]uint8{uint8(r / n), uint8(g / n), uint8(b / n)}
}
