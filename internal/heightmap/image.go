package heightmap

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// Image is a heightmap backed by a grayscale image, mapped onto a
// world-space rectangle and sampled with bilinear filtering.
type Image struct {
	heights []float32
	width   int
	height  int

	worldSize   mgl32.Vec2
	origin      mgl32.Vec2
	heightScale float32
}

// maxImageGrid bounds the resampled grid so arbitrarily large source images
// don't blow up memory.
const maxImageGrid = 2048

// NewImage builds a height source from an image. The image is resampled to a
// power-of-two-plus-one grid so coarser LOD grids land exactly on sample
// points. 16-bit grayscale PNGs keep their full precision.
func NewImage(img image.Image, worldSize mgl32.Vec2, heightScale float32) *Image {
	b := img.Bounds()
	side := gridSide(max(b.Dx(), b.Dy()))

	resampled := image.NewGray16(image.Rect(0, 0, side, side))
	draw.BiLinear.Scale(resampled, resampled.Bounds(), img, b, draw.Src, nil)

	heights := make([]float32, side*side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			heights[y*side+x] = float32(resampled.Gray16At(x, y).Y) / 0xffff
		}
	}

	return &Image{
		heights:     heights,
		width:       side,
		height:      side,
		worldSize:   worldSize,
		heightScale: heightScale,
	}
}

// WithOrigin offsets the heightmap in world space.
func (im *Image) WithOrigin(origin mgl32.Vec2) *Image {
	im.origin = origin
	return im
}

// HeightAt implements Source. Coordinates outside the mapped rectangle clamp
// to the edge.
func (im *Image) HeightAt(x, z float32) float32 {
	u := (x - im.origin.X()) / im.worldSize.X()
	v := (z - im.origin.Y()) / im.worldSize.Y()
	return im.sampleBilinear(u, v) * im.heightScale
}

func (im *Image) sampleBilinear(u, v float32) float32 {
	u = clamp01(u)
	v = clamp01(v)

	fx := u * float32(im.width-1)
	fy := v * float32(im.height-1)

	x0 := int(fx)
	y0 := int(fy)
	x1 := min(x0+1, im.width-1)
	y1 := min(y0+1, im.height-1)

	tx := fx - float32(x0)
	ty := fy - float32(y0)

	h00 := im.heights[y0*im.width+x0]
	h10 := im.heights[y0*im.width+x1]
	h01 := im.heights[y1*im.width+x0]
	h11 := im.heights[y1*im.width+x1]

	h0 := h00*(1-tx) + h10*tx
	h1 := h01*(1-tx) + h11*tx
	return h0*(1-ty) + h1*ty
}

// gridSide returns the smallest 2^k+1 covering n, capped at maxImageGrid+1.
func gridSide(n int) int {
	side := 2
	for side < n-1 && side < maxImageGrid {
		side *= 2
	}
	return side + 1
}
