// Package physics exposes per-chunk height-sample grids for collider
// construction. The grid is sampled independently of the render mesh, so it
// carries no skirt or morph augmentation.
package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
	"terrastream/internal/heightmap"
	"terrastream/internal/meshing"
	"terrastream/internal/quadtree"
)

// Heightfield is a regular grid of elevation samples over a chunk's bounds.
type Heightfield struct {
	Heights []float32
	Rows    int
	Cols    int
	// Origin is the world position of sample (0, 0), the chunk's minimum
	// corner.
	Origin   mgl32.Vec3
	CellSize float32
}

// NewHeightfield samples a chunk's bounds at the resolution of its detail
// level. Non-finite samples fail the construction.
func NewHeightfield(bounds quadtree.Bounds, detail int, src heightmap.Source, cfg config.Config) (*Heightfield, error) {
	heights, side, err := meshing.BuildHeightGrid(bounds, detail, src, cfg)
	if err != nil {
		return nil, err
	}
	cell := bounds.Size() / float32(side-1)
	min := bounds.Min()

	return &Heightfield{
		Heights:  heights,
		Rows:     side,
		Cols:     side,
		Origin:   mgl32.Vec3{min.X(), 0, min.Y()},
		CellSize: cell,
	}, nil
}

// HeightAt bilinearly interpolates the field at a world position. Positions
// outside the field clamp to its edge.
func (h *Heightfield) HeightAt(x, z float32) float32 {
	fx := clampf((x-h.Origin.X())/h.CellSize, 0, float32(h.Cols-1))
	fz := clampf((z-h.Origin.Z())/h.CellSize, 0, float32(h.Rows-1))

	x0 := int(fx)
	z0 := int(fz)
	x1 := minInt(x0+1, h.Cols-1)
	z1 := minInt(z0+1, h.Rows-1)

	tx := fx - float32(x0)
	tz := fz - float32(z0)

	h00 := h.Heights[z0*h.Cols+x0]
	h10 := h.Heights[z0*h.Cols+x1]
	h01 := h.Heights[z1*h.Cols+x0]
	h11 := h.Heights[z1*h.Cols+x1]

	top := h00*(1-tx) + h10*tx
	bottom := h01*(1-tx) + h11*tx
	return top*(1-tz) + bottom*tz
}

// RaycastVertical drops a ray straight down at (x, z) and returns the hit
// point, or false when the surface lies above maxHeight.
func (h *Heightfield) RaycastVertical(x, z, maxHeight float32) (mgl32.Vec3, bool) {
	height := h.HeightAt(x, z)
	if height > maxHeight {
		return mgl32.Vec3{}, false
	}
	return mgl32.Vec3{x, height, z}, true
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
