// Package quadtree maintains the spatial partition of the terrain plane and
// decides, per frame, which chunks exist and at what level of detail.
package quadtree

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkKey uniquely identifies a chunk by its grid coordinate at a given
// quadtree depth. Two chunks with the same key are the same chunk.
type ChunkKey struct {
	X, Z int32
	LOD  uint8
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("chunk(%d,%d@%d)", k.X, k.Z, k.LOD)
}

// Less orders keys by (LOD, X, Z). Coarser chunks sort first, which the
// streaming queue uses to fill the view with cheap meshes before fine ones.
func (k ChunkKey) Less(other ChunkKey) bool {
	if k.LOD != other.LOD {
		return k.LOD < other.LOD
	}
	if k.X != other.X {
		return k.X < other.X
	}
	return k.Z < other.Z
}

// Bounds is a square region of the terrain plane, stored as center and
// half-size. Children of a node exactly quarter its bounds.
type Bounds struct {
	Center mgl32.Vec2
	Half   float32
}

// NewBounds creates bounds from a center point and half-size.
func NewBounds(center mgl32.Vec2, half float32) Bounds {
	return Bounds{Center: center, Half: half}
}

// Size returns the full edge length.
func (b Bounds) Size() float32 { return b.Half * 2 }

// Min returns the minimum corner.
func (b Bounds) Min() mgl32.Vec2 {
	return mgl32.Vec2{b.Center.X() - b.Half, b.Center.Y() - b.Half}
}

// Max returns the maximum corner.
func (b Bounds) Max() mgl32.Vec2 {
	return mgl32.Vec2{b.Center.X() + b.Half, b.Center.Y() + b.Half}
}

// Contains reports whether p lies inside the bounds. The maximum edges are
// exclusive so a point on the boundary between two siblings belongs to
// exactly one of them.
func (b Bounds) Contains(p mgl32.Vec2) bool {
	min, max := b.Min(), b.Max()
	return p.X() >= min.X() && p.X() < max.X() &&
		p.Y() >= min.Y() && p.Y() < max.Y()
}

// DistanceTo returns the distance from p to the closest point on or in the
// square. Points inside or on the boundary are at distance zero; clamping to
// the nearest point rather than the center avoids under-subdividing near
// edges of large nodes.
func (b Bounds) DistanceTo(p mgl32.Vec2) float32 {
	min, max := b.Min(), b.Max()
	cx := clampf(p.X(), min.X(), max.X())
	cz := clampf(p.Y(), min.Y(), max.Y())
	return p.Sub(mgl32.Vec2{cx, cz}).Len()
}

// Quarter returns the bounds of child i in NW, NE, SW, SE order.
func (b Bounds) Quarter(i int) Bounds {
	quarter := b.Half * 0.5
	offsets := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	return Bounds{
		Center: b.Center.Add(offsets[i].Mul(quarter)),
		Half:   quarter,
	}
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
