// Package meshing builds renderable terrain meshes from height samples.
package meshing

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/quadtree"
)

// Mesh is the renderer-facing chunk geometry. Positions are chunk-local and
// centered on Origin; the renderer applies Origin as the chunk transform.
//
// MorphHeights carry, per vertex, the elevation the same (x, z) would have
// at the next coarser LOD. The terrain material interpolates vertex heights
// toward them as the viewer retreats, hiding LOD transitions.
type Mesh struct {
	Key    quadtree.ChunkKey
	Origin mgl32.Vec3
	Size   float32
	Detail int

	Positions    []mgl32.Vec3
	Normals      []mgl32.Vec3
	Colors       []mgl32.Vec4
	UVs          []mgl32.Vec2
	MorphHeights []float32
	Indices      []uint32
}

// VertexCount returns the number of vertices including skirt geometry.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }
