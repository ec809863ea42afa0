package meshing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
	"terrastream/internal/heightmap"
	"terrastream/internal/profiling"
	"terrastream/internal/quadtree"
)

// ErrInvalidSample reports that the height source produced a non-finite
// value. The streaming manager treats it as retryable.
var ErrInvalidSample = errors.New("meshing: invalid height sample")

// Builder generates chunk meshes. It only reads from the height source and
// writes to buffers it owns until handoff, so any number of Build calls may
// run concurrently.
type Builder struct {
	cfg config.Config
}

func NewBuilder(cfg config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build produces the mesh for a chunk: a regular vertex grid at the
// resolution of detail, per-vertex morph-target heights sampled on the
// next-coarser grid, and a skirt ring dropped below the chunk border.
//
// Cancelling ctx aborts the build between grid rows.
func (b *Builder) Build(ctx context.Context, key quadtree.ChunkKey, bounds quadtree.Bounds, detail int, src heightmap.Source) (*Mesh, error) {
	defer profiling.Track("meshing.Build")()

	subdiv := int(b.cfg.LODSubdivisions[detail])
	vps := subdiv + 1
	size := bounds.Size()
	half := bounds.Half
	step := size / float32(subdiv)
	min := bounds.Min()

	colorSrc, hasColors := src.(heightmap.ColorSource)

	// Heights with a one-vertex border on each side for smooth normals.
	heights := make([][]float32, subdiv+3)
	for gz := range heights {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make([]float32, subdiv+3)
		wz := min.Y() + (float32(gz)-1)*step
		for gx := range row {
			wx := min.X() + (float32(gx)-1)*step
			h := src.HeightAt(wx, wz)
			if !finite(h) {
				return nil, fmt.Errorf("%w: height(%v, %v) = %v for %v", ErrInvalidSample, wx, wz, h, key)
			}
			row[gx] = h
		}
		heights[gz] = row
	}

	vertCount := vps * vps
	m := &Mesh{
		Key:          key,
		Origin:       mgl32.Vec3{bounds.Center.X(), 0, bounds.Center.Y()},
		Size:         size,
		Detail:       detail,
		Positions:    make([]mgl32.Vec3, 0, vertCount+4*vps),
		Normals:      make([]mgl32.Vec3, 0, vertCount+4*vps),
		Colors:       make([]mgl32.Vec4, 0, vertCount+4*vps),
		UVs:          make([]mgl32.Vec2, 0, vertCount+4*vps),
		MorphHeights: make([]float32, 0, vertCount+4*vps),
		Indices:      make([]uint32, 0, subdiv*subdiv*6+4*subdiv*6),
	}

	coarse := 2 * step
	for z := 0; z < vps; z++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		localZ := float32(z)*step - half
		wz := min.Y() + float32(z)*step
		for x := 0; x < vps; x++ {
			localX := float32(x)*step - half
			wx := min.X() + float32(x)*step
			h := heights[z+1][x+1]

			m.Positions = append(m.Positions, mgl32.Vec3{localX, h, localZ})
			m.Normals = append(m.Normals, smoothNormal(heights, x+1, z+1, step))

			if hasColors {
				m.Colors = append(m.Colors, colorSrc.ColorAt(wx, wz, h))
			} else {
				m.Colors = append(m.Colors, heightmap.HeightColor(h, b.cfg.MaxHeight))
			}
			m.UVs = append(m.UVs, mgl32.Vec2{float32(x) / float32(subdiv), float32(z) / float32(subdiv)})

			// Morph target: the height this (x, z) has on the next-coarser
			// grid, i.e. sampled at the nearest coarse vertex position.
			sx := min.X() + snap(float32(x)*step, coarse)
			sz := min.Y() + snap(float32(z)*step, coarse)
			morph := src.HeightAt(sx, sz)
			if !finite(morph) {
				return nil, fmt.Errorf("%w: morph height(%v, %v) = %v for %v", ErrInvalidSample, sx, sz, morph, key)
			}
			m.MorphHeights = append(m.MorphHeights, morph)
		}
	}

	for z := 0; z < subdiv; z++ {
		for x := 0; x < subdiv; x++ {
			topLeft := uint32(z*vps + x)
			topRight := topLeft + 1
			bottomLeft := uint32((z+1)*vps + x)
			bottomRight := bottomLeft + 1

			m.Indices = append(m.Indices,
				topLeft, bottomLeft, topRight,
				topRight, bottomLeft, bottomRight,
			)
		}
	}

	b.addSkirts(m, vps)

	return m, nil
}

// addSkirts duplicates each border vertex SkirtDepth below the edge and
// stitches vertical quads, visually plugging cracks against neighbors of a
// different LOD.
func (b *Builder) addSkirts(m *Mesh, vps int) {
	edge := make([]uint32, vps)

	// north (z = 0)
	for x := 0; x < vps; x++ {
		edge[x] = uint32(x)
	}
	b.addSkirtEdge(m, edge, false)

	// south (z = max)
	for x := 0; x < vps; x++ {
		edge[x] = uint32((vps-1)*vps + x)
	}
	b.addSkirtEdge(m, edge, true)

	// west (x = 0)
	for z := 0; z < vps; z++ {
		edge[z] = uint32(z * vps)
	}
	b.addSkirtEdge(m, edge, true)

	// east (x = max)
	for z := 0; z < vps; z++ {
		edge[z] = uint32(z*vps + vps - 1)
	}
	b.addSkirtEdge(m, edge, false)
}

// addSkirtEdge appends the skirt vertices for one border edge and the quads
// connecting them to the rim. flip swaps the winding so all skirt faces
// point outward.
func (b *Builder) addSkirtEdge(m *Mesh, top []uint32, flip bool) {
	base := uint32(len(m.Positions))
	depth := b.cfg.SkirtDepth

	for _, ti := range top {
		p := m.Positions[ti]
		m.Positions = append(m.Positions, mgl32.Vec3{p.X(), p.Y() - depth, p.Z()})
		m.Normals = append(m.Normals, m.Normals[ti])
		m.Colors = append(m.Colors, m.Colors[ti])
		m.UVs = append(m.UVs, m.UVs[ti])
		// The skirt morphs with its rim so the wall stays attached.
		m.MorphHeights = append(m.MorphHeights, m.MorphHeights[ti]-depth)
	}

	for i := 0; i < len(top)-1; i++ {
		t0, t1 := top[i], top[i+1]
		s0, s1 := base+uint32(i), base+uint32(i)+1
		if flip {
			m.Indices = append(m.Indices, t0, t1, s0, t1, s1, s0)
		} else {
			m.Indices = append(m.Indices, t0, s0, t1, t1, s0, s1)
		}
	}
}

// BuildHeightGrid samples a chunk's bounds at the grid resolution of detail,
// without the mesh's skirt or morph augmentation. It returns the row-major
// samples and the grid side length; physics colliders are built from this
// grid rather than from the render mesh.
func BuildHeightGrid(bounds quadtree.Bounds, detail int, src heightmap.Source, cfg config.Config) ([]float32, int, error) {
	subdiv := int(cfg.LODSubdivisions[detail])
	side := subdiv + 1
	step := bounds.Size() / float32(subdiv)
	min := bounds.Min()

	heights := make([]float32, side*side)
	for z := 0; z < side; z++ {
		wz := min.Y() + float32(z)*step
		for x := 0; x < side; x++ {
			wx := min.X() + float32(x)*step
			h := src.HeightAt(wx, wz)
			if !finite(h) {
				return nil, 0, fmt.Errorf("%w: height(%v, %v) = %v", ErrInvalidSample, wx, wz, h)
			}
			heights[z*side+x] = h
		}
	}
	return heights, side, nil
}

// smoothNormal averages height gradients around interior grid index (x, z)
// of the bordered height grid.
func smoothNormal(heights [][]float32, x, z int, step float32) mgl32.Vec3 {
	left := heights[z][x-1]
	right := heights[z][x+1]
	down := heights[z-1][x]
	up := heights[z+1][x]

	dx := (right - left) / (2 * step)
	dz := (up - down) / (2 * step)

	return mgl32.Vec3{-dx, 1, -dz}.Normalize()
}

// snap rounds a chunk-local offset to the nearest multiple of the coarse
// grid spacing.
func snap(offset, coarse float32) float32 {
	return float32(math.Round(float64(offset/coarse))) * coarse
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
