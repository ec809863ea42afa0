package meshing

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrastream/internal/config"
	"terrastream/internal/heightmap"
	"terrastream/internal/quadtree"
)

func builderTestConfig() config.Config {
	cfg := config.Default()
	cfg.LODSubdivisions = [4]uint32{4, 4, 4, 4}
	cfg.SkirtDepth = 10
	return cfg
}

func buildChunk(t *testing.T, cfg config.Config, bounds quadtree.Bounds, src heightmap.Source) *Mesh {
	t.Helper()
	b := NewBuilder(cfg)
	m, err := b.Build(context.Background(), quadtree.ChunkKey{X: 0, Z: 0, LOD: 2}, bounds, 0, src)
	require.NoError(t, err)
	return m
}

func TestBuildGeometryCounts(t *testing.T) {
	cfg := builderTestConfig()
	m := buildChunk(t, cfg, quadtree.NewBounds(mgl32.Vec2{0, 0}, 50), heightmap.Flat{})

	subdiv := 4
	vps := subdiv + 1
	gridVerts := vps * vps
	skirtVerts := 4 * vps
	assert.Equal(t, gridVerts+skirtVerts, m.VertexCount())

	gridTris := subdiv * subdiv * 2
	skirtTris := 4 * subdiv * 2
	assert.Equal(t, gridTris+skirtTris, m.TriangleCount())

	assert.Len(t, m.Normals, m.VertexCount())
	assert.Len(t, m.Colors, m.VertexCount())
	assert.Len(t, m.UVs, m.VertexCount())
	assert.Len(t, m.MorphHeights, m.VertexCount())

	for _, idx := range m.Indices {
		assert.Less(t, int(idx), m.VertexCount())
	}
}

// On constant terrain the coarser grid has the same heights, so morphing
// must be a no-op for every surface vertex.
func TestBuildFlatTerrainHasZeroMorphDelta(t *testing.T) {
	cfg := builderTestConfig()
	m := buildChunk(t, cfg, quadtree.NewBounds(mgl32.Vec2{200, -100}, 50), heightmap.Flat{Height: 7})

	vps := 5
	for i := 0; i < vps*vps; i++ {
		assert.Equal(t, float32(7), m.Positions[i].Y())
		assert.Equal(t, float32(7), m.MorphHeights[i])
	}
}

// Vertices that already lie on the coarse grid keep their own height as the
// morph target regardless of the terrain shape.
func TestBuildCoarseGridVerticesMorphToThemselves(t *testing.T) {
	cfg := builderTestConfig()
	src := heightmap.Func(func(x, z float32) float32 {
		return float32(math.Sin(float64(x)*0.1))*20 + z*0.05
	})
	m := buildChunk(t, cfg, quadtree.NewBounds(mgl32.Vec2{0, 0}, 50), src)

	vps := 5
	for z := 0; z < vps; z += 2 {
		for x := 0; x < vps; x += 2 {
			i := z*vps + x
			assert.InDelta(t, m.Positions[i].Y(), m.MorphHeights[i], 1e-4,
				"vertex (%d, %d) is on the coarse grid", x, z)
		}
	}
}

// Two same-LOD neighbors share their boundary vertices exactly: equal world
// positions, heights and morph targets, which is what keeps seams closed.
func TestBuildNeighborsAgreeOnSharedEdge(t *testing.T) {
	cfg := builderTestConfig()
	src := heightmap.Func(func(x, z float32) float32 {
		return float32(math.Sin(float64(x)*0.07)+math.Cos(float64(z)*0.05)) * 15
	})

	left := buildChunk(t, cfg, quadtree.NewBounds(mgl32.Vec2{-50, 0}, 50), src)
	right := buildChunk(t, cfg, quadtree.NewBounds(mgl32.Vec2{50, 0}, 50), src)

	vps := 5
	for z := 0; z < vps; z++ {
		li := z*vps + (vps - 1) // left chunk's east edge
		ri := z * vps           // right chunk's west edge

		lw := left.Origin.Add(left.Positions[li])
		rw := right.Origin.Add(right.Positions[ri])

		assert.InDelta(t, lw.X(), rw.X(), 1e-3)
		assert.InDelta(t, lw.Z(), rw.Z(), 1e-3)
		assert.InDelta(t, lw.Y(), rw.Y(), 1e-3)
		assert.InDelta(t, left.MorphHeights[li], right.MorphHeights[ri], 1e-3)
	}
}

func TestBuildSkirtDropsBelowRim(t *testing.T) {
	cfg := builderTestConfig()
	m := buildChunk(t, cfg, quadtree.NewBounds(mgl32.Vec2{0, 0}, 50), heightmap.Flat{Height: 3})

	vps := 5
	for i := vps * vps; i < m.VertexCount(); i++ {
		assert.Equal(t, float32(3-10), m.Positions[i].Y())
		assert.Equal(t, float32(3-10), m.MorphHeights[i])
	}
}

func TestBuildUsesColorSource(t *testing.T) {
	cfg := builderTestConfig()
	src := paintedSource{color: mgl32.Vec4{1, 0, 1, 1}}
	m := buildChunk(t, cfg, quadtree.NewBounds(mgl32.Vec2{0, 0}, 50), src)

	for _, c := range m.Colors {
		assert.Equal(t, src.color, c)
	}
}

func TestBuildRejectsNonFiniteSamples(t *testing.T) {
	cfg := builderTestConfig()
	b := NewBuilder(cfg)
	src := heightmap.Func(func(x, z float32) float32 { return float32(math.NaN()) })

	_, err := b.Build(context.Background(), quadtree.ChunkKey{}, quadtree.NewBounds(mgl32.Vec2{0, 0}, 50), 0, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSample)
}

func TestBuildHonorsCancellation(t *testing.T) {
	cfg := builderTestConfig()
	b := NewBuilder(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, quadtree.ChunkKey{}, quadtree.NewBounds(mgl32.Vec2{0, 0}, 50), 0, heightmap.Flat{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildHeightGrid(t *testing.T) {
	cfg := builderTestConfig()
	src := heightmap.Func(func(x, z float32) float32 { return x + z })
	bounds := quadtree.NewBounds(mgl32.Vec2{0, 0}, 50)

	heights, side, err := BuildHeightGrid(bounds, 0, src, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, side)
	require.Len(t, heights, 25)

	assert.Equal(t, float32(-100), heights[0], "minimum corner")
	assert.Equal(t, float32(100), heights[24], "maximum corner")
	assert.Equal(t, float32(0), heights[12], "center")

	bad := heightmap.Func(func(x, z float32) float32 { return float32(math.Inf(-1)) })
	_, _, err = BuildHeightGrid(bounds, 0, bad, cfg)
	assert.ErrorIs(t, err, ErrInvalidSample)
}

type paintedSource struct {
	color mgl32.Vec4
}

func (p paintedSource) HeightAt(x, z float32) float32      { return 1 }
func (p paintedSource) ColorAt(x, z, h float32) mgl32.Vec4 { return p.color }

func BenchmarkBuildFinestGrid(b *testing.B) {
	cfg := config.Default()
	builder := NewBuilder(cfg)
	src := heightmap.NewTerrainNoise(42, cfg)
	bounds := quadtree.NewBounds(mgl32.Vec2{0, 0}, cfg.ChunkSize/2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := builder.Build(context.Background(), quadtree.ChunkKey{LOD: 8}, bounds, 0, src)
		if err != nil {
			b.Fatal(err)
		}
	}
}
