package terrain

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrastream/internal/config"
	"terrastream/internal/heightmap"
	"terrastream/internal/quadtree"
)

func engineTestConfig() config.Config {
	cfg := config.Default()
	cfg.RenderDistance = 1
	cfg.LODDistances = [3]float32{50, 100, 200}
	cfg.LODSubdivisions = [4]uint32{4, 4, 4, 4}
	cfg.MaxQuadtreeDepth = 3
	cfg.MaxConcurrentTasks = 4
	cfg.EvictionGraceFrames = 2
	cfg.RootSize = 400
	return cfg
}

// settle drives Update until every leaf has a mesh and the set stays put for
// a few consecutive frames.
func settle(t *testing.T, e *Engine, viewer mgl32.Vec3) {
	t.Helper()
	stable := 0
	require.Eventually(t, func() bool {
		e.Update(viewer)
		for _, leaf := range e.Leaves() {
			if e.MeshFor(leaf.Key) == nil {
				stable = 0
				return false
			}
		}
		stable++
		return stable >= 3
	}, 10*time.Second, time.Millisecond)
}

func TestEngineValidation(t *testing.T) {
	bad := engineTestConfig()
	bad.ChunkSize = 0
	_, err := New(bad, heightmap.Flat{})
	assert.Error(t, err)

	_, err = New(engineTestConfig(), nil)
	assert.Error(t, err)
}

func TestEngineStreamsStableLeafSet(t *testing.T) {
	e, err := New(engineTestConfig(), heightmap.Flat{Height: 5})
	require.NoError(t, err)
	defer e.Close()

	viewer := mgl32.Vec3{10, 50, 10}
	settle(t, e, viewer)

	at := mgl32.Vec2{viewer.X(), viewer.Z()}
	owners := 0
	var closest quadtree.Leaf
	for _, leaf := range e.Leaves() {
		if leaf.Bounds.Contains(at) {
			owners++
			closest = leaf
		}
	}
	require.Equal(t, 1, owners, "a settled terrain renders each point once")
	assert.Equal(t, uint8(3), closest.Key.LOD)

	mesh := e.MeshFor(closest.Key)
	require.NotNil(t, mesh)
	assert.Equal(t, float32(5), mesh.Positions[0].Y())
}

func TestEngineEvictsAbandonedChunks(t *testing.T) {
	e, err := New(engineTestConfig(), heightmap.Flat{})
	require.NoError(t, err)
	defer e.Close()

	settle(t, e, mgl32.Vec3{0, 50, 0})

	evictions := 0
	require.Eventually(t, func() bool {
		res := e.Update(mgl32.Vec3{40000, 50, 0})
		evictions += len(res.Evicted)
		return evictions > 0
	}, 10*time.Second, time.Millisecond)
}

func TestEngineCollider(t *testing.T) {
	e, err := New(engineTestConfig(), heightmap.Flat{Height: 12})
	require.NoError(t, err)
	defer e.Close()

	viewer := mgl32.Vec3{0, 50, 0}
	settle(t, e, viewer)

	leaf := e.Leaves()[0]
	hf, err := e.Collider(leaf.Key)
	require.NoError(t, err)
	assert.Equal(t, float32(12), hf.HeightAt(leaf.Bounds.Center.X(), leaf.Bounds.Center.Y()))

	_, err = e.Collider(quadtree.ChunkKey{X: 9999, Z: 9999, LOD: 7})
	assert.Error(t, err)
}

func TestEngineQueries(t *testing.T) {
	e, err := New(engineTestConfig(), heightmap.Flat{Height: 5})
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, float32(5), e.HeightAt(123, -456))
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, e.NormalAt(0, 0))

	hit, ok := e.RaycastVertical(3, 4, 100)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{3, 5, 4}, hit)

	_, ok = e.RaycastVertical(3, 4, 4)
	assert.False(t, ok)

	assert.Equal(t, float32(400), e.Config().RootSize)
}
