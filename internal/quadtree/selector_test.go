package quadtree

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"terrastream/internal/config"
)

func TestSplitDistancePerDepth(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, cfg.LODDistances[2]*2, SplitDistance(0, cfg))
	assert.Equal(t, cfg.LODDistances[2], SplitDistance(1, cfg))
	assert.Equal(t, cfg.LODDistances[1], SplitDistance(2, cfg))
	assert.Equal(t, cfg.LODDistances[0], SplitDistance(3, cfg))
	assert.Equal(t, cfg.LODDistances[0]*0.5, SplitDistance(4, cfg))
	assert.Equal(t, SplitDistance(4, cfg), SplitDistance(7, cfg), "deep levels share the closest band")
}

func TestMergeDistanceWidensSplit(t *testing.T) {
	cfg := config.Default()
	for depth := uint8(0); depth < cfg.MaxQuadtreeDepth; depth++ {
		split := SplitDistance(depth, cfg)
		merge := MergeDistance(depth, cfg)
		assert.Greater(t, merge, split, "depth %d", depth)
		assert.InDelta(t, split*(1+cfg.LODHysteresis), merge, 1e-3)
	}
}

// Inside the hysteresis band neither a split nor a merge fires, so a viewer
// sitting between the two thresholds cannot make a node flicker.
func TestDecideHysteresisBand(t *testing.T) {
	cfg := config.Default()
	depth := uint8(2)
	bounds := NewBounds(mgl32.Vec2{0, 0}, 50)

	split := SplitDistance(depth, cfg)
	merge := MergeDistance(depth, cfg)
	inBand := mgl32.Vec2{bounds.Max().X() + (split+merge)/2, 0}

	assert.Equal(t, Stay, Decide(bounds, depth, false, inBand, cfg))
	assert.Equal(t, Stay, Decide(bounds, depth, true, inBand, cfg))
}

func TestDecideTransitions(t *testing.T) {
	cfg := config.Default()
	depth := uint8(2)
	bounds := NewBounds(mgl32.Vec2{0, 0}, 50)

	near := mgl32.Vec2{bounds.Max().X() + 1, 0}
	far := mgl32.Vec2{bounds.Max().X() + MergeDistance(depth, cfg) + 1, 0}

	assert.Equal(t, Subdivide, Decide(bounds, depth, false, near, cfg))
	assert.Equal(t, Stay, Decide(bounds, depth, true, near, cfg))
	assert.Equal(t, Merge, Decide(bounds, depth, true, far, cfg))
	assert.Equal(t, Stay, Decide(bounds, depth, false, far, cfg))
}

func TestDecideRespectsMaxDepth(t *testing.T) {
	cfg := config.Default()
	bounds := NewBounds(mgl32.Vec2{0, 0}, 1)
	onTop := mgl32.Vec2{0, 0}

	assert.Equal(t, Subdivide, Decide(bounds, cfg.MaxQuadtreeDepth-1, false, onTop, cfg))
	assert.Equal(t, Stay, Decide(bounds, cfg.MaxQuadtreeDepth, false, onTop, cfg))
}

func TestDecideIsIdempotent(t *testing.T) {
	cfg := config.Default()
	bounds := NewBounds(mgl32.Vec2{120, -80}, 200)
	viewer := mgl32.Vec2{700, 100}

	first := Decide(bounds, 1, false, viewer, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Decide(bounds, 1, false, viewer, cfg))
	}
}

func TestDetailIndex(t *testing.T) {
	maxDepth := uint8(8)

	assert.Equal(t, 0, DetailIndex(8, maxDepth), "deepest nodes use the finest grid")
	assert.Equal(t, 0, DetailIndex(9, maxDepth))
	assert.Equal(t, 1, DetailIndex(7, maxDepth))
	assert.Equal(t, 2, DetailIndex(6, maxDepth))
	assert.Equal(t, 3, DetailIndex(5, maxDepth))
	assert.Equal(t, 3, DetailIndex(0, maxDepth), "shallow nodes clamp to the coarsest grid")
}
