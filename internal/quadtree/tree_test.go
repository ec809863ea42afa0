package quadtree

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrastream/internal/config"
)

func treeTestConfig() config.Config {
	cfg := config.Default()
	cfg.RenderDistance = 1
	cfg.LODDistances = [3]float32{50, 100, 200}
	cfg.MaxQuadtreeDepth = 3
	cfg.RootSize = 400
	return cfg
}

func sortedKeys(leaves []Leaf) []ChunkKey {
	keys := make([]ChunkKey, len(leaves))
	for i, l := range leaves {
		keys[i] = l.Key
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// stabilize runs update rounds, marking every leaf's mesh ready between
// them, until the leaf set stops changing. This is what the engine does once
// all builds have landed.
func stabilize(t *testing.T, tree *Tree, viewer mgl32.Vec2) []Leaf {
	t.Helper()

	var prev []ChunkKey
	for i := 0; i < 64; i++ {
		tree.Update(viewer)
		leaves := tree.Leaves(nil)
		for _, leaf := range leaves {
			tree.MarkReady(leaf.Key)
		}

		keys := sortedKeys(leaves)
		if prev != nil && assert.ObjectsAreEqual(prev, keys) {
			return leaves
		}
		prev = keys
	}
	t.Fatal("tree did not stabilize")
	return nil
}

func TestTreeFirstUpdateCreatesRoots(t *testing.T) {
	tree := NewTree(treeTestConfig())
	tree.Update(mgl32.Vec2{0, 0})

	assert.Greater(t, tree.NodeCount(), 0)
	assert.NotEmpty(t, tree.Leaves(nil))
}

func TestTreeSubdividesToMaxDepthAtViewer(t *testing.T) {
	cfg := treeTestConfig()
	tree := NewTree(cfg)
	viewer := mgl32.Vec2{10, 10}

	leaves := stabilize(t, tree, viewer)

	var at *Leaf
	for i := range leaves {
		if leaves[i].Bounds.Contains(viewer) {
			require.Nil(t, at, "viewer must be inside exactly one leaf")
			at = &leaves[i]
		}
	}
	require.NotNil(t, at)
	assert.Equal(t, cfg.MaxQuadtreeDepth, at.Key.LOD)
	assert.Equal(t, 0, at.Detail, "the closest leaf meshes at the finest grid")
}

// Once stable, the leaf set partitions the active area: every point belongs
// to exactly one renderable chunk.
func TestTreeLeavesPartitionPlane(t *testing.T) {
	tree := NewTree(treeTestConfig())
	leaves := stabilize(t, tree, mgl32.Vec2{0, 0})

	for x := float32(-900); x <= 900; x += 150 {
		for z := float32(-900); z <= 900; z += 150 {
			p := mgl32.Vec2{x, z}
			owners := 0
			for _, leaf := range leaves {
				if leaf.Bounds.Contains(p) {
					owners++
				}
			}
			assert.Equal(t, 1, owners, "point (%v, %v)", x, z)
		}
	}
}

func TestTreeLeafKeysUnique(t *testing.T) {
	tree := NewTree(treeTestConfig())
	leaves := stabilize(t, tree, mgl32.Vec2{-130, 270})

	seen := make(map[ChunkKey]bool)
	for _, leaf := range leaves {
		assert.False(t, seen[leaf.Key], "duplicate leaf %v", leaf.Key)
		seen[leaf.Key] = true
	}
}

// Before any mesh is ready a split parent keeps rendering alongside its
// children, so the viewer's position is covered by more than one leaf.
func TestTreePendingSplitKeepsParentRenderable(t *testing.T) {
	tree := NewTree(treeTestConfig())
	viewer := mgl32.Vec2{0, 0}
	tree.Update(viewer)

	owners := 0
	for _, leaf := range tree.Leaves(nil) {
		if leaf.Bounds.Contains(viewer) {
			owners++
		}
	}
	assert.Greater(t, owners, 1)
}

func TestTreeStableUpdateIsIdempotent(t *testing.T) {
	tree := NewTree(treeTestConfig())
	viewer := mgl32.Vec2{42, -17}
	leaves := stabilize(t, tree, viewer)

	removed := tree.Update(viewer)
	assert.Empty(t, removed)
	assert.Equal(t, sortedKeys(leaves), sortedKeys(tree.Leaves(nil)))
}

func TestTreeMergesOnRetreat(t *testing.T) {
	cfg := treeTestConfig()
	tree := NewTree(cfg)
	origin := mgl32.Vec2{0, 0}
	stabilize(t, tree, origin)

	retreated := mgl32.Vec2{800, 0}
	removed := tree.Update(retreated)
	assert.NotEmpty(t, removed, "fine chunks near the old position must be destroyed")

	leaves := stabilize(t, tree, retreated)
	for _, leaf := range leaves {
		if leaf.Bounds.Contains(origin) {
			assert.Equal(t, uint8(0), leaf.Key.LOD, "the abandoned area merges back to the root")
		}
	}
}

func TestTreeRetiresFarRoots(t *testing.T) {
	cfg := treeTestConfig()
	tree := NewTree(cfg)
	stabilize(t, tree, mgl32.Vec2{0, 0})

	var removed []ChunkKey
	for i := 0; i < 4; i++ {
		removed = append(removed, tree.Update(mgl32.Vec2{40000, 0})...)
	}

	assert.Contains(t, removed, ChunkKey{X: 0, Z: 0, LOD: 0})
	for _, leaf := range tree.Leaves(nil) {
		assert.False(t, leaf.Bounds.Contains(mgl32.Vec2{0, 0}), "old roots must be gone")
	}
}

// With roots sized to a single chunk, the root square around the origin must
// end up exactly partitioned: finest chunks against the viewer, coarser ones
// toward the edges of the active area, no gaps and no overlaps.
func TestTreeCoverageScenario(t *testing.T) {
	cfg := config.Default()
	cfg.RenderDistance = 50
	cfg.MaxQuadtreeDepth = 3
	cfg.RootSize = 100
	cfg.LODDistances = [3]float32{25, 50, 100}

	tree := NewTree(cfg)
	leaves := stabilize(t, tree, mgl32.Vec2{0, 0})

	central := NewBounds(mgl32.Vec2{0, 0}, 50)
	var area float32
	for _, leaf := range leaves {
		if central.Contains(leaf.Bounds.Center) {
			area += leaf.Bounds.Size() * leaf.Bounds.Size()
		}
	}
	assert.InDelta(t, 100*100, area, 1e-2, "leaves tile the central square exactly")

	for x := float32(-47.5); x < 50; x += 5 {
		for z := float32(-47.5); z < 50; z += 5 {
			p := mgl32.Vec2{x, z}
			owners := 0
			for _, leaf := range leaves {
				if leaf.Bounds.Contains(p) {
					owners++
				}
			}
			assert.Equal(t, 1, owners, "point (%v, %v)", x, z)
		}
	}

	for _, leaf := range leaves {
		if leaf.Bounds.Contains(mgl32.Vec2{0, 0}) {
			assert.Equal(t, cfg.MaxQuadtreeDepth, leaf.Key.LOD, "finest against the viewer")
		}
		if leaf.Bounds.Contains(mgl32.Vec2{500, 500}) {
			assert.Equal(t, uint8(0), leaf.Key.LOD, "coarse far out")
		}
	}
}

func TestTreeMarkOnUnknownKeyIsNoop(t *testing.T) {
	tree := NewTree(treeTestConfig())
	tree.Update(mgl32.Vec2{0, 0})

	assert.NotPanics(t, func() {
		tree.MarkReady(ChunkKey{X: 999, Z: 999, LOD: 6})
		tree.MarkEvicted(ChunkKey{X: -999, Z: 0, LOD: 2})
	})
}

func TestNodeStateString(t *testing.T) {
	assert.Equal(t, "collapsed", StateCollapsed.String())
	assert.Equal(t, "subdivided", StateSubdivided.String())
	assert.Equal(t, "pending-split", StatePendingSplit.String())
	assert.Equal(t, "pending-merge", StatePendingMerge.String())
}
