// Package terrain ties the quadtree, the streaming manager and the height
// source into a per-frame engine. One Update call per frame from the main
// control path drives the whole system; Update never blocks on mesh work.
package terrain

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
	"terrastream/internal/heightmap"
	"terrastream/internal/meshing"
	"terrastream/internal/physics"
	"terrastream/internal/profiling"
	"terrastream/internal/quadtree"
	"terrastream/internal/streaming"
)

// Engine is the terrain streaming engine.
type Engine struct {
	cfg     config.Config
	src     heightmap.Source
	tree    *quadtree.Tree
	manager *streaming.Manager

	frame  uint64
	leaves []quadtree.Leaf
}

// FrameResult reports what changed during one Update: meshes that became
// ready for upload and chunks whose meshes were released.
type FrameResult struct {
	Ready   []streaming.Ready
	Evicted []quadtree.ChunkKey
}

// New validates the configuration and builds an engine around the given
// height source.
func New(cfg config.Config, src heightmap.Source) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("terrain: height source must not be nil")
	}
	return &Engine{
		cfg:     cfg,
		src:     src,
		tree:    quadtree.NewTree(cfg),
		manager: streaming.NewManager(cfg, src),
	}, nil
}

// Update runs one frame: re-evaluate the quadtree against the viewer,
// reconcile the chunk set, and poll for completed meshes.
func (e *Engine) Update(viewer mgl32.Vec3) FrameResult {
	defer profiling.Track("terrain.Update")()

	e.frame++
	e.tree.Update(mgl32.Vec2{viewer.X(), viewer.Z()})
	e.leaves = e.tree.Leaves(e.leaves[:0])

	evicted := e.manager.Reconcile(e.frame, e.leaves)
	for _, key := range evicted {
		e.tree.MarkEvicted(key)
	}

	ready := e.manager.Poll(e.frame)

	// Readiness feeds the tree's pending split/merge transitions. Revived
	// chunks keep their cached mesh without passing through Poll, so derive
	// readiness from the cache rather than from this frame's completions.
	for _, leaf := range e.leaves {
		if e.manager.HasMesh(leaf.Key) {
			e.tree.MarkReady(leaf.Key)
		}
	}

	return FrameResult{Ready: ready, Evicted: evicted}
}

// Leaves returns the renderable set from the last Update.
func (e *Engine) Leaves() []quadtree.Leaf { return e.leaves }

// MeshFor returns the cached mesh for a chunk, or nil when it is not ready.
func (e *Engine) MeshFor(key quadtree.ChunkKey) *meshing.Mesh { return e.manager.MeshFor(key) }

// HeightAt samples terrain elevation at a world position.
func (e *Engine) HeightAt(x, z float32) float32 {
	return e.src.HeightAt(x, z)
}

// NormalAt estimates the surface normal at a world position.
func (e *Engine) NormalAt(x, z float32) mgl32.Vec3 {
	return heightmap.SampleNormal(e.src, x, z, 1)
}

// RaycastVertical drops a vertical ray at (x, z); it misses when the
// surface is above maxHeight.
func (e *Engine) RaycastVertical(x, z, maxHeight float32) (mgl32.Vec3, bool) {
	h := e.src.HeightAt(x, z)
	if h > maxHeight {
		return mgl32.Vec3{}, false
	}
	return mgl32.Vec3{x, h, z}, true
}

// Collider builds the physics heightfield for a currently live chunk.
func (e *Engine) Collider(key quadtree.ChunkKey) (*physics.Heightfield, error) {
	for _, leaf := range e.leaves {
		if leaf.Key == key {
			return physics.NewHeightfield(leaf.Bounds, leaf.Detail, e.src, e.cfg)
		}
	}
	return nil, fmt.Errorf("terrain: %v is not a live chunk", key)
}

// Config returns the engine configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// Close stops the background workers.
func (e *Engine) Close() { e.manager.Close() }
