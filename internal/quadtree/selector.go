package quadtree

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
)

// Decision is the LOD selector's verdict for a node.
type Decision int

const (
	Stay Decision = iota
	Subdivide
	Merge
)

func (d Decision) String() string {
	switch d {
	case Subdivide:
		return "subdivide"
	case Merge:
		return "merge"
	default:
		return "stay"
	}
}

// SplitDistance returns the viewer distance below which a node at the given
// depth must subdivide. Shallow nodes are huge, so their band extends beyond
// the configured far distance.
func SplitDistance(depth uint8, cfg config.Config) float32 {
	switch depth {
	case 0:
		return cfg.LODDistances[2] * 2
	case 1:
		return cfg.LODDistances[2]
	case 2:
		return cfg.LODDistances[1]
	case 3:
		return cfg.LODDistances[0]
	default:
		return cfg.LODDistances[0] * 0.5
	}
}

// MergeDistance is the split distance widened by the hysteresis band. A
// subdivided node only merges back once the viewer retreats past it, so a
// viewer hovering near a single threshold cannot make the node flicker.
func MergeDistance(depth uint8, cfg config.Config) float32 {
	return SplitDistance(depth, cfg) * (1 + cfg.LODHysteresis)
}

// Decide is the pure LOD selection function. It is idempotent: the same
// bounds, state and viewer always produce the same decision.
func Decide(bounds Bounds, depth uint8, subdivided bool, viewer mgl32.Vec2, cfg config.Config) Decision {
	d := bounds.DistanceTo(viewer)

	if !subdivided && depth < cfg.MaxQuadtreeDepth && d < SplitDistance(depth, cfg) {
		return Subdivide
	}
	if subdivided && d > MergeDistance(depth, cfg) {
		return Merge
	}
	return Stay
}

// DetailIndex maps a node depth to an index into Config.LODSubdivisions.
// Deeper (closer) nodes mesh at finer resolution.
func DetailIndex(depth, maxDepth uint8) int {
	if depth >= maxDepth {
		return 0
	}
	idx := int(maxDepth - depth)
	if idx > 3 {
		idx = 3
	}
	return idx
}
