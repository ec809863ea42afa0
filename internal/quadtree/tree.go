package quadtree

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
)

// NodeState tracks where a node is in the split/merge protocol.
//
// A node is renderable (a "leaf") in every state except Subdivided:
// PendingSplit keeps the parent visible until its children's meshes arrive,
// and PendingMerge keeps the merged node requesting a mesh of its own.
type NodeState uint8

const (
	StateCollapsed NodeState = iota
	StateSubdivided
	StatePendingSplit
	StatePendingMerge
)

func (s NodeState) String() string {
	switch s {
	case StateCollapsed:
		return "collapsed"
	case StateSubdivided:
		return "subdivided"
	case StatePendingSplit:
		return "pending-split"
	case StatePendingMerge:
		return "pending-merge"
	default:
		return "invalid"
	}
}

// Node is one square of the partition. Children, when present, exactly
// quarter the bounds in NW, NE, SW, SE order.
type Node struct {
	Key       ChunkKey
	Bounds    Bounds
	Depth     uint8
	State     NodeState
	MeshReady bool
	Children  *[4]*Node
}

// IsLeaf reports whether this node is part of the renderable set.
func (n *Node) IsLeaf() bool { return n.State != StateSubdivided }

// Leaf is one entry of the renderable set handed to the streaming manager.
type Leaf struct {
	Key    ChunkKey
	Bounds Bounds
	// Detail indexes Config.LODSubdivisions for this leaf's mesh resolution.
	Detail int
}

// Tree is the multi-root terrain quadtree. It is mutated only from the main
// control path; worker tasks never touch it.
type Tree struct {
	cfg      config.Config
	rootSize float32
	roots    map[[2]int32]*Node

	// keys of nodes destroyed during the last Update, for work cancellation
	removed []ChunkKey
}

// NewTree creates an empty tree; roots materialize around the viewer on the
// first Update.
func NewTree(cfg config.Config) *Tree {
	return &Tree{
		cfg:      cfg,
		rootSize: cfg.EffectiveRootSize(),
		roots:    make(map[[2]int32]*Node),
	}
}

// Update re-evaluates the whole tree against the viewer position. It returns
// the keys of nodes destroyed this frame (merged children and retired
// roots) so their in-flight work can be cancelled. Idempotent for a fixed
// viewer once all pending transitions have resolved.
func (t *Tree) Update(viewer mgl32.Vec2) []ChunkKey {
	t.removed = t.removed[:0]

	rootX := int32(math.Round(float64(viewer.X() / t.rootSize)))
	rootZ := int32(math.Round(float64(viewer.Y() / t.rootSize)))

	span := int32(math.Ceil(float64(float32(t.cfg.RenderDistance)*t.cfg.ChunkSize/t.rootSize))) + 1

	for dz := -span; dz <= span; dz++ {
		for dx := -span; dx <= span; dx++ {
			coord := [2]int32{rootX + dx, rootZ + dz}
			root, ok := t.roots[coord]
			if !ok {
				center := mgl32.Vec2{float32(coord[0]) * t.rootSize, float32(coord[1]) * t.rootSize}
				root = &Node{
					Key:    ChunkKey{X: coord[0], Z: coord[1], LOD: 0},
					Bounds: NewBounds(center, t.rootSize*0.5),
				}
				t.roots[coord] = root
			}
			t.updateNode(root, viewer)
		}
	}

	// Retire roots well outside the active span.
	maxDist := span + 2
	for coord, root := range t.roots {
		if abs32(coord[0]-rootX) > maxDist || abs32(coord[1]-rootZ) > maxDist {
			t.collectKeys(root)
			delete(t.roots, coord)
		}
	}

	return t.removed
}

func (t *Tree) updateNode(n *Node, viewer mgl32.Vec2) {
	switch n.State {
	case StateCollapsed:
		if Decide(n.Bounds, n.Depth, false, viewer, t.cfg) == Subdivide {
			t.subdivide(n)
		}

	case StatePendingSplit:
		// The viewer may retreat before the children ever finish building.
		if Decide(n.Bounds, n.Depth, true, viewer, t.cfg) == Merge {
			t.destroyChildren(n)
			n.State = StateCollapsed
			return
		}
		if t.covered(n, false) {
			n.State = StateSubdivided
		}

	case StateSubdivided:
		if Decide(n.Bounds, n.Depth, true, viewer, t.cfg) == Merge {
			t.destroyChildren(n)
			if n.MeshReady {
				n.State = StateCollapsed
			} else {
				n.State = StatePendingMerge
			}
			return
		}

	case StatePendingMerge:
		if Decide(n.Bounds, n.Depth, false, viewer, t.cfg) == Subdivide {
			t.subdivide(n)
			return
		}
		if n.MeshReady {
			n.State = StateCollapsed
		}
	}

	if n.Children != nil {
		for _, child := range n.Children {
			t.updateNode(child, viewer)
		}
	}
}

// covered reports whether the area of n is fully renderable through ready
// descendants. self selects whether n's own mesh counts.
func (t *Tree) covered(n *Node, self bool) bool {
	if self && n.MeshReady {
		return true
	}
	if n.Children == nil {
		return self && n.MeshReady
	}
	for _, child := range n.Children {
		if !t.covered(child, true) {
			return false
		}
	}
	return true
}

func (t *Tree) subdivide(n *Node) {
	if n.Children != nil {
		panic(fmt.Sprintf("quadtree: subdividing %v which already has children", n.Key))
	}
	childOffsets := [4][2]int32{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	var children [4]*Node
	for i := range children {
		children[i] = &Node{
			Key: ChunkKey{
				X:   n.Key.X*2 + childOffsets[i][0],
				Z:   n.Key.Z*2 + childOffsets[i][1],
				LOD: n.Depth + 1,
			},
			Bounds: n.Bounds.Quarter(i),
			Depth:  n.Depth + 1,
		}
	}
	n.Children = &children
	n.State = StatePendingSplit
}

// destroyChildren removes the whole subtree below n, recording every
// destroyed key for cancellation.
func (t *Tree) destroyChildren(n *Node) {
	if n.Children == nil {
		return
	}
	for _, child := range n.Children {
		t.collectKeys(child)
	}
	n.Children = nil
}

func (t *Tree) collectKeys(n *Node) {
	t.removed = append(t.removed, n.Key)
	if n.Children != nil {
		for _, child := range n.Children {
			t.collectKeys(child)
		}
	}
}

// Leaves appends the current renderable set to dst and returns it. Order is
// not stable across frames; key identity is.
func (t *Tree) Leaves(dst []Leaf) []Leaf {
	for _, root := range t.roots {
		dst = t.appendLeaves(root, dst)
	}
	return dst
}

func (t *Tree) appendLeaves(n *Node, dst []Leaf) []Leaf {
	if n.IsLeaf() {
		dst = append(dst, Leaf{
			Key:    n.Key,
			Bounds: n.Bounds,
			Detail: DetailIndex(n.Depth, t.cfg.MaxQuadtreeDepth),
		})
	}
	if n.Children != nil {
		for _, child := range n.Children {
			dst = t.appendLeaves(child, dst)
		}
	}
	return dst
}

// MarkReady records that the chunk for key has a built mesh. Pending state
// transitions that depend on it resolve on the next Update.
func (t *Tree) MarkReady(key ChunkKey) {
	if n := t.find(key); n != nil {
		n.MeshReady = true
	}
}

// MarkEvicted records that the chunk's mesh was released.
func (t *Tree) MarkEvicted(key ChunkKey) {
	if n := t.find(key); n != nil {
		n.MeshReady = false
	}
}

// find walks from the owning root toward the key, using the fact that a
// node's coordinate at depth d is its key coordinate shifted right d times.
func (t *Tree) find(key ChunkKey) *Node {
	rootCoord := [2]int32{shiftFloor(key.X, key.LOD), shiftFloor(key.Z, key.LOD)}
	n, ok := t.roots[rootCoord]
	if !ok {
		return nil
	}
	for n.Depth < key.LOD {
		if n.Children == nil {
			return nil
		}
		shift := key.LOD - n.Depth - 1
		cx := shiftFloor(key.X, shift) & 1
		cz := shiftFloor(key.Z, shift) & 1
		n = n.Children[cz*2+cx]
	}
	if n.Key != key {
		return nil
	}
	return n
}

// NodeCount returns the number of live nodes, for tests and diagnostics.
func (t *Tree) NodeCount() int {
	count := 0
	var walk func(*Node)
	walk = func(n *Node) {
		count++
		if n.Children != nil {
			for _, child := range n.Children {
				walk(child)
			}
		}
	}
	for _, root := range t.roots {
		walk(root)
	}
	return count
}

// shiftFloor is an arithmetic right shift that keeps negative grid
// coordinates mapping onto the correct parent.
func shiftFloor(v int32, by uint8) int32 {
	return v >> by
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
