// Package streaming reconciles the quadtree's leaf set against asynchronous
// mesh-build work: it owns chunk records, a bounded worker pool, the
// completed-mesh cache and eviction.
package streaming

import (
	"context"

	"terrastream/internal/meshing"
	"terrastream/internal/quadtree"
)

// Status is the lifecycle state of a chunk record.
type Status uint8

const (
	// StatusRequested: wanted, waiting for a worker slot.
	StatusRequested Status = iota
	// StatusBuilding: a build task is in flight.
	StatusBuilding
	// StatusReady: the mesh is cached and handed to the renderer.
	StatusReady
	// StatusStale: the key left the leaf set; the record survives until any
	// in-flight task resolves and the eviction grace period elapses.
	StatusStale
	// StatusFailed: the build exhausted its retries; the chunk stays absent
	// for as long as it is continuously wanted.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusBuilding:
		return "building"
	case StatusReady:
		return "ready"
	case StatusStale:
		return "stale"
	case StatusFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Record is the manager's bookkeeping for one chunk. It references quadtree
// nodes only by key, never by pointer.
type Record struct {
	Key    quadtree.ChunkKey
	Status Status
	Bounds quadtree.Bounds
	Detail int

	mesh *meshing.Mesh

	lastSeen   uint64
	staleSince uint64
	retries    int
	failed     bool

	// task state; building stays true until the task's result is drained,
	// which is what guarantees a record is never freed under a live task.
	building bool
	queued   bool
	gen      uint64
	cancel   context.CancelFunc
}

// Ready is one completed chunk handed to the renderer-facing boundary.
type Ready struct {
	Key  quadtree.ChunkKey
	Mesh *meshing.Mesh
}
