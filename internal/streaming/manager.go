package streaming

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"terrastream/internal/config"
	"terrastream/internal/heightmap"
	"terrastream/internal/meshing"
	"terrastream/internal/profiling"
	"terrastream/internal/quadtree"
)

type buildJob struct {
	ctx    context.Context
	key    quadtree.ChunkKey
	bounds quadtree.Bounds
	detail int
	gen    uint64
}

type buildResult struct {
	key  quadtree.ChunkKey
	gen  uint64
	mesh *meshing.Mesh
	err  error
}

type queueEntry struct {
	key   quadtree.ChunkKey
	frame uint64
}

// Manager owns the live chunk set. All of its methods must be called from
// the single main control path; only the worker goroutines it starts run
// concurrently, and they touch nothing but the job they were handed.
type Manager struct {
	cfg     config.Config
	src     heightmap.Source
	builder *meshing.Builder
	log     *log.Logger

	records  map[quadtree.ChunkKey]*Record
	queue    []queueEntry
	building int
	nextGen  uint64
	frame    uint64

	jobs    chan buildJob
	results chan buildResult

	poolCtx    context.Context
	poolCancel context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// NewManager starts a worker pool of cfg.MaxConcurrentTasks goroutines and
// returns the manager. Close releases the pool.
func NewManager(cfg config.Config, src heightmap.Source) *Manager {
	logger := log.New(os.Stderr)
	logger.SetPrefix("streaming")

	ctx, cancel := context.WithCancel(context.Background())
	workers := cfg.MaxConcurrentTasks

	m := &Manager{
		cfg:        cfg,
		src:        src,
		builder:    meshing.NewBuilder(cfg),
		log:        logger,
		records:    make(map[quadtree.ChunkKey]*Record),
		jobs:       make(chan buildJob, workers),
		results:    make(chan buildResult, workers),
		poolCtx:    ctx,
		poolCancel: cancel,
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	return m
}

// Close stops the worker pool and waits for workers to exit. The manager
// must not be used afterwards.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.poolCancel()
	close(m.jobs)
	m.wg.Wait()
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case job, ok := <-m.jobs:
			if !ok {
				return
			}
			mesh, err := m.builder.Build(job.ctx, job.key, job.bounds, job.detail, m.src)
			select {
			case m.results <- buildResult{key: job.key, gen: job.gen, mesh: mesh, err: err}:
			case <-m.poolCtx.Done():
				return
			}
		case <-m.poolCtx.Done():
			return
		}
	}
}

// Reconcile aligns the record set with the quadtree's current leaves: new
// keys are requested, departed keys go stale, and stale records past the
// grace period are freed. It returns the keys whose cached meshes were
// released this frame.
func (m *Manager) Reconcile(frame uint64, leaves []quadtree.Leaf) []quadtree.ChunkKey {
	defer profiling.Track("streaming.Reconcile")()

	m.frame = frame

	for _, leaf := range leaves {
		rec, ok := m.records[leaf.Key]
		if !ok {
			rec = &Record{
				Key:      leaf.Key,
				Status:   StatusRequested,
				Bounds:   leaf.Bounds,
				Detail:   leaf.Detail,
				lastSeen: frame,
			}
			m.records[leaf.Key] = rec
			m.enqueue(rec)
			continue
		}

		rec.lastSeen = frame
		if rec.failed {
			// exhausted its retries; stays absent while continuously wanted
			continue
		}
		if rec.Status == StatusStale {
			m.revive(rec)
		}
	}

	// Departed keys go stale. A Building record keeps its task handle until
	// the result is drained, so memory a task may still write into is never
	// freed here.
	for key, rec := range m.records {
		if rec.lastSeen == frame || rec.Status == StatusStale {
			continue
		}
		if rec.failed {
			delete(m.records, key)
			continue
		}
		if rec.Status == StatusBuilding {
			rec.cancel()
		}
		rec.Status = StatusStale
		rec.staleSince = frame
		rec.queued = false
	}

	var evicted []quadtree.ChunkKey
	for key, rec := range m.records {
		if rec.Status != StatusStale || rec.building {
			continue
		}
		if rec.mesh == nil {
			delete(m.records, key)
			continue
		}
		if frame-rec.staleSince > uint64(m.cfg.EvictionGraceFrames) {
			rec.mesh = nil
			delete(m.records, key)
			evicted = append(evicted, key)
			m.log.Debug("evicted chunk", "chunk", key)
		}
	}

	m.dispatch()
	return evicted
}

// revive re-admits a stale record whose key reappeared within the grace
// period, without rebuilding anything that is still cached or in flight.
func (m *Manager) revive(rec *Record) {
	switch {
	case rec.mesh != nil:
		rec.Status = StatusReady
	case rec.building:
		// The cancelled task will either still deliver a usable mesh or its
		// cancellation result re-enqueues the key.
		rec.Status = StatusRequested
	default:
		rec.Status = StatusRequested
		m.enqueue(rec)
	}
}

// Poll drains finished build tasks without blocking and returns the meshes
// that became ready for the renderer. Cancelled results are dropped
// silently.
func (m *Manager) Poll(frame uint64) []Ready {
	defer profiling.Track("streaming.Poll")()

	m.frame = frame

	var ready []Ready
	for {
		select {
		case res := <-m.results:
			if r := m.handleResult(res); r != nil {
				ready = append(ready, *r)
			}
		default:
			m.dispatch()
			return ready
		}
	}
}

func (m *Manager) handleResult(res buildResult) *Ready {
	rec := m.records[res.key]
	if rec == nil || res.gen != rec.gen {
		// the record was retired and resubmitted (or removed) while this
		// task ran; its result belongs to nobody
		return nil
	}
	if !rec.building {
		panic(fmt.Sprintf("streaming: result for %v which is not building", res.key))
	}
	rec.building = false
	rec.cancel = nil
	m.building--

	switch {
	case errors.Is(res.err, context.Canceled):
		if rec.Status == StatusRequested {
			// wanted again before the cancellation landed
			m.enqueue(rec)
		} else if rec.mesh == nil {
			delete(m.records, res.key)
		}
		return nil

	case res.err != nil:
		if rec.Status == StatusStale {
			if rec.mesh == nil {
				delete(m.records, res.key)
			}
			return nil
		}
		rec.retries++
		if rec.retries > m.cfg.MaxBuildRetries {
			rec.failed = true
			rec.Status = StatusFailed
			m.log.Warn("giving up on chunk build",
				"chunk", res.key, "attempts", rec.retries, "err", res.err)
			return nil
		}
		m.log.Debug("retrying chunk build", "chunk", res.key, "attempt", rec.retries, "err", res.err)
		rec.Status = StatusRequested
		m.enqueue(rec)
		return nil

	default:
		rec.mesh = res.mesh
		if rec.Status == StatusStale {
			// completed after going stale; cache it through the grace period
			rec.staleSince = m.frame
			return nil
		}
		rec.Status = StatusReady
		return &Ready{Key: res.key, Mesh: res.mesh}
	}
}

func (m *Manager) enqueue(rec *Record) {
	if rec.queued || rec.building {
		panic(fmt.Sprintf("streaming: enqueueing %v twice", rec.Key))
	}
	rec.queued = true
	m.queue = append(m.queue, queueEntry{key: rec.Key, frame: m.frame})
}

// dispatch fills free worker slots. Requests go out in FIFO order by
// request frame; within a frame, coarser LODs go first so the view fills
// with cheap meshes before fine ones.
func (m *Manager) dispatch() {
	for m.building < m.cfg.MaxConcurrentTasks {
		idx := -1
		live := m.queue[:0]
		for _, e := range m.queue {
			rec := m.records[e.key]
			if rec == nil || !rec.queued || rec.Status != StatusRequested {
				continue // superseded entry
			}
			live = append(live, e)
			i := len(live) - 1
			if idx == -1 || entryBefore(live[i], live[idx]) {
				idx = i
			}
		}
		m.queue = live
		if idx == -1 {
			return
		}

		e := m.queue[idx]
		m.queue = append(m.queue[:idx], m.queue[idx+1:]...)
		m.submit(m.records[e.key])
	}
}

func entryBefore(a, b queueEntry) bool {
	if a.frame != b.frame {
		return a.frame < b.frame
	}
	return a.key.Less(b.key)
}

func (m *Manager) submit(rec *Record) {
	if rec.building {
		panic(fmt.Sprintf("streaming: double submission for %v", rec.Key))
	}
	ctx, cancel := context.WithCancel(m.poolCtx)
	m.nextGen++

	rec.gen = m.nextGen
	rec.cancel = cancel
	rec.building = true
	rec.queued = false
	rec.Status = StatusBuilding
	m.building++

	m.jobs <- buildJob{ctx: ctx, key: rec.Key, bounds: rec.Bounds, detail: rec.Detail, gen: rec.gen}
}

// MeshFor returns the cached mesh for a key, or nil if the chunk is not
// ready (never built, still building, or already evicted). Stale chunks
// inside the grace period still report their mesh.
func (m *Manager) MeshFor(key quadtree.ChunkKey) *meshing.Mesh {
	rec := m.records[key]
	if rec == nil {
		return nil
	}
	return rec.mesh
}

// HasMesh reports whether MeshFor would return a mesh.
func (m *Manager) HasMesh(key quadtree.ChunkKey) bool {
	return m.MeshFor(key) != nil
}

// StatusOf reports a record's lifecycle status, primarily for tests and
// diagnostics.
func (m *Manager) StatusOf(key quadtree.ChunkKey) (Status, bool) {
	rec, ok := m.records[key]
	if !ok {
		return 0, false
	}
	return rec.Status, true
}

// Pending returns the number of queued-but-not-building requests.
func (m *Manager) Pending() int {
	n := 0
	for _, e := range m.queue {
		rec := m.records[e.key]
		if rec != nil && rec.queued && rec.Status == StatusRequested {
			n++
		}
	}
	return n
}

// Building returns the number of in-flight build tasks.
func (m *Manager) Building() int { return m.building }
