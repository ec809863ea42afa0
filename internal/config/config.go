// Package config holds the terrain engine configuration.
package config

import (
	"errors"
	"fmt"
)

// Config is the full set of tunables for the terrain engine. Construct it
// once, validate it, and treat it as read-only afterwards; every subsystem
// receives it by value.
type Config struct {
	// ChunkSize is the world-space footprint of a full-detail chunk.
	ChunkSize float32
	// RenderDistance is how many chunks out from the viewer terrain stays
	// active. Nodes beyond it are never requested.
	RenderDistance int
	// MaxHeight is the vertical scale applied to normalized height samples.
	MaxHeight float32
	// WaterLevel shifts terrain down so heights below it read as underwater.
	WaterLevel float32
	// MountainThreshold is the normalized continental height above which
	// ridge noise contributes (0..1).
	MountainThreshold float32
	// WarpStrength is the domain-warp displacement in world units.
	WarpStrength float32
	// SkirtDepth is how far edge skirts drop below chunk borders to hide
	// cracks between neighboring LODs.
	SkirtDepth float32
	// LODDistances are the [near, mid, far] viewer distances that bound the
	// detail bands.
	LODDistances [3]float32
	// LODSubdivisions are grid subdivisions per LOD level, finest first.
	LODSubdivisions [4]uint32
	// MaxConcurrentTasks bounds simultaneously building chunks.
	MaxConcurrentTasks int
	// LODHysteresis widens the merge threshold relative to the split
	// threshold so a node doesn't flicker when the viewer hovers near one.
	LODHysteresis float32
	// MaxQuadtreeDepth bounds subdivision near the viewer.
	MaxQuadtreeDepth uint8
	// MorphStart and MorphEnd are fractions of a node's split distance
	// between which the renderer blends vertices toward their morph-target
	// height.
	MorphStart float32
	MorphEnd   float32
	// MaxBuildRetries caps re-enqueues of a chunk whose build failed before
	// the chunk is left permanently absent.
	MaxBuildRetries int
	// EvictionGraceFrames is how many frames a Ready chunk may sit outside
	// the leaf set before its mesh is released.
	EvictionGraceFrames int
	// RootSize is the footprint of a quadtree root node. Zero means
	// 8x ChunkSize.
	RootSize float32
}

// Default returns the configuration the engine was tuned with.
func Default() Config {
	return Config{
		ChunkSize:           100,
		RenderDistance:      50,
		MaxHeight:           180,
		WaterLevel:          15,
		MountainThreshold:   0.6,
		WarpStrength:        60,
		SkirtDepth:          50,
		LODDistances:        [3]float32{300, 1000, 2500},
		LODSubdivisions:     [4]uint32{64, 32, 16, 8},
		MaxConcurrentTasks:  8,
		LODHysteresis:       0.15,
		MaxQuadtreeDepth:    8,
		MorphStart:          0.75,
		MorphEnd:            0.95,
		MaxBuildRetries:     3,
		EvictionGraceFrames: 8,
	}
}

// EffectiveRootSize resolves the RootSize default.
func (c Config) EffectiveRootSize() float32 {
	if c.RootSize > 0 {
		return c.RootSize
	}
	return c.ChunkSize * 8
}

// Validate reports structural configuration errors. A failing config is a
// programming error, not a runtime condition.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.RenderDistance <= 0 {
		return errors.New("config: RenderDistance must be positive")
	}
	if c.MaxHeight <= 0 {
		return errors.New("config: MaxHeight must be positive")
	}
	if c.LODDistances[0] <= 0 || c.LODDistances[0] >= c.LODDistances[1] || c.LODDistances[1] >= c.LODDistances[2] {
		return fmt.Errorf("config: LODDistances must be positive and ascending, got %v", c.LODDistances)
	}
	for i, s := range c.LODSubdivisions {
		if s == 0 {
			return fmt.Errorf("config: LODSubdivisions[%d] must be positive", i)
		}
	}
	if c.MaxConcurrentTasks <= 0 {
		return errors.New("config: MaxConcurrentTasks must be positive")
	}
	if c.LODHysteresis < 0 || c.LODHysteresis >= 1 {
		return fmt.Errorf("config: LODHysteresis must be in [0,1), got %v", c.LODHysteresis)
	}
	if c.MaxQuadtreeDepth == 0 {
		return errors.New("config: MaxQuadtreeDepth must be positive")
	}
	if c.MorphStart < 0 || c.MorphStart >= c.MorphEnd || c.MorphEnd > 1 {
		return fmt.Errorf("config: morph band must satisfy 0 <= MorphStart < MorphEnd <= 1, got [%v, %v]", c.MorphStart, c.MorphEnd)
	}
	if c.MaxBuildRetries < 0 {
		return errors.New("config: MaxBuildRetries must not be negative")
	}
	if c.EvictionGraceFrames < 0 {
		return errors.New("config: EvictionGraceFrames must not be negative")
	}
	if c.RootSize < 0 {
		return errors.New("config: RootSize must not be negative")
	}
	return nil
}
