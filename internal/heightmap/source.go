// Package heightmap provides the height-sampling capability consumed by the
// terrain engine: pluggable sources mapping a world (x, z) coordinate to an
// elevation and, optionally, a vertex color.
//
// Sources must be deterministic and safe to call from multiple goroutines;
// mesh builders sample them concurrently without synchronization.
package heightmap

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Source samples terrain elevation at a world position.
type Source interface {
	HeightAt(x, z float32) float32
}

// ColorSource is an optional extension of Source that supplies a vertex
// color for a sampled position.
type ColorSource interface {
	ColorAt(x, z, height float32) mgl32.Vec4
}

// Flat is a constant-elevation source, mainly useful in tests.
type Flat struct {
	Height float32
}

func (f Flat) HeightAt(x, z float32) float32 { return f.Height }

// Func adapts a plain function to a Source.
type Func func(x, z float32) float32

func (f Func) HeightAt(x, z float32) float32 { return f(x, z) }

// SampleNormal estimates the surface normal at (x, z) from central
// differences with the given step.
func SampleNormal(src Source, x, z, step float32) mgl32.Vec3 {
	left := src.HeightAt(x-step, z)
	right := src.HeightAt(x+step, z)
	down := src.HeightAt(x, z-step)
	up := src.HeightAt(x, z+step)

	dx := (right - left) / (2 * step)
	dz := (up - down) / (2 * step)

	return mgl32.Vec3{-dx, 1, -dz}.Normalize()
}

// SampleSlope returns 0 for flat ground and approaches 1 as the surface
// turns vertical.
func SampleSlope(src Source, x, z, step float32) float32 {
	return 1 - SampleNormal(src, x, z, step).Y()
}

// Smoothstep is the usual cubic ease between edge0 and edge1.
func Smoothstep(edge0, edge1, x float32) float32 {
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
