package heightmap

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
)

// Noise layer frequencies, in cycles per world unit. Continental shapes the
// landmass, erosion adds rolling hills, ridges carve mountain ranges, warp
// distorts the sampling domain, moisture and detail feed biome shading and
// surface roughness.
const (
	continentalFreq = 0.0004
	erosionFreq     = 0.0015
	ridgeFreq       = 0.003
	warpFreq        = 0.001
	moistureFreq    = 0.0005
	detailFreq      = 0.05
)

// TerrainNoise is a multi-layer Perlin height source. It is deterministic
// for a given seed and safe for concurrent sampling.
type TerrainNoise struct {
	continental *perlin.Perlin
	erosion     *perlin.Perlin
	ridges      *perlin.Perlin
	warp        *perlin.Perlin
	moisture    *perlin.Perlin
	detail      *perlin.Perlin

	cfg config.Config
}

// NewTerrainNoise creates a terrain noise source with the given seed.
// Layer seeds are offset from each other so the layers decorrelate.
func NewTerrainNoise(seed int64, cfg config.Config) *TerrainNoise {
	return &TerrainNoise{
		continental: perlin.NewPerlin(2, 2, 4, seed),
		erosion:     perlin.NewPerlin(2, 2, 4, seed+81),
		ridges:      perlin.NewPerlin(2, 2, 5, seed+414),
		warp:        perlin.NewPerlin(2, 2, 3, seed+747),
		moisture:    perlin.NewPerlin(2, 2, 3, seed+957),
		detail:      perlin.NewPerlin(2, 2, 2, seed+969),
		cfg:         cfg,
	}
}

// HeightAt implements Source using domain-warped layered noise with an
// erosion approximation and a staged height curve.
func (t *TerrainNoise) HeightAt(x, z float32) float32 {
	warpX := t.sample(t.warp, x, z, warpFreq) * t.cfg.WarpStrength
	warpZ := t.sample(t.warp, x+1000, z+1000, warpFreq) * t.cfg.WarpStrength
	wx := x + warpX
	wz := z + warpZ

	continental := (t.sample(t.continental, wx, wz, continentalFreq) + 1) * 0.5
	erosionRaw := t.sample(t.erosion, wx, wz, erosionFreq)
	erosion := (erosionRaw + 1) * 0.5

	// Ridged noise, masked so mountains only rise on high continental areas.
	ridge := 1 - float32(math.Abs(float64(t.sample(t.ridges, wx, wz, ridgeFreq))))
	mountainMask := max32(continental-t.cfg.MountainThreshold*0.5, 0) * 2.5
	ridgeMasked := max32(ridge, 0) * float32(math.Pow(float64(mountainMask), 1.2))

	detail := t.sample(t.detail, wx, wz, detailFreq) * 0.02

	// Valley carving deepens channels in low areas.
	valleyFactor := float32(math.Pow(float64(1-continental), 2))
	valleyCarve := float32(math.Abs(math.Min(float64(erosionRaw), 0))) * valleyFactor * 0.15

	// High continental areas flatten into plateaus.
	plateauFactor := max32(continental-0.7, 0) * 3
	plateauSmoothing := plateauFactor * (1 - erosion) * 0.1

	// Gradual shelves near the waterline.
	coastalFactor := Smoothstep(0.1, 0.25, continental) * (1 - Smoothstep(0.25, 0.4, continental))
	coastalFlatten := coastalFactor * 0.05

	base := continental*0.30 + erosion*0.45 + ridgeMasked*0.25 + detail
	combined := clamp01(base - valleyCarve + plateauSmoothing - coastalFlatten)

	return heightCurve(combined)*t.cfg.MaxHeight - t.cfg.WaterLevel
}

// ColorAt implements ColorSource with the height-based biome ramp.
func (t *TerrainNoise) ColorAt(x, z, height float32) mgl32.Vec4 {
	return HeightColor(height, t.cfg.MaxHeight)
}

// SampleMoisture returns normalized wetness at a position (0 dry, 1 wet).
func (t *TerrainNoise) SampleMoisture(x, z float32) float32 {
	return (t.sample(t.moisture, x*0.5, z*0.5, moistureFreq) + 1) * 0.5
}

// SampleDetail exposes the raw small-scale detail layer.
func (t *TerrainNoise) SampleDetail(x, z float32) float32 {
	return t.sample(t.detail, x, z, detailFreq)
}

func (t *TerrainNoise) sample(p *perlin.Perlin, x, z, freq float32) float32 {
	return float32(p.Noise2D(float64(x)*float64(freq), float64(z)*float64(freq)))
}

// heightCurve shapes normalized height into ocean floor, shelves, lowlands,
// hills, foothills and steep peaks.
func heightCurve(value float32) float32 {
	t := clamp01(value)
	switch {
	case t < 0.15:
		return t * 0.5
	case t < 0.25:
		return 0.075 + (t-0.15)*1.5
	case t < 0.40:
		return 0.225 + (t-0.25)*0.8
	case t < 0.60:
		return 0.345 + (t-0.40)*1.2
	case t < 0.75:
		return 0.585 + (t-0.60)*1.4
	default:
		mt := (t - 0.75) / 0.25
		return 0.795 + float32(math.Pow(float64(mt), 0.7))*0.205
	}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
