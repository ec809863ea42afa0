package heightmap

import "github.com/go-gl/mathgl/mgl32"

// Biome colors in linear RGB.
var (
	deepWater    = mgl32.Vec4{0.02, 0.1, 0.3, 1}
	shallowWater = mgl32.Vec4{0.1, 0.3, 0.5, 1}
	sand         = mgl32.Vec4{0.76, 0.7, 0.5, 1}
	grass        = mgl32.Vec4{0.2, 0.5, 0.15, 1}
	forest       = mgl32.Vec4{0.1, 0.35, 0.1, 1}
	rock         = mgl32.Vec4{0.4, 0.38, 0.35, 1}
	snow         = mgl32.Vec4{0.95, 0.95, 0.97, 1}
)

// HeightColor maps an elevation to a biome color: water below zero, then
// sand, grass, forest, rock and snow bands scaled by maxHeight.
func HeightColor(height, maxHeight float32) mgl32.Vec4 {
	waterLevel := float32(-2)
	beachLevel := float32(0.5)
	grassLevel := maxHeight * 0.4
	rockLevel := maxHeight * 0.7

	switch {
	case height < waterLevel:
		return deepWater
	case height < 0:
		return lerpColor(shallowWater, sand, (height-waterLevel)/(0-waterLevel))
	case height < beachLevel:
		return lerpColor(sand, grass, height/beachLevel)
	case height < grassLevel:
		return lerpColor(grass, forest, (height-beachLevel)/(grassLevel-beachLevel))
	case height < rockLevel:
		return lerpColor(forest, rock, (height-grassLevel)/(rockLevel-grassLevel))
	default:
		t := (height - rockLevel) / (maxHeight - rockLevel)
		if t > 1 {
			t = 1
		}
		return lerpColor(rock, snow, t)
	}
}

func lerpColor(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	t = clamp01(t)
	return a.Add(b.Sub(a).Mul(t))
}
