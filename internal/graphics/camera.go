package graphics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a free-flying camera driven by per-frame move and look input.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32 // degrees, 0 looks down -Z
	Pitch    float32 // degrees, clamped to avoid flipping

	AspectRatio float32
	FOV         float32
	NearPlane   float32
	FarPlane    float32

	MoveSpeed   float32
	Sensitivity float32
}

func NewCamera(width, height int) *Camera {
	return &Camera{
		Position:    mgl32.Vec3{0, 200, 0},
		Yaw:         -90.0,
		AspectRatio: float32(width) / float32(height),
		FOV:         60.0,
		NearPlane:   0.5,
		FarPlane:    8000.0,
		MoveSpeed:   120.0,
		Sensitivity: 0.1,
	}
}

// Forward returns the view direction.
func (c *Camera) Forward() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))
	return mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}.Normalize()
}

// Right returns the horizontal strafe direction.
func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

// Look applies a mouse delta to yaw and pitch.
func (c *Camera) Look(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch -= dy * c.Sensitivity
	if c.Pitch > 89 {
		c.Pitch = 89
	}
	if c.Pitch < -89 {
		c.Pitch = -89
	}
}

// Move translates the camera along the view axes. forward/right/up are
// signed input axes, dt is the frame time in seconds.
func (c *Camera) Move(forward, right, up, dt float32) {
	step := c.MoveSpeed * dt
	c.Position = c.Position.Add(c.Forward().Mul(forward * step))
	c.Position = c.Position.Add(c.Right().Mul(right * step))
	c.Position = c.Position.Add(mgl32.Vec3{0, up * step, 0})
}

func (c *Camera) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
}

func (c *Camera) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}
