// terrainview is an interactive viewer for the terrain streaming engine:
// fly around a procedurally generated landscape and watch chunks split,
// merge and stream in.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
	"terrastream/internal/graphics"
	"terrastream/internal/heightmap"
	"terrastream/internal/profiling"
	"terrastream/internal/terrain"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

func main() {
	logger := log.New(os.Stderr)
	logger.SetPrefix("terrainview")

	if err := run(logger); err != nil {
		logger.Fatal("viewer exited", "err", err)
	}
}

func run(logger *log.Logger) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("could not initialize glfw: %w", err)
	}
	defer glfw.Terminate()

	window, err := setupWindow()
	if err != nil {
		return err
	}

	cfg := config.Default()
	src := heightmap.NewTerrainNoise(1337, cfg)

	engine, err := terrain.New(cfg, src)
	if err != nil {
		return err
	}
	defer engine.Close()

	renderer, err := graphics.NewTerrainRenderer(cfg)
	if err != nil {
		return err
	}
	defer renderer.Dispose()

	width, height := window.GetFramebufferSize()
	camera := graphics.NewCamera(width, height)
	camera.Position = mgl32.Vec3{0, engine.HeightAt(0, 0) + 120, 0}

	hookMouse(window, camera)

	gl.Enable(gl.DEPTH_TEST)
	gl.ClearColor(0.62, 0.72, 0.84, 1.0)

	logger.Info("streaming terrain", "chunkSize", cfg.ChunkSize, "workers", cfg.MaxConcurrentTasks)

	lastFrame := glfw.GetTime()
	titleTimer := 0.0

	for !window.ShouldClose() {
		now := glfw.GetTime()
		dt := float32(now - lastFrame)
		lastFrame = now

		profiling.ResetFrame()
		glfw.PollEvents()
		handleKeys(window, camera, dt)

		result := engine.Update(camera.Position)
		for _, r := range result.Ready {
			renderer.Upload(r.Mesh)
		}
		for _, key := range result.Evicted {
			renderer.Release(key)
		}

		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
		renderer.Draw(camera)
		window.SwapBuffers()

		titleTimer += float64(dt)
		if titleTimer > 0.5 {
			titleTimer = 0
			window.SetTitle(fmt.Sprintf("terrainview | %d chunks | %.0f fps | %s",
				renderer.ChunkCount(), 1/float64(dt), profiling.TopN(3)))
		}
	}

	return nil
}

func setupWindow() (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(1280, 720, "terrainview", nil, nil)
	if err != nil {
		return nil, err
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		return nil, err
	}

	glfw.SwapInterval(1)
	window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)

	return window, nil
}

func hookMouse(window *glfw.Window, camera *graphics.Camera) {
	firstMove := true
	var lastX, lastY float64

	window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if firstMove {
			lastX, lastY = x, y
			firstMove = false
			return
		}
		camera.Look(float32(x-lastX), float32(y-lastY))
		lastX, lastY = x, y
	})
}

func handleKeys(window *glfw.Window, camera *graphics.Camera, dt float32) {
	if window.GetKey(glfw.KeyEscape) == glfw.Press {
		window.SetShouldClose(true)
	}

	var forward, right, up float32
	if window.GetKey(glfw.KeyW) == glfw.Press {
		forward++
	}
	if window.GetKey(glfw.KeyS) == glfw.Press {
		forward--
	}
	if window.GetKey(glfw.KeyD) == glfw.Press {
		right++
	}
	if window.GetKey(glfw.KeyA) == glfw.Press {
		right--
	}
	if window.GetKey(glfw.KeySpace) == glfw.Press {
		up++
	}
	if window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		up--
	}
	if window.GetKey(glfw.KeyLeftControl) == glfw.Press {
		forward *= 5
		right *= 5
		up *= 5
	}

	camera.Move(forward, right, up, dt)
}
