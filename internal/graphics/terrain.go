package graphics

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"terrastream/internal/config"
	"terrastream/internal/meshing"
	"terrastream/internal/profiling"
	"terrastream/internal/quadtree"
)

const terrainVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec4 aColor;
layout (location = 3) in vec2 aUV;
layout (location = 4) in float aMorphHeight;

uniform mat4 projection;
uniform mat4 view;
uniform mat4 model;
uniform vec3 cameraPos;
uniform float morphStart;
uniform float morphEnd;

out vec3 vNormal;
out vec4 vColor;
out vec3 vWorldPos;

void main() {
	vec3 world = (model * vec4(aPos, 1.0)).xyz;
	float dist = distance(cameraPos.xz, world.xz);
	float t = clamp((dist - morphStart) / (morphEnd - morphStart), 0.0, 1.0);
	vec3 pos = vec3(aPos.x, mix(aPos.y, aMorphHeight, t), aPos.z);

	vNormal = aNormal;
	vColor = aColor;
	vWorldPos = (model * vec4(pos, 1.0)).xyz;
	gl_Position = projection * view * model * vec4(pos, 1.0);
}
`

const terrainFragmentShader = `
#version 410 core

in vec3 vNormal;
in vec4 vColor;
in vec3 vWorldPos;

uniform vec3 lightDir;
uniform vec3 cameraPos;
uniform float fogStart;
uniform float fogEnd;
uniform vec3 fogColor;

out vec4 FragColor;

void main() {
	vec3 n = normalize(vNormal);
	float diffuse = max(dot(n, normalize(-lightDir)), 0.0);
	vec3 lit = vColor.rgb * (0.35 + 0.65 * diffuse);

	float dist = distance(cameraPos, vWorldPos);
	float fog = clamp((dist - fogStart) / (fogEnd - fogStart), 0.0, 1.0);
	FragColor = vec4(mix(lit, fogColor, fog), vColor.a);
}
`

// floats per vertex: position 3, normal 3, color 4, uv 2, morph height 1
const vertexStride = 13

type chunkBuffers struct {
	vao   uint32
	vbo   uint32
	ebo   uint32
	count int32
	mesh  *meshing.Mesh
}

// TerrainRenderer uploads chunk meshes as interleaved vertex buffers and
// draws every chunk it currently holds. The streaming boundary decides
// what it holds: Upload on ready, Release on evicted.
type TerrainRenderer struct {
	cfg    config.Config
	shader *Shader
	chunks map[quadtree.ChunkKey]*chunkBuffers

	scratch []float32
}

func NewTerrainRenderer(cfg config.Config) (*TerrainRenderer, error) {
	shader, err := NewShader(terrainVertexShader, terrainFragmentShader)
	if err != nil {
		return nil, err
	}
	return &TerrainRenderer{
		cfg:    cfg,
		shader: shader,
		chunks: make(map[quadtree.ChunkKey]*chunkBuffers),
	}, nil
}

// Upload creates GPU buffers for a completed mesh, replacing any previous
// buffers for the same chunk.
func (r *TerrainRenderer) Upload(mesh *meshing.Mesh) {
	defer profiling.Track("graphics.Upload")()

	r.Release(mesh.Key)

	data := r.interleave(mesh)

	cb := &chunkBuffers{count: int32(len(mesh.Indices)), mesh: mesh}
	gl.GenVertexArrays(1, &cb.vao)
	gl.BindVertexArray(cb.vao)

	gl.GenBuffers(1, &cb.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, cb.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)

	gl.GenBuffers(1, &cb.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, cb.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)

	stride := int32(vertexStride * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 4, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointerWithOffset(3, 2, gl.FLOAT, false, stride, 10*4)
	gl.EnableVertexAttribArray(3)
	gl.VertexAttribPointerWithOffset(4, 1, gl.FLOAT, false, stride, 12*4)
	gl.EnableVertexAttribArray(4)

	gl.BindVertexArray(0)

	r.chunks[mesh.Key] = cb
}

// Release frees the GPU buffers for a chunk, if uploaded.
func (r *TerrainRenderer) Release(key quadtree.ChunkKey) {
	cb, ok := r.chunks[key]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &cb.vao)
	gl.DeleteBuffers(1, &cb.vbo)
	gl.DeleteBuffers(1, &cb.ebo)
	delete(r.chunks, key)
}

// Draw renders every uploaded chunk.
func (r *TerrainRenderer) Draw(cam *Camera) {
	defer profiling.Track("graphics.Draw")()

	proj := cam.GetProjectionMatrix()
	view := cam.GetViewMatrix()

	r.shader.Use()
	r.shader.SetMatrix4("projection", &proj[0])
	r.shader.SetMatrix4("view", &view[0])
	r.shader.SetVector3("cameraPos", cam.Position.X(), cam.Position.Y(), cam.Position.Z())
	r.shader.SetVector3("lightDir", -0.4, -0.8, -0.3)
	r.shader.SetFloat("fogStart", cam.FarPlane*0.6)
	r.shader.SetFloat("fogEnd", cam.FarPlane*0.95)
	r.shader.SetVector3("fogColor", 0.62, 0.72, 0.84)

	for key, cb := range r.chunks {
		model := modelMatrix(cb.mesh)
		r.shader.SetMatrix4("model", &model[0])

		// morph band for this chunk's depth, in absolute view distance
		split := quadtree.SplitDistance(key.LOD, r.cfg)
		r.shader.SetFloat("morphStart", r.cfg.MorphStart*split)
		r.shader.SetFloat("morphEnd", r.cfg.MorphEnd*split)

		gl.BindVertexArray(cb.vao)
		gl.DrawElementsWithOffset(gl.TRIANGLES, cb.count, gl.UNSIGNED_INT, 0)
	}
	gl.BindVertexArray(0)
}

// ChunkCount returns the number of chunks currently uploaded.
func (r *TerrainRenderer) ChunkCount() int { return len(r.chunks) }

// Dispose frees all GPU resources.
func (r *TerrainRenderer) Dispose() {
	for key := range r.chunks {
		r.Release(key)
	}
	r.shader.Dispose()
}

func modelMatrix(mesh *meshing.Mesh) mgl32.Mat4 {
	o := mesh.Origin
	return mgl32.Translate3D(o.X(), o.Y(), o.Z())
}

func (r *TerrainRenderer) interleave(mesh *meshing.Mesh) []float32 {
	n := mesh.VertexCount()
	if cap(r.scratch) < n*vertexStride {
		r.scratch = make([]float32, 0, n*vertexStride)
	}
	data := r.scratch[:0]
	for i := 0; i < n; i++ {
		p := mesh.Positions[i]
		nm := mesh.Normals[i]
		c := mesh.Colors[i]
		uv := mesh.UVs[i]
		data = append(data,
			p.X(), p.Y(), p.Z(),
			nm.X(), nm.Y(), nm.Z(),
			c.X(), c.Y(), c.Z(), c.W(),
			uv.X(), uv.Y(),
			mesh.MorphHeights[i])
	}
	r.scratch = data
	return data
}
