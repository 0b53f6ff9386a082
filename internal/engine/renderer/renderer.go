// Package renderer draws sprite layers with OpenGL.
//
// Every decoded sprite image is uploaded once and kept as a texture keyed
// by the image pointer. Images are shared through the asset cache, so the
// same pointer always means the same pixels.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/maplemap/internal/engine/sprite"
	"github.com/Faultbox/maplemap/internal/logger"
)

// floats per vertex: pos(2) + uv(2)
const vertexFloats = 4

// Renderer is a sprite.Target drawing textured quads in screen space.
// Methods must be called on the thread owning the GL context.
type Renderer struct {
	width, height int

	// Camera is the world position of the top-left screen corner.
	Camera image.Point

	program uint32
	uProj   int32
	uTex    int32
	uColor  int32

	vao uint32
	vbo uint32

	white    uint32
	textures map[*image.NRGBA]uint32
	verts    []float32

	log *zap.Logger
}

// New creates a renderer for a width x height viewport.
// It must be called after the GL context is current.
func New(width, height int) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r := &Renderer{
		textures: make(map[*image.NRGBA]uint32),
		verts:    make([]float32, 0, 6*vertexFloats),
		log:      logger.Named("renderer"),
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	var err error
	r.program, err = linkProgram(spriteVertexShader, spriteFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("create sprite shader: %w", err)
	}
	r.uProj = gl.GetUniformLocation(r.program, gl.Str("uProjection\x00"))
	r.uTex = gl.GetUniformLocation(r.program, gl.Str("uTexture\x00"))
	r.uColor = gl.GetUniformLocation(r.program, gl.Str("uColor\x00"))

	r.createBuffers()
	r.white = upload(1, 1, 4, []uint8{255, 255, 255, 255})

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	r.Resize(width, height)
	return r, nil
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.width, r.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Size returns the viewport size.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Begin clears the frame and binds the sprite pipeline.
func (r *Renderer) Begin(clear color.Color) {
	cr, cg, cb, ca := clear.RGBA()
	gl.ClearColor(float32(cr)/0xffff, float32(cg)/0xffff, float32(cb)/0xffff, float32(ca)/0xffff)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	proj := orthoMatrix(0, float32(r.width), float32(r.height), 0)
	gl.UseProgram(r.program)
	gl.UniformMatrix4fv(r.uProj, 1, false, &proj[0])
	gl.Uniform1i(r.uTex, 0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindVertexArray(r.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
}

// End unbinds the pipeline.
func (r *Renderer) End() {
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.UseProgram(0)
}

// DrawImage implements sprite.Target.
func (r *Renderer) DrawImage(img *image.NRGBA, op sprite.DrawOp) {
	if img == nil || op.Alpha <= 0 {
		return
	}
	size := img.Bounds().Size()
	x := float32(op.X - r.Camera.X)
	y := float32(op.Y - r.Camera.Y)
	w, h := float32(size.X), float32(size.Y)
	if x+w < 0 || y+h < 0 || x > float32(r.width) || y > float32(r.height) {
		return
	}

	u0, u1 := float32(0), float32(1)
	if op.FlipX {
		u0, u1 = 1, 0
	}
	r.verts = append(r.verts[:0],
		x, y, u0, 0,
		x+w, y, u1, 0,
		x+w, y+h, u1, 1,
		x, y, u0, 0,
		x+w, y+h, u1, 1,
		x, y+h, u0, 1,
	)

	gl.BindTexture(gl.TEXTURE_2D, r.texture(img))
	gl.Uniform4f(r.uColor, 1, 1, 1, op.Alpha)
	gl.BufferData(gl.ARRAY_BUFFER, len(r.verts)*4, unsafe.Pointer(&r.verts[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
}

// DrawSegments strokes foothold segments in world space.
func (r *Renderer) DrawSegments(segs []sprite.Segment, c color.Color) {
	if len(segs) == 0 {
		return
	}
	r.verts = r.verts[:0]
	for _, s := range segs {
		a, b := s.A.Sub(r.Camera), s.B.Sub(r.Camera)
		r.verts = append(r.verts,
			float32(a.X), float32(a.Y), 0, 0,
			float32(b.X), float32(b.Y), 0, 0)
	}

	cr, cg, cb, ca := c.RGBA()
	gl.BindTexture(gl.TEXTURE_2D, r.white)
	gl.Uniform4f(r.uColor, float32(cr)/0xffff, float32(cg)/0xffff, float32(cb)/0xffff, float32(ca)/0xffff)
	gl.BufferData(gl.ARRAY_BUFFER, len(r.verts)*4, unsafe.Pointer(&r.verts[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, int32(len(r.verts)/vertexFloats))
}

// ReadPixels returns the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() []byte {
	pixels := make([]byte, r.width*r.height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(r.width), int32(r.height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels
}

// Purge deletes every cached texture. Call it after the asset cache has
// been evicted, e.g. when the container is reloaded.
func (r *Renderer) Purge() {
	for img, tex := range r.textures {
		gl.DeleteTextures(1, &tex)
		delete(r.textures, img)
	}
}

// Textures returns the number of cached textures.
func (r *Renderer) Textures() int {
	return len(r.textures)
}

// Close releases renderer resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer", zap.Int("textures", len(r.textures)))
	r.Purge()
	if r.white != 0 {
		gl.DeleteTextures(1, &r.white)
	}
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	if r.vbo != 0 {
		gl.DeleteBuffers(1, &r.vbo)
	}
	if r.program != 0 {
		gl.DeleteProgram(r.program)
	}
}

func (r *Renderer) texture(img *image.NRGBA) uint32 {
	if tex, ok := r.textures[img]; ok {
		return tex
	}
	b := img.Bounds()
	tex := upload(b.Dx(), b.Dy(), img.Stride, img.Pix[img.PixOffset(b.Min.X, b.Min.Y):])
	r.textures[img] = tex
	return tex
}

func (r *Renderer) createBuffers() {
	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	gl.GenBuffers(1, &r.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)

	stride := int32(vertexFloats * 4)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, stride, 2*4)
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

// upload creates an RGBA texture from non-premultiplied rows of stride bytes.
func upload(w, h, stride int, pix []uint8) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pix[0]))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	return tex
}

// orthoMatrix maps screen pixels to clip space with y pointing down.
func orthoMatrix(left, right, bottom, top float32) [16]float32 {
	return [16]float32{
		2 / (right - left), 0, 0, 0,
		0, 2 / (top - bottom), 0, 0,
		0, 0, -1, 0,
		-(right + left) / (right - left), -(top + bottom) / (top - bottom), 0, 1,
	}
}
