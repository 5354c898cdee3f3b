package webgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// ContextState is the recording state of a CommandContext.
type ContextState uint8

const (
	// ContextStateIdle has no encoder.
	ContextStateIdle ContextState = iota
	// ContextStateEncoding has an encoder and no open pass.
	ContextStateEncoding
	// ContextStateRenderPass has an open render pass.
	ContextStateRenderPass
	// ContextStateComputePass has an open compute pass.
	ContextStateComputePass
	// ContextStateSubmitted has handed its command buffer to the queue.
	ContextStateSubmitted
)

// String returns the string representation of ContextState.
func (s ContextState) String() string {
	switch s {
	case ContextStateIdle:
		return "Idle"
	case ContextStateEncoding:
		return "Encoding"
	case ContextStateRenderPass:
		return "RenderPass"
	case ContextStateComputePass:
		return "ComputePass"
	case ContextStateSubmitted:
		return "Submitted"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// dirtyFlags marks pending dynamic state.
type dirtyFlags uint8

const (
	dirtyViewport dirtyFlags = 1 << iota
	dirtyScissor
	dirtyCull

	dirtyAll = dirtyViewport | dirtyScissor | dirtyCull
)

type boundSet struct {
	set     *DescriptorSet
	offsets []uint32
	pending bool
}

// CommandContext records the GPU work of one frame slot.
//
// The state machine is
//
//	Idle → Encoding → (RenderPass | ComputePass)* → Encoding → Submitted → Idle
//
// Viewport, scissor and cull mode are cached with per-field dirty flags and
// reach the native encoder only at draw time, in that order. Descriptor sets
// are bound lazily at draw or dispatch time.
//
// CommandContext is NOT safe for concurrent use.
type CommandContext struct {
	dev   *Device
	label string
	state ContextState

	encoder native.CommandEncoder
	cmdBuf  native.CommandBuffer
	render  native.RenderPassEncoder
	compute native.ComputePassEncoder
	encodes int

	targetW, targetH uint32
	viewport         gpuhal.Viewport
	scissor          gpuhal.Rect
	cull             gpuhal.CullMode
	dirty            dirtyFlags

	pipeline  *Pipeline
	sets      []boundSet
	readbacks []*Buffer
}

func newCommandContext(d *Device, label string) *CommandContext {
	return &CommandContext{dev: d, label: label}
}

// State returns the current state.
func (c *CommandContext) State() ContextState { return c.state }

// Label returns the debug label.
func (c *CommandContext) Label() string { return c.label }

// PendingReadbacks returns the number of readback buffers queued for the
// next Submit.
func (c *CommandContext) PendingReadbacks() int { return len(c.readbacks) }

// =============================================================================
// Encoding
// =============================================================================

// BeginEncode releases anything unsubmitted, creates a fresh encoder and
// enters Encoding.
func (c *CommandContext) BeginEncode() {
	if c.state == ContextStateRenderPass || c.state == ContextStateComputePass {
		gpuhal.Fatalf("BeginEncode", "context %q has an open %s", c.label, c.state)
	}
	c.releaseRecording()
	c.encodes++
	enc, err := c.dev.nd.CreateCommandEncoder(fmt.Sprintf("%s/enc%d", c.label, c.encodes))
	if err != nil {
		c.nativeFailure("BeginEncode", err)
	}
	c.encoder = enc
	c.state = ContextStateEncoding
}

// EndEncode closes an open compute pass and finishes the encoder into a
// command buffer. An open render pass is a contract violation.
func (c *CommandContext) EndEncode() {
	switch c.state {
	case ContextStateRenderPass:
		gpuhal.Fatalf("EndEncode", "context %q: render pass still open", c.label)
	case ContextStateComputePass:
		c.EndComputePass()
	}
	c.requireEncoder("EndEncode")
	cb, err := c.encoder.Finish(c.label)
	c.encoder.Release()
	c.encoder = nil
	if err != nil {
		c.nativeFailure("EndEncode", err)
	}
	c.cmdBuf = cb
}

// Submit hands the finished command buffer to the queue, then issues the
// readback maps queued with AddReadbackBuffer. It does not wait.
func (c *CommandContext) Submit() {
	if c.cmdBuf == nil {
		gpuhal.Fatalf("Submit", "context %q has no finished command buffer (state %s)", c.label, c.state)
	}
	c.dev.nd.Queue().Submit(c.cmdBuf)
	c.cmdBuf.Release()
	c.cmdBuf = nil
	for _, b := range c.readbacks {
		b.mapRead()
	}
	c.readbacks = c.readbacks[:0]
	c.state = ContextStateSubmitted
}

// Reset returns to Idle, releasing anything recorded but not submitted.
func (c *CommandContext) Reset() {
	c.releaseRecording()
	c.state = ContextStateIdle
}

func (c *CommandContext) releaseRecording() {
	c.render = nil
	c.compute = nil
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
	if c.cmdBuf != nil {
		c.cmdBuf.Release()
		c.cmdBuf = nil
	}
	for _, b := range c.readbacks {
		b.deref()
	}
	c.readbacks = c.readbacks[:0]
	c.resetBindings()
}

func (c *CommandContext) resetBindings() {
	c.pipeline = nil
	clear(c.sets)
	c.sets = c.sets[:0]
}

func (c *CommandContext) requireEncoder(op string) {
	if c.encoder == nil {
		gpuhal.Fatalf(op, "context %q has no active encoder (state %s)", c.label, c.state)
	}
}

func (c *CommandContext) requireRender(op string) {
	if c.state != ContextStateRenderPass {
		gpuhal.Fatalf(op, "context %q: no render pass open (state %s)", c.label, c.state)
	}
}

func (c *CommandContext) requireCompute(op string) {
	if c.state != ContextStateComputePass {
		gpuhal.Fatalf(op, "context %q: no compute pass open (state %s)", c.label, c.state)
	}
}

// nativeFailure aborts on an error from the native layer.
func (c *CommandContext) nativeFailure(op string, err error) {
	if errors.Is(err, native.ErrDeviceLost) {
		gpuhal.DeviceLostf(op, "context %q: %v", c.label, err)
	}
	gpuhal.Fatalf(op, "context %q: %v", c.label, err)
}

// =============================================================================
// Passes
// =============================================================================

func loadOp(op gpuhal.LoadOp) gputypes.LoadOp {
	if op == gpuhal.LoadOpLoad {
		return gputypes.LoadOpLoad
	}
	// WebGPU has no don't-care load.
	return gputypes.LoadOpClear
}

func storeOp(op gpuhal.StoreOp) gputypes.StoreOp {
	if op == gpuhal.StoreOpDiscard {
		return gputypes.StoreOpDiscard
	}
	return gputypes.StoreOpStore
}

// BeginRenderPass implements gpuhal.CommandContext.
//
// An open compute pass is closed first. Viewport and scissor are reset to
// the full framebuffer and cull mode to None, all marked dirty.
func (c *CommandContext) BeginRenderPass(h gpuhal.FramebufferHandle, desc *gpuhal.RenderPassDescriptor) {
	switch c.state {
	case ContextStateRenderPass:
		gpuhal.Fatalf("BeginRenderPass", "context %q: render pass already open", c.label)
	case ContextStateComputePass:
		c.EndComputePass()
	}
	c.requireEncoder("BeginRenderPass")
	fb := c.dev.framebuffer("BeginRenderPass", h)
	if desc == nil {
		desc = &gpuhal.RenderPassDescriptor{}
	}

	nd := &native.RenderPassDescriptor{Label: desc.Label}
	if nd.Label == "" {
		nd.Label = fb.label
	}
	for _, v := range fb.color {
		nd.ColorAttachments = append(nd.ColorAttachments, native.RenderPassColorAttachment{
			View:       v,
			LoadOp:     loadOp(desc.ColorLoadOp),
			StoreOp:    storeOp(desc.ColorStoreOp),
			ClearValue: desc.ClearColor,
		})
	}
	if fb.depth != nil {
		ds := &native.RenderPassDepthStencilAttachment{
			View:            fb.depth,
			DepthLoadOp:     loadOp(desc.DepthLoadOp),
			DepthStoreOp:    storeOp(desc.DepthStoreOp),
			DepthClearValue: desc.ClearDepth,
		}
		if fb.depthFormat.HasStencil() {
			ds.StencilLoadOp = loadOp(desc.StencilLoadOp)
			ds.StencilStoreOp = storeOp(desc.StencilStoreOp)
			ds.StencilClearValue = desc.ClearStencil
		}
		nd.DepthStencilAttachment = ds
	}

	c.render = c.encoder.BeginRenderPass(nd)
	c.state = ContextStateRenderPass
	c.resetBindings()

	c.targetW, c.targetH = fb.width, fb.height
	c.viewport = gpuhal.Viewport{Width: float32(fb.width), Height: float32(fb.height), MaxDepth: 1}
	c.scissor = gpuhal.Rect{Width: fb.width, Height: fb.height}
	c.cull = gpuhal.CullModeNone
	c.dirty = dirtyAll
}

// EndRenderPass implements gpuhal.CommandContext.
func (c *CommandContext) EndRenderPass() {
	c.requireRender("EndRenderPass")
	c.render.End()
	c.render = nil
	c.state = ContextStateEncoding
	c.resetBindings()
}

// BeginComputePass implements gpuhal.CommandContext. Calling it with a
// compute pass already open does nothing.
func (c *CommandContext) BeginComputePass() {
	switch c.state {
	case ContextStateComputePass:
		return
	case ContextStateRenderPass:
		gpuhal.Fatalf("BeginComputePass", "context %q: render pass open", c.label)
	}
	c.requireEncoder("BeginComputePass")
	c.compute = c.encoder.BeginComputePass(c.label + "/compute")
	c.state = ContextStateComputePass
	c.resetBindings()
}

// EndComputePass implements gpuhal.CommandContext. It is idempotent.
func (c *CommandContext) EndComputePass() {
	if c.state != ContextStateComputePass {
		return
	}
	c.compute.End()
	c.compute = nil
	c.state = ContextStateEncoding
	c.resetBindings()
}

// =============================================================================
// Dynamic state
// =============================================================================

// SetViewport implements gpuhal.CommandContext.
func (c *CommandContext) SetViewport(vp gpuhal.Viewport) {
	c.requireRender("SetViewport")
	if vp != c.viewport {
		c.viewport = vp
		c.dirty |= dirtyViewport
	}
}

// SetScissor implements gpuhal.CommandContext. The rectangle must lie inside
// the framebuffer.
func (c *CommandContext) SetScissor(r gpuhal.Rect) {
	c.requireRender("SetScissor")
	if uint64(r.X)+uint64(r.Width) > uint64(c.targetW) || uint64(r.Y)+uint64(r.Height) > uint64(c.targetH) {
		gpuhal.Fatalf("SetScissor", "scissor %+v exceeds framebuffer %dx%d", r, c.targetW, c.targetH)
	}
	if r != c.scissor {
		c.scissor = r
		c.dirty |= dirtyScissor
	}
}

// SetCullMode implements gpuhal.CommandContext. It selects the variant of a
// pipeline created with CullModeDynamic.
func (c *CommandContext) SetCullMode(mode gpuhal.CullMode) {
	c.requireRender("SetCullMode")
	if mode > gpuhal.CullModeBack {
		gpuhal.Fatalf("SetCullMode", "cull mode %s is not a draw-time mode", mode)
	}
	if mode != c.cull {
		c.cull = mode
		c.dirty |= dirtyCull
	}
}

// SetBlendConstant implements gpuhal.CommandContext. No blend preset reads
// the constant, so the backend does not support it.
func (c *CommandContext) SetBlendConstant(gputypes.Color) {
	gpuhal.Unimplemented("SetBlendConstant")
}

// SetStencilReference implements gpuhal.CommandContext.
func (c *CommandContext) SetStencilReference(uint32) {
	gpuhal.Unimplemented("SetStencilReference")
}

// FlushDrawState applies dirty dynamic state in the order viewport, scissor,
// cull variant, then binds pending descriptor sets.
func (c *CommandContext) FlushDrawState() {
	c.requireRender("FlushDrawState")
	if c.dirty&dirtyViewport != 0 {
		vp := c.viewport
		c.render.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
	if c.dirty&dirtyScissor != 0 {
		s := c.scissor
		c.render.SetScissorRect(s.X, s.Y, s.Width, s.Height)
	}
	if c.dirty&dirtyCull != 0 && c.pipeline != nil && c.pipeline.DynamicCull() {
		c.render.SetPipeline(c.pipeline.Render(c.cull))
	}
	c.dirty = 0
	c.flushSets("FlushDrawState")
}

// flushSets binds every set bound since the last flush, and every bound set
// whose entries changed since its bind group was built.
func (c *CommandContext) flushSets(op string) {
	for i := range c.sets {
		bs := &c.sets[i]
		if bs.set == nil || (!bs.pending && !bs.set.dirty) {
			continue
		}
		g, err := bs.set.BindGroup()
		if err != nil {
			c.nativeFailure(op, err)
		}
		if c.state == ContextStateRenderPass {
			c.render.SetBindGroup(uint32(i), g, bs.offsets)
		} else {
			c.compute.SetBindGroup(uint32(i), g, bs.offsets)
		}
		bs.pending = false
	}
}

// =============================================================================
// Bindings
// =============================================================================

// BindPipeline implements gpuhal.CommandContext.
//
// Graphics pipelines need an open render pass and compute pipelines an open
// compute pass. A fixed-cull graphics pipeline is set immediately; a
// dynamic-cull one is resolved at the next flush.
func (c *CommandContext) BindPipeline(h gpuhal.PipelineHandle) {
	p := c.dev.pipeline("BindPipeline", h)
	switch p.kind {
	case PipelineKindGraphics:
		if c.state != ContextStateRenderPass {
			gpuhal.Fatalf("BindPipeline", "graphics pipeline %q bound outside a render pass (state %s)", p.label, c.state)
		}
		c.pipeline = p
		if p.DynamicCull() {
			c.dirty |= dirtyCull
		} else {
			c.render.SetPipeline(p.Render(p.cull))
		}
	case PipelineKindCompute:
		if c.state != ContextStateComputePass {
			gpuhal.Fatalf("BindPipeline", "compute pipeline %q bound outside a compute pass (state %s)", p.label, c.state)
		}
		c.pipeline = p
		c.compute.SetPipeline(p.Compute())
	}
}

// MaxBindGroups is the number of descriptor set slots a context accepts
// before a pipeline is bound. It matches the WebGPU default limit.
const MaxBindGroups = 4

// BindDescriptorSet implements gpuhal.CommandContext. The number of dynamic
// offsets must match the set's dynamic bindings. The index must be below the
// bound pipeline's set count, or MaxBindGroups when no pipeline is bound.
func (c *CommandContext) BindDescriptorSet(index uint32, h gpuhal.DescriptorSetHandle, dynamicOffsets ...uint32) {
	if c.state != ContextStateRenderPass && c.state != ContextStateComputePass {
		gpuhal.Fatalf("BindDescriptorSet", "context %q: no pass open (state %s)", c.label, c.state)
	}
	limit := MaxBindGroups
	if c.pipeline != nil {
		limit = len(c.pipeline.sets)
	}
	if int(index) >= limit {
		gpuhal.Fatalf("BindDescriptorSet", "context %q: set index %d out of range (%d sets)", c.label, index, limit)
	}
	s := c.dev.descriptorSet("BindDescriptorSet", h)
	if want := s.layout.DynamicCount(); len(dynamicOffsets) != want {
		gpuhal.Fatalf("BindDescriptorSet", "set %q takes %d dynamic offsets, got %d", s.label, want, len(dynamicOffsets))
	}
	for int(index) >= len(c.sets) {
		c.sets = append(c.sets, boundSet{})
	}
	c.sets[index] = boundSet{
		set:     s,
		offsets: append([]uint32(nil), dynamicOffsets...),
		pending: true,
	}
}

// BindVertexBuffer implements gpuhal.CommandContext.
func (c *CommandContext) BindVertexBuffer(slot uint32, h gpuhal.BufferHandle, offset uint64) {
	c.requireRender("BindVertexBuffer")
	b := c.dev.buffer("BindVertexBuffer", h)
	c.render.SetVertexBuffer(slot, b.native, offset, b.size-min(offset, b.size))
}

// BindIndexBuffer implements gpuhal.CommandContext.
func (c *CommandContext) BindIndexBuffer(h gpuhal.BufferHandle, format gputypes.IndexFormat, offset uint64) {
	c.requireRender("BindIndexBuffer")
	b := c.dev.buffer("BindIndexBuffer", h)
	c.render.SetIndexBuffer(b.native, format, offset, b.size-min(offset, b.size))
}

// =============================================================================
// Draw and dispatch
// =============================================================================

func (c *CommandContext) beforeDraw(op string) {
	c.requireRender(op)
	if c.pipeline == nil {
		gpuhal.Fatalf(op, "context %q: no graphics pipeline bound", c.label)
	}
	c.FlushDrawState()
}

func (c *CommandContext) beforeDispatch(op string) {
	c.requireCompute(op)
	if c.pipeline == nil {
		gpuhal.Fatalf(op, "context %q: no compute pipeline bound", c.label)
	}
	c.flushSets(op)
}

func (c *CommandContext) indirect(op string, h gpuhal.BufferHandle) *Buffer {
	b := c.dev.buffer(op, h)
	if b.usage&gpuhal.BufferUsageIndirect == 0 {
		gpuhal.Fatalf(op, "buffer %q was not created with BufferUsageIndirect", b.label)
	}
	return b
}

// Draw implements gpuhal.CommandContext.
func (c *CommandContext) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.beforeDraw("Draw")
	c.render.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed implements gpuhal.CommandContext.
func (c *CommandContext) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	c.beforeDraw("DrawIndexed")
	c.render.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// DrawIndirect implements gpuhal.CommandContext.
func (c *CommandContext) DrawIndirect(h gpuhal.BufferHandle, offset uint64) {
	c.beforeDraw("DrawIndirect")
	c.render.DrawIndirect(c.indirect("DrawIndirect", h).native, offset)
}

// DrawIndexedIndirect implements gpuhal.CommandContext.
func (c *CommandContext) DrawIndexedIndirect(h gpuhal.BufferHandle, offset uint64) {
	c.beforeDraw("DrawIndexedIndirect")
	c.render.DrawIndexedIndirect(c.indirect("DrawIndexedIndirect", h).native, offset)
}

// Dispatch implements gpuhal.CommandContext.
func (c *CommandContext) Dispatch(x, y, z uint32) {
	c.beforeDispatch("Dispatch")
	c.compute.DispatchWorkgroups(x, y, z)
}

// DispatchIndirect implements gpuhal.CommandContext.
func (c *CommandContext) DispatchIndirect(h gpuhal.BufferHandle, offset uint64) {
	c.beforeDispatch("DispatchIndirect")
	c.compute.DispatchWorkgroupsIndirect(c.indirect("DispatchIndirect", h).native, offset)
}

// =============================================================================
// Transfers
// =============================================================================

// UpdateBuffer implements gpuhal.CommandContext. The write goes through the
// queue and lands before the next submitted command buffer executes.
func (c *CommandContext) UpdateBuffer(h gpuhal.BufferHandle, offset uint64, data []byte) {
	b := c.dev.buffer("UpdateBuffer", h)
	if offset+uint64(len(data)) > b.size {
		gpuhal.Fatalf("UpdateBuffer", "write of %d bytes at %d overflows buffer %q (%d bytes)", len(data), offset, b.label, b.size)
	}
	if len(data) == 0 {
		return
	}
	c.dev.nd.Queue().WriteBuffer(b.native, offset, data)
}

// UpdateTexture implements gpuhal.CommandContext. The write goes through the
// queue.
func (c *CommandContext) UpdateTexture(dst gpuhal.TextureRegion, data []byte, layout gpuhal.BufferLayout) {
	info, size := c.dev.textureRegion("UpdateTexture", dst, layout)
	c.dev.nd.Queue().WriteTexture(info, data, texelLayout(layout), size)
}

// beginCopy closes an open compute pass; copies inside a render pass are a
// contract violation.
func (c *CommandContext) beginCopy(op string) {
	switch c.state {
	case ContextStateRenderPass:
		gpuhal.Fatalf(op, "context %q: copy inside a render pass", c.label)
	case ContextStateComputePass:
		c.EndComputePass()
	}
	c.requireEncoder(op)
}

// CopyBuffer implements gpuhal.CommandContext.
func (c *CommandContext) CopyBuffer(srcH, dstH gpuhal.BufferHandle, srcOffset, dstOffset, size uint64) {
	c.beginCopy("CopyBuffer")
	src := c.dev.buffer("CopyBuffer", srcH)
	dst := c.dev.buffer("CopyBuffer", dstH)
	if srcOffset+size > src.size || dstOffset+size > dst.size {
		gpuhal.Fatalf("CopyBuffer", "copy of %d bytes out of range (%q %d+%d, %q %d+%d)",
			size, src.label, srcOffset, src.size, dst.label, dstOffset, dst.size)
	}
	c.encoder.CopyBufferToBuffer(src.native, srcOffset, dst.native, dstOffset, size)
}

// CopyBufferToTexture implements gpuhal.CommandContext.
func (c *CommandContext) CopyBufferToTexture(srcH gpuhal.BufferHandle, layout gpuhal.BufferLayout, dst gpuhal.TextureRegion) {
	c.beginCopy("CopyBufferToTexture")
	src := c.dev.buffer("CopyBufferToTexture", srcH)
	info, size := c.dev.textureRegion("CopyBufferToTexture", dst, layout)
	c.encoder.CopyBufferToTexture(src.native, texelLayout(layout), info, size)
}

// CopyTextureToBuffer implements gpuhal.CommandContext.
func (c *CommandContext) CopyTextureToBuffer(src gpuhal.TextureRegion, dstH gpuhal.BufferHandle, layout gpuhal.BufferLayout) {
	c.beginCopy("CopyTextureToBuffer")
	dst := c.dev.buffer("CopyTextureToBuffer", dstH)
	info, size := c.dev.textureRegion("CopyTextureToBuffer", src, layout)
	c.encoder.CopyTextureToBuffer(info, dst.native, texelLayout(layout), size)
}

// AddReadbackBuffer implements gpuhal.CommandContext. The buffer stays alive
// until its map callback has run, even if destroyed meanwhile.
func (c *CommandContext) AddReadbackBuffer(h gpuhal.BufferHandle) {
	b := c.dev.buffer("AddReadbackBuffer", h)
	if !b.IsReadback() {
		gpuhal.Fatalf("AddReadbackBuffer", "buffer %q was not created with BufferUsageReadback", b.label)
	}
	b.ref()
	c.readbacks = append(c.readbacks, b)
}

func texelLayout(l gpuhal.BufferLayout) native.TexelCopyBufferLayout {
	return native.TexelCopyBufferLayout{Offset: l.Offset, BytesPerRow: l.BytesPerRow, RowsPerImage: l.RowsPerImage}
}

// textureRegion validates a region against the texture's mip size and
// converts it. Array layers map to the Z origin.
func (d *Device) textureRegion(op string, r gpuhal.TextureRegion, layout gpuhal.BufferLayout) (*native.TexelCopyTextureInfo, native.Extent3D) {
	t := d.texture(op, r.Texture)
	if r.MipLevel >= t.mips {
		gpuhal.Fatalf(op, "texture %q has %d mip levels, region selects %d", t.label, t.mips, r.MipLevel)
	}
	w, h := t.MipSize(r.MipLevel)
	if uint64(r.X)+uint64(r.Width) > uint64(w) || uint64(r.Y)+uint64(r.Height) > uint64(h) {
		gpuhal.Fatalf(op, "region %dx%d at (%d,%d) exceeds texture %q mip %d (%dx%d)",
			r.Width, r.Height, r.X, r.Y, t.label, r.MipLevel, w, h)
	}
	if r.Height > 1 && layout.BytesPerRow == 0 {
		gpuhal.Fatalf(op, "multi-row copy into %q needs BytesPerRow", t.label)
	}

	origin := native.Origin3D{X: r.X, Y: r.Y, Z: r.Layer}
	size := native.Extent3D{Width: r.Width, Height: r.Height, DepthOrArrayLayers: 1}
	if t.desc.Type == gpuhal.TextureType3D {
		origin.Z = r.Z
		size.DepthOrArrayLayers = max(r.Depth, 1)
	} else if r.Layer >= t.layers {
		gpuhal.Fatalf(op, "texture %q has %d layers, region selects %d", t.label, t.layers, r.Layer)
	}
	return &native.TexelCopyTextureInfo{Texture: t.native, MipLevel: r.MipLevel, Origin: origin}, size
}

var _ gpuhal.CommandContext = (*CommandContext)(nil)
