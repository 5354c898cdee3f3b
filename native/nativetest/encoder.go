package nativetest

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal/native"
)

// CommandEncoder is a fake native.CommandEncoder.
// Pass commands are appended to the device call log as they are recorded;
// copies are deferred until the command buffer is submitted.
type CommandEncoder struct {
	object
	ops      []func()
	passOpen bool
	finished bool
}

// BeginRenderPass implements native.CommandEncoder.
func (e *CommandEncoder) BeginRenderPass(desc *native.RenderPassDescriptor) native.RenderPassEncoder {
	e.dev.record("BeginRenderPass(%s,colors=%d,depth=%t)", desc.Label, len(desc.ColorAttachments), desc.DepthStencilAttachment != nil)
	e.passOpen = true
	return &RenderPass{enc: e}
}

// BeginComputePass implements native.CommandEncoder.
func (e *CommandEncoder) BeginComputePass(label string) native.ComputePassEncoder {
	e.dev.record("BeginComputePass(%s)", label)
	e.passOpen = true
	return &ComputePass{enc: e}
}

// CopyBufferToBuffer implements native.CommandEncoder.
func (e *CommandEncoder) CopyBufferToBuffer(src native.Buffer, srcOffset uint64, dst native.Buffer, dstOffset, size uint64) {
	e.dev.record("CopyBufferToBuffer(%s,%s,%d)", labelOf(src), labelOf(dst), size)
	s, sok := src.(*Buffer)
	d, dok := dst.(*Buffer)
	if !sok || !dok {
		return
	}
	e.ops = append(e.ops, func() { d.write(dstOffset, s.read(srcOffset, size)) })
}

// CopyBufferToTexture implements native.CommandEncoder.
func (e *CommandEncoder) CopyBufferToTexture(src native.Buffer, _ native.TexelCopyBufferLayout, dst *native.TexelCopyTextureInfo, size native.Extent3D) {
	e.dev.record("CopyBufferToTexture(%s,%s,%dx%d)", labelOf(src), labelOf(dst.Texture), size.Width, size.Height)
}

// CopyTextureToBuffer implements native.CommandEncoder.
func (e *CommandEncoder) CopyTextureToBuffer(src *native.TexelCopyTextureInfo, dst native.Buffer, _ native.TexelCopyBufferLayout, size native.Extent3D) {
	e.dev.record("CopyTextureToBuffer(%s,%s,%dx%d)", labelOf(src.Texture), labelOf(dst), size.Width, size.Height)
}

// Finish implements native.CommandEncoder.
func (e *CommandEncoder) Finish(label string) (native.CommandBuffer, error) {
	if e.finished {
		return nil, native.ErrEncoderFinished
	}
	if e.passOpen {
		return nil, native.ErrPassOpen
	}
	e.finished = true
	obj, err := e.dev.newObject("CommandBuffer", label)
	if err != nil {
		return nil, err
	}
	e.dev.record("Finish(%s)", label)
	return &CommandBuffer{object: obj, ops: e.ops}, nil
}

// RenderPass is a fake native.RenderPassEncoder.
type RenderPass struct {
	enc *CommandEncoder
}

func (p *RenderPass) rec(format string, args ...any) { p.enc.dev.record(format, args...) }

func (p *RenderPass) SetPipeline(pl native.RenderPipeline) { p.rec("SetPipeline(%s)", labelOf(pl)) }

func (p *RenderPass) SetBindGroup(index uint32, g native.BindGroup, offsets []uint32) {
	p.rec("SetBindGroup(%d,%s,%v)", index, labelOf(g), offsets)
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buf native.Buffer, offset, _ uint64) {
	p.rec("SetVertexBuffer(%d,%s,%d)", slot, labelOf(buf), offset)
}

func (p *RenderPass) SetIndexBuffer(buf native.Buffer, _ gputypes.IndexFormat, offset, _ uint64) {
	p.rec("SetIndexBuffer(%s,%d)", labelOf(buf), offset)
}

func (p *RenderPass) SetViewport(x, y, w, h, minD, maxD float32) {
	p.rec("SetViewport(%g,%g,%g,%g,%g,%g)", x, y, w, h, minD, maxD)
}

func (p *RenderPass) SetScissorRect(x, y, w, h uint32) {
	p.rec("SetScissorRect(%d,%d,%d,%d)", x, y, w, h)
}

func (p *RenderPass) SetBlendConstant(c gputypes.Color) {
	p.rec("SetBlendConstant(%g,%g,%g,%g)", c.R, c.G, c.B, c.A)
}

func (p *RenderPass) SetStencilReference(ref uint32) { p.rec("SetStencilReference(%d)", ref) }

func (p *RenderPass) Draw(vc, ic, fv, fi uint32) { p.rec("Draw(%d,%d,%d,%d)", vc, ic, fv, fi) }

func (p *RenderPass) DrawIndexed(ic, inst, first uint32, base int32, fi uint32) {
	p.rec("DrawIndexed(%d,%d,%d,%d,%d)", ic, inst, first, base, fi)
}

func (p *RenderPass) DrawIndirect(buf native.Buffer, offset uint64) {
	p.rec("DrawIndirect(%s,%d)", labelOf(buf), offset)
}

func (p *RenderPass) DrawIndexedIndirect(buf native.Buffer, offset uint64) {
	p.rec("DrawIndexedIndirect(%s,%d)", labelOf(buf), offset)
}

func (p *RenderPass) End() {
	p.rec("EndRenderPass")
	p.enc.passOpen = false
}

// ComputePass is a fake native.ComputePassEncoder.
type ComputePass struct {
	enc *CommandEncoder
}

func (p *ComputePass) SetPipeline(pl native.ComputePipeline) {
	p.enc.dev.record("SetComputePipeline(%s)", labelOf(pl))
}

func (p *ComputePass) SetBindGroup(index uint32, g native.BindGroup, offsets []uint32) {
	p.enc.dev.record("SetBindGroup(%d,%s,%v)", index, labelOf(g), offsets)
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.enc.dev.record("Dispatch(%d,%d,%d)", x, y, z)
}

func (p *ComputePass) DispatchWorkgroupsIndirect(buf native.Buffer, offset uint64) {
	p.enc.dev.record("DispatchIndirect(%s,%d)", labelOf(buf), offset)
}

func (p *ComputePass) End() {
	p.enc.dev.record("EndComputePass")
	p.enc.passOpen = false
}

var (
	_ native.CommandEncoder     = (*CommandEncoder)(nil)
	_ native.RenderPassEncoder  = (*RenderPass)(nil)
	_ native.ComputePassEncoder = (*ComputePass)(nil)
)
