// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halnative

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuhal/native"
)

// CommandEncoder implements native.CommandEncoder. The HAL encoder backs
// the command buffer it produced, so it is destroyed only after both the
// encoder and its command buffer are released.
type CommandEncoder struct {
	dev      *Device
	raw      hal.CommandEncoder
	label    string
	finished bool
	passOpen bool
	refs     atomic.Int32
	released atomic.Bool
}

func (e *CommandEncoder) unref() {
	if e.refs.Add(-1) == 0 {
		raw := e.raw
		e.dev.deferRelease(raw.Destroy)
	}
}

// Release implements native.Resource. An unfinished recording is discarded.
func (e *CommandEncoder) Release() {
	if e.released.Swap(true) {
		return
	}
	if !e.finished {
		e.raw.DiscardEncoding()
	}
	e.unref()
}

// BeginRenderPass implements native.CommandEncoder.
func (e *CommandEncoder) BeginRenderPass(desc *native.RenderPassDescriptor) native.RenderPassEncoder {
	e.passOpen = true
	return &RenderPass{enc: e, raw: e.raw.BeginRenderPass(renderPass(desc))}
}

// BeginComputePass implements native.CommandEncoder.
func (e *CommandEncoder) BeginComputePass(label string) native.ComputePassEncoder {
	e.passOpen = true
	return &ComputePass{enc: e, raw: e.raw.BeginComputePass(&hal.ComputePassDescriptor{Label: label})}
}

// CopyBufferToBuffer implements native.CommandEncoder.
func (e *CommandEncoder) CopyBufferToBuffer(src native.Buffer, srcOffset uint64, dst native.Buffer, dstOffset, size uint64) {
	e.raw.CopyBufferToBuffer(rawBuffer(src), rawBuffer(dst), []hal.BufferCopy{
		{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size},
	})
}

// CopyBufferToTexture implements native.CommandEncoder.
func (e *CommandEncoder) CopyBufferToTexture(src native.Buffer, layout native.TexelCopyBufferLayout, dst *native.TexelCopyTextureInfo, size native.Extent3D) {
	e.raw.CopyBufferToTexture(rawBuffer(src), rawTexture(dst.Texture), []hal.BufferTextureCopy{
		{BufferLayout: dataLayout(layout), TextureBase: copyTexture(dst), Size: extent(size)},
	})
}

// CopyTextureToBuffer implements native.CommandEncoder.
func (e *CommandEncoder) CopyTextureToBuffer(src *native.TexelCopyTextureInfo, dst native.Buffer, layout native.TexelCopyBufferLayout, size native.Extent3D) {
	e.raw.CopyTextureToBuffer(rawTexture(src.Texture), rawBuffer(dst), []hal.BufferTextureCopy{
		{BufferLayout: dataLayout(layout), TextureBase: copyTexture(src), Size: extent(size)},
	})
}

// Finish implements native.CommandEncoder.
func (e *CommandEncoder) Finish(label string) (native.CommandBuffer, error) {
	if e.finished {
		return nil, native.ErrEncoderFinished
	}
	if e.passOpen {
		return nil, native.ErrPassOpen
	}
	raw, err := e.raw.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("halnative: end encoding %q: %w", label, err)
	}
	e.finished = true
	e.refs.Add(1)
	return &CommandBuffer{enc: e, raw: raw}, nil
}

// CommandBuffer implements native.CommandBuffer. Releasing a submitted
// buffer frees it once its submission completes.
type CommandBuffer struct {
	enc      *CommandEncoder
	raw      hal.CommandBuffer
	released atomic.Bool
}

// Release implements native.Resource.
func (c *CommandBuffer) Release() {
	if c.released.Swap(true) {
		return
	}
	d := c.enc.dev
	raw := c.raw
	d.deferRelease(func() { d.raw.FreeCommandBuffer(raw) })
	c.enc.unref()
}

// RenderPass implements native.RenderPassEncoder.
type RenderPass struct {
	enc *CommandEncoder
	raw hal.RenderPassEncoder
}

func (p *RenderPass) SetPipeline(pl native.RenderPipeline) {
	p.raw.SetPipeline(pl.(*RenderPipeline).raw)
}

func (p *RenderPass) SetBindGroup(index uint32, g native.BindGroup, offsets []uint32) {
	p.raw.SetBindGroup(index, g.(*BindGroup).raw, offsets)
}

// SetVertexBuffer binds buf from offset to its end; the HAL takes no size.
func (p *RenderPass) SetVertexBuffer(slot uint32, buf native.Buffer, offset, _ uint64) {
	p.raw.SetVertexBuffer(slot, rawBuffer(buf), offset)
}

func (p *RenderPass) SetIndexBuffer(buf native.Buffer, format gputypes.IndexFormat, offset, _ uint64) {
	p.raw.SetIndexBuffer(rawBuffer(buf), format, offset)
}

func (p *RenderPass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.raw.SetViewport(x, y, w, h, minDepth, maxDepth)
}

func (p *RenderPass) SetScissorRect(x, y, w, h uint32) { p.raw.SetScissorRect(x, y, w, h) }

func (p *RenderPass) SetBlendConstant(c gputypes.Color) { p.raw.SetBlendConstant(&c) }

func (p *RenderPass) SetStencilReference(ref uint32) { p.raw.SetStencilReference(ref) }

func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.raw.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.raw.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *RenderPass) DrawIndirect(buf native.Buffer, offset uint64) {
	p.raw.DrawIndirect(rawBuffer(buf), offset)
}

func (p *RenderPass) DrawIndexedIndirect(buf native.Buffer, offset uint64) {
	p.raw.DrawIndexedIndirect(rawBuffer(buf), offset)
}

func (p *RenderPass) End() {
	p.raw.End()
	p.enc.passOpen = false
}

// ComputePass implements native.ComputePassEncoder.
type ComputePass struct {
	enc *CommandEncoder
	raw hal.ComputePassEncoder
}

func (p *ComputePass) SetPipeline(pl native.ComputePipeline) {
	p.raw.SetPipeline(pl.(*ComputePipeline).raw)
}

func (p *ComputePass) SetBindGroup(index uint32, g native.BindGroup, offsets []uint32) {
	p.raw.SetBindGroup(index, g.(*BindGroup).raw, offsets)
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) { p.raw.Dispatch(x, y, z) }

func (p *ComputePass) DispatchWorkgroupsIndirect(buf native.Buffer, offset uint64) {
	p.raw.DispatchIndirect(rawBuffer(buf), offset)
}

func (p *ComputePass) End() {
	p.raw.End()
	p.enc.passOpen = false
}

var (
	_ native.CommandEncoder     = (*CommandEncoder)(nil)
	_ native.CommandBuffer      = (*CommandBuffer)(nil)
	_ native.RenderPassEncoder  = (*RenderPass)(nil)
	_ native.ComputePassEncoder = (*ComputePass)(nil)
)
