package nativetest

import (
	"github.com/gogpu/gpuhal/native"
)

// Queue is the fake native.Queue of a Device.
type Queue struct {
	dev *Device
}

// Submit executes the deferred copies of each command buffer in order.
func (q *Queue) Submit(cmds ...native.CommandBuffer) {
	q.dev.record("Submit(%d)", len(cmds))
	for _, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok {
			continue
		}
		for _, op := range cb.ops {
			op()
		}
	}
}

// WriteBuffer copies data into the buffer immediately.
func (q *Queue) WriteBuffer(buf native.Buffer, offset uint64, data []byte) {
	q.dev.record("WriteBuffer(%s,%d,%d)", labelOf(buf), offset, len(data))
	if b, ok := buf.(*Buffer); ok {
		b.write(offset, data)
	}
}

// WriteTexture records the upload. Texel contents are not stored.
func (q *Queue) WriteTexture(dst *native.TexelCopyTextureInfo, data []byte, layout native.TexelCopyBufferLayout, size native.Extent3D) {
	q.dev.record("WriteTexture(%s,%d,%dx%dx%d,bpr=%d)", labelOf(dst.Texture), len(data),
		size.Width, size.Height, size.DepthOrArrayLayers, layout.BytesPerRow)
}

// OnSubmittedWorkDone registers a completion callback. Unless completions
// are held, the work is ready immediately and the callback fires on the
// next Tick or WaitAny.
func (q *Queue) OnSubmittedWorkDone(cb func(native.WorkDoneStatus)) native.Future {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextFuture++
	f := d.nextFuture
	d.work = append(d.work, &pendingWork{future: f, cb: cb, ready: !d.hold || d.lost})
	d.calls = append(d.calls, "OnSubmittedWorkDone")
	return f
}

var _ native.Queue = (*Queue)(nil)
