// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halnative

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuhal/native"
)

// Queue implements native.Queue over a hal.Queue. HAL errors are reported
// through the device: loss triggers the device-lost callback, anything
// else is logged.
type Queue struct {
	dev *Device
	raw hal.Queue
}

// Submit implements native.Queue.
func (q *Queue) Submit(cmds ...native.CommandBuffer) {
	d := q.dev
	if d.isLost() {
		d.log.Warn("halnative: submit on lost device dropped", "buffers", len(cmds))
		return
	}
	raws := make([]hal.CommandBuffer, len(cmds))
	for i, c := range cmds {
		raws[i] = c.(*CommandBuffer).raw
	}
	index, err := q.raw.Submit(raws)
	if err != nil {
		d.check("Submit", err)
		return
	}

	d.mu.Lock()
	if index > d.submitted {
		d.submitted = index
	}
	d.mu.Unlock()
	d.log.Debug("halnative: submitted", "buffers", len(cmds), "index", index)
}

// WriteBuffer implements native.Queue.
func (q *Queue) WriteBuffer(buf native.Buffer, offset uint64, data []byte) {
	q.dev.check("WriteBuffer", q.raw.WriteBuffer(rawBuffer(buf), offset, data))
}

// WriteTexture implements native.Queue.
func (q *Queue) WriteTexture(dst *native.TexelCopyTextureInfo, data []byte, layout native.TexelCopyBufferLayout, size native.Extent3D) {
	t := copyTexture(dst)
	l := dataLayout(layout)
	e := extent(size)
	q.dev.check("WriteTexture", q.raw.WriteTexture(&t, data, &l, &e))
}

// OnSubmittedWorkDone implements native.Queue. The callback is tied to the
// latest submission index and fires from Tick once the queue reports it
// completed.
func (q *Queue) OnSubmittedWorkDone(cb func(native.WorkDoneStatus)) native.Future {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextFuture++
	f := d.nextFuture
	d.work = append(d.work, pendingWork{future: f, index: d.submitted, cb: cb})
	return f
}

var _ native.Queue = (*Queue)(nil)
