//go:build !nogpu

package halnative

import (
	"bytes"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpuhal/native"
)

// heldQueue wraps a noop queue and reports completion only up to a
// test-controlled index.
type heldQueue struct {
	hal.Queue
	completed atomic.Uint64
}

func (q *heldQueue) PollCompleted() uint64 {
	return min(q.completed.Load(), q.Queue.PollCompleted())
}

// openNoop opens the noop backend and releases it at cleanup.
func openNoop(t *testing.T) *Device {
	t.Helper()
	d, err := Open(Config{Backends: []gputypes.Backend{gputypes.BackendEmpty}})
	if err != nil {
		t.Fatalf("Open(noop) error = %v", err)
	}
	t.Cleanup(d.Release)
	return d
}

// openHeld opens a noop device whose queue completes only what the test
// allows through the returned heldQueue.
func openHeld(t *testing.T) (*Device, *heldQueue) {
	t.Helper()
	base := openNoop(t)
	q := &heldQueue{Queue: base.queue.raw}
	d := newDevice(base.raw, q, base.adapter, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	d.info = base.info
	return d, q
}

// submitEmpty records and submits an empty command buffer.
func submitEmpty(t *testing.T, d *Device) {
	t.Helper()
	enc, err := d.CreateCommandEncoder("empty")
	if err != nil {
		t.Fatalf("CreateCommandEncoder() error = %v", err)
	}
	cb, err := enc.Finish("empty")
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	enc.Release()
	d.Queue().Submit(cb)
	cb.Release()
}

func mustBuffer(t *testing.T, d *Device, size uint64, usage gputypes.BufferUsage) *Buffer {
	t.Helper()
	b, err := d.CreateBuffer(&native.BufferDescriptor{Label: "buf", Size: size, Usage: usage})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	return b.(*Buffer)
}

func pendingReleases(d *Device) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.releases)
}
