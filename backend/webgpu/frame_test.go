// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"testing"
	"time"
)

func TestFrameRing_Backpressure(t *testing.T) {
	d, nd := newTestDevice(t, WithMaxFramesInFlight(2))
	nd.HoldCompletions(true)

	for i := 0; i < 2; i++ {
		d.BeginFrame()
		d.EndFrame()
	}
	if got := d.FrameRing().InFlight(); got != 2 {
		t.Fatalf("InFlight() = %d, want 2", got)
	}
	first := d.FrameRing().slots[0].fence

	began := make(chan struct{})
	go func() {
		d.BeginFrame()
		close(began)
	}()

	select {
	case <-began:
		t.Fatal("BeginFrame() returned while frame 0 was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	nd.Complete(first.future)
	select {
	case <-began:
	case <-time.After(5 * time.Second):
		t.Fatal("BeginFrame() still blocked after frame 0 completed")
	}
	if got := d.FrameRing().InFlight(); got != 1 {
		t.Errorf("InFlight() = %d during frame 2, want 1", got)
	}

	d.EndFrame()
	nd.HoldCompletions(false)
	nd.CompleteAll()
	d.DeviceWaitIdle()
	if got := d.FrameRing().InFlight(); got != 0 {
		t.Errorf("InFlight() = %d after DeviceWaitIdle, want 0", got)
	}
	if d.Frame() != 3 {
		t.Errorf("Frame() = %d, want 3", d.Frame())
	}
}

func TestFrameRing_SlotContexts(t *testing.T) {
	d, _ := newTestDevice(t, WithMaxFramesInFlight(3))
	if d.FrameRing().Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.FrameRing().Len())
	}
	want := []string{"frame0", "frame1", "frame2", "frame0"}
	for i, label := range want {
		ctx := d.BeginFrame().(*CommandContext)
		if ctx.Label() != label {
			t.Errorf("frame %d context = %q, want %q", i, ctx.Label(), label)
		}
		if ctx.State() != ContextStateEncoding {
			t.Errorf("frame %d State() = %s, want Encoding", i, ctx.State())
		}
		d.EndFrame()
	}
}

func TestFrameRing_Misuse(t *testing.T) {
	d, _ := newTestDevice(t)

	expectFatalContains(t, func() { NewFrameRing(d, 0) }, "at least 1")
	expectFatalContains(t, func() { NewFrameRing(d, 1).End(nil) }, "no frame begun")
	expectFatalContains(t, d.EndFrame, "no frame begun")

	d.BeginFrame()
	expectFatalContains(t, func() { d.BeginFrame() }, "not ended")
	d.EndFrame()
}

func TestFrameRing_SingleSlotWaitsEveryFrame(t *testing.T) {
	d, nd := newTestDevice(t, WithMaxFramesInFlight(1))
	d.BeginFrame()
	d.EndFrame()
	d.BeginFrame()
	d.EndFrame()
	if got := countPrefix(nd.Calls(), "OnSubmittedWorkDone"); got != 2 {
		t.Errorf("fences inserted = %d, want 2", got)
	}
	if got := d.FrameRing().InFlight(); got > 1 {
		t.Errorf("InFlight() = %d with one slot", got)
	}
}
