// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"sync/atomic"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Fence tracks the completion of all work submitted before it was inserted.
//
// A fence starts with two references: one held by the queue's work-done
// callback and one by the owner. The callback drops its reference exactly
// once whatever the status; the owner drops its reference with Deref once
// it no longer needs the fence. At zero the record returns to the device's
// fence pool.
//
// Usage:
//
//	f := dev.CreateAndInsertFence()
//	...
//	f.Wait()
//	f.Deref()
type Fence struct {
	dev      *Device
	future   native.Future
	seq      uint64
	refs     atomic.Int32
	signaled atomic.Bool
}

// Seq returns the fence's device-unique sequence number.
func (f *Fence) Seq() uint64 { return f.seq }

// CreateAndInsertFence registers a work-done callback on the queue and
// returns without waiting.
func (d *Device) CreateAndInsertFence() *Fence {
	f, _ := d.fences.New()
	f.dev = d
	f.seq = d.fenceSeq.Add(1)
	f.refs.Store(2)
	f.future = d.nd.Queue().OnSubmittedWorkDone(f.complete)
	return f
}

// complete is the work-done callback.
func (f *Fence) complete(status native.WorkDoneStatus) {
	switch status {
	case native.WorkDoneStatusSuccess:
	case native.WorkDoneStatusDeviceLost:
		f.dev.log.Error("webgpu: fence signaled by device loss", "fence", f.seq)
	default:
		f.dev.log.Error("webgpu: submitted work failed", "fence", f.seq, "status", status)
	}
	f.signaled.Store(true)
	f.Deref()
}

// IsDone reports whether the fence has signaled. It never blocks.
func (f *Fence) IsDone() bool {
	if f.signaled.Load() {
		return true
	}
	f.dev.nd.WaitAny(f.future, 0)
	return f.signaled.Load()
}

// Wait blocks until the fence signals. Native events are pumped before and
// after the wait so callbacks that became ready meanwhile also run. A fence
// that has already signaled still pumps once.
func (f *Fence) Wait() {
	if f.signaled.Load() {
		f.dev.nd.Tick()
		return
	}
	f.dev.nd.Tick()
	if !f.signaled.Load() {
		if st := f.dev.nd.WaitAny(f.future, native.WaitForever); st != native.WaitStatusSuccess && !f.signaled.Load() {
			f.dev.log.Error("webgpu: fence wait failed", "fence", f.seq, "status", st)
			return
		}
	}
	f.dev.nd.Tick()
}

// Deref drops one reference. The last reference returns the fence to the
// pool.
func (f *Fence) Deref() {
	switch n := f.refs.Add(-1); {
	case n == 0:
		d := f.dev
		if hook := d.fenceFreeHook; hook != nil {
			hook(f)
		}
		d.fences.Delete(f)
	case n < 0:
		gpuhal.Fatalf("Fence.Deref", "fence %d released more often than referenced", f.seq)
	}
}
