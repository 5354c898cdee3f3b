package webgpu

import (
	"testing"

	"github.com/gogpu/gpuhal/native"
)

func TestFence_IsDoneTracksCompletion(t *testing.T) {
	d, nd := newTestDevice(t)
	nd.HoldCompletions(true)

	f := d.CreateAndInsertFence()
	if f.IsDone() {
		t.Fatal("IsDone() = true before completion")
	}
	nd.Complete(f.future)
	if !f.IsDone() {
		t.Fatal("IsDone() = false after completion")
	}
	if !f.IsDone() {
		t.Error("IsDone() went back to false")
	}
	f.Deref()
}

func TestFence_SequenceIncreases(t *testing.T) {
	d, _ := newTestDevice(t)
	a := d.CreateAndInsertFence()
	b := d.CreateAndInsertFence()
	if b.Seq() <= a.Seq() {
		t.Errorf("Seq() = %d then %d, want increasing", a.Seq(), b.Seq())
	}
	for _, f := range []*Fence{a, b} {
		f.Wait()
		f.Deref()
	}
}

func TestFence_FreedAfterBothReferences(t *testing.T) {
	d, _ := newTestDevice(t)
	var freed []uint64
	d.fenceFreeHook = func(f *Fence) { freed = append(freed, f.Seq()) }

	f := d.CreateAndInsertFence()
	seq := f.Seq()
	f.Wait()
	if len(freed) != 0 {
		t.Fatalf("fence freed after the callback alone: %v", freed)
	}
	f.Deref()
	if len(freed) != 1 || freed[0] != seq {
		t.Errorf("freed = %v, want [%d]", freed, seq)
	}
	if live := d.fences.Live(); live != 0 {
		t.Errorf("fences.Live() = %d, want 0", live)
	}
}

func TestFence_DerefUnderflow(t *testing.T) {
	d, _ := newTestDevice(t)
	f := d.CreateAndInsertFence()
	f.Wait()
	f.Deref()
	expectFatalContains(t, f.Deref, "released more often")
}

func TestFence_WaitBlocksUntilComplete(t *testing.T) {
	d, nd := newTestDevice(t)
	nd.HoldCompletions(true)
	f := d.CreateAndInsertFence()

	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Wait() returned before completion")
	default:
	}
	nd.CompleteAll()
	<-done
	if !f.IsDone() {
		t.Error("IsDone() = false after Wait()")
	}
	f.Deref()
}

func TestFence_WaitSignaledPumpsEvents(t *testing.T) {
	d, nd := newTestDevice(t)
	nd.HoldCompletions(true)
	f := d.CreateAndInsertFence()
	nd.Complete(f.future)
	if !f.IsDone() {
		t.Fatal("IsDone() = false after completion")
	}

	fired := false
	later := nd.Queue().OnSubmittedWorkDone(func(native.WorkDoneStatus) { fired = true })
	nd.Complete(later)
	f.Wait()
	if !fired {
		t.Error("Wait() on a signaled fence did not run ready callbacks")
	}
	f.Deref()
}

func TestFence_SignaledByDeviceLoss(t *testing.T) {
	d, nd := newTestDevice(t)
	nd.HoldCompletions(true)
	f := d.CreateAndInsertFence()

	nd.LoseDevice(native.DeviceLostReasonDestroyed, "gone")
	f.Wait()
	if !f.IsDone() {
		t.Error("IsDone() = false after device loss")
	}
	f.Deref()
}
