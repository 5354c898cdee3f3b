package gpuhal

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// catchFatal runs fn and returns the FatalError it panicked with, or nil.
func catchFatal(t *testing.T, fn func()) (fe *FatalError) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok || !errors.As(err, &fe) {
				t.Fatalf("panic value %v is not a *FatalError", r)
			}
		}
	}()
	fn()
	return nil
}

func TestFatalf(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	fe := catchFatal(t, func() { Fatalf("SetBuffer", "binding %d not in layout", 7) })
	if fe == nil {
		t.Fatal("Fatalf() did not panic")
	}
	if fe.Op != "SetBuffer" {
		t.Errorf("Op = %q, want %q", fe.Op, "SetBuffer")
	}
	if !errors.Is(fe, ErrContractViolation) {
		t.Errorf("errors.Is(%v, ErrContractViolation) = false", fe)
	}
	if !strings.Contains(fe.Error(), "binding 7 not in layout") {
		t.Errorf("Error() = %q, missing diagnostic", fe.Error())
	}
	if !strings.Contains(buf.String(), "binding 7 not in layout") {
		t.Errorf("diagnostic was not logged: %s", buf.String())
	}
}

func TestUnimplementedAndDeviceLost(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		kind error
	}{
		{"unimplemented", func() { Unimplemented("SetStencilReference") }, ErrUnimplemented},
		{"device lost", func() { DeviceLostf("device", "reason %s", "crashed") }, ErrDeviceLost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := catchFatal(t, tt.fn)
			if fe == nil {
				t.Fatal("expected panic")
			}
			if !errors.Is(fe, tt.kind) {
				t.Errorf("Kind = %v, want %v", fe.Kind, tt.kind)
			}
		})
	}
}
