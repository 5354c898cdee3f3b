package gpuhal

import (
	"errors"
	"fmt"
)

// Contract errors.
var (
	// ErrContractViolation classifies a FatalError caused by a programming
	// error in the calling code.
	ErrContractViolation = errors.New("gpuhal: contract violation")

	// ErrUnimplemented classifies a FatalError raised by an operation the
	// active backend does not implement.
	ErrUnimplemented = errors.New("gpuhal: unimplemented")

	// ErrDeviceLost classifies a FatalError raised when the device is lost
	// for any reason other than intentional destruction.
	ErrDeviceLost = errors.New("gpuhal: device lost")

	// ErrInvalidHandle is returned when a handle is zero or stale.
	ErrInvalidHandle = errors.New("gpuhal: invalid handle")
)

// FatalError is the panic value used by Fatalf.
//
// Fatal conditions are not recoverable: continuing would operate on
// undefined native state. Tests and host applications that want to report
// the diagnostic before exiting can recover the value and inspect it with
// errors.As / errors.Is.
type FatalError struct {
	// Op names the operation that detected the violation.
	Op string

	// Msg is the formatted diagnostic.
	Msg string

	// Kind is one of ErrContractViolation, ErrUnimplemented or ErrDeviceLost.
	Kind error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("gpuhal: fatal: %s: %s", e.Op, e.Msg)
}

// Unwrap returns the classification sentinel.
func (e *FatalError) Unwrap() error {
	return e.Kind
}

// Fatalf reports a contract violation and aborts.
//
// The diagnostic is logged at error level through Logger before the panic,
// so it reaches the configured sink even when the panic is not recovered.
func Fatalf(op, format string, args ...any) {
	abort(op, ErrContractViolation, fmt.Sprintf(format, args...))
}

// Unimplemented aborts with an "unimplemented" diagnostic for op.
// It marks a known gap in a backend rather than silently dropping the call.
func Unimplemented(op string) {
	abort(op, ErrUnimplemented, "not implemented by this backend")
}

// DeviceLostf aborts after an unexpected device loss.
func DeviceLostf(op, format string, args ...any) {
	abort(op, ErrDeviceLost, fmt.Sprintf(format, args...))
}

func abort(op string, kind error, msg string) {
	Logger().Error("gpuhal: fatal", "op", op, "error", msg)
	panic(&FatalError{Op: op, Msg: msg, Kind: kind})
}
