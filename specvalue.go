package gpuhal

import (
	"fmt"
	"math"
)

// SpecKind is the scalar type of a specialization constant value.
type SpecKind uint8

const (
	// SpecKindUint is a 32-bit unsigned integer.
	SpecKindUint SpecKind = iota
	// SpecKindInt is a 32-bit signed integer.
	SpecKindInt
	// SpecKindFloat is a 32-bit float.
	SpecKindFloat
	// SpecKindBool is a boolean.
	SpecKindBool
)

// SpecValue is the value of one specialization constant.
type SpecValue struct {
	Kind SpecKind
	// Bits is the 32-bit payload. Booleans use 0 and 1.
	Bits uint32
}

// SpecUint returns a uint specialization value.
func SpecUint(v uint32) SpecValue { return SpecValue{Kind: SpecKindUint, Bits: v} }

// SpecInt returns an int specialization value.
func SpecInt(v int32) SpecValue { return SpecValue{Kind: SpecKindInt, Bits: uint32(v)} } //nolint:gosec // bit reinterpretation

// SpecFloat returns a float specialization value.
func SpecFloat(v float32) SpecValue {
	return SpecValue{Kind: SpecKindFloat, Bits: math.Float32bits(v)}
}

// SpecBool returns a bool specialization value.
func SpecBool(v bool) SpecValue {
	if v {
		return SpecValue{Kind: SpecKindBool, Bits: 1}
	}
	return SpecValue{Kind: SpecKindBool}
}

// String formats the value according to its kind.
func (v SpecValue) String() string {
	switch v.Kind {
	case SpecKindUint:
		return fmt.Sprintf("%du", v.Bits)
	case SpecKindInt:
		return fmt.Sprintf("%d", int32(v.Bits)) //nolint:gosec // bit reinterpretation
	case SpecKindFloat:
		return fmt.Sprintf("%gf", math.Float32frombits(v.Bits))
	case SpecKindBool:
		return fmt.Sprintf("%t", v.Bits != 0)
	default:
		return fmt.Sprintf("Unknown(%d):%#x", int(v.Kind), v.Bits)
	}
}
