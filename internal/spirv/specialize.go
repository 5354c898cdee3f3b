package spirv

import (
	"fmt"

	"github.com/gogpu/gpuhal"
)

// SpecConstant describes one specialization constant declaration.
type SpecConstant struct {
	// ResultID is the id the declaration defines.
	ResultID uint32

	// TypeID is the declared result type.
	TypeID uint32

	// SpecID is the value of the SpecId decoration. HasSpecID is false for
	// declarations without one (composites and OpSpecConstantOp).
	SpecID    uint32
	HasSpecID bool

	// Op is the declaring opcode.
	Op Op

	// Default is the literal payload of OpSpecConstant, or 0/1 for booleans.
	Default uint32
}

// isSpecOp reports whether op declares a specialization constant.
func isSpecOp(op Op) bool {
	return op >= OpSpecConstantTrue && op <= OpSpecConstantOp
}

// HasSpecConstants scans words for any OpSpecConstant* instruction without
// decoding the module. Malformed streams report false.
func HasSpecConstants(words []uint32) bool {
	if len(words) < headerWords || words[0] != Magic {
		return false
	}
	for i := headerWords; i < len(words); {
		count := int(words[i] >> 16)
		if count == 0 {
			return false
		}
		if isSpecOp(Op(words[i] & 0xFFFF)) {
			return true
		}
		i += count
	}
	return false
}

// HasSpecConstants reports whether the module declares any specialization
// constant.
func (m *Module) HasSpecConstants() bool {
	for _, in := range m.Insts {
		if isSpecOp(in.Op) {
			return true
		}
	}
	return false
}

// specIDs maps result ids to their SpecId decoration.
func (m *Module) specIDs() map[uint32]uint32 {
	ids := make(map[uint32]uint32)
	for _, in := range m.Insts {
		if in.Op == OpDecorate && len(in.Operands) >= 3 && in.Operands[1] == DecorationSpecID {
			ids[in.Operands[0]] = in.Operands[2]
		}
	}
	return ids
}

// SpecConstants lists the specialization constants in declaration order.
func (m *Module) SpecConstants() []SpecConstant {
	ids := m.specIDs()
	var out []SpecConstant
	for _, in := range m.Insts {
		if !isSpecOp(in.Op) || len(in.Operands) < 2 {
			continue
		}
		sc := SpecConstant{TypeID: in.Operands[0], ResultID: in.Operands[1], Op: in.Op}
		sc.SpecID, sc.HasSpecID = ids[sc.ResultID]
		switch in.Op {
		case OpSpecConstantTrue:
			sc.Default = 1
		case OpSpecConstant:
			if len(in.Operands) > 2 {
				sc.Default = in.Operands[2]
			}
		}
		out = append(out, sc)
	}
	return out
}

// SetDefaults overwrites the default value of every specialization constant
// whose SpecId appears in values. It returns the number of constants changed.
// Values for ids the module does not declare are ignored.
func (m *Module) SetDefaults(values map[uint32]gpuhal.SpecValue) int {
	if len(values) == 0 {
		return 0
	}
	ids := m.specIDs()
	n := 0
	for i := range m.Insts {
		in := &m.Insts[i]
		if len(in.Operands) < 2 {
			continue
		}
		specID, ok := ids[in.Operands[1]]
		if !ok {
			continue
		}
		v, ok := values[specID]
		if !ok {
			continue
		}
		switch in.Op {
		case OpSpecConstantTrue, OpSpecConstantFalse:
			if v.Bits != 0 {
				in.Op = OpSpecConstantTrue
			} else {
				in.Op = OpSpecConstantFalse
			}
			n++
		case OpSpecConstant:
			if len(in.Operands) < 3 {
				continue
			}
			in.Operands[2] = v.Bits
			// 64-bit literals carry a high word; sign-extend signed values.
			if len(in.Operands) > 3 {
				in.Operands[3] = 0
				if v.Kind == gpuhal.SpecKindInt && int32(v.Bits) < 0 { //nolint:gosec // bit reinterpretation
					in.Operands[3] = 0xFFFFFFFF
				}
			}
			n++
		}
	}
	return n
}

// Freeze turns every specialization constant into a regular constant and
// drops the SpecId decorations. OpSpecConstantOp is left for Fold.
func (m *Module) Freeze() {
	out := m.Insts[:0]
	for _, in := range m.Insts {
		switch in.Op {
		case OpDecorate:
			if len(in.Operands) >= 2 && in.Operands[1] == DecorationSpecID {
				continue
			}
		case OpSpecConstantTrue:
			in.Op = OpConstantTrue
		case OpSpecConstantFalse:
			in.Op = OpConstantFalse
		case OpSpecConstant:
			in.Op = OpConstant
		case OpSpecConstantComposite:
			in.Op = OpConstantComposite
		}
		out = append(out, in)
	}
	m.Insts = out
}

// scalarType is a 32-bit-or-narrower scalar type known to the folder.
type scalarType struct {
	isBool bool
	width  uint32
	signed bool
}

// narrow truncates v to the type width. Narrow literals are sign-extended
// for signed types and zero-extended otherwise.
func (t scalarType) narrow(v uint32) uint32 {
	shift := 32 - t.width
	if t.signed {
		return uint32(int32(v<<shift) >> shift) //nolint:gosec // bit reinterpretation
	}
	return v << shift >> shift
}

// folder evaluates OpSpecConstantOp over known constants.
type folder struct {
	types      map[uint32]scalarType
	values     map[uint32]uint32
	valueTypes map[uint32]uint32
	composites map[uint32][]uint32
}

// Fold replaces every OpSpecConstantOp whose operands are all constants with
// the equivalent OpConstant, OpConstantTrue or OpConstantFalse. Only 32-bit
// integer and boolean results are folded. It returns the number of
// instructions replaced. Call Freeze first so the operands are constants.
func (m *Module) Fold() int {
	f := folder{
		types:      make(map[uint32]scalarType),
		values:     make(map[uint32]uint32),
		valueTypes: make(map[uint32]uint32),
		composites: make(map[uint32][]uint32),
	}
	n := 0
	for i := range m.Insts {
		in := &m.Insts[i]
		ops := in.Operands
		if len(ops) == 0 {
			continue
		}
		if len(ops) < 2 && in.Op != OpTypeBool {
			continue
		}
		switch in.Op {
		case OpTypeBool:
			f.types[ops[0]] = scalarType{isBool: true}
		case OpTypeInt:
			if len(ops) >= 3 && ops[1] <= 32 {
				f.types[ops[0]] = scalarType{width: ops[1], signed: ops[2] != 0}
			}
		case OpConstantTrue:
			f.values[ops[1]] = 1
			f.valueTypes[ops[1]] = ops[0]
		case OpConstantFalse:
			f.values[ops[1]] = 0
			f.valueTypes[ops[1]] = ops[0]
		case OpConstant:
			if _, ok := f.types[ops[0]]; ok && len(ops) == 3 {
				f.values[ops[1]] = ops[2]
				f.valueTypes[ops[1]] = ops[0]
			}
		case OpConstantComposite:
			f.composites[ops[1]] = ops[2:]
		case OpSpecConstantOp:
			if len(ops) < 3 {
				continue
			}
			t, ok := f.types[ops[0]]
			if !ok {
				continue
			}
			v, ok := f.eval(Op(ops[2]), ops[3:]) //nolint:gosec // opcode literal
			if !ok {
				continue
			}
			result := ops[1]
			if !t.isBool && t.width < 32 {
				v = t.narrow(v)
			}
			f.values[result] = v
			f.valueTypes[result] = ops[0]
			switch {
			case t.isBool && v != 0:
				*in = Instruction{Op: OpConstantTrue, Operands: []uint32{ops[0], result}}
			case t.isBool:
				*in = Instruction{Op: OpConstantFalse, Operands: []uint32{ops[0], result}}
			default:
				*in = Instruction{Op: OpConstant, Operands: []uint32{ops[0], result, v}}
			}
			n++
		}
	}
	return n
}

func (f *folder) eval(op Op, args []uint32) (uint32, bool) {
	if op == OpCompositeExtract {
		return f.extract(args)
	}
	vals := make([]uint32, len(args))
	for i, id := range args {
		v, ok := f.values[id]
		if !ok {
			return 0, false
		}
		vals[i] = v
	}
	switch len(vals) {
	case 1:
		if op == OpUConvert || op == OpSConvert {
			return f.convert(op, args[0], vals[0])
		}
		return evalUnary(op, vals[0])
	case 2:
		return evalBinary(op, vals[0], vals[1])
	case 3:
		if op == OpSelect {
			if vals[0] != 0 {
				return vals[1], true
			}
			return vals[2], true
		}
	}
	return 0, false
}

// extract resolves OpCompositeExtract through nested constant composites.
func (f *folder) extract(args []uint32) (uint32, bool) {
	if len(args) < 2 {
		return 0, false
	}
	id := args[0]
	for _, idx := range args[1:] {
		members, ok := f.composites[id]
		if !ok || int(idx) >= len(members) {
			return 0, false
		}
		id = members[idx]
	}
	v, ok := f.values[id]
	return v, ok
}

// convert widens or narrows v from the scalar type of id. UConvert
// zero-extends from the source width and SConvert sign-extends; the caller
// narrows the result to the destination type.
func (f *folder) convert(op Op, id, v uint32) (uint32, bool) {
	src, ok := f.types[f.valueTypes[id]]
	if !ok || src.isBool {
		return 0, false
	}
	if src.width < 32 {
		v = scalarType{width: src.width, signed: op == OpSConvert}.narrow(v)
	}
	return v, true
}

func evalUnary(op Op, a uint32) (uint32, bool) {
	switch op {
	case OpSNegate:
		return -a, true
	case OpNot:
		return ^a, true
	case OpLogicalNot:
		return b2u(a == 0), true
	}
	return 0, false
}

//nolint:gosec // signed ops reinterpret the 32-bit payload
func evalBinary(op Op, a, b uint32) (uint32, bool) {
	sa, sb := int32(a), int32(b)
	switch op {
	case OpIAdd:
		return a + b, true
	case OpISub:
		return a - b, true
	case OpIMul:
		return a * b, true
	case OpUDiv:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case OpSDiv:
		if sb == 0 {
			return 0, false
		}
		return uint32(sa / sb), true
	case OpUMod:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case OpSRem:
		if sb == 0 {
			return 0, false
		}
		return uint32(sa % sb), true
	case OpSMod:
		if sb == 0 {
			return 0, false
		}
		r := sa % sb
		if r != 0 && (r < 0) != (sb < 0) {
			r += sb
		}
		return uint32(r), true
	case OpShiftLeftLogical, OpShiftRightLogical, OpShiftRightArithmetic:
		if b >= 32 {
			return 0, false
		}
		switch op {
		case OpShiftLeftLogical:
			return a << b, true
		case OpShiftRightLogical:
			return a >> b, true
		default:
			return uint32(sa >> b), true
		}
	case OpBitwiseOr:
		return a | b, true
	case OpBitwiseXor:
		return a ^ b, true
	case OpBitwiseAnd:
		return a & b, true
	case OpLogicalEqual:
		return b2u((a != 0) == (b != 0)), true
	case OpLogicalNotEqual:
		return b2u((a != 0) != (b != 0)), true
	case OpLogicalOr:
		return b2u(a != 0 || b != 0), true
	case OpLogicalAnd:
		return b2u(a != 0 && b != 0), true
	case OpIEqual:
		return b2u(a == b), true
	case OpINotEqual:
		return b2u(a != b), true
	case OpUGreaterThan:
		return b2u(a > b), true
	case OpSGreaterThan:
		return b2u(sa > sb), true
	case OpUGreaterThanEqual:
		return b2u(a >= b), true
	case OpSGreaterThanEqual:
		return b2u(sa >= sb), true
	case OpULessThan:
		return b2u(a < b), true
	case OpSLessThan:
		return b2u(sa < sb), true
	case OpULessThanEqual:
		return b2u(a <= b), true
	case OpSLessThanEqual:
		return b2u(sa <= sb), true
	}
	return 0, false
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Specialize applies values to a copy of words: set defaults, freeze, fold.
// The input slice is not modified.
func Specialize(words []uint32, values map[uint32]gpuhal.SpecValue) ([]uint32, error) {
	m, err := Parse(words)
	if err != nil {
		return nil, fmt.Errorf("spirv: specialize: %w", err)
	}
	m.SetDefaults(values)
	m.Freeze()
	m.Fold()
	return m.Words(), nil
}
