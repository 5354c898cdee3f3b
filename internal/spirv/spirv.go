// Package spirv reads and rewrites SPIR-V modules at the word level.
//
// It implements the small subset the HAL needs: specialization constant
// discovery and late binding (set defaults, freeze, constant folding) and
// resource binding reflection. It is not a validator; malformed modules are
// rejected only when the instruction stream itself cannot be walked.
package spirv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the SPIR-V magic number in host word order.
const Magic uint32 = 0x07230203

// headerWords is the number of words in a module header.
const headerWords = 5

// Errors.
var (
	// ErrTooShort is returned for modules shorter than the header.
	ErrTooShort = errors.New("spirv: module shorter than header")

	// ErrBadMagic is returned when the first word is not Magic.
	ErrBadMagic = errors.New("spirv: bad magic number")

	// ErrBadInstruction is returned when an instruction word count is zero
	// or runs past the end of the module.
	ErrBadInstruction = errors.New("spirv: malformed instruction")

	// ErrUnalignedBytes is returned by WordsFromBytes for lengths not divisible by 4.
	ErrUnalignedBytes = errors.New("spirv: byte length is not a multiple of 4")
)

// Op is a SPIR-V opcode.
type Op uint16

// Opcodes used by this package.
const (
	OpName                  Op = 5
	OpEntryPoint            Op = 15
	OpCapability            Op = 17
	OpTypeVoid              Op = 19
	OpTypeBool              Op = 20
	OpTypeInt               Op = 21
	OpTypeFloat             Op = 22
	OpTypeVector            Op = 23
	OpTypeImage             Op = 25
	OpTypeSampler           Op = 26
	OpTypeSampledImage      Op = 27
	OpTypeArray             Op = 28
	OpTypeRuntimeArray      Op = 29
	OpTypeStruct            Op = 30
	OpTypePointer           Op = 32
	OpConstantTrue          Op = 41
	OpConstantFalse         Op = 42
	OpConstant              Op = 43
	OpConstantComposite     Op = 44
	OpSpecConstantTrue      Op = 48
	OpSpecConstantFalse     Op = 49
	OpSpecConstant          Op = 50
	OpSpecConstantComposite Op = 51
	OpSpecConstantOp        Op = 52
	OpVariable              Op = 59
	OpDecorate              Op = 71
	OpMemberDecorate        Op = 72
	OpCompositeExtract      Op = 81
	OpUConvert              Op = 113
	OpSConvert              Op = 114
	OpSNegate               Op = 126
	OpIAdd                  Op = 128
	OpISub                  Op = 130
	OpIMul                  Op = 132
	OpUDiv                  Op = 134
	OpSDiv                  Op = 135
	OpUMod                  Op = 137
	OpSRem                  Op = 138
	OpSMod                  Op = 139
	OpLogicalEqual          Op = 164
	OpLogicalNotEqual       Op = 165
	OpLogicalOr             Op = 166
	OpLogicalAnd            Op = 167
	OpLogicalNot            Op = 168
	OpSelect                Op = 169
	OpIEqual                Op = 170
	OpINotEqual             Op = 171
	OpUGreaterThan          Op = 172
	OpSGreaterThan          Op = 173
	OpUGreaterThanEqual     Op = 174
	OpSGreaterThanEqual     Op = 175
	OpULessThan             Op = 176
	OpSLessThan             Op = 177
	OpULessThanEqual        Op = 178
	OpSLessThanEqual        Op = 179
	OpShiftRightLogical     Op = 194
	OpShiftRightArithmetic  Op = 195
	OpShiftLeftLogical      Op = 196
	OpBitwiseOr             Op = 197
	OpBitwiseXor            Op = 198
	OpBitwiseAnd            Op = 199
	OpNot                   Op = 200
)

// Decorations used by this package.
const (
	DecorationSpecID        uint32 = 1
	DecorationBlock         uint32 = 2
	DecorationBufferBlock   uint32 = 3
	DecorationNonWritable   uint32 = 24
	DecorationNonReadable   uint32 = 25
	DecorationBinding       uint32 = 33
	DecorationDescriptorSet uint32 = 34
)

// Storage classes used by this package.
const (
	StorageClassUniformConstant uint32 = 0
	StorageClassInput           uint32 = 1
	StorageClassUniform         uint32 = 2
	StorageClassOutput          uint32 = 3
	StorageClassPushConstant    uint32 = 9
	StorageClassStorageBuffer   uint32 = 12
)

// Execution models used by this package.
const (
	ExecutionModelVertex    uint32 = 0
	ExecutionModelFragment  uint32 = 4
	ExecutionModelGLCompute uint32 = 5
)

// Instruction is one decoded instruction. Operands excludes the leading
// word-count/opcode word.
type Instruction struct {
	Op       Op
	Operands []uint32
}

// Module is a decoded SPIR-V module.
type Module struct {
	Header [headerWords]uint32
	Insts  []Instruction
}

// Parse decodes words into a Module. The operand slices are copies, so the
// module may be rewritten without touching words.
func Parse(words []uint32) (*Module, error) {
	if len(words) < headerWords {
		return nil, ErrTooShort
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, words[0])
	}
	m := &Module{}
	copy(m.Header[:], words[:headerWords])

	for i := headerWords; i < len(words); {
		count := int(words[i] >> 16)
		op := Op(words[i] & 0xFFFF)
		if count == 0 || i+count > len(words) {
			return nil, fmt.Errorf("%w: opcode %d at word %d", ErrBadInstruction, op, i)
		}
		operands := make([]uint32, count-1)
		copy(operands, words[i+1:i+count])
		m.Insts = append(m.Insts, Instruction{Op: op, Operands: operands})
		i += count
	}
	return m, nil
}

// Words encodes the module into a new word slice.
func (m *Module) Words() []uint32 {
	n := headerWords
	for _, in := range m.Insts {
		n += 1 + len(in.Operands)
	}
	out := make([]uint32, 0, n)
	out = append(out, m.Header[:]...)
	for _, in := range m.Insts {
		out = append(out, uint32(len(in.Operands)+1)<<16|uint32(in.Op)) //nolint:gosec // instruction lengths fit in 16 bits
		out = append(out, in.Operands...)
	}
	return out
}

// Bound returns the id bound from the header.
func (m *Module) Bound() uint32 { return m.Header[3] }

// WordsFromBytes converts a little-endian SPIR-V byte stream into words.
func WordsFromBytes(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, ErrUnalignedBytes
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}

// decodeString decodes a nul-terminated literal string starting at
// operands[0], returning it and the number of words it occupied.
func decodeString(operands []uint32) (string, int) {
	var buf []byte
	for i, w := range operands {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf), i + 1
			}
			buf = append(buf, c)
		}
	}
	return string(buf), len(operands)
}

// encodeString encodes s as a nul-terminated, word-padded literal.
func encodeString(s string) []uint32 {
	words := make([]uint32, len(s)/4+1)
	for i := 0; i < len(s); i++ {
		words[i/4] |= uint32(s[i]) << (8 * (i % 4))
	}
	return words
}
