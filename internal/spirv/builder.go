package spirv

import "fmt"

// Additional opcodes emitted by Builder.
const (
	opMemoryModel  Op = 14
	opTypeFunction Op = 33
	opFunction     Op = 54
	opFunctionEnd  Op = 56
	opLabel        Op = 248
	opReturn       Op = 253
)

const capabilityShader = 1

// Builder assembles small SPIR-V modules for tests and tools.
//
// It emits a logical layout (capabilities, memory model, entry points,
// annotations, globals, functions) with one empty function per entry point.
// The modules are well-formed for this package; they are not meant to pass a
// driver's validator.
type Builder struct {
	next        uint32
	entries     []Instruction
	annotations []Instruction
	globals     []Instruction
	functions   []Instruction
	typeCache   map[string]uint32
	voidFn      uint32
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{next: 1, typeCache: make(map[string]uint32)}
}

// ID allocates a fresh result id.
func (b *Builder) ID() uint32 {
	id := b.next
	b.next++
	return id
}

func (b *Builder) global(op Op, operands ...uint32) {
	b.globals = append(b.globals, Instruction{Op: op, Operands: operands})
}

func (b *Builder) decorate(id, deco uint32, literals ...uint32) {
	b.annotations = append(b.annotations, Instruction{Op: OpDecorate, Operands: append([]uint32{id, deco}, literals...)})
}

// typeID returns a cached type id, declaring it on first use.
func (b *Builder) typeID(op Op, operands ...uint32) uint32 {
	key := fmt.Sprint(op, operands)
	if id, ok := b.typeCache[key]; ok {
		return id
	}
	id := b.ID()
	b.global(op, append([]uint32{id}, operands...)...)
	b.typeCache[key] = id
	return id
}

// TypeBool returns the bool type.
func (b *Builder) TypeBool() uint32 { return b.typeID(OpTypeBool) }

// TypeInt returns an integer type.
func (b *Builder) TypeInt(width uint32, signed bool) uint32 {
	return b.typeID(OpTypeInt, width, b2u(signed))
}

// TypeUint32 returns the 32-bit unsigned integer type.
func (b *Builder) TypeUint32() uint32 { return b.TypeInt(32, false) }

// TypeInt32 returns the 32-bit signed integer type.
func (b *Builder) TypeInt32() uint32 { return b.TypeInt(32, true) }

// TypeFloat32 returns the 32-bit float type.
func (b *Builder) TypeFloat32() uint32 { return b.typeID(OpTypeFloat, 32) }

// EntryPoint declares an entry point with an empty body.
func (b *Builder) EntryPoint(model uint32, name string) uint32 {
	if b.voidFn == 0 {
		void := b.typeID(OpTypeVoid)
		b.voidFn = b.typeID(opTypeFunction, void)
	}
	fn := b.ID()
	operands := append([]uint32{model, fn}, encodeString(name)...)
	b.entries = append(b.entries, Instruction{Op: OpEntryPoint, Operands: operands})
	b.functions = append(b.functions,
		Instruction{Op: opFunction, Operands: []uint32{b.typeID(OpTypeVoid), fn, 0, b.voidFn}},
		Instruction{Op: opLabel, Operands: []uint32{b.ID()}},
		Instruction{Op: opReturn},
		Instruction{Op: opFunctionEnd},
	)
	return fn
}

// Constant declares a scalar constant.
func (b *Builder) Constant(typ, value uint32) uint32 {
	id := b.ID()
	b.global(OpConstant, typ, id, value)
	return id
}

// ConstantComposite declares a constant composite of the given members.
func (b *Builder) ConstantComposite(typ uint32, members ...uint32) uint32 {
	id := b.ID()
	b.global(OpConstantComposite, append([]uint32{typ, id}, members...)...)
	return id
}

// TypeVector returns a vector type.
func (b *Builder) TypeVector(component, count uint32) uint32 {
	return b.typeID(OpTypeVector, component, count)
}

// SpecConstant declares a scalar specialization constant with a SpecId.
func (b *Builder) SpecConstant(typ, specID, value uint32) uint32 {
	id := b.ID()
	b.global(OpSpecConstant, typ, id, value)
	b.decorate(id, DecorationSpecID, specID)
	return id
}

// SpecConstantBool declares a boolean specialization constant with a SpecId.
func (b *Builder) SpecConstantBool(specID uint32, value bool) uint32 {
	id := b.ID()
	op := OpSpecConstantFalse
	if value {
		op = OpSpecConstantTrue
	}
	b.global(op, b.TypeBool(), id)
	b.decorate(id, DecorationSpecID, specID)
	return id
}

// SpecConstantOp declares an OpSpecConstantOp computing op over operands.
func (b *Builder) SpecConstantOp(typ uint32, op Op, operands ...uint32) uint32 {
	id := b.ID()
	b.global(OpSpecConstantOp, append([]uint32{typ, id, uint32(op)}, operands...)...)
	return id
}

func (b *Builder) variable(pointee, class, set, binding uint32) uint32 {
	ptr := b.typeID(OpTypePointer, class, pointee)
	id := b.ID()
	b.global(OpVariable, ptr, id, class)
	b.decorate(id, DecorationDescriptorSet, set)
	b.decorate(id, DecorationBinding, binding)
	return id
}

func (b *Builder) blockStruct() uint32 {
	id := b.ID()
	b.global(OpTypeStruct, id, b.TypeUint32())
	b.decorate(id, DecorationBlock)
	return id
}

// UniformBuffer declares a uniform buffer variable.
func (b *Builder) UniformBuffer(set, binding uint32) uint32 {
	return b.variable(b.blockStruct(), StorageClassUniform, set, binding)
}

// StorageBuffer declares a storage buffer variable.
func (b *Builder) StorageBuffer(set, binding uint32, readOnly bool) uint32 {
	id := b.variable(b.blockStruct(), StorageClassStorageBuffer, set, binding)
	if readOnly {
		b.decorate(id, DecorationNonWritable)
	}
	return id
}

// Texture declares a sampled 2D image variable.
func (b *Builder) Texture(set, binding uint32) uint32 {
	img := b.typeID(OpTypeImage, b.TypeFloat32(), 1, 0, 0, 0, 1, 0)
	return b.variable(img, StorageClassUniformConstant, set, binding)
}

// StorageImage declares a 2D rgba8 storage image variable.
func (b *Builder) StorageImage(set, binding uint32, readOnly bool) uint32 {
	img := b.typeID(OpTypeImage, b.TypeFloat32(), 1, 0, 0, 0, 2, 4)
	id := b.variable(img, StorageClassUniformConstant, set, binding)
	if readOnly {
		b.decorate(id, DecorationNonWritable)
	}
	return id
}

// Sampler declares a sampler variable.
func (b *Builder) Sampler(set, binding uint32) uint32 {
	return b.variable(b.typeID(OpTypeSampler), StorageClassUniformConstant, set, binding)
}

// Words returns the assembled module as words.
func (b *Builder) Words() []uint32 {
	m := Module{Header: [headerWords]uint32{Magic, 0x00010300, 0, b.next, 0}}
	m.Insts = append(m.Insts,
		Instruction{Op: OpCapability, Operands: []uint32{capabilityShader}},
		Instruction{Op: opMemoryModel, Operands: []uint32{0, 1}},
	)
	m.Insts = append(m.Insts, b.entries...)
	m.Insts = append(m.Insts, b.annotations...)
	m.Insts = append(m.Insts, b.globals...)
	m.Insts = append(m.Insts, b.functions...)
	return m.Words()
}

// Module returns the assembled module. It shares no memory with the builder.
func (b *Builder) Module() *Module {
	m, err := Parse(b.Words())
	if err != nil {
		panic(fmt.Sprintf("spirv: builder produced an invalid module: %v", err))
	}
	return m
}
