package spirv

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpuhal"
)

// Reflection errors.
var (
	// ErrMissingBinding is returned for a resource variable without both a
	// DescriptorSet and a Binding decoration.
	ErrMissingBinding = errors.New("spirv: resource variable without set/binding decoration")

	// ErrBindingConflict is returned when two variables share a set and
	// binding with different resource types.
	ErrBindingConflict = errors.New("spirv: conflicting resource types at one binding")
)

// EntryPoint is one OpEntryPoint declaration.
type EntryPoint struct {
	Name  string
	Stage gpuhal.ShaderStage
}

// Reflection is the resource interface of a module.
type Reflection struct {
	// EntryPoints in declaration order.
	EntryPoints []EntryPoint

	// Stages is the union of all entry point stages.
	Stages gpuhal.ShaderStage

	// Sets maps a descriptor set index to its bindings, sorted by binding.
	// Every binding is visible to Stages.
	Sets map[uint32][]gpuhal.BindingDescriptor
}

// SetIndices returns the descriptor set indices in ascending order.
func (r *Reflection) SetIndices() []uint32 {
	idx := make([]uint32, 0, len(r.Sets))
	for s := range r.Sets {
		idx = append(idx, s)
	}
	slices.Sort(idx)
	return idx
}

// EntryPoint returns the entry point with the given name.
func (r *Reflection) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range r.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// decorations collects the decorations reflection needs.
type decorations struct {
	set, binding map[uint32]uint32
	flags        map[uint32]map[uint32]bool
	memberFlags  map[uint32]map[uint32]bool
}

func (d *decorations) has(id, deco uint32) bool { return d.flags[id][deco] }

// typeInfo is a type declaration as seen by reflection.
type typeInfo struct {
	op       Op
	operands []uint32
}

// Reflect walks the module and returns its entry points and resource
// bindings. Stage visibility is conservative: every binding is marked
// visible to every stage the module declares an entry point for.
func (m *Module) Reflect() (*Reflection, error) {
	r := &Reflection{Sets: make(map[uint32][]gpuhal.BindingDescriptor)}
	d := decorations{
		set:         make(map[uint32]uint32),
		binding:     make(map[uint32]uint32),
		flags:       make(map[uint32]map[uint32]bool),
		memberFlags: make(map[uint32]map[uint32]bool),
	}
	types := make(map[uint32]typeInfo)

	type variable struct {
		id, typeID, class uint32
	}
	var vars []variable

	for _, in := range m.Insts {
		ops := in.Operands
		switch in.Op {
		case OpEntryPoint:
			if len(ops) < 3 {
				continue
			}
			name, _ := decodeString(ops[2:])
			ep := EntryPoint{Name: name, Stage: stageOf(ops[0])}
			r.EntryPoints = append(r.EntryPoints, ep)
			r.Stages |= ep.Stage
		case OpDecorate:
			if len(ops) < 2 {
				continue
			}
			id, deco := ops[0], ops[1]
			switch {
			case deco == DecorationDescriptorSet && len(ops) > 2:
				d.set[id] = ops[2]
			case deco == DecorationBinding && len(ops) > 2:
				d.binding[id] = ops[2]
			default:
				if d.flags[id] == nil {
					d.flags[id] = make(map[uint32]bool)
				}
				d.flags[id][deco] = true
			}
		case OpMemberDecorate:
			if len(ops) < 3 {
				continue
			}
			if d.memberFlags[ops[0]] == nil {
				d.memberFlags[ops[0]] = make(map[uint32]bool)
			}
			// A struct is read-only when every member is NonWritable.
			if ops[2] == DecorationNonWritable {
				d.memberFlags[ops[0]][ops[1]] = true
			}
		case OpTypeImage, OpTypeSampler, OpTypeSampledImage, OpTypeArray,
			OpTypeRuntimeArray, OpTypeStruct, OpTypePointer:
			if len(ops) > 0 {
				types[ops[0]] = typeInfo{op: in.Op, operands: ops[1:]}
			}
		case OpVariable:
			if len(ops) < 3 {
				continue
			}
			switch ops[2] {
			case StorageClassUniformConstant, StorageClassUniform, StorageClassStorageBuffer:
				vars = append(vars, variable{id: ops[1], typeID: ops[0], class: ops[2]})
			}
		}
	}

	seen := make(map[[2]uint32]gpuhal.BindingDescriptor)
	for _, v := range vars {
		set, okSet := d.set[v.id]
		binding, okBinding := d.binding[v.id]
		if !okSet || !okBinding {
			return nil, fmt.Errorf("%w: id %d", ErrMissingBinding, v.id)
		}
		bt, access, ok := classify(types, &d, v.id, v.typeID, v.class)
		if !ok {
			continue
		}
		desc := gpuhal.BindingDescriptor{Binding: binding, Type: bt, Stages: r.Stages, Access: access}
		key := [2]uint32{set, binding}
		if prev, dup := seen[key]; dup {
			if prev.Type != desc.Type {
				return nil, fmt.Errorf("%w: set %d binding %d: %s vs %s",
					ErrBindingConflict, set, binding, prev.Type, desc.Type)
			}
			continue
		}
		seen[key] = desc
		r.Sets[set] = append(r.Sets[set], desc)
	}
	for s := range r.Sets {
		gpuhal.SortBindings(r.Sets[s])
	}
	return r, nil
}

// classify resolves a resource variable to a binding type.
func classify(types map[uint32]typeInfo, d *decorations, varID, ptrID, class uint32) (gpuhal.BindingType, gpuhal.Access, bool) {
	ptr, ok := types[ptrID]
	if !ok || ptr.op != OpTypePointer || len(ptr.operands) < 2 {
		return 0, 0, false
	}
	id := ptr.operands[1]
	t, ok := types[id]
	// Arrays of resources bind as one slot of the element type.
	for ok && (t.op == OpTypeArray || t.op == OpTypeRuntimeArray) && len(t.operands) > 0 {
		id = t.operands[0]
		t, ok = types[id]
	}
	if !ok {
		return 0, 0, false
	}

	access := gpuhal.AccessReadWrite
	if d.has(varID, DecorationNonWritable) {
		access = gpuhal.AccessReadOnly
	}

	switch t.op {
	case OpTypeStruct:
		storage := class == StorageClassStorageBuffer || d.has(id, DecorationBufferBlock)
		if !storage {
			return gpuhal.BindingTypeUniformBuffer, gpuhal.AccessReadOnly, true
		}
		if members := len(t.operands); members > 0 && len(d.memberFlags[id]) == members {
			access = gpuhal.AccessReadOnly
		}
		return gpuhal.BindingTypeStorageBuffer, access, true
	case OpTypeImage:
		// Operand 5 (after the result id) is Sampled: 1 sampled, 2 storage.
		if len(t.operands) > 5 && t.operands[5] == 2 {
			return gpuhal.BindingTypeStorageImage, access, true
		}
		return gpuhal.BindingTypeTexture, gpuhal.AccessReadOnly, true
	case OpTypeSampledImage:
		return gpuhal.BindingTypeTexture, gpuhal.AccessReadOnly, true
	case OpTypeSampler:
		return gpuhal.BindingTypeSampler, gpuhal.AccessReadOnly, true
	}
	return 0, 0, false
}

func stageOf(model uint32) gpuhal.ShaderStage {
	switch model {
	case ExecutionModelVertex:
		return gpuhal.StageVertex
	case ExecutionModelFragment:
		return gpuhal.StageFragment
	case ExecutionModelGLCompute:
		return gpuhal.StageCompute
	}
	return 0
}
