package webgpu

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// LayoutCreateFunc creates the native layout for a canonical (sorted,
// duplicate-free) binding list. The slice is only valid during the call.
type LayoutCreateFunc func(bindings []gpuhal.BindingDescriptor, mode gpuhal.BindMode) (native.BindGroupLayout, error)

// CachedLayout is a deduplicated descriptor-set layout.
//
// CachedLayout is owned by its LayoutCache and stays valid until the cache
// is cleared. Its fields must not be modified.
type CachedLayout struct {
	// Native is the native bind group layout.
	Native native.BindGroupLayout

	// ActiveBindings lists the declared binding indices in ascending order.
	ActiveBindings []uint32

	// Bindings is the canonical binding list.
	Bindings []gpuhal.BindingDescriptor

	// Mode is the bind mode the layout was created for.
	Mode gpuhal.BindMode
}

// Index returns the position of binding in ActiveBindings.
func (l *CachedLayout) Index(binding uint32) (int, bool) {
	return slices.BinarySearch(l.ActiveBindings, binding)
}

// Has reports whether the layout declares binding.
func (l *CachedLayout) Has(binding uint32) bool {
	_, ok := l.Index(binding)
	return ok
}

// Binding returns the descriptor of a declared binding.
func (l *CachedLayout) Binding(binding uint32) (gpuhal.BindingDescriptor, bool) {
	i, ok := l.Index(binding)
	if !ok {
		return gpuhal.BindingDescriptor{}, false
	}
	return l.Bindings[i], true
}

// DynamicCount returns the number of dynamic offsets a bind of this layout takes.
func (l *CachedLayout) DynamicCount() int {
	n := 0
	for _, b := range l.Bindings {
		if hasDynamicOffset(b, l.Mode) {
			n++
		}
	}
	return n
}

func (l *CachedLayout) matches(bindings []gpuhal.BindingDescriptor, mode gpuhal.BindMode) bool {
	return l.Mode == mode && slices.Equal(l.Bindings, bindings)
}

// LayoutCache deduplicates descriptor-set layouts by content.
//
// Two binding lists with the same elements in any order and the same bind
// mode share one CachedLayout. Keys are bucketed by a 64-bit hash and then
// compared element-wise, so a hash collision never merges distinct layouts.
//
// Thread Safety:
// LayoutCache is safe for concurrent use. It uses RWMutex with
// double-check locking; the create function runs under the write lock, so
// concurrent misses on one key create exactly one native layout.
//
// Usage:
//
//	cache := NewLayoutCache(NativeLayoutCreator(device))
//	layout, err := cache.Get(bindings, gpuhal.BindModeStatic)
//	if err != nil {
//	    // handle error
//	}
//	// layout.Native is shared by every equal binding list
type LayoutCache struct {
	// mu protects buckets and count.
	mu sync.RWMutex

	create  LayoutCreateFunc
	buckets map[uint64][]*CachedLayout
	count   int

	// hits counts cache hits (atomic for lock-free reads).
	hits uint64

	// misses counts cache misses (atomic for lock-free reads).
	misses uint64
}

// NewLayoutCache creates an empty cache. A nil create function is a
// contract violation.
func NewLayoutCache(create LayoutCreateFunc) *LayoutCache {
	if create == nil {
		gpuhal.Fatalf("NewLayoutCache", "create function is nil")
	}
	return &LayoutCache{
		create:  create,
		buckets: make(map[uint64][]*CachedLayout),
	}
}

// Get returns the cached layout for bindings and mode, creating it on the
// first request.
//
// bindings may be in any order; it is never modified or retained. Binding
// indices must be unique.
//
// Returns an error wrapping ErrInvalidDescriptor for duplicate indices, or
// ErrCreateFailed when the create function fails. Nothing is cached on error.
func (c *LayoutCache) Get(bindings []gpuhal.BindingDescriptor, mode gpuhal.BindMode) (*CachedLayout, error) {
	canonical := bindings
	owned := false
	if !gpuhal.BindingsSorted(bindings) {
		canonical = slices.Clone(bindings)
		gpuhal.SortBindings(canonical)
		owned = true
	}
	for i := 1; i < len(canonical); i++ {
		if canonical[i].Binding == canonical[i-1].Binding {
			return nil, fmt.Errorf("%w: binding %d declared twice", ErrInvalidDescriptor, canonical[i].Binding)
		}
	}

	key := layoutHash(canonical, mode)

	// Fast path: read lock
	c.mu.RLock()
	if l := c.lookupLocked(key, canonical, mode); l != nil {
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return l, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()

	if l := c.lookupLocked(key, canonical, mode); l != nil {
		atomic.AddUint64(&c.hits, 1)
		return l, nil
	}

	nl, err := c.create(canonical, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: bind group layout: %w", ErrCreateFailed, err)
	}
	if !owned {
		canonical = slices.Clone(canonical)
	}
	active := make([]uint32, len(canonical))
	for i, b := range canonical {
		active[i] = b.Binding
	}
	l := &CachedLayout{
		Native:         nl,
		ActiveBindings: active,
		Bindings:       canonical,
		Mode:           mode,
	}
	c.buckets[key] = append(c.buckets[key], l)
	c.count++
	atomic.AddUint64(&c.misses, 1)

	slogger().Debug("webgpu: layout created", "bindings", len(canonical), "mode", mode, "hash", key)
	return l, nil
}

func (c *LayoutCache) lookupLocked(key uint64, bindings []gpuhal.BindingDescriptor, mode gpuhal.BindMode) *CachedLayout {
	for _, l := range c.buckets[key] {
		if l.matches(bindings, mode) {
			return l
		}
	}
	return nil
}

// Clear releases every native layout and empties the cache.
// Layouts returned earlier become invalid; callers must not hold any.
func (c *LayoutCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bucket := range c.buckets {
		for _, l := range bucket {
			if l.Native != nil {
				l.Native.Release()
			}
		}
	}
	c.buckets = make(map[uint64][]*CachedLayout)
	c.count = 0
}

// IsEmpty reports whether the cache holds no layouts. It is a diagnostic
// peek: the answer can be stale by the time the caller acts on it.
func (c *LayoutCache) IsEmpty() bool {
	return c.Len() == 0
}

// Len returns the number of cached layouts.
func (c *LayoutCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Stats returns cache hit and miss counts.
func (c *LayoutCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// HitRate returns the cache hit rate as a fraction in [0, 1].
// Returns 0 if no requests have been made.
func (c *LayoutCache) HitRate() float64 {
	hits, misses := c.Stats()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// layoutHash folds the binding count, the mode and each binding's hash.
func layoutHash(bindings []gpuhal.BindingDescriptor, mode gpuhal.BindMode) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(bindings))) //nolint:gosec // binding counts are small
	buf[4] = byte(mode)
	_, _ = h.Write(buf[:5])
	for _, b := range bindings {
		binary.LittleEndian.PutUint64(buf[:], b.Hash())
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// =============================================================================
// Native layout creation
// =============================================================================

// NativeLayoutCreator returns a LayoutCreateFunc that builds bind group
// layouts on nd.
func NativeLayoutCreator(nd native.Device) LayoutCreateFunc {
	return func(bindings []gpuhal.BindingDescriptor, mode gpuhal.BindMode) (native.BindGroupLayout, error) {
		entries := make([]gputypes.BindGroupLayoutEntry, len(bindings))
		for i, b := range bindings {
			entries[i] = layoutEntry(b, mode)
		}
		return nd.CreateBindGroupLayout(&native.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("layout-%016x", layoutHash(bindings, mode)),
			Entries: entries,
		})
	}
}

// hasDynamicOffset reports whether b takes a dynamic offset. Dynamic-mode
// layouts bind every buffer with a dynamic offset.
func hasDynamicOffset(b gpuhal.BindingDescriptor, mode gpuhal.BindMode) bool {
	return b.Type.IsDynamic() || (mode == gpuhal.BindModeDynamic && b.Type.IsBuffer())
}

// layoutEntry converts a binding descriptor to a native layout entry.
func layoutEntry(b gpuhal.BindingDescriptor, mode gpuhal.BindMode) gputypes.BindGroupLayoutEntry {
	e := gputypes.BindGroupLayoutEntry{
		Binding:    b.Binding,
		Visibility: shaderStages(b.Stages),
	}
	switch b.Type {
	case gpuhal.BindingTypeUniformBuffer, gpuhal.BindingTypeUniformBufferDynamicOffset:
		e.Buffer = &gputypes.BufferBindingLayout{
			Type:             gputypes.BufferBindingTypeUniform,
			HasDynamicOffset: hasDynamicOffset(b, mode),
		}
	case gpuhal.BindingTypeStorageBuffer, gpuhal.BindingTypeStorageBufferDynamicOffset:
		t := gputypes.BufferBindingTypeStorage
		if b.Access == gpuhal.AccessReadOnly {
			t = gputypes.BufferBindingTypeReadOnlyStorage
		}
		e.Buffer = &gputypes.BufferBindingLayout{
			Type:             t,
			HasDynamicOffset: hasDynamicOffset(b, mode),
		}
	case gpuhal.BindingTypeTexture:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpuhal.BindingTypeStorageImage:
		access := gputypes.StorageTextureAccessReadWrite
		if b.Access == gpuhal.AccessReadOnly {
			access = gputypes.StorageTextureAccessReadOnly
		}
		e.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        access,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpuhal.BindingTypeSampler:
		e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return e
}

func shaderStages(s gpuhal.ShaderStage) gputypes.ShaderStages {
	var out gputypes.ShaderStages
	if s&gpuhal.StageVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if s&gpuhal.StageFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	if s&gpuhal.StageCompute != 0 {
		out |= gputypes.ShaderStageCompute
	}
	return out
}
