package webgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// viewKey identifies a memoized texture view. Counts are always resolved,
// so "all remaining" and the equivalent explicit count share one view.
type viewKey struct {
	format     gputypes.TextureFormat
	typ        gpuhal.TextureType
	baseMip    uint32
	mipCount   uint32
	baseLayer  uint32
	layerCount uint32
}

// Texture is the record behind a gpuhal.TextureHandle.
//
// Thread Safety:
// Views are created lazily under mu and memoized for the texture's
// lifetime, so concurrent View calls with equal arguments share one view.
type Texture struct {
	native native.Texture
	label  string
	desc   gpuhal.TextureDescriptor
	layers uint32
	mips   uint32

	mu    sync.Mutex
	views map[viewKey]native.TextureView
	nd    native.Device
}

// Native returns the native texture.
func (t *Texture) Native() native.Texture { return t.native }

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// MipSize returns the width and height of a mip level.
func (t *Texture) MipSize(level uint32) (width, height uint32) {
	return max(t.desc.Width>>level, 1), max(t.desc.Height>>level, 1)
}

// resolveView validates vd against the texture and returns its key.
func (t *Texture) resolveView(vd gpuhal.ViewDescriptor) (viewKey, error) {
	k := viewKey{
		format:    t.desc.Format,
		typ:       t.desc.Type,
		baseMip:   vd.BaseMip,
		baseLayer: vd.BaseLayer,
	}
	if vd.Format != gputypes.TextureFormatUndefined {
		k.format = vd.Format
	}
	if vd.UseType {
		k.typ = vd.Type
	}
	if vd.BaseMip >= t.mips {
		return k, fmt.Errorf("%w: base mip %d of %d", ErrInvalidDescriptor, vd.BaseMip, t.mips)
	}
	if vd.BaseLayer >= t.layers {
		return k, fmt.Errorf("%w: base layer %d of %d", ErrInvalidDescriptor, vd.BaseLayer, t.layers)
	}

	k.mipCount = vd.MipCount
	if k.mipCount == gpuhal.AllRemaining {
		k.mipCount = t.mips - vd.BaseMip
	}
	k.layerCount = vd.LayerCount
	if k.layerCount == gpuhal.AllRemaining {
		k.layerCount = t.layers - vd.BaseLayer
	}
	if k.mipCount > t.mips-vd.BaseMip || k.layerCount > t.layers-vd.BaseLayer {
		return k, fmt.Errorf("%w: view range mips %d+%d layers %d+%d exceeds texture %q",
			ErrInvalidDescriptor, vd.BaseMip, k.mipCount, vd.BaseLayer, k.layerCount, t.label)
	}
	return k, nil
}

// View returns the memoized native view for vd, creating it on first use.
func (t *Texture) View(vd gpuhal.ViewDescriptor) (native.TextureView, error) {
	k, err := t.resolveView(vd)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.views[k]; ok {
		return v, nil
	}
	v, err := t.nd.CreateTextureView(t.native, &native.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s/view%d", t.label, len(t.views)),
		Format:          k.format,
		Dimension:       viewDimension(k.typ),
		BaseMipLevel:    k.baseMip,
		MipLevelCount:   k.mipCount,
		BaseArrayLayer:  k.baseLayer,
		ArrayLayerCount: k.layerCount,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: view of %q: %w", ErrCreateFailed, t.label, err)
	}
	if t.views == nil {
		t.views = make(map[viewKey]native.TextureView)
	}
	t.views[k] = v
	return v, nil
}

// ViewCount returns the number of memoized views.
func (t *Texture) ViewCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.views)
}

// attachmentView returns the single-level, single-layer 2D view used as a
// render target.
func (t *Texture) attachmentView(a gpuhal.Attachment) (native.TextureView, error) {
	return t.View(gpuhal.ViewDescriptor{
		Type:       gpuhal.TextureType2D,
		UseType:    true,
		BaseMip:    a.MipLevel,
		MipCount:   1,
		BaseLayer:  a.Layer,
		LayerCount: 1,
	})
}

// release destroys every view, then the texture.
func (t *Texture) release() {
	t.mu.Lock()
	for k, v := range t.views {
		v.Release()
		delete(t.views, k)
	}
	t.mu.Unlock()
	t.native.Release()
}

func viewDimension(t gpuhal.TextureType) gputypes.TextureViewDimension {
	switch t {
	case gpuhal.TextureType2DArray:
		return gputypes.TextureViewDimension2DArray
	case gpuhal.TextureTypeCube:
		return gputypes.TextureViewDimensionCube
	case gpuhal.TextureTypeCubeArray:
		return gputypes.TextureViewDimensionCubeArray
	case gpuhal.TextureType3D:
		return gputypes.TextureViewDimension3D
	default:
		return gputypes.TextureViewDimension2D
	}
}

func nativeTextureUsage(u gpuhal.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&gpuhal.TextureUsageSampled != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&gpuhal.TextureUsageStorage != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u&gpuhal.TextureUsageRenderTarget != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u&gpuhal.TextureUsageTransferSrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&gpuhal.TextureUsageTransferDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	return out
}

// =============================================================================
// Device operations
// =============================================================================

// CreateTexture implements gpuhal.Device.
func (d *Device) CreateTexture(desc *gpuhal.TextureDescriptor) (gpuhal.TextureHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("%w: texture size must be positive", ErrInvalidDescriptor)
	}
	if desc.Type > gpuhal.TextureType3D {
		return 0, fmt.Errorf("%w: texture type %s", ErrInvalidDescriptor, desc.Type)
	}
	if desc.Type == gpuhal.TextureTypeCube || desc.Type == gpuhal.TextureTypeCubeArray {
		if desc.Width != desc.Height {
			return 0, fmt.Errorf("%w: cube faces must be square, got %dx%d", ErrInvalidDescriptor, desc.Width, desc.Height)
		}
	}

	local := *desc
	local.Format = d.translateFormat(desc.Format)
	label := d.label(desc.Label, "texture")

	size := native.Extent3D{Width: local.Width, Height: local.Height, DepthOrArrayLayers: local.LayerCount()}
	dim := gputypes.TextureDimension2D
	if local.Type == gpuhal.TextureType3D {
		dim = gputypes.TextureDimension3D
		size.DepthOrArrayLayers = max(local.Depth, 1)
	}
	mips := max(local.MipLevels, 1)

	nt, err := d.nd.CreateTexture(&native.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: mips,
		SampleCount:   max(local.SampleCount, 1),
		Dimension:     dim,
		Format:        local.Format,
		Usage:         nativeTextureUsage(local.Usage),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: texture %q: %w", ErrCreateFailed, label, err)
	}

	t, h := d.textures.New()
	t.native = nt
	t.nd = d.nd
	t.label = label
	t.desc = local
	t.mips = mips
	t.layers = local.LayerCount()
	d.log.Debug("webgpu: texture created", "label", label, "type", local.Type,
		"format", local.Format, "width", local.Width, "height", local.Height, "handle", h)
	return gpuhal.TextureHandle(h), nil
}

// DestroyTexture implements gpuhal.Device. Memoized views are released with
// the texture.
func (d *Device) DestroyTexture(h gpuhal.TextureHandle) {
	if h.IsNil() {
		return
	}
	t := d.texture("DestroyTexture", h)
	t.release()
	d.textures.Delete(t)
}

// TextureView returns the memoized native view of a texture.
func (d *Device) TextureView(h gpuhal.TextureHandle, vd gpuhal.ViewDescriptor) (native.TextureView, error) {
	return d.texture("TextureView", h).View(vd)
}

func (d *Device) texture(op string, h gpuhal.TextureHandle) *Texture {
	return d.textures.MustGet(op, gpuhal.Handle(h))
}
