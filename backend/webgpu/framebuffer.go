package webgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// Framebuffer is the record behind a gpuhal.FramebufferHandle.
// Attachment views are resolved at creation and owned by their textures.
type Framebuffer struct {
	label         string
	width, height uint32
	color         []native.TextureView
	colorFormats  []gputypes.TextureFormat
	depth         native.TextureView
	depthFormat   gputypes.TextureFormat
}

// Size returns the framebuffer dimensions.
func (f *Framebuffer) Size() (width, height uint32) { return f.width, f.height }

// HasDepth reports whether the framebuffer has a depth/stencil attachment.
func (f *Framebuffer) HasDepth() bool { return f.depth != nil }

// CreateFramebuffer implements gpuhal.Device.
//
// Attachments with different dimensions at their selected mip levels are a
// contract violation.
func (d *Device) CreateFramebuffer(desc *gpuhal.FramebufferDescriptor) (gpuhal.FramebufferHandle, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	if desc == nil || (len(desc.Color) == 0 && desc.DepthStencil.Texture.IsNil()) {
		return 0, fmt.Errorf("%w: framebuffer without attachments", ErrInvalidDescriptor)
	}
	label := d.label(desc.Label, "framebuffer")
	fb := Framebuffer{label: label}

	sized := false
	check := func(a gpuhal.Attachment, t *Texture, what string) {
		w, h := t.MipSize(a.MipLevel)
		if !sized {
			fb.width, fb.height, sized = w, h, true
			return
		}
		if w != fb.width || h != fb.height {
			gpuhal.Fatalf("CreateFramebuffer", "%s: %s attachment %q is %dx%d, framebuffer is %dx%d",
				label, what, t.label, w, h, fb.width, fb.height)
		}
	}

	for i, a := range desc.Color {
		t := d.texture("CreateFramebuffer", a.Texture)
		check(a, t, fmt.Sprintf("color %d", i))
		v, err := t.attachmentView(a)
		if err != nil {
			return 0, err
		}
		fb.color = append(fb.color, v)
		fb.colorFormats = append(fb.colorFormats, t.Format())
	}
	if a := desc.DepthStencil; !a.Texture.IsNil() {
		t := d.texture("CreateFramebuffer", a.Texture)
		if !t.Format().IsDepthStencil() {
			return 0, fmt.Errorf("%w: depth attachment %q has color format %s", ErrInvalidDescriptor, t.label, t.Format())
		}
		check(a, t, "depth")
		v, err := t.attachmentView(a)
		if err != nil {
			return 0, err
		}
		fb.depth = v
		fb.depthFormat = t.Format()
	}

	rec, h := d.framebuffers.New()
	*rec = fb
	return gpuhal.FramebufferHandle(h), nil
}

// DestroyFramebuffer implements gpuhal.Device.
func (d *Device) DestroyFramebuffer(h gpuhal.FramebufferHandle) {
	if h.IsNil() {
		return
	}
	d.framebuffers.Delete(d.framebuffer("DestroyFramebuffer", h))
}

func (d *Device) framebuffer(op string, h gpuhal.FramebufferHandle) *Framebuffer {
	return d.framebuffers.MustGet(op, gpuhal.Handle(h))
}
