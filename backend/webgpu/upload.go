package webgpu

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/native"
)

// UploadImage writes img into mip level 0, layer 0 of an 8-bit RGBA or BGRA
// texture through the queue. Images of another size are scaled with
// Catmull-Rom to the texture size.
func (d *Device) UploadImage(th gpuhal.TextureHandle, img image.Image) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	t := d.texture("UploadImage", th)
	swap := false
	switch t.Format() {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		swap = true
	default:
		return fmt.Errorf("%w: UploadImage into %s texture %q", ErrInvalidDescriptor, t.Format(), t.label)
	}

	w, h := t.MipSize(0)
	rgba := toRGBA(img, int(w), int(h))
	if swap {
		for i := 0; i < len(rgba.Pix); i += 4 {
			rgba.Pix[i], rgba.Pix[i+2] = rgba.Pix[i+2], rgba.Pix[i]
		}
	}

	d.nd.Queue().WriteTexture(
		&native.TexelCopyTextureInfo{Texture: t.native},
		rgba.Pix,
		native.TexelCopyBufferLayout{BytesPerRow: uint32(rgba.Stride), RowsPerImage: h},
		native.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	d.log.Debug("webgpu: image uploaded", "texture", t.label, "src", img.Bounds().Size(), "width", w, "height", h)
	return nil
}

// toRGBA converts img into a new, tightly packed w×h RGBA image.
func toRGBA(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
