package gpuhal

import (
	"fmt"
	"strings"
)

// FormatCaps is a bitset of operations a texture format supports on the
// active device.
type FormatCaps uint32

const (
	// FormatCapSampled means the format can be sampled in shaders.
	FormatCapSampled FormatCaps = 1 << iota
	// FormatCapFilterable means the format supports linear filtering.
	FormatCapFilterable
	// FormatCapRenderTarget means the format can be a color or depth attachment.
	FormatCapRenderTarget
	// FormatCapBlendable means the format supports blending as an attachment.
	FormatCapBlendable
	// FormatCapStorageImage means the format can be bound as a storage image.
	FormatCapStorageImage
)

var formatCapNames = []struct {
	cap  FormatCaps
	name string
}{
	{FormatCapSampled, "Sampled"},
	{FormatCapFilterable, "Filterable"},
	{FormatCapRenderTarget, "RenderTarget"},
	{FormatCapBlendable, "Blendable"},
	{FormatCapStorageImage, "StorageImage"},
}

// Has reports whether all capabilities in c are supported.
func (f FormatCaps) Has(c FormatCaps) bool {
	return f&c == c
}

// String returns the set capabilities joined with "|".
func (f FormatCaps) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	rest := f
	for _, n := range formatCapNames {
		if f&n.cap != 0 {
			parts = append(parts, n.name)
			rest &^= n.cap
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("Unknown(%d)", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Features is a bitset of optional device features.
type Features uint32

const (
	// FeatureTextureCompressionBC supports BC1-BC7 compressed textures.
	FeatureTextureCompressionBC Features = 1 << iota
	// FeatureTextureCompressionETC2 supports ETC2/EAC compressed textures.
	FeatureTextureCompressionETC2
	// FeatureTextureCompressionASTC supports ASTC compressed textures.
	FeatureTextureCompressionASTC
	// FeatureDepthClipControl allows disabling depth clipping.
	FeatureDepthClipControl
	// FeatureIndirectFirstInstance allows non-zero firstInstance in indirect draws.
	FeatureIndirectFirstInstance
	// FeatureTimestampQuery supports GPU timestamp queries.
	FeatureTimestampQuery
	// FeatureShaderF16 supports 16-bit floats in shaders.
	FeatureShaderF16
	// FeatureFloat32Filterable allows filtering 32-bit float textures.
	FeatureFloat32Filterable
)

var featureNames = []struct {
	feature Features
	name    string
}{
	{FeatureTextureCompressionBC, "TextureCompressionBC"},
	{FeatureTextureCompressionETC2, "TextureCompressionETC2"},
	{FeatureTextureCompressionASTC, "TextureCompressionASTC"},
	{FeatureDepthClipControl, "DepthClipControl"},
	{FeatureIndirectFirstInstance, "IndirectFirstInstance"},
	{FeatureTimestampQuery, "TimestampQuery"},
	{FeatureShaderF16, "ShaderF16"},
	{FeatureFloat32Filterable, "Float32Filterable"},
}

// Has reports whether all features in f are present.
func (fs Features) Has(f Features) bool {
	return fs&f == f
}

// List returns the names of the present features in declaration order.
func (fs Features) List() []string {
	var names []string
	for _, n := range featureNames {
		if fs&n.feature != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

// String returns the present features joined with "|".
func (fs Features) String() string {
	if fs == 0 {
		return "None"
	}
	return strings.Join(fs.List(), "|")
}

// ParseFeature returns the feature with the given name. Matching ignores
// case.
func ParseFeature(name string) (Features, bool) {
	for _, n := range featureNames {
		if strings.EqualFold(n.name, name) {
			return n.feature, true
		}
	}
	return 0, false
}
