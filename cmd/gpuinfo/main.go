// Command gpuinfo opens a GPU device through gpuhal and prints the selected
// adapter, its optional features and the texture format capability table.
//
// Usage:
//
//	gpuinfo [-config gpuhal.toml] [-backend vulkan] [-smoke] [-shader file.wgsl]
//
// With -smoke it also runs a few frames and a buffer readback through the
// WebGPU-style backend. With -shader it compiles a WGSL file and prints the
// reflected set layouts.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/allbackends"

	"github.com/gogpu/gpuhal"
	"github.com/gogpu/gpuhal/backend/webgpu"
	"github.com/gogpu/gpuhal/config"
	"github.com/gogpu/gpuhal/native/halnative"
	"github.com/gogpu/gpuhal/shader"
)

var formats = []gputypes.TextureFormat{
	gputypes.TextureFormatR8Unorm,
	gputypes.TextureFormatRG8Unorm,
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatR16Float,
	gputypes.TextureFormatRGBA16Float,
	gputypes.TextureFormatR32Float,
	gputypes.TextureFormatRGBA32Float,
	gputypes.TextureFormatR32Uint,
	gputypes.TextureFormatRGB10A2Unorm,
	gputypes.TextureFormatDepth16Unorm,
	gputypes.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth32Float,
	gputypes.TextureFormatBC1RGBAUnorm,
	gputypes.TextureFormatBC7RGBAUnorm,
	gputypes.TextureFormatETC2RGBA8Unorm,
	gputypes.TextureFormatASTC4x4Unorm,
}

func main() {
	var (
		cfgPath    = flag.String("config", "", "TOML configuration file")
		backend    = flag.String("backend", "", "backend to open (overrides the config)")
		smoke      = flag.Bool("smoke", false, "run frames and a readback on the device")
		shaderPath = flag.String("shader", "", "WGSL file to compile and reflect")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if *backend != "" {
		cfg.Backends = []string{*backend}
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "gpuinfo",
	})
	logger.SetLevel(log.Level(cfg.SlogLevel()))
	gpuhal.SetLogger(slog.New(logger))

	if err := run(os.Stdout, cfg, *smoke, *shaderPath); err != nil {
		logger.Fatal("gpuinfo failed", "err", err)
	}
}

func run(w io.Writer, cfg config.Config, smoke bool, shaderPath string) error {
	if shaderPath != "" {
		if err := reflectShader(w, shaderPath); err != nil {
			return err
		}
	}

	hc, err := halConfig(cfg)
	if err != nil {
		return err
	}
	nd, err := halnative.Open(hc)
	if err != nil {
		return err
	}
	defer nd.Release()

	info := nd.AdapterInfo()
	fmt.Fprintf(w, "Adapter:  %s\n", info.Name)
	fmt.Fprintf(w, "Backend:  %s\n", info.Backend)
	fmt.Fprintf(w, "Type:     %s\n", info.DeviceType)
	fmt.Fprintf(w, "Features: %s\n\n", nd.Features())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tCAPABILITIES")
	for _, f := range formats {
		caps, ok := nd.TextureFormatCaps(f)
		if !ok {
			fmt.Fprintf(tw, "%s\tunknown\n", f)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", f, caps)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if smoke {
		return runSmoke(w, nd, cfg)
	}
	return nil
}

func halConfig(cfg config.Config) (halnative.Config, error) {
	hc := halnative.Config{Features: cfg.FeatureSet()}
	for _, name := range cfg.Backends {
		b, err := halnative.ParseBackend(name)
		if err != nil {
			return hc, err
		}
		hc.Backends = append(hc.Backends, b)
	}
	pp, err := halnative.ParsePowerPreference(cfg.PowerPreference)
	if err != nil {
		return hc, err
	}
	hc.PowerPreference = pp
	return hc, nil
}

func runSmoke(w io.Writer, nd *halnative.Device, cfg config.Config) error {
	dev := webgpu.NewDevice(nd, webgpu.WithMaxFramesInFlight(cfg.MaxFramesInFlight))
	defer dev.Destroy()

	payload := []byte("gpuhal")
	size := uint64(len(payload)+3) &^ 3
	rb, err := dev.CreateBuffer(&gpuhal.BufferDescriptor{
		Label: "smoke.readback",
		Size:  size,
		Usage: gpuhal.BufferUsageReadback | gpuhal.BufferUsageTransferDst,
	})
	if err != nil {
		return err
	}
	dev.Execute(func(ctx *webgpu.CommandContext) {
		ctx.UpdateBuffer(rb, 0, append(payload, make([]byte, size-uint64(len(payload)))...))
		ctx.AddReadbackBuffer(rb)
	})
	got, ok := dev.ReadbackData(rb)
	if !ok || !bytes.HasPrefix(got, payload) {
		return fmt.Errorf("readback = %q, want prefix %q", got, payload)
	}

	start := time.Now()
	const frames = 16
	for range frames {
		dev.BeginFrame()
		dev.EndFrame()
	}
	dev.DeviceWaitIdle()
	fmt.Fprintf(w, "\nSmoke: readback ok, %d frames (K=%d) in %s\n",
		frames, dev.FrameRing().Len(), time.Since(start).Round(time.Microsecond))
	return nil
}

func reflectShader(w io.Writer, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mod, err := shader.Compile(string(src), shader.WithLabel(path))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Shader %s: %d words, stages %s\n", path, len(mod.SPIRV), mod.Stages)
	for _, ep := range mod.EntryPoints {
		fmt.Fprintf(w, "  entry %s (%s)\n", ep.Name, ep.Stage)
	}
	for set, layout := range mod.SetLayouts() {
		for _, b := range layout.Bindings {
			fmt.Fprintf(w, "  set %d binding %d: %s %s %s\n", set, b.Binding, b.Type, b.Stages, b.Access)
		}
	}
	fmt.Fprintln(w)
	return nil
}
