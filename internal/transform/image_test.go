package transform

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/silviaroy/upscalerd/internal/logger"
)

func writeTestJPEG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8(255 * x / width)
			g := uint8(255 * y / height)
			img.Set(x, y, color.RGBA{R: r, G: g, B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test jpeg: %v", err)
	}
}

func newTestUpscaler() *Upscaler {
	// Constructed directly so tests do not require ffmpeg on PATH.
	return &Upscaler{config: DefaultConfig()}
}

func TestTransformImage(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.jpg")
	outputPath := filepath.Join(dir, "output.jpg")
	writeTestJPEG(t, inputPath, 80, 60)

	u := newTestUpscaler()
	ctx := logger.WithLogger(context.Background(), logger.NewTestLogger())

	if err := u.TransformImage(ctx, inputPath, outputPath, 160, 120); err != nil {
		t.Fatalf("TransformImage: %v", err)
	}

	f, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 160 || cfg.Height != 120 {
		t.Errorf("output dimensions = %dx%d, want 160x120", cfg.Width, cfg.Height)
	}
}

func TestTransformImageInvalidGeometry(t *testing.T) {
	u := newTestUpscaler()

	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 100},
		{"zero height", 100, 0},
		{"negative", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := u.TransformImage(context.Background(), "in.jpg", "out.jpg", tt.width, tt.height)
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("err = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestTransformImageCorruptedInput(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "garbage.jpg")
	if err := os.WriteFile(inputPath, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	u := newTestUpscaler()
	err := u.TransformImage(context.Background(), inputPath, filepath.Join(dir, "out.jpg"), 100, 100)
	if !errors.Is(err, ErrCorruptedMedia) {
		t.Errorf("err = %v, want ErrCorruptedMedia", err)
	}
}

func TestTransformImageCancelledContext(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.jpg")
	writeTestJPEG(t, inputPath, 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := newTestUpscaler()
	err := u.TransformImage(ctx, inputPath, filepath.Join(dir, "out.jpg"), 100, 100)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTransformVideoInvalidGeometry(t *testing.T) {
	u := newTestUpscaler()
	err := u.TransformVideo(context.Background(), "in.mp4", "out.mp4", 0, 0, 30)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("err = %v, want ErrInvalidGeometry", err)
	}
}

func TestBuildVideoArgs(t *testing.T) {
	u := newTestUpscaler()
	args := u.buildVideoArgs("in.mp4", "out.mp4", 2560, 1440, 30)

	if args[len(args)-1] != "out.mp4" {
		t.Errorf("last arg = %s, want output path", args[len(args)-1])
	}

	found := false
	for i, a := range args {
		if a == "-vf" && i+1 < len(args) {
			found = true
			want := "scale=2560:1440"
			if len(args[i+1]) < len(want) || args[i+1][:len(want)] != want {
				t.Errorf("filter chain %q does not start with %q", args[i+1], want)
			}
		}
	}
	if !found {
		t.Error("no -vf flag in ffmpeg args")
	}
}
