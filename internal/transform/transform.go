// Package transform invokes the actual upscaling routines. Callers
// treat both operations as slow, fallible black boxes; there is no
// partial-progress signal and no internal retry.
package transform

import (
	"context"
	"errors"
)

var (
	ErrInvalidGeometry = errors.New("transform: invalid target geometry")
	ErrCorruptedMedia  = errors.New("transform: media appears corrupted")
	ErrFFmpegNotFound  = errors.New("transform: ffmpeg binary not found")
)

// Invoker is the boundary to the transform routines. Input and output
// refs are local file paths. Both calls respect context cancellation
// and deadlines.
type Invoker interface {
	TransformImage(ctx context.Context, inputPath, outputPath string, width, height int) error
	TransformVideo(ctx context.Context, inputPath, outputPath string, width, height, frameRate int) error
}

type Config struct {
	// JPEG quality for image output.
	ImageQuality int

	// H.264 encode settings for video output.
	VideoCRF     int
	VideoPreset  string
	VideoFPS     int
	VideoThreads int

	FFmpegPath string
}

func DefaultConfig() *Config {
	return &Config{
		ImageQuality: 95,
		VideoCRF:     18,
		VideoPreset:  "slow",
		VideoFPS:     30,
		VideoThreads: 4,
		FFmpegPath:   "ffmpeg",
	}
}
