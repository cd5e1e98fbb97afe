package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"

	"github.com/silviaroy/upscalerd/internal/logger"
)

// Enhancement levels applied after resampling, tuned for visual quality
// on photographic content.
const (
	sharpenSigma      = 1.0
	saturationPercent = 20
	contrastPercent   = 10
	gammaCorrection   = 1.1
)

func (u *Upscaler) TransformImage(ctx context.Context, inputPath, outputPath string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, width, height)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	start := time.Now()

	img, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptedMedia, err)
	}

	out := imaging.Resize(img, width, height, imaging.Lanczos)
	out = imaging.Sharpen(out, sharpenSigma)
	out = imaging.AdjustSaturation(out, saturationPercent)
	out = imaging.AdjustContrast(out, contrastPercent)
	out = imaging.AdjustGamma(out, gammaCorrection)

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := imaging.Save(out, outputPath, imaging.JPEGQuality(u.config.ImageQuality)); err != nil {
		return fmt.Errorf("save upscaled image: %w", err)
	}

	log.Debug("image upscaled",
		"output", outputPath,
		"width", width,
		"height", height,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
