// Package policy maps media kind, source geometry and user privilege to
// the target transform parameters. Everything here is pure and
// deterministic.
package policy

import "math"

type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

type Tier string

const (
	TierStandard Tier = "standard"
	TierEnhanced Tier = "enhanced"
)

// Target widths per tier, plus the absolute ceiling any output is
// clamped to.
const (
	StandardWidth = 2560
	EnhancedWidth = 3840
	MaxWidth      = 3840
)

// Portrait videos are capped by height instead of width.
const (
	StandardPortraitMaxHeight = 1440
	EnhancedPortraitMaxHeight = 1920
)

// Sources above this pixel count are "large"; enhanced-tier videos that
// size get the standard width to keep the encoder within budget.
const LargePixelThreshold = 1280 * 720

// Label is the user-facing name of a tier.
func (t Tier) Label() string {
	if t == TierEnhanced {
		return "4K"
	}
	return "2K"
}

func (t Tier) width() int {
	if t == TierEnhanced {
		return EnhancedWidth
	}
	return StandardWidth
}

func (t Tier) portraitMaxHeight() int {
	if t == TierEnhanced {
		return EnhancedPortraitMaxHeight
	}
	return StandardPortraitMaxHeight
}

// SelectTier picks the quality tier for a job. Privileged users get the
// enhanced tier for every media kind.
func SelectTier(kind MediaKind, privileged bool) Tier {
	if privileged {
		return TierEnhanced
	}
	return TierStandard
}

// TargetGeometry computes the output dimensions for a transform while
// preserving the source aspect ratio. Video outputs additionally honor
// the portrait height cap, the large-source downgrade and the width
// ceiling, and always end on an even height.
func TargetGeometry(tier Tier, kind MediaKind, srcWidth, srcHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0
	}

	aspect := float64(srcWidth) / float64(srcHeight)
	width := tier.width()

	if kind == KindVideo {
		portrait := srcHeight > srcWidth
		large := srcWidth*srcHeight > LargePixelThreshold

		if portrait {
			width = int(math.Round(float64(tier.portraitMaxHeight()) * aspect))
		} else if large && tier == TierEnhanced {
			width = StandardWidth
		}

		if width > MaxWidth {
			width = MaxWidth
		}
	}

	height := int(math.Round(float64(width) / aspect))
	if kind == KindVideo && height%2 != 0 {
		height++
	}
	return width, height
}
