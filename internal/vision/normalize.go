// Package vision quantizes screenshot dimensions for the model and maps
// coordinates between the model's normalized image space and viewport device
// pixels.
package vision

import (
	"errors"
	"fmt"
	"math"
)

// Vision processor constants. The factor is patch size (14) times merge size
// (2); the pixel budget matches the processor configuration the model was
// trained with.
const (
	ImageFactor    = 28
	MinPixels      = 4 * ImageFactor * ImageFactor
	MaxPixels      = 16384 * ImageFactor * ImageFactor
	MaxAspectRatio = 200.0
)

// ErrInvalidAspectRatio indicates the input dimensions violate the
// normalizer's precondition. This is a caller/environment defect, not a
// recoverable runtime condition.
var ErrInvalidAspectRatio = errors.New("vision: absolute aspect ratio exceeds limit")

func roundByFactor(n float64, factor int) int {
	return int(math.Round(n/float64(factor))) * factor
}

func ceilByFactor(n float64, factor int) int {
	return int(math.Ceil(n/float64(factor))) * factor
}

func floorByFactor(n float64, factor int) int {
	return int(math.Floor(n/float64(factor))) * factor
}

// SmartResize rescales (height, width) so that both dimensions are positive
// multiples of factor and the total pixel count lands within
// [minPixels, maxPixels], preserving aspect ratio as closely as possible.
// Deterministic and side-effect free.
func SmartResize(height, width, factor, minPixels, maxPixels int) (int, int, error) {
	ratio := float64(max(height, width)) / float64(min(height, width))
	if ratio > MaxAspectRatio {
		return 0, 0, fmt.Errorf("%w: got %.2f, limit %.0f", ErrInvalidAspectRatio, ratio, MaxAspectRatio)
	}

	hBar := max(factor, roundByFactor(float64(height), factor))
	wBar := max(factor, roundByFactor(float64(width), factor))

	area := float64(height) * float64(width)
	if hBar*wBar > maxPixels {
		beta := math.Sqrt(area / float64(maxPixels))
		hBar = floorByFactor(float64(height)/beta, factor)
		wBar = floorByFactor(float64(width)/beta, factor)
	} else if hBar*wBar < minPixels {
		beta := math.Sqrt(float64(minPixels) / area)
		hBar = ceilByFactor(float64(height)*beta, factor)
		wBar = ceilByFactor(float64(width)*beta, factor)
	}
	return hBar, wBar, nil
}

// NormalizedSize applies SmartResize with the processor defaults.
func NormalizedSize(height, width int) (int, int, error) {
	return SmartResize(height, width, ImageFactor, MinPixels, MaxPixels)
}
