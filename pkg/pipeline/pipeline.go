// Package pipeline implements the two size-targeting pipelines: a
// lossy grayscale compressor and an OCR enhancement chain. Both walk
// ordered parameter ladders until an encoded output fits a byte budget.
package pipeline

import (
	"errors"

	"imagepress/pkg/codec"
)

// ErrEmptyInput is returned for a zero-length request body before any
// decode is attempted.
var ErrEmptyInput = errors.New("empty input")

// Codec is the image capability both pipelines consume. The concrete
// implementation lives in pkg/codec; tests substitute their own.
type Codec interface {
	Decode(data []byte) (*codec.Image, error)
	Grayscale(im *codec.Image) *codec.Image
	Normalize(im *codec.Image, lowerPct, upperPct float64) *codec.Image
	Gamma(im *codec.Image, exponent float64) *codec.Image
	Sharpen(im *codec.Image, sigma, flat, jagged float64) *codec.Image
	Blur(im *codec.Image, sigma float64) *codec.Image
	Threshold(im *codec.Image, level uint8) *codec.Image
	Resize(im *codec.Image, width, height int) *codec.Image
	EncodeLossy(im *codec.Image, quality int) ([]byte, error)
	EncodeLossless(im *codec.Image, level int) ([]byte, error)
}

// Budget bounds one search: the byte target plus the parameter ladders
// tried in order. Targets and ladders come from configuration, not
// constants, since deployments tune them independently.
type Budget struct {
	// TargetBytes is the maximum acceptable output size.
	TargetBytes int64

	// QualityLadder holds lossy qualities, tried high to low.
	QualityLadder []int

	// FallbackQuality is the fixed lossy quality used during the
	// resize fallback.
	FallbackQuality int

	// LevelLadder holds lossless compression levels, tried strictest
	// first.
	LevelLadder []int

	// ResizeLadder holds scale factors below 1.0, tried largest first.
	ResizeLadder []float64
}

func scaled(dim int, factor float64) int {
	return int(float64(dim) * factor)
}
