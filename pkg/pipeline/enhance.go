package pipeline

import (
	"fmt"
	"math"
	"time"

	"imagepress/pkg/codec"
)

// Fixed enhancement parameters. The chain is deliberately deterministic:
// the same input always produces byte-identical output.
const (
	normalizeLowerPct = 1.0
	normalizeUpperPct = 99.0
	gammaExponent     = 1.2
	sharpenSigma      = 1.0
	sharpenFlat       = 0.5
	sharpenJagged     = 2.0
	blurSigma         = 0.5
	thresholdLevel    = 128
)

// enhancementSteps lists the transform chain in application order.
var enhancementSteps = []string{
	"grayscale",
	"normalize",
	"gamma",
	"sharpen",
	"blur",
	"threshold",
}

// EnhancementResult extends the compression contract with the ordered
// list of transform steps that were applied, followed by the winning
// compression parameter.
type EnhancementResult struct {
	Data         []byte
	OriginalSize int64
	FinalSize    int64
	Elapsed      time.Duration
	Parameter    string
	AppliedSteps []string
}

func (r *EnhancementResult) SavedBytes() int64 {
	return r.OriginalSize - r.FinalSize
}

// Enhancer prepares an image for OCR: a fixed contrast/sharpness/
// denoise/threshold chain, then a lossless compression-level search to
// stay under the byte budget.
type Enhancer struct {
	codec Codec
}

func NewEnhancer(c Codec) *Enhancer {
	return &Enhancer{codec: c}
}

// applyChain runs the six fixed transforms in order. The final
// threshold produces a bilevel black/white image and is irreversible;
// it is the last visual transform before encoding.
func (e *Enhancer) applyChain(im *codec.Image) *codec.Image {
	im = e.codec.Grayscale(im)
	im = e.codec.Normalize(im, normalizeLowerPct, normalizeUpperPct)
	im = e.codec.Gamma(im, gammaExponent)
	im = e.codec.Sharpen(im, sharpenSigma, sharpenFlat, sharpenJagged)
	im = e.codec.Blur(im, blurSigma)
	im = e.codec.Threshold(im, thresholdLevel)
	return im
}

// Enhance runs the transform chain, then walks the lossless level
// ladder. If no level fits the budget it falls back to the resize
// ladder — restarting the entire chain from the original decoded frame
// at each reduced size, never from the thresholded intermediate:
// rescaling a bilevel image with a smoothing filter would reintroduce
// gray levels and undo the contrast work.
func (e *Enhancer) Enhance(data []byte, budget Budget) (*EnhancementResult, error) {
	start := time.Now()

	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	src, err := e.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	processed := e.applyChain(src)

	level, out, _, fit, err := runLadder(budget.LevelLadder, budget.TargetBytes, func(l int) ([]byte, error) {
		return e.codec.EncodeLossless(processed, l)
	})
	if err != nil {
		return nil, err
	}
	label := fmt.Sprintf("level=%d", level)

	if !fit {
		strictest := budget.LevelLadder[0]
		factor, resized, _, _, rerr := runLadder(budget.ResizeLadder, budget.TargetBytes, func(f float64) ([]byte, error) {
			small := e.codec.Resize(src, scaled(src.Width, f), scaled(src.Height, f))
			return e.codec.EncodeLossless(e.applyChain(small), strictest)
		})
		if rerr != nil {
			return nil, rerr
		}
		out = resized
		label = fmt.Sprintf("level=%d,scale=%d%%", strictest, int(math.Round(factor*100)))
	}

	steps := make([]string, 0, len(enhancementSteps)+1)
	steps = append(steps, enhancementSteps...)
	steps = append(steps, label)

	return &EnhancementResult{
		Data:         out,
		OriginalSize: int64(len(data)),
		FinalSize:    int64(len(out)),
		Elapsed:      time.Since(start),
		Parameter:    label,
		AppliedSteps: steps,
	}, nil
}
