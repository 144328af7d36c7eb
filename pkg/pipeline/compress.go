package pipeline

import (
	"fmt"
	"math"
	"time"
)

// CompressionResult is the contract surfaced to the caller: the final
// encoded bytes plus what it took to get there. FinalSize is not
// guaranteed to be at or below OriginalSize — a tiny, already optimal
// input can grow under forced re-encoding — but the search always
// terminates with some valid output.
type CompressionResult struct {
	Data         []byte
	OriginalSize int64
	FinalSize    int64
	Elapsed      time.Duration

	// Parameter names the winning setting, e.g. "q=65" or
	// "q=40,scale=80%".
	Parameter string
}

// SavedBytes may be negative when the output grew.
func (r *CompressionResult) SavedBytes() int64 {
	return r.OriginalSize - r.FinalSize
}

// Compressor converges an input image to a byte budget by trying
// decreasing lossy qualities, then decreasing resize factors.
type Compressor struct {
	codec Codec
}

func NewCompressor(c Codec) *Compressor {
	return &Compressor{codec: c}
}

// Compress decodes the input, converts to grayscale and walks the
// quality ladder high to low, stopping at the first output within
// budget. If even the lowest quality is too big it falls back to the
// resize ladder: each factor rescales the original decoded frame,
// re-applies grayscale and re-encodes at the fixed fallback quality.
// The resize fallback is best effort — the smallest factor's output is
// accepted even when it still exceeds the budget.
func (c *Compressor) Compress(data []byte, budget Budget) (*CompressionResult, error) {
	start := time.Now()

	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	src, err := c.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	gray := c.codec.Grayscale(src)

	quality, out, _, fit, err := runLadder(budget.QualityLadder, budget.TargetBytes, func(q int) ([]byte, error) {
		return c.codec.EncodeLossy(gray, q)
	})
	if err != nil {
		return nil, err
	}
	label := fmt.Sprintf("q=%d", quality)

	if !fit {
		factor, resized, _, _, rerr := runLadder(budget.ResizeLadder, budget.TargetBytes, func(f float64) ([]byte, error) {
			small := c.codec.Resize(src, scaled(src.Width, f), scaled(src.Height, f))
			return c.codec.EncodeLossy(c.codec.Grayscale(small), budget.FallbackQuality)
		})
		if rerr != nil {
			return nil, rerr
		}
		out = resized
		label = fmt.Sprintf("q=%d,scale=%d%%", budget.FallbackQuality, int(math.Round(factor*100)))
	}

	return &CompressionResult{
		Data:         out,
		OriginalSize: int64(len(data)),
		FinalSize:    int64(len(out)),
		Elapsed:      time.Since(start),
		Parameter:    label,
	}, nil
}
