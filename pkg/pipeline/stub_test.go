package pipeline

import (
	"fmt"

	"imagepress/pkg/codec"
)

// stubCodec records every operation it performs. Images carry a tag in
// the Format field so tests can tell which buffer an operation ran on.
type stubCodec struct {
	ops []string

	decodeErr error
	width     int
	height    int

	// lossySize and losslessSize compute the fake encoded length from
	// the parameter and the image width.
	lossySize    func(width, quality int) int
	losslessSize func(width, level int) int

	lossyErr    error
	losslessErr error
}

func (s *stubCodec) record(format string, args ...any) {
	s.ops = append(s.ops, fmt.Sprintf(format, args...))
}

func (s *stubCodec) Decode(data []byte) (*codec.Image, error) {
	s.record("decode")
	if s.decodeErr != nil {
		return nil, s.decodeErr
	}
	return &codec.Image{Width: s.width, Height: s.height, Format: "original"}, nil
}

func (s *stubCodec) tagged(im *codec.Image, tag string) *codec.Image {
	return &codec.Image{Width: im.Width, Height: im.Height, Format: tag}
}

func (s *stubCodec) Grayscale(im *codec.Image) *codec.Image {
	s.record("grayscale")
	return s.tagged(im, "gray")
}

func (s *stubCodec) Normalize(im *codec.Image, lowerPct, upperPct float64) *codec.Image {
	s.record("normalize(%.0f,%.0f)", lowerPct, upperPct)
	return s.tagged(im, "normalized")
}

func (s *stubCodec) Gamma(im *codec.Image, exponent float64) *codec.Image {
	s.record("gamma(%.1f)", exponent)
	return s.tagged(im, "gamma")
}

func (s *stubCodec) Sharpen(im *codec.Image, sigma, flat, jagged float64) *codec.Image {
	s.record("sharpen")
	return s.tagged(im, "sharpened")
}

func (s *stubCodec) Blur(im *codec.Image, sigma float64) *codec.Image {
	s.record("blur")
	return s.tagged(im, "blurred")
}

func (s *stubCodec) Threshold(im *codec.Image, level uint8) *codec.Image {
	s.record("threshold(%d)", level)
	return s.tagged(im, "bilevel")
}

func (s *stubCodec) Resize(im *codec.Image, width, height int) *codec.Image {
	s.record("resize[%s](%dx%d)", im.Format, width, height)
	out := s.tagged(im, "resized")
	out.Width, out.Height = width, height
	return out
}

func (s *stubCodec) EncodeLossy(im *codec.Image, quality int) ([]byte, error) {
	s.record("lossy(q=%d,w=%d)", quality, im.Width)
	if s.lossyErr != nil {
		return nil, s.lossyErr
	}
	return make([]byte, s.lossySize(im.Width, quality)), nil
}

func (s *stubCodec) EncodeLossless(im *codec.Image, level int) ([]byte, error) {
	s.record("lossless(level=%d,w=%d)", level, im.Width)
	if s.losslessErr != nil {
		return nil, s.losslessErr
	}
	return make([]byte, s.losslessSize(im.Width, level)), nil
}

func (s *stubCodec) countOps(prefix string) int {
	n := 0
	for _, op := range s.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
