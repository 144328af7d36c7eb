// Package codec wraps the image decoding, filtering and encoding
// primitives the compression pipelines are built on. Every operation
// returns a new Image; decoded pixels are never mutated in place.
package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is one decoded frame plus the metadata read at decode time.
type Image struct {
	Pixels *image.NRGBA
	Width  int
	Height int
	Format string
}

// Codec implements the pipeline operations on top of
// disintegration/imaging and the stdlib encoders.
type Codec struct{}

func New() *Codec {
	return &Codec{}
}

// Decode reads raw bytes into an Image. Supported formats are whatever
// decoders are registered: png, jpeg, gif, webp, bmp and tiff.
func (c *Codec) Decode(data []byte) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	px := imaging.Clone(img)
	bounds := px.Bounds()

	return &Image{
		Pixels: px,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

func (c *Codec) Grayscale(im *Image) *Image {
	return im.with(imaging.Grayscale(im.Pixels))
}

// Normalize stretches the luminance histogram so that the lowerPct and
// upperPct percentiles map to black and white. Flat images (upper bound
// not above the lower bound) are returned unchanged.
func (c *Codec) Normalize(im *Image, lowerPct, upperPct float64) *Image {
	hist := imaging.Histogram(im.Pixels)

	lo := percentileBin(hist, lowerPct/100)
	hi := percentileBin(hist, upperPct/100)
	if hi <= lo {
		return im.with(imaging.Clone(im.Pixels))
	}

	var lut [256]uint8
	scale := 255.0 / float64(hi-lo)
	for v := 0; v < 256; v++ {
		lut[v] = clampU8(math.Round(float64(v-lo) * scale))
	}

	out := imaging.Clone(im.Pixels)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = lut[out.Pix[i]]
		out.Pix[i+1] = lut[out.Pix[i+1]]
		out.Pix[i+2] = lut[out.Pix[i+2]]
	}
	return im.with(out)
}

func (c *Codec) Gamma(im *Image, exponent float64) *Image {
	return im.with(imaging.AdjustGamma(im.Pixels, exponent))
}

// Sharpen applies a thresholded unsharp mask: the difference between a
// pixel and its gaussian-blurred neighborhood is scaled by the flat
// slope for small deltas and the jagged slope for large ones, so edges
// are boosted harder than near-uniform regions.
func (c *Codec) Sharpen(im *Image, sigma, flat, jagged float64) *Image {
	const edgeCutoff = 8 // delta below this counts as a flat region

	blurred := imaging.Blur(im.Pixels, sigma)
	out := imaging.Clone(im.Pixels)
	for i := 0; i < len(out.Pix); i++ {
		if i%4 == 3 {
			continue // alpha untouched
		}
		d := int(out.Pix[i]) - int(blurred.Pix[i])
		slope := jagged
		if d > -edgeCutoff && d < edgeCutoff {
			slope = flat
		}
		out.Pix[i] = clampU8(float64(out.Pix[i]) + slope*float64(d))
	}
	return im.with(out)
}

func (c *Codec) Blur(im *Image, sigma float64) *Image {
	return im.with(imaging.Blur(im.Pixels, sigma))
}

// Threshold maps the image to pure black and white: pixels whose
// luminance is at or above level become white, the rest black.
func (c *Codec) Threshold(im *Image, level uint8) *Image {
	out := imaging.Clone(im.Pixels)
	for i := 0; i < len(out.Pix); i += 4 {
		y := (299*int(out.Pix[i]) + 587*int(out.Pix[i+1]) + 114*int(out.Pix[i+2])) / 1000
		var v uint8
		if y >= int(level) {
			v = 255
		}
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = v, v, v
		out.Pix[i+3] = 255
	}
	return im.with(out)
}

// Resize scales to width x height with a Lanczos filter. Dimensions are
// clamped to at least 1px, and the image is never enlarged beyond its
// current size.
func (c *Codec) Resize(im *Image, width, height int) *Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width >= im.Width && height >= im.Height {
		return im.with(imaging.Clone(im.Pixels))
	}

	out := imaging.Resize(im.Pixels, width, height, imaging.Lanczos)
	bounds := out.Bounds()
	return &Image{
		Pixels: out,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: im.Format,
	}
}

// EncodeLossy produces a JPEG at the given quality (1-100).
func (c *Codec) EncodeLossy(im *Image, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, im.Pixels, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &EncodeError{Format: "jpeg", Err: err}
	}
	return buf.Bytes(), nil
}

// EncodeLossless produces a PNG. The 0-9 level selects the deflate
// effort: 7-9 best compression, 3-6 default, 1-2 best speed, 0 store.
// Fully achromatic images are written as 8-bit grayscale, which is
// still lossless and considerably smaller.
func (c *Codec) EncodeLossless(im *Image, level int) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: pngLevel(level)}

	var src image.Image = im.Pixels
	if gray := toGray(im.Pixels); gray != nil {
		src = gray
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, src); err != nil {
		return nil, &EncodeError{Format: "png", Err: err}
	}
	return buf.Bytes(), nil
}

func (im *Image) with(px *image.NRGBA) *Image {
	return &Image{
		Pixels: px,
		Width:  im.Width,
		Height: im.Height,
		Format: im.Format,
	}
}

// percentileBin returns the first histogram bin whose cumulative mass
// reaches the given fraction.
func percentileBin(hist [256]float64, frac float64) int {
	cum := 0.0
	for v := 0; v < 256; v++ {
		cum += hist[v]
		if cum >= frac {
			return v
		}
	}
	return 255
}

func pngLevel(level int) png.CompressionLevel {
	switch {
	case level >= 7:
		return png.BestCompression
	case level >= 3:
		return png.DefaultCompression
	case level >= 1:
		return png.BestSpeed
	default:
		return png.NoCompression
	}
}

// toGray returns an 8-bit grayscale copy when every pixel is opaque and
// achromatic, nil otherwise.
func toGray(src *image.NRGBA) *image.Gray {
	for i := 0; i < len(src.Pix); i += 4 {
		if src.Pix[i] != src.Pix[i+1] || src.Pix[i+1] != src.Pix[i+2] || src.Pix[i+3] != 255 {
			return nil
		}
	}

	bounds := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			gray.SetGray(x, y, color.Gray{Y: src.Pix[y*src.Stride+x*4]})
		}
	}
	return gray
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
