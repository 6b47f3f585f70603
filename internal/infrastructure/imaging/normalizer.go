package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const (
	DefaultMaxDimension = 1024
	DefaultJPEGQuality  = 85
	DefaultMaxPixels    = 40_000_000
)

// Normalizer fits uploads inside a square bound without enlarging them and
// re-encodes them as JPEG.
type Normalizer struct {
	maxDimension int
	quality      int
	maxPixels    int
}

// NewNormalizer builds a normalizer. maxPixels caps width*height as read from
// the image header; larger images are rejected before any pixel is decoded.
func NewNormalizer(maxDimension, quality, maxPixels int) *Normalizer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Normalizer{maxDimension: maxDimension, quality: quality, maxPixels: maxPixels}
}

// Normalize returns an ErrInvalidInput error when the header declares more
// pixels than allowed; other failures are plain decode or encode errors.
func (n *Normalizer) Normalize(data []byte, mediaType string) (domain.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("read %s image header: %w", mediaType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return domain.Image{}, fmt.Errorf("read %s image header: empty %dx%d image", mediaType, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(n.maxPixels) {
		return domain.Image{}, domain.WrapError(domain.ErrInvalidInput, "normalize image",
			fmt.Errorf("image dimensions too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, n.maxPixels))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("decode %s image: %w", mediaType, err)
	}

	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), n.maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.quality}); err != nil {
		return domain.Image{}, fmt.Errorf("encode %s image as jpeg: %w", format, err)
	}
	return domain.Image{
		Data:      buf.Bytes(),
		MediaType: "image/jpeg",
		Width:     w,
		Height:    h,
	}, nil
}

// fitWithin scales (w, h) down to fit a max x max box, keeping aspect ratio.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		scaled := h * max / w
		if scaled < 1 {
			scaled = 1
		}
		return max, scaled
	}
	scaled := w * max / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, max
}
