package domain

import (
	"encoding/base64"
	"strings"
)

const MaxUploadBytes = 10 << 20

// Image is an upload after normalization.
type Image struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
}

func (img Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// DataURL renders the image as an inline data: URL for vision providers.
func (img Image) DataURL() string {
	return "data:" + img.MediaType + ";base64," + img.Base64()
}

var acceptedMediaTypes = map[string]string{
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/png":  "image/png",
	"image/webp": "image/webp",
	"image/gif":  "image/gif",
	"image/bmp":  "image/bmp",
	"image/tiff": "image/tiff",
}

// CanonicalMediaType reports the canonical form of an accepted upload type.
func CanonicalMediaType(mediaType string) (string, bool) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	canonical, ok := acceptedMediaTypes[mt]
	return canonical, ok
}
