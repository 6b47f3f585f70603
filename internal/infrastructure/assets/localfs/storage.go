package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// Storage keeps scan images on local disk and serves them under a public
// base URL.
type Storage struct {
	basePath      string
	publicBaseURL string
}

func New(basePath, publicBaseURL string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/assets"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "/assets"
	}
	return &Storage{basePath: abs, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir is the directory files are written to.
func (s *Storage) Dir() string {
	return s.basePath
}

func (s *Storage) Upload(_ context.Context, key string, img domain.Image) (domain.ImageRef, error) {
	name := key + extensionFor(img.MediaType)
	path, err := s.resolve(name)
	if err != nil {
		return domain.ImageRef{}, err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, img.Data, 0o644); err != nil {
		return domain.ImageRef{}, fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return domain.ImageRef{}, fmt.Errorf("commit file: %w", err)
	}
	return domain.ImageRef{URL: s.publicBaseURL + "/" + name, AssetID: name}, nil
}

// Delete removes an asset. A missing file counts as already released.
func (s *Storage) Delete(_ context.Context, assetID string) error {
	path, err := s.resolve(assetID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *Storage) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve asset path", fmt.Errorf("invalid asset id %q", name))
	}
	path := filepath.Join(s.basePath, name)
	if filepath.Dir(path) != s.basePath {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve asset path", fmt.Errorf("asset id %q escapes storage dir", name))
	}
	return path, nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		return ".jpg"
	}
}
