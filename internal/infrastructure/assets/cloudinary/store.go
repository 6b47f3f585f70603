// Package cloudinary keeps scan images in a Cloudinary folder. The asset id is
// the Cloudinary public id.
package cloudinary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const DefaultFolder = "cropguard-scans"

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type Store struct {
	api    uploadAPI
	folder string
}

func New(cloudName, apiKey, apiSecret, folder string) (*Store, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, domain.WrapError(domain.ErrProviderConfig, "cloudinary init", errors.New("cloud name, api key and api secret are required"))
	}
	client, err := cld.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return newStore(&client.Upload, folder), nil
}

func newStore(upload uploadAPI, folder string) *Store {
	if strings.TrimSpace(folder) == "" {
		folder = DefaultFolder
	}
	return &Store{api: upload, folder: strings.Trim(folder, "/")}
}

func (s *Store) Upload(ctx context.Context, key string, img domain.Image) (domain.ImageRef, error) {
	resp, err := s.api.Upload(ctx, bytes.NewReader(img.Data), uploader.UploadParams{
		PublicID:       key,
		Folder:         s.folder,
		ResourceType:   "image",
		Overwrite:      api.Bool(true),
		UniqueFilename: api.Bool(false),
	})
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return domain.ImageRef{}, fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return domain.ImageRef{}, errors.New("cloudinary upload: empty secure url")
	}
	return domain.ImageRef{URL: resp.SecureURL, AssetID: resp.PublicID}, nil
}

// Delete destroys an asset by public id. "not found" counts as released.
func (s *Store) Delete(ctx context.Context, assetID string) error {
	resp, err := s.api.Destroy(ctx, uploader.DestroyParams{
		PublicID:     assetID,
		ResourceType: "image",
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", resp.Error.Message)
	}
	switch resp.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("cloudinary destroy: unexpected result %q", resp.Result)
	}
}
