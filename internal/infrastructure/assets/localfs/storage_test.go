package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

func TestUploadWritesFileAndBuildsURL(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "https://cdn.example.com/scans/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ref, err := store.Upload(context.Background(), "abc", domain.Image{Data: []byte("jpeg"), MediaType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if ref.URL != "https://cdn.example.com/scans/abc.jpg" || ref.AssetID != "abc.jpg" {
		t.Fatalf("unexpected ref %+v", ref)
	}
	data, err := os.ReadFile(filepath.Join(dir, "abc.jpg"))
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("expected stored bytes, got %q err=%v", data, err)
	}
}

func TestDeleteMissingAssetSucceeds(t *testing.T) {
	store, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.Delete(context.Background(), "never-written.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestDeleteRemovesUploadedAsset(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir, "")
	ref, err := store.Upload(context.Background(), "k1", domain.Image{Data: []byte("png"), MediaType: "image/png"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := store.Delete(context.Background(), ref.AssetID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "k1.png")); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err = %v", err)
	}
}

func TestRejectsKeysEscapingBaseDir(t *testing.T) {
	store, _ := New(t.TempDir(), "")
	if _, err := store.Upload(context.Background(), "../evil", domain.Image{Data: []byte("x")}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := store.Delete(context.Background(), ".."); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
