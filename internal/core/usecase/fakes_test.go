package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

type stageFake struct {
	name   string
	result domain.DetectionResult
	err    error
	block  bool

	calls    int
	gotImage domain.Image
	gotCrop  string
	gotCause error
}

func (f *stageFake) Name() string { return f.name }

func stagesOf(fakes ...*stageFake) []ports.ClassifierStage {
	out := make([]ports.ClassifierStage, 0, len(fakes))
	for _, f := range fakes {
		out = append(out, f)
	}
	return out
}

func (f *stageFake) Detect(ctx context.Context, img domain.Image, cropType string) (domain.DetectionResult, error) {
	f.calls++
	f.gotImage = img
	f.gotCrop = cropType
	if f.block {
		<-ctx.Done()
		f.gotCause = context.Cause(ctx)
		return domain.DetectionResult{}, ctx.Err()
	}
	if f.err != nil {
		return domain.DetectionResult{}, f.err
	}
	return f.result, nil
}

type validatorFake struct {
	result domain.PlantValidation
	err    error
}

func (f validatorFake) Validate(context.Context, domain.Image) (domain.PlantValidation, error) {
	return f.result, f.err
}

type imagesFake struct {
	err error
}

func (f imagesFake) Normalize(data []byte, mediaType string) (domain.Image, error) {
	if f.err != nil {
		return domain.Image{}, f.err
	}
	return domain.Image{Data: append([]byte("norm:"), data...), MediaType: "image/jpeg", Width: 10, Height: 10}, nil
}

type assetsFake struct {
	uploadErr error
	deleteErr error
	uploaded  []string
	deleted   []string
}

func (f *assetsFake) Upload(_ context.Context, key string, _ domain.Image) (domain.ImageRef, error) {
	if f.uploadErr != nil {
		return domain.ImageRef{}, f.uploadErr
	}
	f.uploaded = append(f.uploaded, key)
	return domain.ImageRef{URL: "https://cdn.test/" + key + ".jpg", AssetID: "asset-" + key}, nil
}

func (f *assetsFake) Delete(_ context.Context, assetID string) error {
	f.deleted = append(f.deleted, assetID)
	return f.deleteErr
}

type releaseQueueFake struct {
	published []string
	err       error
}

func (f *releaseQueueFake) PublishAssetRelease(_ context.Context, assetID string) error {
	f.published = append(f.published, assetID)
	return f.err
}

func (f *releaseQueueFake) SubscribeAssetRelease(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

// memRepo mimics the owner-scoped repository contract in memory.
type memRepo struct {
	mu        sync.Mutex
	records   map[string]domain.ScanRecord
	createErr error
	listErr   error

	// createDelay stalls Create before the write lands.
	createDelay time.Duration
}

func newMemRepo(records ...domain.ScanRecord) *memRepo {
	r := &memRepo{records: make(map[string]domain.ScanRecord)}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *memRepo) Create(_ context.Context, scan *domain.ScanRecord) error {
	time.Sleep(r.createDelay)
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[scan.ID] = *scan
	return nil
}

func (r *memRepo) Get(_ context.Context, ownerID, scanID string) (*domain.ScanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[scanID]
	if !ok || rec.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", errors.New("id="+scanID))
	}
	return &rec, nil
}

func (r *memRepo) List(_ context.Context, ownerID string, filter domain.ScanFilter) ([]domain.ScanRecord, int, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	all := r.owned(ownerID)
	matched := make([]domain.ScanRecord, 0, len(all))
	for _, rec := range all {
		if filter.CropType != "" && rec.CropType != filter.CropType {
			continue
		}
		if filter.Severity != "" && string(rec.Severity) != filter.Severity {
			continue
		}
		if q := strings.ToLower(filter.Search); q != "" &&
			!strings.Contains(strings.ToLower(rec.Disease), q) &&
			!strings.Contains(strings.ToLower(rec.CropType), q) {
			continue
		}
		matched = append(matched, rec)
	}
	total := len(matched)
	if filter.Offset >= total {
		return []domain.ScanRecord{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r *memRepo) ListAll(_ context.Context, ownerID string) ([]domain.ScanRecord, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.owned(ownerID), nil
}

func (r *memRepo) Delete(_ context.Context, ownerID, scanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[scanID]
	if !ok || rec.OwnerID != ownerID {
		return domain.WrapError(domain.ErrScanNotFound, "delete scan", errors.New("id="+scanID))
	}
	delete(r.records, scanID)
	return nil
}

func (r *memRepo) owned(ownerID string) []domain.ScanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ScanRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type observerFake struct {
	mu       sync.Mutex
	stages   []string
	failOpen int
	releases int
}

func (o *observerFake) ObserveStage(stage, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage+":"+outcome)
}

func (o *observerFake) ObserveValidatorFailOpen() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failOpen++
}

func (o *observerFake) ObserveDetection(string, float64) {}

func (o *observerFake) ObserveAssetReleaseFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.releases++
}
