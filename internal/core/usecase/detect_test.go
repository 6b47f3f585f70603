package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/infrastructure/reference"
)

type detectFixture struct {
	primary   *stageFake
	secondary *stageFake
	validator validatorFake
	assets    *assetsFake
	repo      *memRepo
	observer  *observerFake
	images    imagesFake
}

func newDetectFixture() *detectFixture {
	return &detectFixture{
		primary: &stageFake{name: "groq", result: domain.DetectionResult{
			Disease:        "Early Blight",
			Confidence:     0.87,
			Severity:       "Moderate",
			Symptoms:       []string{"ring spots"},
			Recommendation: "apply fungicide",
		}},
		secondary: &stageFake{name: "huggingface", err: errors.New("unused")},
		validator: validatorFake{result: domain.PlantValidation{IsPlant: true, DetectedCrop: "tomato", Confidence: 90}},
		assets:    &assetsFake{},
		repo:      newMemRepo(),
		observer:  &observerFake{},
	}
}

func (f *detectFixture) useCase(t *testing.T) *DetectUseCase {
	t.Helper()
	store, err := reference.Load()
	if err != nil {
		t.Fatalf("reference.Load() error = %v", err)
	}
	cascade := NewCascade(stagesOf(f.primary, f.secondary), NewOfflineStage(rand.NewPCG(1, 1)), time.Second, f.observer)
	uc := NewDetectUseCase(
		DetectConfig{Budget: 2 * time.Second},
		f.images,
		NewPlantGate(f.validator, f.observer),
		cascade,
		store,
		f.assets,
		f.repo,
		f.observer,
	)
	uc.newID = func() string { return "scan-1" }
	uc.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return uc
}

func detectRequest() ports.DetectRequest {
	return ports.DetectRequest{OwnerID: "user-1", CropType: "Tomato", MediaType: "image/jpeg", Data: []byte("jpeg-bytes")}
}

func TestDetectCopiesReferenceProfileOntoScan(t *testing.T) {
	f := newDetectFixture()
	out, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if out.Scan.Confidence != 0.87 || out.Scan.Severity != domain.SeverityModerate {
		t.Fatalf("unexpected scan confidence/severity %#v", out.Scan)
	}
	store, _ := reference.Load()
	profile, _ := store.Lookup("Early Blight")
	if strings.Join(out.Scan.Treatment, "|") != strings.Join(profile.Treatment, "|") {
		t.Fatalf("treatment not copied from profile")
	}
	if strings.Join(out.Scan.Prevention, "|") != strings.Join(profile.Prevention, "|") {
		t.Fatalf("prevention not copied from profile")
	}
	if out.Scan.OwnerID != "user-1" || out.Scan.CropType != "Tomato" {
		t.Fatalf("unexpected owner/crop %#v", out.Scan)
	}
	if !out.Persisted {
		t.Fatalf("expected persisted scan")
	}
	if _, err := f.repo.Get(context.Background(), "user-1", "scan-1"); err != nil {
		t.Fatalf("expected stored scan, got %v", err)
	}
	if out.Scan.Image.AssetID != "asset-scan-1" {
		t.Fatalf("expected uploaded asset reference, got %#v", out.Scan.Image)
	}
	if !strings.HasPrefix(string(f.primary.gotImage.Data), "norm:") {
		t.Fatalf("classifier must receive the normalized image")
	}
}

func TestDetectRejectsMissingIdentity(t *testing.T) {
	f := newDetectFixture()
	req := detectRequest()
	req.OwnerID = " "
	_, err := f.useCase(t).Detect(context.Background(), req)
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if f.primary.calls != 0 {
		t.Fatalf("no classifier call expected")
	}
}

func TestDetectRejectsBadUploadsBeforeAnyProviderCall(t *testing.T) {
	cases := []ports.DetectRequest{
		{OwnerID: "u", MediaType: "image/jpeg"},
		{OwnerID: "u", MediaType: "application/pdf", Data: []byte("x")},
		{OwnerID: "u", MediaType: "image/png", Data: make([]byte, domain.MaxUploadBytes+1)},
	}
	for _, req := range cases {
		f := newDetectFixture()
		_, err := f.useCase(t).Detect(context.Background(), req)
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", req.MediaType, err)
		}
		if f.primary.calls != 0 {
			t.Fatalf("no classifier call expected for %q", req.MediaType)
		}
	}
}

func TestDetectBlocksCropMismatch(t *testing.T) {
	f := newDetectFixture()
	f.validator = validatorFake{result: domain.PlantValidation{IsPlant: true, DetectedCrop: "Banana", Confidence: 85}}
	req := detectRequest()
	req.CropType = "Apple"

	_, err := f.useCase(t).Detect(context.Background(), req)
	var mismatch *domain.CropMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected crop mismatch, got %v", err)
	}
	if mismatch.Verdict.Matches || mismatch.Verdict.SelectedCrop != "Apple" || mismatch.Verdict.DetectedCrop != "Banana" {
		t.Fatalf("unexpected verdict %#v", mismatch.Verdict)
	}
	if f.primary.calls != 0 {
		t.Fatalf("classifier must not run for mismatched crops")
	}
}

func TestDetectRejectsLowConfidencePlant(t *testing.T) {
	f := newDetectFixture()
	f.validator = validatorFake{result: domain.PlantValidation{IsPlant: true, Confidence: 60}}
	_, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if !domain.IsKind(err, domain.ErrNotPlant) {
		t.Fatalf("expected not-a-plant, got %v", err)
	}
}

func TestDetectFailsOpenWhenValidatorErrors(t *testing.T) {
	f := newDetectFixture()
	f.validator = validatorFake{err: errors.New("validator down")}
	req := detectRequest()
	req.CropType = "Apple"

	out, err := f.useCase(t).Detect(context.Background(), req)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !out.Validation.Unverified || out.Validation.Confidence != 50 {
		t.Fatalf("expected fail-open validation, got %#v", out.Validation)
	}
	if !out.CropMatch.Matches || out.CropMatch.Confidence != 50 {
		t.Fatalf("expected fail-open crop verdict, got %#v", out.CropMatch)
	}
	if f.observer.failOpen != 1 {
		t.Fatalf("expected fail-open to be observed")
	}
}

func TestDetectDefaultsCropToTomato(t *testing.T) {
	f := newDetectFixture()
	req := detectRequest()
	req.CropType = ""
	out, err := f.useCase(t).Detect(context.Background(), req)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.Scan.CropType != "Tomato" || f.primary.gotCrop != "Tomato" {
		t.Fatalf("expected Tomato default, got %q / %q", out.Scan.CropType, f.primary.gotCrop)
	}
}

func TestDetectUnknownDiseaseIsHardError(t *testing.T) {
	f := newDetectFixture()
	f.primary.result = domain.DetectionResult{Disease: "Root Rot", Confidence: 0.9, Severity: "Severe"}
	_, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if !domain.IsKind(err, domain.ErrDiseaseNotFound) {
		t.Fatalf("expected disease not found, got %v", err)
	}
	if len(f.repo.records) != 0 {
		t.Fatalf("nothing must be persisted for unknown diseases")
	}
}

func TestDetectResolvesLowercaseDiseaseName(t *testing.T) {
	f := newDetectFixture()
	f.primary.result = domain.DetectionResult{Disease: "early blight", Confidence: 0.6, Severity: "Mild"}
	out, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.Scan.Disease != "Early Blight" {
		t.Fatalf("expected canonical disease name, got %q", out.Scan.Disease)
	}
}

func TestDetectReturnsResultWhenPersistenceFails(t *testing.T) {
	f := newDetectFixture()
	f.repo.createErr = errors.New("db down")
	out, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.Persisted {
		t.Fatalf("expected Persisted=false")
	}
	if out.Scan.ID == "" || out.Scan.Disease != "Early Blight" {
		t.Fatalf("expected full result despite persistence failure, got %#v", out.Scan)
	}
}

func TestDetectUsesPlaceholderWhenUploadFails(t *testing.T) {
	f := newDetectFixture()
	f.assets.uploadErr = errors.New("cdn down")
	out, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.Scan.Image.URL != DefaultPlaceholderImageURL || out.Scan.Image.AssetID != "" {
		t.Fatalf("expected placeholder image, got %#v", out.Scan.Image)
	}
}

func TestDetectKeepsOriginalBytesWhenNormalizeFails(t *testing.T) {
	f := newDetectFixture()
	f.images = imagesFake{err: errors.New("corrupt")}
	if _, err := f.useCase(t).Detect(context.Background(), detectRequest()); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if string(f.primary.gotImage.Data) != "jpeg-bytes" {
		t.Fatalf("expected original bytes, got %q", f.primary.gotImage.Data)
	}
}

func TestDetectRejectsImagesTheNormalizerRefuses(t *testing.T) {
	f := newDetectFixture()
	f.images = imagesFake{err: domain.WrapError(domain.ErrInvalidInput, "normalize image",
		errors.New("image dimensions too large: 12000x12000 exceeds 40000000 pixels"))}
	_, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "image dimensions too large") {
		t.Fatalf("unexpected error text %q", err.Error())
	}
	if f.primary.calls != 0 || len(f.repo.records) != 0 {
		t.Fatalf("expected no classification or persistence, got %d calls, %d records", f.primary.calls, len(f.repo.records))
	}
}

func TestDetectSurfacesProviderConfigError(t *testing.T) {
	f := newDetectFixture()
	f.primary.err = domain.WrapError(domain.ErrProviderConfig, "groq", errors.New("invalid api key"))
	_, err := f.useCase(t).Detect(context.Background(), detectRequest())
	if !domain.IsKind(err, domain.ErrProviderConfig) {
		t.Fatalf("expected provider config error, got %v", err)
	}
}

func TestDetectReturnsTimeoutWhenBudgetExpires(t *testing.T) {
	f := newDetectFixture()
	f.primary.block = true
	uc := f.useCase(t)
	uc.cfg.Budget = 20 * time.Millisecond
	uc.cascade.stageTimeout = 0

	_, err := uc.Detect(context.Background(), detectRequest())
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestDetectReportsPersistedScanWhenWriteOutlastsBudget(t *testing.T) {
	f := newDetectFixture()
	f.repo.createDelay = 80 * time.Millisecond
	uc := f.useCase(t)
	uc.cfg.Budget = 40 * time.Millisecond

	out, err := uc.Detect(context.Background(), detectRequest())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !out.Persisted {
		t.Fatalf("expected Persisted=true")
	}
	if _, ok := f.repo.records[out.Scan.ID]; !ok {
		t.Fatalf("expected scan %q in history", out.Scan.ID)
	}
}
