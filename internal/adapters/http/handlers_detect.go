package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

const (
	multipartOverheadBytes = 1 << 20
	multipartMemoryBytes   = 8 << 20
)

type detectResponse struct {
	ScanID           string                  `json:"scan_id"`
	Disease          string                  `json:"disease"`
	Confidence       float64                 `json:"confidence"`
	Severity         domain.Severity         `json:"severity"`
	Description      string                  `json:"description"`
	Symptoms         []string                `json:"symptoms"`
	Treatment        []string                `json:"treatment"`
	Prevention       []string                `json:"prevention"`
	OrganicTreatment []string                `json:"organic_treatment"`
	CostEstimate     string                  `json:"cost_estimate"`
	ScientificName   string                  `json:"scientific_name"`
	ImageURL         string                  `json:"image_url"`
	Timestamp        time.Time               `json:"timestamp"`
	CropType         string                  `json:"crop_type"`
	Stage            string                  `json:"stage"`
	CropMatch        domain.CropMatchVerdict `json:"crop_match"`
	ValidationNote   string                  `json:"validation_note,omitempty"`
	Persisted        bool                    `json:"persisted"`
}

func newDetectResponse(outcome *ports.DetectionOutcome) detectResponse {
	scan := outcome.Scan
	description := strings.TrimSpace(outcome.Detection.CropAnalysis)
	if description == "" {
		description = outcome.Profile.Description
	}
	return detectResponse{
		ScanID:           scan.ID,
		Disease:          scan.Disease,
		Confidence:       math.Round(scan.Confidence*100) / 100,
		Severity:         scan.Severity,
		Description:      description,
		Symptoms:         nonNil(scan.Symptoms),
		Treatment:        nonNil(scan.Treatment),
		Prevention:       nonNil(scan.Prevention),
		OrganicTreatment: nonNil(scan.OrganicTreatment),
		CostEstimate:     scan.CostEstimate,
		ScientificName:   scan.ScientificName,
		ImageURL:         scan.Image.URL,
		Timestamp:        scan.CreatedAt,
		CropType:         scan.CropType,
		Stage:            outcome.Detection.Stage,
		CropMatch:        outcome.CropMatch,
		ValidationNote:   outcome.Validation.Note,
		Persisted:        outcome.Persisted,
	}
}

func (rt *Router) detect(w http.ResponseWriter, r *http.Request) {
	limit := rt.maxUploadBytes
	if limit <= 0 {
		limit = domain.MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverheadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "detect", fmt.Errorf("upload exceeds %d bytes", limit)))
			return
		}
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "detect", errors.New("multipart form with an 'image' field is required")))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "detect", errors.New("image is required")))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "detect", fmt.Errorf("read image: %w", err)))
		return
	}

	mediaType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}

	outcome, err := rt.detector.Detect(r.Context(), ports.DetectRequest{
		OwnerID:   ownerFromContext(r.Context()),
		CropType:  r.FormValue("crop_type"),
		MediaType: mediaType,
		Data:      data,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDetectResponse(outcome))
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
