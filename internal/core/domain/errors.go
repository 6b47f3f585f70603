package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrScanNotFound    = errors.New("scan not found")
	ErrDiseaseNotFound = errors.New("disease not found in reference table")
	ErrNotPlant        = errors.New("image does not show a plant")
	ErrCropMismatch    = errors.New("crop type mismatch")
	ErrProviderConfig  = errors.New("provider configuration error")
	ErrRateLimited     = errors.New("rate limited")
	ErrTemporary       = errors.New("temporary failure")
	ErrTimeout         = errors.New("operation timed out")

	// ErrStageTimeout is the cancellation cause of a classifier stage's own
	// sub-deadline, as opposed to the caller's overall budget.
	ErrStageTimeout = errors.New("classifier stage deadline exceeded")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// CropMismatchError blocks a detection whose declared crop disagrees with the
// crop the validator saw in the image.
type CropMismatchError struct {
	Verdict CropMatchVerdict
}

func (e *CropMismatchError) Error() string {
	if e == nil {
		return ErrCropMismatch.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCropMismatch.Error(), e.Verdict.Message)
}

func (e *CropMismatchError) Unwrap() error {
	return ErrCropMismatch
}

// NotPlantError carries the validator verdict for rejected uploads.
type NotPlantError struct {
	Validation PlantValidation
}

func (e *NotPlantError) Error() string {
	if e == nil || e.Validation.Reasoning == "" {
		return ErrNotPlant.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotPlant.Error(), e.Validation.Reasoning)
}

func (e *NotPlantError) Unwrap() error {
	return ErrNotPlant
}

const replySnippetLimit = 300

// ProviderReplyError reports a provider reply that could not be used. Raw
// keeps a bounded snippet of the reply for logs.
type ProviderReplyError struct {
	Provider string
	Raw      string
	Err      error
}

func NewProviderReplyError(provider, raw string, err error) *ProviderReplyError {
	if len(raw) > replySnippetLimit {
		raw = raw[:replySnippetLimit]
	}
	return &ProviderReplyError{Provider: provider, Raw: raw, Err: err}
}

func (e *ProviderReplyError) Error() string {
	return fmt.Sprintf("%s reply: %v", e.Provider, e.Err)
}

func (e *ProviderReplyError) Unwrap() error {
	return e.Err
}
