package domain

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeConfidenceDividesPercentages(t *testing.T) {
	if got := NormalizeConfidence(92); math.Abs(got-0.92) > 1e-9 {
		t.Fatalf("expected 0.92, got %v", got)
	}
	if got := NormalizeConfidence(0.87); got != 0.87 {
		t.Fatalf("expected 0.87 unchanged, got %v", got)
	}
}

func TestNormalizeConfidenceClampsIntoUnitInterval(t *testing.T) {
	for _, raw := range []float64{-3, 250, math.NaN(), math.Inf(1), math.Inf(-1), 1, 0, 100} {
		got := NormalizeConfidence(raw)
		if got < 0 || got > 1 || math.IsNaN(got) {
			t.Fatalf("NormalizeConfidence(%v) = %v, want value in [0,1]", raw, got)
		}
	}
}

func TestNormalizeDetectionCoercesUnknownSeverity(t *testing.T) {
	got := NormalizeDetection(DetectionResult{Disease: "Early Blight", Confidence: 0.5, Severity: "catastrophic"})
	if got.Severity != SeverityModerate {
		t.Fatalf("expected Moderate, got %q", got.Severity)
	}

	got = NormalizeDetection(DetectionResult{Disease: "Early Blight", Severity: "severe"})
	if got.Severity != SeveritySevere {
		t.Fatalf("expected Severe from lowercase input, got %q", got.Severity)
	}
}

func TestNormalizeDetectionNeverReturnsNilSymptoms(t *testing.T) {
	got := NormalizeDetection(DetectionResult{Disease: "Healthy Plant", Symptoms: []string{" ", "yellowing "}})
	if got.Symptoms == nil {
		t.Fatalf("expected non-nil symptoms")
	}
	if len(got.Symptoms) != 1 || got.Symptoms[0] != "yellowing" {
		t.Fatalf("unexpected symptoms %#v", got.Symptoms)
	}
}

func TestStripCodeFence(t *testing.T) {
	raw := "```json\n{\"disease_detected\":\"Leaf Mold\"}\n```"
	if got := StripCodeFence(raw); got != `{"disease_detected":"Leaf Mold"}` {
		t.Fatalf("unexpected stripped payload %q", got)
	}
	if got := StripCodeFence("```\n{}\n```"); got != "{}" {
		t.Fatalf("expected bare fence stripped, got %q", got)
	}
	if got := StripCodeFence(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("expected unfenced input unchanged, got %q", got)
	}
}

func TestExtractJSONObjectDropsProse(t *testing.T) {
	got := ExtractJSONObject("Sure! Here it is: {\"isPlant\": true} hope that helps")
	if got != `{"isPlant": true}` {
		t.Fatalf("unexpected extraction %q", got)
	}
}

func TestCropMismatchErrorMatchesKind(t *testing.T) {
	err := WrapError(ErrInvalidInput, "detect", &CropMismatchError{Verdict: CropMatchVerdict{Message: "apple vs banana"}})
	if !IsKind(err, ErrCropMismatch) {
		t.Fatalf("expected crop mismatch kind, got %v", err)
	}
	var mismatch *CropMismatchError
	if !errors.As(err, &mismatch) || mismatch.Verdict.Message != "apple vs banana" {
		t.Fatalf("expected verdict to survive wrapping, got %v", err)
	}
}
