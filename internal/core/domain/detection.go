package domain

import (
	"math"
	"strings"
)

// DetectionResult is the canonical output of one classifier stage.
type DetectionResult struct {
	Disease        string   `json:"disease"`
	Confidence     float64  `json:"confidence"`
	Severity       Severity `json:"severity"`
	Symptoms       []string `json:"symptoms"`
	Recommendation string   `json:"recommendation"`
	CropAnalysis   string   `json:"crop_analysis,omitempty"`
	Stage          string   `json:"stage"`
}

// NormalizeConfidence maps provider confidence onto [0,1]. Values above 1 are
// read as percentages.
func NormalizeConfidence(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, -1) {
		return 0
	}
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizeDetection applies the uniform post-processing every stage output
// goes through before leaving the cascade.
func NormalizeDetection(raw DetectionResult) DetectionResult {
	out := DetectionResult{
		Disease:        strings.TrimSpace(StripCodeFence(raw.Disease)),
		Confidence:     NormalizeConfidence(raw.Confidence),
		Severity:       raw.Severity,
		Recommendation: strings.TrimSpace(raw.Recommendation),
		CropAnalysis:   strings.TrimSpace(raw.CropAnalysis),
		Stage:          raw.Stage,
		Symptoms:       make([]string, 0, len(raw.Symptoms)),
	}
	if !out.Severity.Valid() {
		out.Severity = ParseSeverity(string(raw.Severity))
	}
	for _, s := range raw.Symptoms {
		s = strings.TrimSpace(s)
		if s != "" {
			out.Symptoms = append(out.Symptoms, s)
		}
	}
	return out
}

// StripCodeFence removes a surrounding markdown code fence, with or without a
// language tag.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		tag := strings.TrimSpace(s[:nl])
		if tag == "" || !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the outermost {...} span of a model reply.
func ExtractJSONObject(raw string) string {
	s := StripCodeFence(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
