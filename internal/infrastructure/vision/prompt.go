package vision

import (
	"fmt"
	"strings"
)

// DetectionPrompt asks for a disease from a fixed list, confirming or
// correcting the declared crop along the way.
func DetectionPrompt(cropType string, diseases []string) string {
	var list strings.Builder
	for _, name := range diseases {
		list.WriteString("- ")
		list.WriteString(name)
		list.WriteString("\n")
	}

	return fmt.Sprintf(`You are an expert plant pathologist. The user says this image shows a %[1]s plant.
First confirm or correct the crop, then analyze the plant for diseases.

Name the disease ONLY from this list, or "Healthy Plant" if no clear symptoms are visible:
%[2]s
CRITICAL: Respond ONLY with valid JSON. No markdown, no explanation, no additional text.

{
  "disease_detected": "exact disease name from the list",
  "confidence": 0.95,
  "severity": "None|Mild|Moderate|Severe",
  "symptoms_observed": ["specific symptom 1", "symptom 2"],
  "recommendation": "brief treatment advice in 1 sentence",
  "crop_analysis": "one sentence on the crop shown and its overall condition"
}

Confidence reflects certainty of diagnosis (0.0 to 1.0).
Severity: None (healthy), Mild (early stage), Moderate (noticeable), Severe (advanced).`, cropType, list.String())
}

const ValidationPrompt = `Analyze this image and determine:
1. Is this a plant, crop, fruit, or vegetable? (YES/NO)
2. If yes, what specific crop/plant is it?
3. Confidence level (0-100)

Respond ONLY in this JSON format:
{
  "isPlant": true,
  "cropType": "specific crop name or null",
  "confidence": 85,
  "reasoning": "brief explanation"
}`
