package domain

import "strings"

type labelHint struct {
	keyword        string
	symptoms       []string
	recommendation string
}

var labelHints = []labelHint{
	{"blight", []string{"Dark spots on leaves", "Water-soaked lesions", "Yellowing around spots"}, "Apply copper-based fungicide and improve air circulation"},
	{"bacterial", []string{"Small dark lesions", "Yellow halos around spots", "Leaf distortion"}, "Use bactericide spray and remove infected plant material"},
	{"mosaic", []string{"Mottled yellow and green patterns", "Leaf curling", "Stunted growth"}, "Remove infected plants and control aphid vectors"},
	{"powdery", []string{"White powdery coating", "Yellowing leaves", "Distorted growth"}, "Apply sulfur-based fungicide and ensure proper spacing"},
	{"septoria", []string{"Small circular spots", "Gray centers with dark borders", "Yellowing leaves"}, "Apply fungicide and remove lower infected leaves"},
	{"healthy", []string{"No visible symptoms", "Healthy green color", "Normal growth pattern"}, "Continue current care routine and monitor regularly"},
}

var (
	genericSymptoms       = []string{"Various symptoms observed", "Requires closer inspection"}
	genericRecommendation = "Consult with a plant pathologist for proper diagnosis and treatment"
)

// LabelHints returns short symptom and recommendation text for a classifier
// label or disease name, matched by keyword.
func LabelHints(label string) ([]string, string) {
	lower := strings.ToLower(label)
	for _, hint := range labelHints {
		if strings.Contains(lower, hint.keyword) {
			return cloneStrings(hint.symptoms), hint.recommendation
		}
	}
	return cloneStrings(genericSymptoms), genericRecommendation
}
