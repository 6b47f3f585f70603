// Package crops resolves free-text crop names against the canonical crop
// table and decides whether a declared crop agrees with a detected one.
package crops

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const (
	DefaultCrop        = "Tomato"
	maxSuggestions     = 5
	minSuggestionInput = 2
	minCustomCropLen   = 2
	maxCustomCropLen   = 50
)

type cropAliases struct {
	canonical string
	aliases   []string
}

var table = []cropAliases{
	{"Tomato", []string{"tomato", "tomatoes", "cherry tomato", "beefsteak tomato"}},
	{"Apple", []string{"apple", "apples", "red apple", "green apple", "granny smith"}},
	{"Banana", []string{"banana", "bananas", "plantain", "cooking banana"}},
	{"Orange", []string{"orange", "oranges", "mandarin", "tangerine", "citrus"}},
	{"Mango", []string{"mango", "mangoes", "mango tree"}},
	{"Potato", []string{"potato", "potatoes", "sweet potato", "irish potato"}},
	{"Corn", []string{"corn", "maize", "sweet corn", "field corn"}},
	{"Rice", []string{"rice", "paddy", "rice plant", "rice grain"}},
	{"Wheat", []string{"wheat", "wheat plant", "grain"}},
	{"Cotton", []string{"cotton", "cotton plant", "cotton boll"}},
	{"Soybean", []string{"soybean", "soy", "soya bean"}},
	{"Pepper", []string{"pepper", "bell pepper", "chili", "capsicum"}},
	{"Cucumber", []string{"cucumber", "cucumbers", "pickle"}},
	{"Cabbage", []string{"cabbage", "lettuce", "leafy greens"}},
	{"Carrot", []string{"carrot", "carrots"}},
	{"Onion", []string{"onion", "onions", "shallot"}},
	{"Grape", []string{"grape", "grapes", "wine grape", "table grape"}},
	{"Strawberry", []string{"strawberry", "strawberries"}},
	{"Watermelon", []string{"watermelon", "melon"}},
	{"Pineapple", []string{"pineapple", "pine apple"}},
}

// Supported lists canonical crop names in table order.
func Supported() []string {
	out := make([]string, 0, len(table))
	for _, entry := range table {
		out = append(out, entry.canonical)
	}
	return out
}

// Normalize maps free text to a canonical crop name. Unknown input is returned
// with only its first letter capitalized.
func Normalize(freeText string) string {
	key := strings.ToLower(strings.TrimSpace(freeText))
	if key == "" {
		return ""
	}
	if entry, ok := lookup(key); ok {
		return entry.canonical
	}
	return capitalize(key)
}

// IsKnown reports whether freeText resolves through the alias table.
func IsKnown(freeText string) bool {
	_, ok := lookup(strings.ToLower(strings.TrimSpace(freeText)))
	return ok
}

func lookup(key string) (cropAliases, bool) {
	for _, entry := range table {
		if strings.ToLower(entry.canonical) == key {
			return entry, true
		}
		for _, alias := range entry.aliases {
			if alias == key {
				return entry, true
			}
		}
	}
	return cropAliases{}, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// MatchCropTypes decides whether the declared crop agrees with the detected
// one. A missing detection never blocks.
func MatchCropTypes(selected, detected string) domain.CropMatchVerdict {
	selectedNorm := Normalize(selected)
	detectedRaw := strings.TrimSpace(detected)
	if detectedRaw == "" || strings.EqualFold(detectedRaw, "unknown") {
		return domain.CropMatchVerdict{
			Matches:      true,
			SelectedCrop: selectedNorm,
			DetectedCrop: "Unknown",
			Confidence:   50,
			Message:      fmt.Sprintf("Analyzing as %s - please ensure your image shows a %s", selectedNorm, strings.ToLower(selectedNorm)),
		}
	}

	detectedNorm := Normalize(detectedRaw)
	if selectedNorm == detectedNorm {
		return domain.CropMatchVerdict{
			Matches:      true,
			SelectedCrop: selectedNorm,
			DetectedCrop: detectedNorm,
			Confidence:   95,
			Message:      fmt.Sprintf("Crop type confirmed: %s", selectedNorm),
		}
	}

	if isAliasOf(selected, detectedNorm) || isAliasOf(detectedRaw, selectedNorm) {
		return domain.CropMatchVerdict{
			Matches:      true,
			SelectedCrop: selectedNorm,
			DetectedCrop: detectedNorm,
			Confidence:   85,
			Message:      fmt.Sprintf("Crop type matches: %s is a variety of %s", detectedNorm, selectedNorm),
		}
	}

	return domain.CropMatchVerdict{
		Matches:      false,
		SelectedCrop: selectedNorm,
		DetectedCrop: detectedNorm,
		Confidence:   90,
		Message: fmt.Sprintf(
			"Crop mismatch: you selected %s but the image appears to show %s. Please select the correct crop type or upload a %s image.",
			selectedNorm, detectedNorm, strings.ToLower(selectedNorm),
		),
	}
}

// isAliasOf reports whether name appears in the alias list of canonical.
func isAliasOf(name, canonical string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, entry := range table {
		if entry.canonical != canonical {
			continue
		}
		for _, alias := range entry.aliases {
			if alias == key {
				return true
			}
		}
	}
	return false
}

// Suggestions returns up to five canonical names whose name or aliases
// contain partial, case-insensitively.
func Suggestions(partial string) []string {
	key := strings.ToLower(strings.TrimSpace(partial))
	out := []string{}
	if len(key) < minSuggestionInput {
		return out
	}
	for _, entry := range table {
		if matchesPartial(entry, key) {
			out = append(out, entry.canonical)
			if len(out) == maxSuggestions {
				break
			}
		}
	}
	return out
}

func matchesPartial(entry cropAliases, key string) bool {
	if strings.Contains(strings.ToLower(entry.canonical), key) {
		return true
	}
	for _, alias := range entry.aliases {
		if strings.Contains(alias, key) {
			return true
		}
	}
	return false
}

// ValidateCustomCrop checks a user-entered crop name for the crop picker.
func ValidateCustomCrop(name string) domain.CropNameCheck {
	trimmed := strings.TrimSpace(name)
	length := utf8.RuneCountInString(trimmed)
	if length < minCustomCropLen {
		return domain.CropNameCheck{
			Status:      domain.CropNameInvalid,
			Suggestions: []string{},
			Message:     "Crop name must be at least 2 characters",
		}
	}
	if length > maxCustomCropLen {
		return domain.CropNameCheck{
			Status:      domain.CropNameInvalid,
			Suggestions: []string{},
			Message:     "Crop name must be at most 50 characters",
		}
	}

	if entry, ok := lookup(strings.ToLower(trimmed)); ok {
		return domain.CropNameCheck{
			Status:      domain.CropNameExact,
			Canonical:   entry.canonical,
			Suggestions: []string{},
			Message:     fmt.Sprintf("%s is a supported crop", entry.canonical),
		}
	}

	suggestions := Suggestions(trimmed)
	if len(suggestions) > 0 {
		return domain.CropNameCheck{
			Status:      domain.CropNameSimilar,
			Canonical:   capitalize(strings.ToLower(trimmed)),
			Suggestions: suggestions,
			Message:     fmt.Sprintf("Did you mean: %s?", strings.Join(suggestions, ", ")),
		}
	}

	return domain.CropNameCheck{
		Status:      domain.CropNameCustom,
		Canonical:   capitalize(strings.ToLower(trimmed)),
		Suggestions: []string{},
		Message:     fmt.Sprintf("%s will be analyzed as a custom crop", trimmed),
	}
}
