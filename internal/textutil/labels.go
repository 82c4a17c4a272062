package textutil

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var speciesLabels = map[string]string{
	"dog":   "Cão",
	"cat":   "Gato",
	"other": "Outro",
}

var speciesEmoji = map[string]string{
	"dog": "🐶",
	"cat": "🐱",
}

var sexLabels = map[string]string{
	"male":    "Macho",
	"female":  "Fêmea",
	"unknown": "Não informado",
}

var titleCaser = cases.Title(language.BrazilianPortuguese)

// SpeciesLabel returns the display label for a registry species code. Unknown
// codes are title-cased; empty codes render as "Outro".
func SpeciesLabel(code string) string {
	return lookupLabel(speciesLabels, code, speciesLabels["other"])
}

// SpeciesEmoji returns the glyph shown next to a species.
func SpeciesEmoji(code string) string {
	if emoji, ok := speciesEmoji[strings.ToLower(strings.TrimSpace(code))]; ok {
		return emoji
	}
	return "🐾"
}

// SexLabel returns the display label for a registry sex code.
func SexLabel(code string) string {
	return lookupLabel(sexLabels, code, sexLabels["unknown"])
}

// TitleCase title-cases free text such as breed names.
func TitleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return titleCaser.String(value)
}

// Percent renders a similarity in [0,1] as a whole percentage, e.g. "91%".
func Percent(similarity float64) string {
	return fmt.Sprintf("%.0f%%", similarity*100)
}

// Digits strips every non-digit rune from value.
func Digits(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fallback returns value trimmed, or fallback when value is blank.
func Fallback(value, fallback string) string {
	return Ternary(strings.TrimSpace(value) != "", strings.TrimSpace(value), fallback)
}

func lookupLabel(labels map[string]string, code, empty string) string {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return empty
	}
	if label, ok := labels[normalized]; ok {
		return label
	}
	return TitleCase(normalized)
}
