package resolve

import (
	"net/url"
	"strings"

	"petscan/internal/biometry"
	"petscan/internal/textutil"
)

// DefaultCountryCode is prepended to national numbers.
const DefaultCountryCode = "55"

const whatsAppBase = "https://wa.me/"

// FormatPhone reduces phone to digits and prefixes countryCode when the result
// looks like a national number with area code (10 or 11 digits).
func FormatPhone(phone, countryCode string) string {
	digits := textutil.Digits(phone)
	if len(digits) == 10 || len(digits) == 11 {
		return normalizeCountryCode(countryCode) + digits
	}
	return digits
}

// ContactMessage returns the prefilled message sent to the owner.
func ContactMessage(profile *biometry.Profile) string {
	name := textutil.Fallback(profile.Name, "seu pet")
	if profile.IsLost {
		return "Olá! Encontrei seu pet " + name + " e vi o perfil no PetID."
	}
	return "Olá! Estou entrando em contato sobre o pet " + name + " que identifiquei pelo PetID."
}

// ContactLink returns a WhatsApp deep link to the owner of profile, or "" when
// the profile carries no usable phone number.
func ContactLink(profile *biometry.Profile, countryCode string) string {
	if profile == nil {
		return ""
	}
	number := FormatPhone(profile.OwnerPhone, countryCode)
	if number == "" {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(ContactMessage(profile)), "+", "%20")
	return whatsAppBase + number + "?text=" + text
}

func normalizeCountryCode(code string) string {
	digits := textutil.Digits(strings.TrimSpace(code))
	if digits == "" {
		return DefaultCountryCode
	}
	return digits
}
