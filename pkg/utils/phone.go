package utils

import (
	"regexp"
	"strings"
)

var (
	e164Re     = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	maskRe     = regexp.MustCompile(`^(\+)(\d{1,3})(\d{3})(\d+)$`)
	nonDigitRe = regexp.MustCompile(`[^\d+]`)
)

// MaskPhoneNumber hides the middle digits so numbers stay recognizable in
// logs without being dialable: +15551234567 becomes +1555•••4567.
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	phone = strings.TrimSpace(phone)

	if m := maskRe.FindStringSubmatch(phone); len(m) == 5 && len(m[4]) >= 4 {
		tail := m[4][len(m[4])-4:]
		return "+" + m[2] + m[3] + strings.Repeat("•", len(m[4])-4) + tail
	}

	if len(phone) > 4 {
		return strings.Repeat("•", len(phone)-4) + phone[len(phone)-4:]
	}
	return strings.Repeat("•", len(phone))
}

// ValidateE164 reports whether the number is in E.164 form.
func ValidateE164(phone string) bool {
	return e164Re.MatchString(phone)
}

// NormalizePhone strips formatting characters and prepends +1 for bare
// North American numbers.
func NormalizePhone(phone string) string {
	cleaned := nonDigitRe.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return "+" + cleaned
	}
	return "+1" + cleaned
}
