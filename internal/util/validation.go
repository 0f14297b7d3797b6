package util

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether email is a syntactically valid address
func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email,max=254") == nil
}

// IsAllowedContentType checks a declared Content-Type against an allow-list.
// Parameters such as "; codecs=..." are ignored.
func IsAllowedContentType(contentType string, allowed []string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if base == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(base, strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}
