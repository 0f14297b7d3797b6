package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// LocaleHeader selects the client's language
	LocaleHeader  = "X-Locale"
	DefaultLocale = "en"
	localeKey     = "locale"
)

// LocaleMiddleware reads X-Locale and echoes it as Content-Language
func LocaleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := strings.ToLower(strings.TrimSpace(c.GetHeader(LocaleHeader)))
		if locale == "" || len(locale) > 16 {
			locale = DefaultLocale
		}
		c.Set(localeKey, locale)
		c.Header("Content-Language", locale)
		c.Next()
	}
}

// LocaleFrom returns the request locale, defaulting when the middleware did not run
func LocaleFrom(c *gin.Context) string {
	if v := c.GetString(localeKey); v != "" {
		return v
	}
	return DefaultLocale
}
