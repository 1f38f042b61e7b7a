// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tarksober/license-backend/internal/i18n"
	"github.com/tarksober/license-backend/internal/utils"
)

// I18nMiddleware picks the response language from Accept-Language, falling
// back to the configured default.
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(utils.ContextKeyLang, negotiateLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// negotiateLanguage handles values like "et-EE,et;q=0.9,en;q=0.8" by taking
// the first supported primary tag in listed order.
func negotiateLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.Split(part, ";")[0])
		tag = strings.ReplaceAll(tag, "_", "-")
		primary, _, _ := strings.Cut(tag, "-")
		primary = strings.ToLower(primary)
		if primary != "" && i18n.Supports(primary) {
			return primary
		}
	}
	return i18n.DefaultLanguage()
}
