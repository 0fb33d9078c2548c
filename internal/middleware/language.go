package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
)

const HeaderAcceptLanguage = "Accept-Language"

// LanguageMiddleware reads the first tag of Accept-Language. Requests
// without the header leave the language to the session.
func LanguageMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(HeaderAcceptLanguage); raw != "" {
			withValue(c, ContextKeyLanguage, domain.ParseLanguage(firstLanguageTag(raw)))
		}
		c.Next()
	}
}

// firstLanguageTag returns "ar" for "ar-BH,en;q=0.8".
func firstLanguageTag(h string) string {
	h = strings.TrimSpace(h)
	if i := strings.IndexAny(h, "-,; "); i > 0 {
		return strings.ToLower(h[:i])
	}
	return strings.ToLower(h)
}
