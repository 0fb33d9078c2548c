package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
)

type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyUserID    contextKey = "user_id"
	ContextKeyLanguage  contextKey = "language"
)

// UserIDFrom returns the authenticated user id set by IdentityMiddleware.
func UserIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return v
	}
	return ""
}

// RequestIDFrom returns the request id set by RequestIDMiddleware.
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// LanguageFrom returns the language requested with Accept-Language, or ""
// when the request named none.
func LanguageFrom(ctx context.Context) domain.Language {
	if v, ok := ctx.Value(ContextKeyLanguage).(domain.Language); ok {
		return v
	}
	return ""
}

// withValue stores v on both the gin context and the request context.
func withValue(c *gin.Context, key contextKey, v any) {
	c.Set(string(key), v)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), key, v))
}
