package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"waselni/internal/domain"
	"waselni/internal/middleware"
	"waselni/internal/session"
)

// Sessions resolves the session of the authenticated user.
type Sessions interface {
	Get(ctx context.Context, userID string, lang domain.Language) (*session.Session, error)
	End(userID string) error
}

var _ Sessions = (*session.Manager)(nil)

// currentSession returns the caller's session or writes the error response.
func currentSession(c *gin.Context, sessions Sessions) (*session.Session, bool) {
	ctx := c.Request.Context()
	s, err := sessions.Get(ctx, middleware.UserIDFrom(ctx), middleware.LanguageFrom(ctx))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

// language prefers the request's Accept-Language over the session setting.
func language(c *gin.Context, s *session.Session) domain.Language {
	if lang := middleware.LanguageFrom(c.Request.Context()); lang != "" {
		return lang
	}
	return s.Language()
}

// idParam returns the :id path parameter when it is a UUID.
func idParam(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return "", false
	}
	return id.String(), true
}

// floatQuery parses a required float query parameter.
func floatQuery(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		badRequest(c, "missing query parameter "+name)
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(c, "invalid query parameter "+name)
		return 0, false
	}
	return v, true
}

// SessionHandler handles the session context endpoints.
type SessionHandler struct {
	sessions Sessions
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SetLanguageRequest is the HTTP request body for switching language.
type SetLanguageRequest struct {
	Language string `json:"language"`
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	UserID   string          `json:"user_id"`
	Language domain.Language `json:"language"`
	Online   bool            `json:"online"`
}

// SetLanguage handles PUT /v1/session/language
func (h *SessionHandler) SetLanguage(c *gin.Context) {
	var req SetLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	lang := domain.Language(req.Language)
	if lang != domain.LanguageEnglish && lang != domain.LanguageArabic {
		badRequest(c, "language must be en or ar")
		return
	}

	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	s.SetLanguage(lang)
	respondJSON(c, http.StatusOK, SessionResponse{UserID: s.UserID, Language: s.Language(), Online: s.Online()})
}

// End handles DELETE /v1/session
func (h *SessionHandler) End(c *gin.Context) {
	if err := h.sessions.End(middleware.UserIDFrom(c.Request.Context())); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
