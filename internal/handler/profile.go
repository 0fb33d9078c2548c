package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
	"waselni/internal/viewmodel"
)

// ProfileHandler handles the signed-in user's profile.
type ProfileHandler struct {
	sessions Sessions
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(sessions Sessions) *ProfileHandler {
	return &ProfileHandler{sessions: sessions}
}

// CreateProfileRequest is the HTTP request body sent after sign-up.
type CreateProfileRequest struct {
	Email        string          `json:"email"`
	FullName     string          `json:"full_name"`
	FullNameAr   *string         `json:"full_name_ar,omitempty"`
	Phone        *string         `json:"phone,omitempty"`
	University   *string         `json:"university,omitempty"`
	UniversityAr *string         `json:"university_ar,omitempty"`
	StudentID    *string         `json:"student_id,omitempty"`
	UserType     domain.UserType `json:"user_type,omitempty"`
}

// UpdateProfileRequest is the HTTP request body for PATCH /v1/profile.
type UpdateProfileRequest struct {
	FullName     *string `json:"full_name,omitempty"`
	FullNameAr   *string `json:"full_name_ar,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	University   *string `json:"university,omitempty"`
	UniversityAr *string `json:"university_ar,omitempty"`
	StudentID    *string `json:"student_id,omitempty"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
}

// ProfileResponse is a profile with its localized name.
type ProfileResponse struct {
	domain.Profile
	DisplayName string `json:"display_name"`
}

func (h *ProfileHandler) respond(c *gin.Context, code int, p domain.Profile, lang domain.Language) {
	respondJSON(c, code, ProfileResponse{Profile: p, DisplayName: p.DisplayName(lang)})
}

// Get handles GET /v1/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	p, err := s.Profiles.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, p, language(c, s))
}

// Create handles POST /v1/profile
func (h *ProfileHandler) Create(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	p, err := s.Profiles.Create(c.Request.Context(), viewmodel.ProfileRequest{
		Email:        req.Email,
		FullName:     req.FullName,
		FullNameAr:   req.FullNameAr,
		Phone:        req.Phone,
		University:   req.University,
		UniversityAr: req.UniversityAr,
		StudentID:    req.StudentID,
		UserType:     req.UserType,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, p, language(c, s))
}

// Update handles PATCH /v1/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	p, err := s.Profiles.Update(c.Request.Context(), viewmodel.ProfilePatch{
		FullName:     req.FullName,
		FullNameAr:   req.FullNameAr,
		Phone:        req.Phone,
		University:   req.University,
		UniversityAr: req.UniversityAr,
		StudentID:    req.StudentID,
		AvatarURL:    req.AvatarURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, p, language(c, s))
}
