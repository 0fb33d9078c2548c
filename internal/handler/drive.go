package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
	"waselni/internal/store"
)

// DriveHandler handles the drive screen of a signed-in driver.
type DriveHandler struct {
	sessions Sessions
}

// NewDriveHandler creates a new DriveHandler.
func NewDriveHandler(sessions Sessions) *DriveHandler {
	return &DriveHandler{sessions: sessions}
}

// SetOnlineRequest is the HTTP request body for the online toggle.
type SetOnlineRequest struct {
	Online *bool `json:"online"`
}

// UpdateLocationRequest is the HTTP request body for a location update.
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// DriveResponse is the caller's driver record and session toggle.
type DriveResponse struct {
	Driver        domain.Driver `json:"driver"`
	SessionOnline bool          `json:"session_online"`
}

// Get handles GET /v1/drive
func (h *DriveHandler) Get(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	d, err := s.Fleet.DriverForProfile(c.Request.Context(), s.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DriveResponse{Driver: d, SessionOnline: s.Online()})
}

// SetOnline handles POST /v1/drive/online
func (h *DriveHandler) SetOnline(c *gin.Context) {
	var req SetOnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		badRequest(c, "invalid request body")
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	d, err := s.Fleet.DriverForProfile(ctx, s.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	d, err = s.Fleet.SetOnline(ctx, d.ID, *req.Online)
	if err != nil {
		respondError(c, err)
		return
	}
	s.SetOnline(d.IsOnline)
	respondJSON(c, http.StatusOK, DriveResponse{Driver: d, SessionOnline: s.Online()})
}

// UpdateLocation handles POST /v1/drive/location
func (h *DriveHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(c, store.Invalid("current_latitude", "coordinates required"))
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	d, err := s.Fleet.DriverForProfile(ctx, s.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	d, err = s.Fleet.UpdateDriverLocation(ctx, d.ID, *req.Latitude, *req.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DriveResponse{Driver: d, SessionOnline: s.Online()})
}
