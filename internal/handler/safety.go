package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
	"waselni/internal/viewmodel"
)

// SafetyHandler handles safety reports.
type SafetyHandler struct {
	sessions Sessions
}

// NewSafetyHandler creates a new SafetyHandler.
func NewSafetyHandler(sessions Sessions) *SafetyHandler {
	return &SafetyHandler{sessions: sessions}
}

// SubmitReportRequest is the HTTP request body for filing a report.
type SubmitReportRequest struct {
	ReportType  domain.ReportType `json:"report_type"`
	Description string            `json:"description"`
	TripID      *string           `json:"trip_id,omitempty"`
	DriverID    *string           `json:"driver_id,omitempty"`
}

// Reports handles GET /v1/safety/reports
func (h *SafetyHandler) Reports(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"reports": s.Reports.All()})
}

// Submit handles POST /v1/safety/reports
func (h *SafetyHandler) Submit(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	r, err := s.Reports.Submit(c.Request.Context(), viewmodel.ReportRequest{
		Type:        req.ReportType,
		Description: req.Description,
		TripID:      req.TripID,
		DriverID:    req.DriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, r)
}
