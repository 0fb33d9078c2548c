package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
	"waselni/internal/geo"
	"waselni/internal/store"
	"waselni/internal/viewmodel"
)

// TripHandler handles HTTP requests for the booking and trips screens.
type TripHandler struct {
	sessions Sessions
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(sessions Sessions) *TripHandler {
	return &TripHandler{sessions: sessions}
}

// PlaceRequest is a labelled coordinate in a booking.
type PlaceRequest struct {
	Label     string   `json:"label"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p PlaceRequest) place(field string) (domain.Place, error) {
	if p.Latitude == nil || p.Longitude == nil {
		return domain.Place{}, store.Invalid(field+"_latitude", "coordinates required")
	}
	return domain.Place{Label: p.Label, Point: geo.Point{Lat: *p.Latitude, Lon: *p.Longitude}}, nil
}

// CreateTripRequest is the HTTP request body for booking a trip.
type CreateTripRequest struct {
	Pickup        PlaceRequest       `json:"pickup"`
	Destination   PlaceRequest       `json:"destination"`
	VehicleType   domain.VehicleType `json:"vehicle_type"`
	Price         *float64           `json:"price,omitempty"`
	ScheduledTime *time.Time         `json:"scheduled_time,omitempty"`
}

// UpdateTripRequest is the HTTP request body for PATCH /v1/trips/:id.
type UpdateTripRequest struct {
	Status        *domain.TripStatus `json:"status,omitempty"`
	DriverID      *string            `json:"driver_id,omitempty"`
	Price         *float64           `json:"price,omitempty"`
	ScheduledTime *time.Time         `json:"scheduled_time,omitempty"`
}

// RateTripRequest is the HTTP request body for rating a trip. Role defaults
// to the caller's side of the trip and must match it when given.
type RateTripRequest struct {
	Rating   int               `json:"rating"`
	Feedback string            `json:"feedback,omitempty"`
	Role     domain.RatingRole `json:"role,omitempty"`
}

// TripResponse is a trip with its straight-line length.
type TripResponse struct {
	domain.Trip
	DistanceKm float64 `json:"distance_km"`
}

func tripResponse(t domain.Trip) TripResponse {
	return TripResponse{Trip: t, DistanceKm: t.DistanceKm()}
}

func tripResponses(trips []domain.Trip) []TripResponse {
	out := make([]TripResponse, len(trips))
	for i, t := range trips {
		out[i] = tripResponse(t)
	}
	return out
}

// TripListResponse is the HTTP response for listing trips. Stale is set
// when a requested refresh failed and the cached list is served.
type TripListResponse struct {
	Trips []TripResponse `json:"trips"`
	Stale bool           `json:"stale,omitempty"`
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	pickup, err := req.Pickup.place("pickup")
	if err != nil {
		respondError(c, err)
		return
	}
	destination, err := req.Destination.place("destination")
	if err != nil {
		respondError(c, err)
		return
	}

	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	trip, err := s.Trips.CreateTrip(c.Request.Context(), viewmodel.TripRequest{
		Pickup:        pickup,
		Destination:   destination,
		VehicleType:   req.VehicleType,
		Price:         req.Price,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// GetAll handles GET /v1/trips
func (h *TripHandler) GetAll(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	var resp TripListResponse
	if c.Query("refresh") == "true" {
		resp.Stale = s.Trips.Refresh(c.Request.Context()) != nil
	}

	switch view := c.DefaultQuery("view", "all"); view {
	case "upcoming":
		resp.Trips = tripResponses(s.Trips.Upcoming())
	case "completed":
		resp.Trips = tripResponses(s.Trips.Completed())
	case "all":
		resp.Trips = tripResponses(s.Trips.All())
	default:
		badRequest(c, "view must be upcoming, completed or all")
		return
	}
	respondJSON(c, http.StatusOK, resp)
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	trip, found := s.Trips.Get(id)
	if !found {
		respondError(c, &store.NotFoundError{Collection: store.Trips, ID: id})
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// UpdateTrip handles PATCH /v1/trips/:id
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	trip, err := s.Trips.UpdateTrip(c.Request.Context(), id, viewmodel.TripPatch{
		Status:        req.Status,
		DriverID:      req.DriverID,
		Price:         req.Price,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	trip, err := s.Trips.CancelTrip(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// RateTrip handles POST /v1/trips/:id/rate
func (h *TripHandler) RateTrip(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req RateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	trip, err := s.Trips.RateTrip(c.Request.Context(), id, req.Rating, req.Feedback, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}
