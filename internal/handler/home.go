package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
	"waselni/internal/store"
)

// HomeHandler serves the home screen: drivers around the user and the
// universities they travel to.
type HomeHandler struct {
	sessions Sessions
}

// NewHomeHandler creates a new HomeHandler.
func NewHomeHandler(sessions Sessions) *HomeHandler {
	return &HomeHandler{sessions: sessions}
}

// DriverResponse is a visible driver as shown on the map.
type DriverResponse struct {
	domain.Driver
	DisplayName string   `json:"display_name,omitempty"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

// DriverListResponse lists drivers. Stale is set when a requested refresh
// failed and the cached fleet is served.
type DriverListResponse struct {
	Drivers []DriverResponse `json:"drivers"`
	Stale   bool             `json:"stale,omitempty"`
}

// UniversityResponse is a university with localized labels.
type UniversityResponse struct {
	domain.University
	DisplayName    string   `json:"display_name"`
	DisplayAddress string   `json:"display_address"`
	DistanceKm     *float64 `json:"distance_km,omitempty"`
}

func driverResponse(d domain.Driver, lang domain.Language) DriverResponse {
	resp := DriverResponse{Driver: d}
	if d.Profile != nil {
		resp.DisplayName = d.Profile.DisplayName(lang)
	}
	return resp
}

func universityResponse(u domain.University, lang domain.Language) UniversityResponse {
	return UniversityResponse{
		University:     u,
		DisplayName:    u.DisplayName(lang),
		DisplayAddress: u.DisplayAddress(lang),
	}
}

// NearbyDrivers handles GET /v1/drivers/nearby
func (h *HomeHandler) NearbyDrivers(c *gin.Context) {
	lat, ok := floatQuery(c, "lat")
	if !ok {
		return
	}
	lon, ok := floatQuery(c, "lon")
	if !ok {
		return
	}
	radius := 0.0
	if raw := c.Query("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			badRequest(c, "invalid query parameter radius_km")
			return
		}
		radius = v
	}

	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	lang := language(c, s)

	var resp DriverListResponse
	if c.Query("refresh") == "true" {
		resp.Stale = s.Fleet.Refresh(c.Request.Context()) != nil
	}

	nearby := s.Fleet.NearbyDrivers(lat, lon, radius)
	resp.Drivers = make([]DriverResponse, len(nearby))
	for i, n := range nearby {
		resp.Drivers[i] = driverResponse(n.Driver, lang)
		resp.Drivers[i].DistanceKm = &nearby[i].DistanceKm
	}
	respondJSON(c, http.StatusOK, resp)
}

// Drivers handles GET /v1/drivers
func (h *HomeHandler) Drivers(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	lang := language(c, s)

	vt := domain.VehicleType(c.Query("vehicle_type"))
	if vt != "" && !vt.Valid() {
		respondError(c, store.Invalid("vehicle_type", "unknown vehicle type"))
		return
	}

	var resp DriverListResponse
	if c.Query("refresh") == "true" {
		resp.Stale = s.Fleet.Refresh(c.Request.Context()) != nil
	}

	var drivers []domain.Driver
	if vt != "" {
		drivers = s.Fleet.DriversByType(vt)
	} else {
		drivers = s.Fleet.All()
	}
	resp.Drivers = make([]DriverResponse, len(drivers))
	for i, d := range drivers {
		resp.Drivers[i] = driverResponse(d, lang)
	}
	respondJSON(c, http.StatusOK, resp)
}

// Universities handles GET /v1/universities
func (h *HomeHandler) Universities(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	lang := language(c, s)

	var resp struct {
		Universities []UniversityResponse `json:"universities"`
		Stale        bool                 `json:"stale,omitempty"`
	}
	if c.Query("refresh") == "true" {
		resp.Stale = s.Universities.Reload(c.Request.Context()) != nil
	}

	list := s.Universities.All()
	out := make([]UniversityResponse, len(list))
	for i, u := range list {
		out[i] = universityResponse(u, lang)
	}
	resp.Universities = out
	respondJSON(c, http.StatusOK, resp)
}

// NearestUniversity handles GET /v1/universities/nearest
func (h *HomeHandler) NearestUniversity(c *gin.Context) {
	lat, ok := floatQuery(c, "lat")
	if !ok {
		return
	}
	lon, ok := floatQuery(c, "lon")
	if !ok {
		return
	}

	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}

	u, dist, found := s.Universities.Nearest(lat, lon)
	if !found {
		respondError(c, &store.NotFoundError{Collection: store.Universities, ID: "nearest"})
		return
	}
	resp := universityResponse(u, language(c, s))
	resp.DistanceKm = &dist
	respondJSON(c, http.StatusOK, resp)
}
