package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waselni/internal/domain"
)

// CatalogHandler serves the static booking and safety catalogs.
type CatalogHandler struct {
	sessions Sessions
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(sessions Sessions) *CatalogHandler {
	return &CatalogHandler{sessions: sessions}
}

// VehicleOptionResponse is a vehicle option with its localized name.
type VehicleOptionResponse struct {
	domain.VehicleOption
	DisplayName string `json:"display_name"`
}

// EmergencyContactResponse is a contact with its localized name.
type EmergencyContactResponse struct {
	domain.EmergencyContact
	DisplayName string `json:"display_name"`
}

// VehicleTypes handles GET /v1/vehicle-types
func (h *CatalogHandler) VehicleTypes(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	lang := language(c, s)

	catalog := domain.VehicleCatalog()
	out := make([]VehicleOptionResponse, len(catalog))
	for i, opt := range catalog {
		out[i] = VehicleOptionResponse{VehicleOption: opt, DisplayName: opt.DisplayName(lang)}
	}
	respondJSON(c, http.StatusOK, gin.H{"vehicle_types": out})
}

// EmergencyContacts handles GET /v1/safety/contacts
func (h *CatalogHandler) EmergencyContacts(c *gin.Context) {
	s, ok := currentSession(c, h.sessions)
	if !ok {
		return
	}
	lang := language(c, s)

	contacts := domain.EmergencyContacts()
	out := make([]EmergencyContactResponse, len(contacts))
	for i, ec := range contacts {
		out[i] = EmergencyContactResponse{EmergencyContact: ec, DisplayName: domain.Localize(lang, ec.Name, ec.NameAr)}
	}
	respondJSON(c, http.StatusOK, gin.H{"contacts": out})
}
