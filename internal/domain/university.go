package domain

import (
	"time"

	"waselni/internal/geo"
)

// University is a static reference point passengers travel to.
type University struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NameAr    string    `json:"name_ar"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address"`
	AddressAr string    `json:"address_ar"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Point returns the university coordinate.
func (u University) Point() geo.Point {
	return geo.Point{Lat: u.Latitude, Lon: u.Longitude}
}

// DisplayName returns the name in the requested language.
func (u University) DisplayName(lang Language) string {
	return Localize(lang, u.Name, u.NameAr)
}

// DisplayAddress returns the address in the requested language.
func (u University) DisplayAddress(lang Language) string {
	return Localize(lang, u.Address, u.AddressAr)
}
