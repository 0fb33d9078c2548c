package geo

import (
	"math"
	"testing"
)

func TestHaversine_SamePoint(t *testing.T) {
	p := Point{Lat: 26.2285, Lon: 50.5860}
	if got := Haversine(p, p); got != 0 {
		t.Errorf("Haversine(same point) = %v, want 0", got)
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	points := []Point{
		{Lat: 26.2210, Lon: 50.5832},
		{Lat: 26.2285, Lon: 50.5860},
		{Lat: 26.5000, Lon: 50.9000},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 51.5074, Lon: -0.1278},
		{Lat: 89.9, Lon: 179.9},
	}

	for _, a := range points {
		for _, b := range points {
			ab := Haversine(a, b)
			ba := Haversine(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("Haversine(%v, %v) = %v but reversed = %v", a, b, ab, ba)
			}
		}
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Manama to Riffa, roughly 11 km.
	manama := Point{Lat: 26.2235, Lon: 50.5876}
	riffa := Point{Lat: 26.1300, Lon: 50.5550}

	got := Haversine(manama, riffa)
	if got < 9 || got > 12 {
		t.Errorf("Haversine(Manama, Riffa) = %.2f km, want about 10.9 km", got)
	}
}

func TestHaversine_OneDegreeOfLatitude(t *testing.T) {
	got := Haversine(Point{Lat: 0, Lon: 0}, Point{Lat: 1, Lon: 0})
	want := EarthRadiusKm * math.Pi / 180
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("Haversine(1 degree) = %v, want %v", got, want)
	}
}

func TestPoint_Valid(t *testing.T) {
	testCases := []struct {
		name  string
		point Point
		want  bool
	}{
		{"origin", Point{}, true},
		{"bahrain", Point{Lat: 26.22, Lon: 50.58}, true},
		{"latitude too high", Point{Lat: 90.1, Lon: 0}, false},
		{"latitude too low", Point{Lat: -90.1, Lon: 0}, false},
		{"longitude too high", Point{Lat: 0, Lon: 180.5}, false},
		{"longitude too low", Point{Lat: 0, Lon: -181}, false},
		{"nan", Point{Lat: math.NaN(), Lon: 0}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.point.Valid(); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}
