package geo

import (
	"math"
	"testing"
)

func TestPlanarKm(t *testing.T) {
	a := Point{Lat: 28.6139, Lng: 77.2090}
	tests := []struct {
		name string
		b    Point
		want float64
	}{
		{"same point", a, 0},
		{"one hundredth degree north", Point{Lat: 28.6239, Lng: 77.2090}, 1.11},
		{"3-4-5 triangle", Point{Lat: 28.6139 + 0.003, Lng: 77.2090 + 0.004}, 0.555},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanarKm(a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("PlanarKm = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHaversineKm(t *testing.T) {
	// One degree of latitude is about 111.19 km on a 6371 km sphere.
	got := HaversineKm(Point{Lat: 0, Lng: 0}, Point{Lat: 1, Lng: 0})
	if math.Abs(got-111.19) > 0.01 {
		t.Errorf("HaversineKm = %v, want ~111.19", got)
	}
	if d := HaversineKm(Point{Lat: 10, Lng: 10}, Point{Lat: 10, Lng: 10}); d != 0 {
		t.Errorf("HaversineKm same point = %v, want 0", d)
	}
}

func TestPathKm(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 1, Lng: 0}
	c := Point{Lat: 2, Lng: 0}
	got := PathKm(a, b, c)
	want := HaversineKm(a, b) + HaversineKm(b, c)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("PathKm = %v, want %v", got, want)
	}
	if PathKm(a) != 0 || PathKm() != 0 {
		t.Error("PathKm of fewer than two points should be 0")
	}
}

func TestIsWithinKm(t *testing.T) {
	a := Point{Lat: 28.6139, Lng: 77.2090}
	near := Point{Lat: 28.6139 + 0.004, Lng: 77.2090} // ~0.444 km
	far := Point{Lat: 28.6139 + 0.005, Lng: 77.2090}  // 0.555 km
	if !IsWithinKm(a, near, 0.5) {
		t.Error("expected point ~0.44 km away to be within 0.5 km")
	}
	if IsWithinKm(a, far, 0.5) {
		t.Error("expected point 0.555 km away to be outside 0.5 km")
	}
}
