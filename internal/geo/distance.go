package geo

import "math"

const (
	// KmPerDegree converts a planar degree difference into kilometers.
	KmPerDegree = 111.0
	// EarthRadiusKm is Earth's mean radius for the Haversine calculation.
	EarthRadiusKm = 6371.0
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlanarKm treats latitude and longitude as a flat grid. It is only usable
// over a few kilometers and is what proximity thresholds are measured in.
func PlanarKm(a, b Point) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat+dLng*dLng) * KmPerDegree
}

// HaversineKm calculates the great-circle distance between two points in km.
func HaversineKm(a, b Point) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// PathKm sums the Haversine length of consecutive legs.
func PathKm(points ...Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1], points[i])
	}
	return total
}

// IsWithinKm reports whether b lies strictly closer than radius to a on the planar grid.
func IsWithinKm(a, b Point, radiusKm float64) bool {
	return PlanarKm(a, b) < radiusKm
}
