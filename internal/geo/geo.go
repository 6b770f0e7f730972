// Package geo holds the spherical helpers used to move buses between stops.
package geo

import (
	"math"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the great-circle distance between two points using the haversine formula.
func DistanceKm(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return EarthRadiusKm * c
}

// BearingDeg returns the initial compass bearing from a to b in [0, 360).
func BearingDeg(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
}

// Interpolate linearly blends latitude and longitude. It is a planar approximation
// that is only accurate for short segments between neighbouring stops.
func Interpolate(a, b Point, t float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
}

// Nearest returns the index of the candidate closest to p and its distance in km.
// Ties go to the lowest index. It returns -1 when there are no candidates.
func Nearest(p Point, candidates []Point) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range candidates {
		if d := DistanceKm(p, c); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
