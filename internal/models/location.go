package models

import "github.com/ukydev/bus-tracker/internal/geo"

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `bson:"lon" json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
}

// Point converts the location for the geo helpers.
func (l Location) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lon: l.Lon}
}

// LocationFromPoint is the inverse of Point.
func LocationFromPoint(p geo.Point) Location {
	return Location{Lat: p.Lat, Lon: p.Lon}
}
