package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Telemetry is one stored position sample of a bus.
type Telemetry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BusID     string             `bson:"bus_id" json:"bus_id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Location  Location           `bson:"location" json:"location"`
	Speed     float64            `bson:"speed" json:"speed"`     // km/h
	Bearing   int                `bson:"bearing" json:"bearing"` // whole degrees
	Altitude  float64            `bson:"altitude" json:"altitude"`

	CurrentStop string `bson:"current_stop,omitempty" json:"current_stop,omitempty"`
	NextStop    string `bson:"next_stop,omitempty" json:"next_stop,omitempty"`
	Stopped     bool   `bson:"stopped,omitempty" json:"stopped,omitempty"`
}

// LocationReport is the body a GPS tracker posts for a bus.
type LocationReport struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Speed    float64  `json:"speed"`
	Bearing  float64  `json:"bearing"`
	Altitude float64  `json:"altitude"`

	CurrentStop string `json:"current_stop,omitempty"`
	NextStop    string `json:"next_stop,omitempty"`
	Stopped     bool   `json:"stopped,omitempty"`
}
