package models

import "time"

// Bus status values.
const (
	BusStatusActive   = "active"
	BusStatusInactive = "inactive"
)

// Bus is a vehicle assigned to a route.
type Bus struct {
	ID        string    `bson:"_id" json:"id" yaml:"id" validate:"required"`
	Plate     string    `bson:"plate" json:"plate" yaml:"plate" validate:"required"`
	RouteID   string    `bson:"route_id" json:"route_id" yaml:"route_id" validate:"required"`
	Status    string    `bson:"status" json:"status" yaml:"status" validate:"omitempty,oneof=active inactive"`
	Location  Location  `bson:"location" json:"location" yaml:"location"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at" yaml:"-"`
}

// IsActive reports whether the bus should be simulated and listed.
func (b Bus) IsActive() bool {
	return b.Status == "" || b.Status == BusStatusActive
}
