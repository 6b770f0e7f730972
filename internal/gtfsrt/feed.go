// Package gtfsrt renders the live fleet as a GTFS-Realtime VehiclePositions feed.
package gtfsrt

import (
	"sort"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/ukydev/bus-tracker/internal/models"
)

const (
	gtfsRealtimeVersion = "2.0"

	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

// BuildVehiclePositions builds a full-dataset feed with one entity per bus, ordered by bus id.
func BuildVehiclePositions(updates []models.BusUpdate, now time.Time) *gtfsrtpb.FeedMessage {
	sorted := make([]models.BusUpdate, len(updates))
	copy(sorted, updates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BusID < sorted[j].BusID })

	feed := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
	for _, u := range sorted {
		feed.Entity = append(feed.Entity, vehicleEntity(u))
	}
	return feed
}

func vehicleEntity(u models.BusUpdate) *gtfsrtpb.FeedEntity {
	status := gtfsrtpb.VehiclePosition_IN_TRANSIT_TO
	if u.Stopped {
		status = gtfsrtpb.VehiclePosition_STOPPED_AT
	}
	return &gtfsrtpb.FeedEntity{
		Id: proto.String(u.BusID),
		Vehicle: &gtfsrtpb.VehiclePosition{
			Trip: &gtfsrtpb.TripDescriptor{
				RouteId: proto.String(u.RouteID),
			},
			Vehicle: &gtfsrtpb.VehicleDescriptor{
				Id:           proto.String(u.BusID),
				Label:        proto.String(u.RouteName),
				LicensePlate: proto.String(u.Plate),
			},
			Position: &gtfsrtpb.Position{
				Latitude:  proto.Float32(float32(u.Lat)),
				Longitude: proto.Float32(float32(u.Lon)),
				Bearing:   proto.Float32(float32(u.Bearing)),
				Speed:     proto.Float32(float32(u.Speed / 3.6)), // m/s
			},
			CurrentStatus: status.Enum(),
			Timestamp:     proto.Uint64(uint64(u.Timestamp.Unix())),
		},
	}
}

// Encode serializes feed as protobuf, or as protojson when asJSON is set.
// It returns the payload and its content type.
func Encode(feed *gtfsrtpb.FeedMessage, asJSON bool) ([]byte, string, error) {
	if asJSON {
		b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(feed)
		return b, ContentTypeJSON, err
	}
	b, err := proto.Marshal(feed)
	return b, ContentTypeProtobuf, err
}
