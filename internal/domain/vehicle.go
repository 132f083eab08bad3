package domain

import "time"

// ConnectionStatus classifies how recently a vehicle has reported in.
type ConnectionStatus string

const (
	StatusOnline  ConnectionStatus = "ONLINE"
	StatusStale   ConnectionStatus = "STALE"
	StatusOffline ConnectionStatus = "OFFLINE"
)

// Vehicle is a directory entry plus its live connection snapshot.
type Vehicle struct {
	ID               string            `json:"id"`
	VIN              string            `json:"vin"`
	PlateNumber      string            `json:"plateNumber,omitempty"`
	ConnectionStatus ConnectionStatus  `json:"connectionStatus"`
	LastSeenAt       *time.Time        `json:"lastSeenAt,omitempty"`
	OfflineSince     *time.Time        `json:"offlineSince,omitempty"`
	CurrentTelemetry *CurrentTelemetry `json:"currentTelemetry,omitempty"`
}

// CurrentTelemetry mirrors the most recently processed reading for a
// vehicle. It tracks processing order, not reading chronology: a
// late-arriving older reading still overwrites it.
type CurrentTelemetry struct {
	Location   *LatLng   `json:"location,omitempty"`
	Speed      float64   `json:"speed"`
	FuelLevel  float64   `json:"fuelLevel"`
	Odometer   float64   `json:"odometer"`
	EngineTemp float64   `json:"engineTemp"`
	Timestamp  time.Time `json:"timestamp"`
}

// SnapshotUpdate carries the fields an ingestor writes to the vehicle
// directory after persisting a reading.
type SnapshotUpdate struct {
	Telemetry  CurrentTelemetry
	LastSeenAt time.Time
}
