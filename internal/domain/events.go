package domain

import "time"

// Event names used as fan-out routing keys and Kafka message keys.
const (
	EventTelemetryReceived  = "telemetry.received"
	EventVehicleOffline     = "vehicle.offline"
	EventVehicleReconnected = "vehicle.reconnected"
)

// Event is implemented by every domain event placed on the fan-out bus.
type Event interface {
	EventName() string
}

// TelemetryData is the event-facing view of a processed reading.
type TelemetryData struct {
	Location   *LatLng           `json:"location,omitempty"`
	Speed      float64           `json:"speed"`
	FuelLevel  float64           `json:"fuelLevel"`
	Odometer   float64           `json:"odometer"`
	EngineTemp float64           `json:"engineTemp"`
	EngineRPM  *float64          `json:"engineRPM,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Validation ValidationVerdict `json:"validation"`
}

// TelemetryReceivedEvent is published once per ingestion call: per
// reading on the single path, once for the chronologically last record
// on the batch path.
type TelemetryReceivedEvent struct {
	VehicleID     string        `json:"vehicleId"`
	TelemetryData TelemetryData `json:"telemetryData"`
}

func (TelemetryReceivedEvent) EventName() string { return EventTelemetryReceived }

// VehicleOfflineEvent is emitted on any transition into OFFLINE.
type VehicleOfflineEvent struct {
	VehicleID      string           `json:"vehicleId"`
	VIN            string           `json:"vin"`
	LastSeenAt     time.Time        `json:"lastSeenAt"`
	PreviousStatus ConnectionStatus `json:"previousStatus"`
}

func (VehicleOfflineEvent) EventName() string { return EventVehicleOffline }

// VehicleReconnectedEvent is emitted only on OFFLINE -> ONLINE.
// Transitions into or out of STALE produce no domain event.
type VehicleReconnectedEvent struct {
	VehicleID         string    `json:"vehicleId"`
	VIN               string    `json:"vin"`
	ReconnectedAt     time.Time `json:"reconnectedAt"`
	OfflineDurationMs int64     `json:"offlineDurationMs"`
}

func (VehicleReconnectedEvent) EventName() string { return EventVehicleReconnected }

// NewTelemetryReceivedEvent builds the event payload from a persisted record.
func NewTelemetryReceivedEvent(rec *TelemetryRecord) TelemetryReceivedEvent {
	var loc *LatLng
	if rec.Location != nil {
		ll := rec.Location.LatLng()
		loc = &ll
	}
	return TelemetryReceivedEvent{
		VehicleID: rec.VehicleID,
		TelemetryData: TelemetryData{
			Location:   loc,
			Speed:      rec.Speed,
			FuelLevel:  rec.FuelLevel,
			Odometer:   rec.Odometer,
			EngineTemp: rec.EngineTemp,
			EngineRPM:  rec.EngineRPM,
			Timestamp:  rec.Timestamp,
			Validation: rec.Validation,
		},
	}
}
