package domain

import (
	"time"
)

// LatLng is a WGS84 coordinate pair. A nil *LatLng means the reading
// carried no GPS fix.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoJSONPoint is the persisted location encoding. Coordinates are
// [lng, lat], GeoJSON order.
type GeoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func NewGeoJSONPoint(ll LatLng) GeoJSONPoint {
	return GeoJSONPoint{Type: "Point", Coordinates: [2]float64{ll.Lng, ll.Lat}}
}

func (p GeoJSONPoint) LatLng() LatLng {
	return LatLng{Lat: p.Coordinates[1], Lng: p.Coordinates[0]}
}

// TelemetryReading is one raw sensor sample as submitted for ingestion,
// before an id, receipt time and verdict are attached.
type TelemetryReading struct {
	VehicleID  string    `json:"vehicleId"`
	Timestamp  time.Time `json:"timestamp"`
	Location   *LatLng   `json:"location,omitempty"`
	Speed      float64   `json:"speed"`
	FuelLevel  float64   `json:"fuelLevel"`
	Odometer   float64   `json:"odometer"`
	EngineTemp float64   `json:"engineTemp"`
	EngineRPM  *float64  `json:"engineRPM,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
}

// TelemetryRecord is the persisted, append-only form of a reading.
// Once written it is never mutated.
type TelemetryRecord struct {
	ID         string            `json:"id"`
	VehicleID  string            `json:"vehicleId"`
	Timestamp  time.Time         `json:"timestamp"`
	Location   *GeoJSONPoint     `json:"location,omitempty"`
	Speed      float64           `json:"speed"`
	FuelLevel  float64           `json:"fuelLevel"`
	Odometer   float64           `json:"odometer"`
	EngineTemp float64           `json:"engineTemp"`
	EngineRPM  *float64          `json:"engineRPM,omitempty"`
	DeviceID   string            `json:"deviceId,omitempty"`
	ReceivedAt time.Time         `json:"receivedAt"`
	Validation ValidationVerdict `json:"validation"`
}

// Severity ranks a detected anomaly. Multiple triggered rules collapse
// to the highest.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

var severityRank = map[Severity]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Max returns the higher-ranked of the two severities. The zero value
// ranks below LOW.
func (s Severity) Max(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// ValidationVerdict is the outcome of contextual validation, embedded in
// the persisted record. SchemaValid is always true at this layer; static
// schema checks happen upstream.
type ValidationVerdict struct {
	SchemaValid  bool     `json:"schemaValid"`
	ContextValid bool     `json:"contextValid"`
	Issues       []string `json:"issues"`
	Severity     Severity `json:"severity,omitempty"`
}

// BatchValidationSummary reports per-batch validation counts plus detail
// for every flagged record.
type BatchValidationSummary struct {
	Total   int                `json:"total"`
	Valid   int                `json:"valid"`
	Invalid int                `json:"invalid"`
	Issues  []BatchRecordIssue `json:"issues"`
}

type BatchRecordIssue struct {
	Timestamp time.Time `json:"timestamp"`
	Issues    []string  `json:"issues"`
	Severity  Severity  `json:"severity"`
}

// BatchResult is what batch ingestion returns to the caller.
type BatchResult struct {
	Saved      int                    `json:"saved"`
	Validation BatchValidationSummary `json:"validation"`
}
