// Package validation implements contextual validation: anomaly checks of
// a telemetry reading against its immediate chronological predecessor.
// It is pure — no storage access, no side effects — so both ingestion
// paths share it, the batch path feeding it a rolling cursor.
package validation

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

const (
	// earthRadiusKm is the Haversine sphere radius.
	earthRadiusKm = 6371.0

	// maxPlausibleSpeedKmh bounds how far a vehicle can travel between
	// two readings before the location jump rule fires.
	maxPlausibleSpeedKmh = 300.0

	// jumpTolerance gives GPS drift some slack on top of the physical bound.
	jumpTolerance = 1.5

	refuelThresholdPct       = 5.0
	extremeConsumptionPct    = -50.0
	extremeConsumptionWindow = 3600.0 // seconds

	overheatTempC = 120.0
	frigidTempC   = -10.0

	speedOdometerToleranceKmh = 50.0
	minOdometerDeltaKm        = 1.0
)

// Sample is the slice of a reading the validator compares. Previous
// samples come from the last persisted record or, within a batch, from
// the rolling cursor.
type Sample struct {
	Location   *domain.LatLng
	Speed      float64
	FuelLevel  float64
	Odometer   float64
	EngineTemp float64
	Timestamp  time.Time
}

// SampleFromReading adapts a raw reading for validation.
func SampleFromReading(r *domain.TelemetryReading) Sample {
	return Sample{
		Location:   r.Location,
		Speed:      r.Speed,
		FuelLevel:  r.FuelLevel,
		Odometer:   r.Odometer,
		EngineTemp: r.EngineTemp,
		Timestamp:  r.Timestamp,
	}
}

// SampleFromRecord adapts a persisted record for use as a baseline.
func SampleFromRecord(rec *domain.TelemetryRecord) Sample {
	var loc *domain.LatLng
	if rec.Location != nil {
		ll := rec.Location.LatLng()
		loc = &ll
	}
	return Sample{
		Location:   loc,
		Speed:      rec.Speed,
		FuelLevel:  rec.FuelLevel,
		Odometer:   rec.Odometer,
		EngineTemp: rec.EngineTemp,
		Timestamp:  rec.Timestamp,
	}
}

// Validate checks current against previous and returns a verdict. With no
// previous sample there is no baseline and the reading passes. All rules
// are evaluated independently; issues accumulate and severity folds to
// the highest triggered level. A verdict never blocks persistence.
func Validate(current Sample, previous *Sample) domain.ValidationVerdict {
	verdict := domain.ValidationVerdict{
		SchemaValid:  true,
		ContextValid: true,
		Issues:       []string{},
	}
	if previous == nil {
		return verdict
	}

	elapsed := current.Timestamp.Sub(previous.Timestamp).Seconds()

	if current.Timestamp.Before(previous.Timestamp) {
		flag(&verdict, "Timestamp is before previous telemetry", domain.SeverityHigh)
	}

	if current.Odometer < previous.Odometer {
		flag(&verdict,
			fmt.Sprintf("Odometer decreased from %s to %s",
				formatNum(previous.Odometer), formatNum(current.Odometer)),
			domain.SeverityMedium,
		)
	}

	if previous.Location != nil && current.Location != nil {
		distance := HaversineKm(*previous.Location, *current.Location)
		maxPossible := (maxPlausibleSpeedKmh / 3600.0) * elapsed
		if distance > maxPossible*jumpTolerance {
			flag(&verdict,
				fmt.Sprintf("Unrealistic location jump: %.2f km in %.0f s", distance, elapsed),
				domain.SeverityHigh,
			)
		}
	}

	fuelDiff := current.FuelLevel - previous.FuelLevel
	if fuelDiff > refuelThresholdPct {
		flag(&verdict,
			fmt.Sprintf("Fuel level increased by %s%% (possible refuel?)", formatNum(fuelDiff)),
			domain.SeverityLow,
		)
	} else if fuelDiff < extremeConsumptionPct && elapsed < extremeConsumptionWindow {
		flag(&verdict,
			fmt.Sprintf("Extreme fuel consumption: %s%% in %s min",
				formatNum(math.Abs(fuelDiff)), formatNum(roundTo(elapsed/60.0, 1))),
			domain.SeverityMedium,
		)
	}

	if current.EngineTemp > overheatTempC {
		flag(&verdict,
			fmt.Sprintf("High engine temperature: %s°C", formatNum(current.EngineTemp)),
			domain.SeverityMedium,
		)
	} else if current.EngineTemp < frigidTempC && current.Speed > 0 {
		flag(&verdict, "Unusually low engine temp while moving", domain.SeverityMedium)
	}

	if elapsed > 0 {
		odometerDiff := current.Odometer - previous.Odometer
		avgSpeedFromOdometer := (odometerDiff / elapsed) * 3600.0
		reportedAvgSpeed := (current.Speed + previous.Speed) / 2.0
		if math.Abs(avgSpeedFromOdometer-reportedAvgSpeed) > speedOdometerToleranceKmh &&
			odometerDiff > minOdometerDeltaKm {
			flag(&verdict, "Speed/odometer mismatch", domain.SeverityMedium)
		}
	}

	return verdict
}

func flag(v *domain.ValidationVerdict, issue string, severity domain.Severity) {
	v.Issues = append(v.Issues, issue)
	v.ContextValid = false
	v.Severity = v.Severity.Max(severity)
}

// HaversineKm computes the great-circle distance between two coordinates.
func HaversineKm(a, b domain.LatLng) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLng*sinLng
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// formatNum renders a float without a trailing decimal tail when the
// value is integral ("12500", not "12500.0").
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
