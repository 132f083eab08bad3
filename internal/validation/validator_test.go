package validation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

func baseSample(ts time.Time) Sample {
	return Sample{
		Location:   &domain.LatLng{Lat: 25.2048, Lng: 55.2708},
		Speed:      60,
		FuelLevel:  70,
		Odometer:   12500,
		EngineTemp: 90,
		Timestamp:  ts,
	}
}

func TestNoPreviousPasses(t *testing.T) {
	v := Validate(baseSample(time.Now()), nil)
	if !v.ContextValid {
		t.Fatalf("expected contextValid with no baseline, got %+v", v)
	}
	if len(v.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", v.Issues)
	}
	if v.Severity != "" {
		t.Fatalf("expected empty severity, got %q", v.Severity)
	}
}

func TestCleanSequencePasses(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	cur := baseSample(t0.Add(time.Minute))
	cur.Odometer = prev.Odometer + 1
	cur.Location = &domain.LatLng{Lat: 25.2058, Lng: 55.2718}
	v := Validate(cur, &prev)
	if !v.ContextValid {
		t.Fatalf("expected clean verdict, got issues %v", v.Issues)
	}
}

func TestTimestampBeforePrevious(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	cur := baseSample(t0.Add(-time.Minute))
	cur.Location = nil
	v := Validate(cur, &prev)
	if v.ContextValid {
		t.Fatal("expected invalid verdict")
	}
	if !hasIssue(v, "Timestamp is before previous telemetry") {
		t.Fatalf("missing timestamp issue: %v", v.Issues)
	}
	if v.Severity != domain.SeverityHigh {
		t.Fatalf("expected HIGH, got %q", v.Severity)
	}
}

func TestOdometerDecrease(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	cur := baseSample(t0.Add(time.Minute))
	cur.Odometer = 12400
	v := Validate(cur, &prev)
	if !hasIssue(v, "Odometer decreased from 12500 to 12400") {
		t.Fatalf("missing odometer issue: %v", v.Issues)
	}
	if v.Severity != domain.SeverityMedium {
		t.Fatalf("expected MEDIUM, got %q", v.Severity)
	}
}

func TestUnrealisticLocationJump(t *testing.T) {
	// NYC to LA in ten seconds.
	t0 := time.Now()
	prev := baseSample(t0)
	prev.Location = &domain.LatLng{Lat: 40.7128, Lng: -74.006}
	cur := baseSample(t0.Add(10 * time.Second))
	cur.Odometer = prev.Odometer
	cur.Location = &domain.LatLng{Lat: 34.0522, Lng: -118.2437}
	v := Validate(cur, &prev)
	if v.ContextValid {
		t.Fatal("expected invalid verdict")
	}
	if !hasIssue(v, "Unrealistic location jump") {
		t.Fatalf("missing jump issue: %v", v.Issues)
	}
	if v.Severity != domain.SeverityHigh {
		t.Fatalf("expected HIGH, got %q", v.Severity)
	}
}

func TestLocationJumpSkippedWithoutCoordinates(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	prev.Location = nil
	cur := baseSample(t0.Add(10 * time.Second))
	cur.Location = &domain.LatLng{Lat: 34.0522, Lng: -118.2437}
	v := Validate(cur, &prev)
	if hasIssue(v, "Unrealistic location jump") {
		t.Fatalf("jump rule should be skipped without previous coordinates: %v", v.Issues)
	}
}

func TestFuelIncreaseFlaggedAsRefuel(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	cur := baseSample(t0.Add(time.Minute))
	cur.FuelLevel = prev.FuelLevel + 20
	v := Validate(cur, &prev)
	if !hasIssue(v, "Fuel level increased by 20% (possible refuel?)") {
		t.Fatalf("missing refuel issue: %v", v.Issues)
	}
	if v.Severity != domain.SeverityLow {
		t.Fatalf("expected LOW, got %q", v.Severity)
	}
}

func TestExtremeFuelConsumption(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	cur := baseSample(t0.Add(30 * time.Minute))
	cur.FuelLevel = prev.FuelLevel - 60
	v := Validate(cur, &prev)
	if !hasIssue(v, "Extreme fuel consumption: 60% in 30 min") {
		t.Fatalf("missing consumption issue: %v", v.Issues)
	}
	if v.Severity != domain.SeverityMedium {
		t.Fatalf("expected MEDIUM, got %q", v.Severity)
	}
}

func TestExtremeFuelDropOverLongGapNotFlagged(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	cur := baseSample(t0.Add(2 * time.Hour))
	cur.FuelLevel = prev.FuelLevel - 60
	v := Validate(cur, &prev)
	if hasIssue(v, "Extreme fuel consumption") {
		t.Fatalf("slow drain over two hours should pass: %v", v.Issues)
	}
}

func TestEngineTemperatureRules(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)

	hot := baseSample(t0.Add(time.Minute))
	hot.EngineTemp = 130
	if v := Validate(hot, &prev); !hasIssue(v, "High engine temperature: 130°C") {
		t.Fatalf("missing overheat issue: %v", v.Issues)
	}

	cold := baseSample(t0.Add(time.Minute))
	cold.EngineTemp = -15
	cold.Speed = 40
	if v := Validate(cold, &prev); !hasIssue(v, "Unusually low engine temp while moving") {
		t.Fatalf("missing cold-engine issue: %v", v.Issues)
	}

	coldParked := baseSample(t0.Add(time.Minute))
	coldParked.EngineTemp = -15
	coldParked.Speed = 0
	if v := Validate(coldParked, &prev); hasIssue(v, "Unusually low engine temp") {
		t.Fatalf("parked cold engine should pass: %v", v.Issues)
	}
}

func TestSpeedOdometerMismatch(t *testing.T) {
	t0 := time.Now()
	prev := baseSample(t0)
	prev.Speed = 10
	cur := baseSample(t0.Add(time.Hour))
	cur.Speed = 10
	cur.Odometer = prev.Odometer + 200 // implies 200 km/h average
	v := Validate(cur, &prev)
	if !hasIssue(v, "Speed/odometer mismatch") {
		t.Fatalf("missing mismatch issue: %v", v.Issues)
	}
}

func TestSeverityFoldsToHighest(t *testing.T) {
	// Odometer decrease (MEDIUM) plus timestamp regression (HIGH).
	t0 := time.Now()
	prev := baseSample(t0)
	cur := baseSample(t0.Add(-time.Minute))
	cur.Odometer = 12000
	cur.Location = nil
	v := Validate(cur, &prev)
	if len(v.Issues) < 2 {
		t.Fatalf("expected both rules to fire, got %v", v.Issues)
	}
	if v.Severity != domain.SeverityHigh {
		t.Fatalf("expected HIGH, got %q", v.Severity)
	}
}

func TestHaversine(t *testing.T) {
	nyc := domain.LatLng{Lat: 40.7128, Lng: -74.006}
	la := domain.LatLng{Lat: 34.0522, Lng: -118.2437}

	if d := HaversineKm(nyc, nyc); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
	if d, r := HaversineKm(nyc, la), HaversineKm(la, nyc); math.Abs(d-r) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", d, r)
	}
	if d := HaversineKm(nyc, la); math.Abs(d-3936) > 10 {
		t.Fatalf("NYC-LA distance = %v km, want ~3936", d)
	}
}

func hasIssue(v domain.ValidationVerdict, substr string) bool {
	for _, issue := range v.Issues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}
