// Package ingest orchestrates telemetry persistence: vehicle lookup,
// contextual validation, history append, live snapshot overwrite and
// event fan-out. Anomalies are recorded, never rejected.
//
// Snapshot updates are last-write-wins by design: concurrent ingestions
// for the same vehicle each read "last telemetry" before either writes,
// so the snapshot reflects processing order, not reading chronology.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
	"github.com/b3hniya/tenderd-fms-sub000/internal/metrics"
	"github.com/b3hniya/tenderd-fms-sub000/internal/validation"
)

// Ingestor handles both the single-record and batch paths.
type Ingestor struct {
	vehicles  VehicleDirectory
	telemetry TelemetryStore
	publisher EventPublisher
	logger    *zap.Logger
	now       Clock
}

func New(vehicles VehicleDirectory, telemetry TelemetryStore, publisher EventPublisher, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		vehicles:  vehicles,
		telemetry: telemetry,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (ing *Ingestor) WithClock(clock Clock) *Ingestor {
	ing.now = clock
	return ing
}

// IngestOne processes a single reading: validate against the most recent
// persisted record, persist regardless of verdict, overwrite the live
// snapshot and publish one TelemetryReceivedEvent. A missing vehicle
// aborts before any side effect.
func (ing *Ingestor) IngestOne(ctx context.Context, vehicleID string, reading *domain.TelemetryReading) (*domain.TelemetryRecord, error) {
	if _, err := ing.vehicles.FindByID(ctx, vehicleID); err != nil {
		return nil, err
	}

	previous, err := ing.telemetry.FindMostRecent(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load previous telemetry: %w", err)
	}

	var baseline *validation.Sample
	if previous != nil {
		s := validation.SampleFromRecord(previous)
		baseline = &s
	}
	verdict := validation.Validate(validation.SampleFromReading(reading), baseline)

	rec := ing.buildRecord(vehicleID, reading, verdict)
	if err := ing.telemetry.InsertOne(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist telemetry: %w", err)
	}
	ing.observeVerdict(vehicleID, rec)

	if err := ing.vehicles.UpdateSnapshot(ctx, vehicleID, snapshotFrom(rec, ing.now())); err != nil {
		return nil, fmt.Errorf("update vehicle snapshot: %w", err)
	}

	ing.publisher.Publish(ctx, domain.NewTelemetryReceivedEvent(rec))
	return rec, nil
}

func (ing *Ingestor) buildRecord(vehicleID string, reading *domain.TelemetryReading, verdict domain.ValidationVerdict) *domain.TelemetryRecord {
	var loc *domain.GeoJSONPoint
	if reading.Location != nil {
		p := domain.NewGeoJSONPoint(*reading.Location)
		loc = &p
	}
	return &domain.TelemetryRecord{
		ID:         uuid.NewString(),
		VehicleID:  vehicleID,
		Timestamp:  reading.Timestamp,
		Location:   loc,
		Speed:      reading.Speed,
		FuelLevel:  reading.FuelLevel,
		Odometer:   reading.Odometer,
		EngineTemp: reading.EngineTemp,
		EngineRPM:  reading.EngineRPM,
		DeviceID:   reading.DeviceID,
		ReceivedAt: ing.now(),
		Validation: verdict,
	}
}

func (ing *Ingestor) observeVerdict(vehicleID string, rec *domain.TelemetryRecord) {
	metrics.ReadingsIngested.Inc()
	if rec.Validation.ContextValid {
		return
	}
	metrics.Anomalies.WithLabelValues(string(rec.Validation.Severity)).Inc()
	ing.logger.Warn("telemetry failed context validation",
		zap.String("vehicle_id", vehicleID),
		zap.Time("timestamp", rec.Timestamp),
		zap.Strings("issues", rec.Validation.Issues),
		zap.String("severity", string(rec.Validation.Severity)),
	)
}

// snapshotFrom maps a persisted record onto the vehicle's live snapshot.
func snapshotFrom(rec *domain.TelemetryRecord, now time.Time) domain.SnapshotUpdate {
	var loc *domain.LatLng
	if rec.Location != nil {
		ll := rec.Location.LatLng()
		loc = &ll
	}
	return domain.SnapshotUpdate{
		Telemetry: domain.CurrentTelemetry{
			Location:   loc,
			Speed:      rec.Speed,
			FuelLevel:  rec.FuelLevel,
			Odometer:   rec.Odometer,
			EngineTemp: rec.EngineTemp,
			Timestamp:  rec.Timestamp,
		},
		LastSeenAt: now,
	}
}
