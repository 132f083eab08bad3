package ingest

import (
	"context"
	"time"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

// VehicleDirectory is the slice of the vehicle registry ingestion needs.
type VehicleDirectory interface {
	// FindByID returns domain.ErrVehicleNotFound when the vehicle is absent.
	FindByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// UpdateSnapshot overwrites the live telemetry snapshot and forces the
	// vehicle ONLINE, clearing offlineSince.
	UpdateSnapshot(ctx context.Context, id string, update domain.SnapshotUpdate) error
}

// TelemetryStore is the append-only reading history.
type TelemetryStore interface {
	InsertOne(ctx context.Context, rec *domain.TelemetryRecord) error
	InsertMany(ctx context.Context, recs []*domain.TelemetryRecord) error

	// FindMostRecent returns (nil, nil) when the vehicle has no readings.
	FindMostRecent(ctx context.Context, vehicleID string) (*domain.TelemetryRecord, error)
}

// EventPublisher fans an event out to downstream handlers. Best-effort:
// handler failures never surface to the ingesting caller.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// Clock makes "now" injectable for tests.
type Clock func() time.Time
