package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
	"github.com/b3hniya/tenderd-fms-sub000/internal/validation"
)

// IngestBatch processes a set of readings for one vehicle. Readings are
// stable-sorted by timestamp so processing order is chronological no
// matter the submission order, then chain-validated against a rolling
// cursor: record k's baseline is record k-1 of the batch, seeded from the
// most recent persisted reading. All records persist in one bulk insert;
// the snapshot and the single published event come from the
// chronologically last record.
func (ing *Ingestor) IngestBatch(ctx context.Context, vehicleID string, readings []domain.TelemetryReading) (*domain.BatchResult, error) {
	if _, err := ing.vehicles.FindByID(ctx, vehicleID); err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	sorted := make([]domain.TelemetryReading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var cursor *validation.Sample
	if latest, err := ing.telemetry.FindMostRecent(ctx, vehicleID); err != nil {
		return nil, fmt.Errorf("load previous telemetry: %w", err)
	} else if latest != nil {
		s := validation.SampleFromRecord(latest)
		cursor = &s
	}

	summary := domain.BatchValidationSummary{
		Total:  len(sorted),
		Issues: []domain.BatchRecordIssue{},
	}
	records := make([]*domain.TelemetryRecord, 0, len(sorted))
	for i := range sorted {
		reading := &sorted[i]
		verdict := validation.Validate(validation.SampleFromReading(reading), cursor)
		if verdict.ContextValid {
			summary.Valid++
		} else {
			summary.Invalid++
			summary.Issues = append(summary.Issues, domain.BatchRecordIssue{
				Timestamp: reading.Timestamp,
				Issues:    verdict.Issues,
				Severity:  verdict.Severity,
			})
		}

		rec := ing.buildRecord(vehicleID, reading, verdict)
		records = append(records, rec)

		next := validation.SampleFromRecord(rec)
		cursor = &next
	}

	if err := ing.telemetry.InsertMany(ctx, records); err != nil {
		return nil, fmt.Errorf("persist telemetry batch: %w", err)
	}
	for _, rec := range records {
		ing.observeVerdict(vehicleID, rec)
	}

	last := records[len(records)-1]
	if err := ing.vehicles.UpdateSnapshot(ctx, vehicleID, snapshotFrom(last, ing.now())); err != nil {
		return nil, fmt.Errorf("update vehicle snapshot: %w", err)
	}

	ing.publisher.Publish(ctx, domain.NewTelemetryReceivedEvent(last))

	return &domain.BatchResult{Saved: len(records), Validation: summary}, nil
}
