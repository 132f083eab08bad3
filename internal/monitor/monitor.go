// Package monitor runs the periodic connection-state sweep. Connectivity
// is a pure function of how long ago a vehicle was last seen; the sweep
// recomputes it for every vehicle with a known last-seen time, writes
// only on change and emits domain events for OFFLINE transitions and
// OFFLINE recoveries. STALE transitions are broadcast-visible only and
// never produce a durable domain event.
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
	"github.com/b3hniya/tenderd-fms-sub000/internal/metrics"
)

const (
	// OnlineWindow is the maximum silence before a vehicle degrades to STALE.
	OnlineWindow = 60 * time.Second

	// OfflineThreshold is the silence after which a vehicle is OFFLINE.
	OfflineThreshold = 300 * time.Second

	// DefaultSweepInterval keeps transitions observed well inside the
	// ONLINE window.
	DefaultSweepInterval = 30 * time.Second
)

// VehicleDirectory is the slice of the vehicle registry the monitor needs.
type VehicleDirectory interface {
	// ListWithLastSeen returns every vehicle that has reported at least once.
	ListWithLastSeen(ctx context.Context) ([]domain.Vehicle, error)

	// UpdateStatus persists a recomputed connection status. Implementations
	// stamp offlineSince on entry to OFFLINE and clear it when asked.
	UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus, clearOfflineSince bool) error
}

// EventPublisher matches the ingestion-side fan-out contract.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// Monitor drives the sweep on a fixed cadence. Only one sweep instance
// runs at a time: a tick arriving mid-sweep is skipped, not queued.
type Monitor struct {
	vehicles  VehicleDirectory
	publisher EventPublisher
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time

	busy atomic.Bool
}

func New(vehicles VehicleDirectory, publisher EventPublisher, logger *zap.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Monitor{
		vehicles:  vehicles,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Run ticks until the context is cancelled. A sweep failure is logged
// and never stops future ticks.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("connection monitor started", zap.Duration("interval", m.interval))
	for {
		select {
		case <-ticker.C:
			m.Tick(ctx)
		case <-ctx.Done():
			m.logger.Info("connection monitor stopped")
			return
		}
	}
}

// Tick runs one sweep unless a previous one is still executing, in which
// case it is a deliberate no-op.
func (m *Monitor) Tick(ctx context.Context) {
	if !m.busy.CompareAndSwap(false, true) {
		metrics.SweepSkips.Inc()
		m.logger.Debug("sweep still running, tick skipped")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("sweep panicked", zap.Any("panic", r))
		}
		m.busy.Store(false)
	}()

	if err := m.sweep(ctx); err != nil {
		m.logger.Error("sweep failed", zap.Error(err))
	}
}

func (m *Monitor) sweep(ctx context.Context) error {
	vehicles, err := m.vehicles.ListWithLastSeen(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}

	now := m.now()
	var transitions, failures int
	for i := range vehicles {
		if err := m.recompute(ctx, now, &vehicles[i], &transitions); err != nil {
			failures++
			metrics.SweepVehicleErrors.Inc()
			m.logger.Error("vehicle status recompute failed",
				zap.String("vehicle_id", vehicles[i].ID),
				zap.Error(err),
			)
		}
	}

	metrics.SweepRuns.Inc()
	m.logger.Debug("sweep complete",
		zap.Int("vehicles", len(vehicles)),
		zap.Int("transitions", transitions),
		zap.Int("failures", failures),
	)
	return nil
}

func (m *Monitor) recompute(ctx context.Context, now time.Time, v *domain.Vehicle, transitions *int) error {
	if v.LastSeenAt == nil {
		return nil
	}
	next := Classify(now.Sub(*v.LastSeenAt))
	if next == v.ConnectionStatus {
		return nil
	}

	if err := m.vehicles.UpdateStatus(ctx, v.ID, next, next == domain.StatusOnline); err != nil {
		return err
	}
	*transitions++
	metrics.StatusTransitions.WithLabelValues(string(v.ConnectionStatus), string(next)).Inc()

	switch {
	case next == domain.StatusOffline:
		m.publisher.Publish(ctx, domain.VehicleOfflineEvent{
			VehicleID:      v.ID,
			VIN:            v.VIN,
			LastSeenAt:     *v.LastSeenAt,
			PreviousStatus: v.ConnectionStatus,
		})
	case v.ConnectionStatus == domain.StatusOffline && next == domain.StatusOnline:
		m.publisher.Publish(ctx, domain.VehicleReconnectedEvent{
			VehicleID:         v.ID,
			VIN:               v.VIN,
			ReconnectedAt:     now,
			OfflineDurationMs: now.Sub(*v.LastSeenAt).Milliseconds(),
		})
	}
	return nil
}

// Classify maps silence duration onto a connection status.
func Classify(age time.Duration) domain.ConnectionStatus {
	switch {
	case age < OnlineWindow:
		return domain.StatusOnline
	case age < OfflineThreshold:
		return domain.StatusStale
	default:
		return domain.StatusOffline
	}
}
