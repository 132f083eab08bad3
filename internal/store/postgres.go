package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/config"
	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

// PostgresStore is the durable side of the system: the append-only
// telemetry history and the vehicle directory. When a live-state store
// is attached, snapshot writes flow through to Redis as well; a live
// write failure is logged, never surfaced, since Redis is a cache over
// the directory row.
type PostgresStore struct {
	pool   *pgxpool.Pool
	live   *LiveState
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, cfg *config.Config, live *LiveState, logger *zap.Logger) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool, live: live, logger: logger}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var telemetryColumns = []string{
	"id",
	"vehicle_id",
	"timestamp",
	"latitude",
	"longitude",
	"speed",
	"fuel_level",
	"odometer",
	"engine_temp",
	"engine_rpm",
	"device_id",
	"received_at",
	"validation",
}

func telemetryRow(rec *domain.TelemetryRecord) ([]interface{}, error) {
	verdict, err := json.Marshal(rec.Validation)
	if err != nil {
		return nil, fmt.Errorf("marshal verdict: %w", err)
	}
	var lat, lng *float64
	if rec.Location != nil {
		ll := rec.Location.LatLng()
		lat, lng = &ll.Lat, &ll.Lng
	}
	return []interface{}{
		rec.ID,
		rec.VehicleID,
		rec.Timestamp,
		lat,
		lng,
		rec.Speed,
		rec.FuelLevel,
		rec.Odometer,
		rec.EngineTemp,
		rec.EngineRPM,
		nullable(rec.DeviceID),
		rec.ReceivedAt,
		verdict,
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresStore) InsertOne(ctx context.Context, rec *domain.TelemetryRecord) error {
	row, err := telemetryRow(rec)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO vehicle_telemetry
			(id, vehicle_id, timestamp, latitude, longitude, speed,
			 fuel_level, odometer, engine_temp, engine_rpm, device_id,
			 received_at, validation)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if _, err := s.pool.Exec(ctx, query, row...); err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	return nil
}

// InsertMany bulk-writes a batch via the COPY protocol. The copy is a
// single statement: a failure aborts the whole batch, no partial writes.
func (s *PostgresStore) InsertMany(ctx context.Context, recs []*domain.TelemetryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(recs))
	for i, rec := range recs {
		row, err := telemetryRow(rec)
		if err != nil {
			return err
		}
		rows[i] = row
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"vehicle_telemetry"},
		telemetryColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(recs), err)
	}
	return nil
}

// FindMostRecent returns the latest persisted reading for a vehicle by
// timestamp, or (nil, nil) when it has none.
func (s *PostgresStore) FindMostRecent(ctx context.Context, vehicleID string) (*domain.TelemetryRecord, error) {
	query := `
		SELECT id, vehicle_id, timestamp, latitude, longitude, speed,
		       fuel_level, odometer, engine_temp, engine_rpm, device_id,
		       received_at, validation
		FROM vehicle_telemetry
		WHERE vehicle_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	rec, err := scanTelemetry(s.pool.QueryRow(ctx, query, vehicleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find most recent telemetry: %w", err)
	}
	return rec, nil
}

func scanTelemetry(row pgx.Row) (*domain.TelemetryRecord, error) {
	var (
		rec      domain.TelemetryRecord
		lat, lng *float64
		deviceID *string
		verdict  []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.VehicleID,
		&rec.Timestamp,
		&lat,
		&lng,
		&rec.Speed,
		&rec.FuelLevel,
		&rec.Odometer,
		&rec.EngineTemp,
		&rec.EngineRPM,
		&deviceID,
		&rec.ReceivedAt,
		&verdict,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		p := domain.NewGeoJSONPoint(domain.LatLng{Lat: *lat, Lng: *lng})
		rec.Location = &p
	}
	if deviceID != nil {
		rec.DeviceID = *deviceID
	}
	if err := json.Unmarshal(verdict, &rec.Validation); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return &rec, nil
}

// FindByID returns domain.ErrVehicleNotFound for unknown ids.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `
		SELECT id, vin, plate_number, connection_status, last_seen_at, offline_since
		FROM vehicles
		WHERE id = $1
	`
	v, err := scanVehicle(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	return v, nil
}

// ListWithLastSeen returns every vehicle that has reported at least once.
func (s *PostgresStore) ListWithLastSeen(ctx context.Context) ([]domain.Vehicle, error) {
	query := `
		SELECT id, vin, plate_number, connection_status, last_seen_at, offline_since
		FROM vehicles
		WHERE last_seen_at IS NOT NULL
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanVehicle(row pgx.Row) (*domain.Vehicle, error) {
	var (
		v     domain.Vehicle
		plate *string
	)
	err := row.Scan(&v.ID, &v.VIN, &plate, &v.ConnectionStatus, &v.LastSeenAt, &v.OfflineSince)
	if err != nil {
		return nil, err
	}
	if plate != nil {
		v.PlateNumber = *plate
	}
	return &v, nil
}

// UpdateSnapshot overwrites the vehicle's live telemetry fields, forces
// the status ONLINE and clears offlineSince. Receiving any reading proves
// connectivity, whatever the reading's verdict or timestamp.
func (s *PostgresStore) UpdateSnapshot(ctx context.Context, id string, update domain.SnapshotUpdate) error {
	var lat, lng *float64
	if update.Telemetry.Location != nil {
		lat, lng = &update.Telemetry.Location.Lat, &update.Telemetry.Location.Lng
	}
	query := `
		UPDATE vehicles
		SET connection_status    = 'ONLINE',
		    last_seen_at         = $2,
		    offline_since        = NULL,
		    current_latitude     = $3,
		    current_longitude    = $4,
		    current_speed        = $5,
		    current_fuel_level   = $6,
		    current_odometer     = $7,
		    current_engine_temp  = $8,
		    current_telemetry_at = $9
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id,
		update.LastSeenAt, lat, lng,
		update.Telemetry.Speed, update.Telemetry.FuelLevel,
		update.Telemetry.Odometer, update.Telemetry.EngineTemp,
		update.Telemetry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVehicleNotFound
	}

	if s.live != nil {
		if err := s.live.WriteSnapshot(ctx, id, update); err != nil {
			s.logger.Warn("live snapshot write failed",
				zap.String("vehicle_id", id), zap.Error(err))
		}
	}
	return nil
}

// UpdateStatus persists a recomputed connection status. Entering OFFLINE
// stamps offline_since once; clearOfflineSince resets it on recovery.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus, clearOfflineSince bool) error {
	query := `
		UPDATE vehicles
		SET connection_status = $2,
		    offline_since = CASE
		        WHEN $3 THEN NULL
		        WHEN $2 = 'OFFLINE' THEN COALESCE(offline_since, NOW())
		        ELSE offline_since
		    END
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, string(status), clearOfflineSince)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVehicleNotFound
	}

	if s.live != nil {
		if err := s.live.WriteStatus(ctx, id, status); err != nil {
			s.logger.Warn("live status write failed",
				zap.String("vehicle_id", id), zap.Error(err))
		}
	}
	return nil
}
