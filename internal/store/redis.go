package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/b3hniya/tenderd-fms-sub000/internal/config"
	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

// liveSnapshotTTL bounds staleness on the dashboard: a vehicle that stops
// reporting drops off the live map even if nothing else cleans up.
const liveSnapshotTTL = 10 * time.Minute

// LiveState is the Redis-backed live view: per-vehicle snapshot hashes, a
// geo index for map queries, and the pub/sub broadcast channel.
type LiveState struct {
	client *redis.Client
}

func NewLiveState(ctx context.Context, cfg *config.Config) (*LiveState, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &LiveState{client: client}, nil
}

func (r *LiveState) Close() error {
	return r.client.Close()
}

func (r *LiveState) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *LiveState) Client() *redis.Client {
	return r.client
}

func snapshotKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:snapshot", vehicleID)
}

const geoKey = "fleet:vehicles:geo"

// WriteSnapshot mirrors an ingested reading into the live hash and the
// geo index in one pipeline.
func (r *LiveState) WriteSnapshot(ctx context.Context, vehicleID string, update domain.SnapshotUpdate) error {
	fields := map[string]interface{}{
		"vehicle_id":        vehicleID,
		"connection_status": string(domain.StatusOnline),
		"speed":             update.Telemetry.Speed,
		"fuel_level":        update.Telemetry.FuelLevel,
		"odometer":          update.Telemetry.Odometer,
		"engine_temp":       update.Telemetry.EngineTemp,
		"timestamp":         update.Telemetry.Timestamp.UTC().Format(time.RFC3339Nano),
		"last_seen_at":      update.LastSeenAt.UTC().Format(time.RFC3339Nano),
	}
	if update.Telemetry.Location != nil {
		fields["lat"] = update.Telemetry.Location.Lat
		fields["lng"] = update.Telemetry.Location.Lng
	}

	pipe := r.client.Pipeline()
	key := snapshotKey(vehicleID)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, liveSnapshotTTL)
	if update.Telemetry.Location != nil {
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      vehicleID,
			Longitude: update.Telemetry.Location.Lng,
			Latitude:  update.Telemetry.Location.Lat,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// WriteStatus mirrors a monitor status transition into the live hash.
func (r *LiveState) WriteStatus(ctx context.Context, vehicleID string, status domain.ConnectionStatus) error {
	return r.client.HSet(ctx, snapshotKey(vehicleID), "connection_status", string(status)).Err()
}

// ReadSnapshot returns the live hash for a vehicle, or nil when the
// vehicle has no live entry (expired or never reported).
func (r *LiveState) ReadSnapshot(ctx context.Context, vehicleID string) (*domain.CurrentTelemetry, domain.ConnectionStatus, error) {
	fields, err := r.client.HGetAll(ctx, snapshotKey(vehicleID)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("read live snapshot: %w", err)
	}
	if len(fields) == 0 {
		return nil, "", nil
	}

	cur := &domain.CurrentTelemetry{
		Speed:      parseF(fields["speed"]),
		FuelLevel:  parseF(fields["fuel_level"]),
		Odometer:   parseF(fields["odometer"]),
		EngineTemp: parseF(fields["engine_temp"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"]); err == nil {
		cur.Timestamp = ts
	}
	if lat, ok := fields["lat"]; ok {
		cur.Location = &domain.LatLng{Lat: parseF(lat), Lng: parseF(fields["lng"])}
	}
	return cur, domain.ConnectionStatus(fields["connection_status"]), nil
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// Emit publishes a payload on a broadcast channel. Implements the
// optional broadcast collaborator for the event fan-out.
func (r *LiveState) Emit(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Subscribe exposes the broadcast channels to the websocket live feed.
func (r *LiveState) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.client.Subscribe(ctx, channels...)
}

// GetAPIKey resolves an ingest API key to a device id, empty when unknown.
func (r *LiveState) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("device:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}
