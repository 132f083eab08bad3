package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fms_user"),
		dbGetEnv("DB_PASSWORD", "fms_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fms"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_vehicles_table(ctx, conn)
	step2_telemetry_table(ctx, conn)
	step3_indexes(ctx, conn)
	step4_seed_vehicles(ctx, conn)
	step5_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./cmd/server")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — vehicles table (directory + live snapshot)
// ─────────────────────────────────────────────────────────────
func step1_vehicles_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: vehicles table ──────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicles (

			id                   TEXT             PRIMARY KEY,
			vin                  TEXT             NOT NULL,
			plate_number         TEXT,

			-- Connectivity — recomputed by the monitor sweep,
			-- forced ONLINE by any ingested reading
			connection_status    TEXT             NOT NULL DEFAULT 'OFFLINE',
			last_seen_at         TIMESTAMPTZ,
			offline_since        TIMESTAMPTZ,

			-- Live snapshot — most recently PROCESSED reading,
			-- not necessarily the most recently occurring one
			current_latitude     DOUBLE PRECISION,
			current_longitude    DOUBLE PRECISION,
			current_speed        DOUBLE PRECISION,
			current_fuel_level   DOUBLE PRECISION,
			current_odometer     DOUBLE PRECISION,
			current_engine_temp  DOUBLE PRECISION,
			current_telemetry_at TIMESTAMPTZ,

			CONSTRAINT chk_connection_status CHECK (
				connection_status IN ('ONLINE', 'STALE', 'OFFLINE')
			)
		);
	`, "vehicles table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — vehicle_telemetry table (append-only history)
// ─────────────────────────────────────────────────────────────
func step2_telemetry_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: vehicle_telemetry table ─────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicle_telemetry (

			id           UUID             PRIMARY KEY,
			vehicle_id   TEXT             NOT NULL,

			-- Vehicle clock vs server clock: device clocks drift,
			-- received_at is always accurate
			timestamp    TIMESTAMPTZ      NOT NULL,
			received_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			-- GPS — nullable: readings without a fix are still valid
			latitude     DOUBLE PRECISION,
			longitude    DOUBLE PRECISION,

			-- Sensor readings
			speed        DOUBLE PRECISION NOT NULL DEFAULT 0,
			fuel_level   DOUBLE PRECISION NOT NULL DEFAULT 0,
			odometer     DOUBLE PRECISION NOT NULL DEFAULT 0,
			engine_temp  DOUBLE PRECISION NOT NULL DEFAULT 0,
			engine_rpm   DOUBLE PRECISION,

			device_id    TEXT,

			-- Contextual validation verdict, embedded at write time
			-- and never mutated afterwards
			validation   JSONB            NOT NULL
		);
	`, "vehicle_telemetry table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — Indexes
// ─────────────────────────────────────────────────────────────
func step3_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_telemetry_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_telemetry_vehicle_time
				  ON vehicle_telemetry (vehicle_id, timestamp DESC);`,
			why: "query: most recent reading for one vehicle",
		},
		{
			name: "idx_telemetry_received",
			sql: `CREATE INDEX IF NOT EXISTS idx_telemetry_received
				  ON vehicle_telemetry (received_at DESC);`,
			why: "query: recently ingested readings",
		},
		{
			name: "idx_vehicles_last_seen",
			sql: `CREATE INDEX IF NOT EXISTS idx_vehicles_last_seen
				  ON vehicles (last_seen_at)
				  WHERE last_seen_at IS NOT NULL;`,
			why: "query: monitor sweep over reporting vehicles",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Seed a few vehicles for local development
// ─────────────────────────────────────────────────────────────
func step4_seed_vehicles(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Seed vehicles ───────────────────────")

	seeds := []struct{ id, vin, plate string }{
		{"veh-001", "1HGBH41JXMN109186", "A-12345"},
		{"veh-002", "2FTRX18W1XCA01212", "B-67890"},
		{"veh-003", "3VWFE21C04M000001", "C-24680"},
	}
	for _, s := range seeds {
		execOrFatal(ctx, conn, fmt.Sprintf(`
			INSERT INTO vehicles (id, vin, plate_number)
			VALUES ('%s', '%s', '%s')
			ON CONFLICT (id) DO NOTHING;
		`, s.id, s.vin, s.plate), fmt.Sprintf("vehicle %s", s.id))
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	tables := []string{"vehicles", "vehicle_telemetry"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('vehicles', 'vehicle_telemetry')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
