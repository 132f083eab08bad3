package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
	"github.com/b3hniya/tenderd-fms-sub000/internal/ingest"
	"github.com/b3hniya/tenderd-fms-sub000/internal/store"
)

type Handlers struct {
	ingestor *ingest.Ingestor
	vehicles *store.PostgresStore
	live     *store.LiveState
	logger   *zap.Logger
}

func NewHandlers(ingestor *ingest.Ingestor, vehicles *store.PostgresStore, live *store.LiveState, logger *zap.Logger) *Handlers {
	return &Handlers{ingestor: ingestor, vehicles: vehicles, live: live, logger: logger}
}

type locationRequest struct {
	Lat float64 `json:"lat" binding:"required_with=Lng"`
	Lng float64 `json:"lng" binding:"required_with=Lat"`
}

type readingRequest struct {
	Timestamp  time.Time        `json:"timestamp" binding:"required"`
	Location   *locationRequest `json:"location"`
	Speed      float64          `json:"speed"`
	FuelLevel  float64          `json:"fuelLevel"`
	Odometer   float64          `json:"odometer"`
	EngineTemp float64          `json:"engineTemp"`
	EngineRPM  *float64         `json:"engineRPM"`
	DeviceID   string           `json:"deviceId"`
}

func (r *readingRequest) toDomain(vehicleID string) domain.TelemetryReading {
	reading := domain.TelemetryReading{
		VehicleID:  vehicleID,
		Timestamp:  r.Timestamp,
		Speed:      r.Speed,
		FuelLevel:  r.FuelLevel,
		Odometer:   r.Odometer,
		EngineTemp: r.EngineTemp,
		EngineRPM:  r.EngineRPM,
		DeviceID:   r.DeviceID,
	}
	if r.Location != nil {
		reading.Location = &domain.LatLng{Lat: r.Location.Lat, Lng: r.Location.Lng}
	}
	return reading
}

type batchRequest struct {
	Readings []readingRequest `json:"readings"`
}

// IngestTelemetry handles one reading for a vehicle.
func (h *Handlers) IngestTelemetry(c *gin.Context) {
	vehicleID := c.Param("id")
	var req readingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading := req.toDomain(vehicleID)
	rec, err := h.ingestor.IngestOne(c.Request.Context(), vehicleID, &reading)
	if err != nil {
		h.writeError(c, vehicleID, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// IngestTelemetryBatch handles a set of readings for a vehicle.
func (h *Handlers) IngestTelemetryBatch(c *gin.Context) {
	vehicleID := c.Param("id")
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	readings := make([]domain.TelemetryReading, len(req.Readings))
	for i := range req.Readings {
		readings[i] = req.Readings[i].toDomain(vehicleID)
	}

	res, err := h.ingestor.IngestBatch(c.Request.Context(), vehicleID, readings)
	if err != nil {
		h.writeError(c, vehicleID, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetVehicle returns the directory row with the live snapshot merged in.
// The Redis hash is preferred for telemetry freshness; the directory row
// is the fallback when the live entry has expired.
func (h *Handlers) GetVehicle(c *gin.Context) {
	vehicleID := c.Param("id")
	vehicle, err := h.vehicles.FindByID(c.Request.Context(), vehicleID)
	if err != nil {
		h.writeError(c, vehicleID, err)
		return
	}

	if h.live != nil {
		cur, status, err := h.live.ReadSnapshot(c.Request.Context(), vehicleID)
		if err != nil {
			h.logger.Warn("live snapshot read failed",
				zap.String("vehicle_id", vehicleID), zap.Error(err))
		} else if cur != nil {
			vehicle.CurrentTelemetry = cur
			if status != "" {
				vehicle.ConnectionStatus = status
			}
		}
	}
	c.JSON(http.StatusOK, vehicle)
}

func (h *Handlers) writeError(c *gin.Context, vehicleID string, err error) {
	switch {
	case errors.Is(err, domain.ErrVehicleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
	case errors.Is(err, domain.ErrEmptyBatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch contains no readings"})
	default:
		h.logger.Error("ingestion request failed",
			zap.String("vehicle_id", vehicleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
