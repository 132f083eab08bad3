package domain

import "errors"

var (
	// ErrVehicleNotFound aborts ingestion before any side effect.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrEmptyBatch rejects batch ingestion with zero readings; without
	// an anchor record there is no "latest" to snapshot from.
	ErrEmptyBatch = errors.New("batch contains no readings")
)
