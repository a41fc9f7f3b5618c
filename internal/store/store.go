// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"time"

	"lineage-scanner/internal/lineage"
	"lineage-scanner/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, partition models.Partition, candles []models.Candle) error
	GetCandles(ctx context.Context, partition models.Partition, from, to time.Time) ([]models.Candle, error)

	// Swing points
	SavePoints(ctx context.Context, partition models.Partition, points []models.Point) error
	GetPoints(ctx context.Context, partition models.Partition) ([]models.Point, error)
	ListPartitions(ctx context.Context) ([]models.Partition, error)

	// Scan results
	SaveRun(ctx context.Context, run ScanRun) error
	SaveInstances(ctx context.Context, runID string, partition models.Partition, instances []*lineage.Instance) error
	GetResults(ctx context.Context, filter ResultFilter) ([]StoredInstance, error)
	LatestRunID(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ScanRun summarises one scan across partitions.
type ScanRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Partitions int
	Failed     int
	Survivors  int
}

// StoredInstance is a persisted pattern instance.
type StoredInstance struct {
	RunID         string
	Partition     models.Partition
	InstanceID    string
	POIStatus     lineage.POIStatus
	BreakingIndex *int64
	Tags          []string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

// Instance decodes the stored payload.
func (s StoredInstance) Instance() (*lineage.Instance, error) {
	var inst lineage.Instance
	if err := json.Unmarshal(s.Payload, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// ResultFilter represents filters for querying scan results.
type ResultFilter struct {
	RunID     string
	Symbol    string
	Timeframe string
	Status    lineage.POIStatus
	Limit     int
}
