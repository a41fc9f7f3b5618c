package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "lineage-scanner/internal/errors"
)

// PointRecord is the interchange form of a Point. Every field is a pointer
// so that missing fields can be told apart from zero values.
type PointRecord struct {
	Index     *int64           `json:"sequence_index"`
	Kind      *string          `json:"kind"`
	High      *decimal.Decimal `json:"high"`
	Low       *decimal.Decimal `json:"low"`
	Open      *decimal.Decimal `json:"open"`
	Close     *decimal.Decimal `json:"close"`
	Timestamp *time.Time       `json:"timestamp"`
	SweptBy   []int64          `json:"swept_by,omitempty"`
}

// PartitionRecord is one partition of swing points as delivered by the
// swing-detection collaborator.
type PartitionRecord struct {
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	Points    []PointRecord `json:"points"`
}

// Partition returns the partition key of the record.
func (r PartitionRecord) Partition() Partition {
	return Partition{Symbol: r.Symbol, Timeframe: r.Timeframe}
}

// PointBatch is the top-level interchange document.
type PointBatch struct {
	Partitions []PartitionRecord `json:"partitions"`
}

// ToPoint converts the record, rejecting records with a missing field.
func (r PointRecord) ToPoint(pos int) (Point, error) {
	field := func(name string) string {
		return fmt.Sprintf("points[%d].%s", pos, name)
	}
	switch {
	case r.Index == nil:
		return Point{}, apperrors.NewValidationError(field("sequence_index"), nil, "required field missing")
	case r.Kind == nil:
		return Point{}, apperrors.NewValidationError(field("kind"), nil, "required field missing")
	case r.High == nil:
		return Point{}, apperrors.NewValidationError(field("high"), nil, "required field missing")
	case r.Low == nil:
		return Point{}, apperrors.NewValidationError(field("low"), nil, "required field missing")
	case r.Open == nil:
		return Point{}, apperrors.NewValidationError(field("open"), nil, "required field missing")
	case r.Close == nil:
		return Point{}, apperrors.NewValidationError(field("close"), nil, "required field missing")
	case r.Timestamp == nil:
		return Point{}, apperrors.NewValidationError(field("timestamp"), nil, "required field missing")
	}

	var swept []int64
	if len(r.SweptBy) > 0 {
		swept = append(swept, r.SweptBy...)
	}
	return Point{
		Index:     *r.Index,
		Kind:      PointKind(*r.Kind),
		High:      *r.High,
		Low:       *r.Low,
		Open:      *r.Open,
		Close:     *r.Close,
		Timestamp: *r.Timestamp,
		SweptBy:   swept,
	}, nil
}

// ToPoints converts every record of the partition.
func (r PartitionRecord) ToPoints() ([]Point, error) {
	points := make([]Point, 0, len(r.Points))
	for i, rec := range r.Points {
		p, err := rec.ToPoint(i)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// NewPointRecord builds the interchange form of a point.
func NewPointRecord(p Point) PointRecord {
	kind := string(p.Kind)
	idx := p.Index
	high, low, open, closePrice, ts := p.High, p.Low, p.Open, p.Close, p.Timestamp
	return PointRecord{
		Index:     &idx,
		Kind:      &kind,
		High:      &high,
		Low:       &low,
		Open:      &open,
		Close:     &closePrice,
		Timestamp: &ts,
		SweptBy:   p.SweptBy,
	}
}
