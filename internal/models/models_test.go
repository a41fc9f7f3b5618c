package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lineage-scanner/internal/errors"
)

func TestPointKind(t *testing.T) {
	assert.True(t, KindPeak.Recognized())
	assert.True(t, KindValley.Recognized())
	assert.False(t, PointKind("flat").Recognized())

	assert.Equal(t, KindValley, KindPeak.Opposite())
	assert.Equal(t, KindPeak, KindValley.Opposite())
	assert.Equal(t, PointKind("flat"), PointKind("flat").Opposite())
}

func TestPointSides(t *testing.T) {
	p := Point{Kind: KindValley, High: decimal.NewFromInt(12), Low: decimal.NewFromInt(9)}
	assert.True(t, p.Extreme().Equal(decimal.NewFromInt(9)))
	assert.True(t, p.Side(KindPeak).Equal(decimal.NewFromInt(12)))

	p.Kind = KindPeak
	assert.True(t, p.Extreme().Equal(decimal.NewFromInt(12)))
}

func TestPartitionRecordToPoints(t *testing.T) {
	doc := `{
		"symbol": "EURUSD",
		"timeframe": "1h",
		"points": [
			{"sequence_index": 3, "kind": "peak", "high": 1.2, "low": "1.1", "open": 1.15, "close": 1.18,
			 "timestamp": "2024-01-01T03:00:00Z", "swept_by": [7]}
		]
	}`
	var rec PartitionRecord
	require.NoError(t, json.Unmarshal([]byte(doc), &rec))
	assert.Equal(t, Partition{Symbol: "EURUSD", Timeframe: "1h"}, rec.Partition())

	points, err := rec.ToPoints()
	require.NoError(t, err)
	require.Len(t, points, 1)
	p := points[0]
	assert.Equal(t, int64(3), p.Index)
	assert.Equal(t, KindPeak, p.Kind)
	assert.True(t, p.Low.Equal(decimal.RequireFromString("1.1")))
	assert.Equal(t, []int64{7}, p.SweptBy)
	assert.True(t, p.Timestamp.Equal(time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)))
}

func TestPointRecordMissingField(t *testing.T) {
	doc := `{"symbol": "EURUSD", "timeframe": "1h", "points": [
		{"sequence_index": 1, "kind": "peak", "high": 1, "low": 1, "open": 1, "close": 1, "timestamp": "2024-01-01T00:00:00Z"},
		{"sequence_index": 2, "kind": "valley", "high": 1, "open": 1, "close": 1, "timestamp": "2024-01-01T01:00:00Z"}
	]}`
	var rec PartitionRecord
	require.NoError(t, json.Unmarshal([]byte(doc), &rec))

	_, err := rec.ToPoints()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedInput)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "points[1].low", verr.Field)
}

func TestNewPointRecordRoundTrip(t *testing.T) {
	p := Point{
		Index:     42,
		Kind:      KindValley,
		High:      decimal.RequireFromString("101.5"),
		Low:       decimal.RequireFromString("99.25"),
		Open:      decimal.RequireFromString("100"),
		Close:     decimal.RequireFromString("101"),
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		SweptBy:   []int64{50, 61},
	}
	rec := NewPointRecord(p)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var back PointRecord
	require.NoError(t, json.Unmarshal(data, &back))

	got, err := back.ToPoint(0)
	require.NoError(t, err)
	assert.Equal(t, p.Index, got.Index)
	assert.True(t, p.Low.Equal(got.Low))
	assert.Equal(t, p.SweptBy, got.SweptBy)
}
