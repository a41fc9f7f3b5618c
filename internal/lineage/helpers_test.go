package lineage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lineage-scanner/internal/models"
)

var baseTime = time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)

func peak(idx int64, high, low float64) models.Point {
	return point(idx, models.KindPeak, high, low)
}

func valley(idx int64, high, low float64) models.Point {
	return point(idx, models.KindValley, high, low)
}

func point(idx int64, kind models.PointKind, high, low float64) models.Point {
	return models.Point{
		Index:     idx,
		Kind:      kind,
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Open:      decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(high),
		Timestamp: baseTime.Add(time.Duration(idx) * time.Hour),
	}
}

func mustSpec(t *testing.T, links ...LinkDef) ChainSpec {
	t.Helper()
	spec, err := NewChainSpec(links)
	require.NoError(t, err)
	return spec
}

func mustStore(t *testing.T, points ...models.Point) *PointStore {
	t.Helper()
	store, err := NewPointStore(points)
	require.NoError(t, err)
	return store
}

func anchor() LinkDef {
	return LinkDef{Rank: 1, Kind: AnyKind}
}

func ids(instances []*Instance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.ID
	}
	return out
}
