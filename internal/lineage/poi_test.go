package lineage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lineage-scanner/internal/models"
)

func mitigationPoints() []models.Point {
	return []models.Point{
		peak(1, 5.0, 4.0),
		valley(2, 3.0, 2.0),
		peak(3, 4.5, 3.6),
		valley(4, 3.2, 2.5),
		peak(5, 3.9, 3.3),
	}
}

func threeRankSpec(t *testing.T) ChainSpec {
	return mustSpec(t,
		LinkDef{Rank: 1, Kind: models.KindPeak},
		LinkDef{Rank: 2, Relation: RelationOpposite},
		LinkDef{Rank: 3, Relation: RelationOpposite},
	)
}

func TestLocatePOI_ValleyThresholdIsHigh(t *testing.T) {
	store := mustStore(t,
		valley(1, 2.0, 1.0),
		peak(2, 3.0, 2.2),
		valley(3, 2.5, 1.9),
		valley(4, 2.6, 0.9),
	)
	spec := mustSpec(t, LinkDef{Rank: 1, Kind: models.KindValley}, LinkDef{Rank: 2, Relation: RelationOpposite})

	c := BuildChains(store, spec, false, 0)
	ValidateLinks(c)
	inst := byID(Extract(c))["1-2"]
	require.NotNil(t, inst)

	LocatePOI(store, inst, 1)
	assert.Equal(t, models.KindValley, inst.POI.Kind)
	assert.True(t, inst.POI.Threshold.Equal(decimal.NewFromFloat(2.0)))
	assert.Equal(t, POIBroken, inst.POI.Status)
	assert.Equal(t, int64(3), inst.POI.Breaking.Index)

	LocatePOI(store, inst, 2)
	assert.Equal(t, models.KindPeak, inst.POI.Kind)
	assert.True(t, inst.POI.Threshold.Equal(decimal.NewFromFloat(2.2)))
	assert.Equal(t, POIBroken, inst.POI.Status)
	assert.Equal(t, int64(3), inst.POI.Breaking.Index)
}

func TestMitigation(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		keep      []string
		discard   []string
		mitigated int
	}{
		{
			name: "no filters",
			keep: []string{"1-2-3", "1-2-5", "3-4-5"},
		},
		{
			name:      "bound rank breaches threshold",
			opts:      Options{MitigationRanks: []int{3}},
			keep:      []string{"1-2-5"},
			discard:   []string{"1-2-3", "3-4-5"},
			mitigated: 2,
		},
		{
			name:      "interior point of later rank kind breaches threshold",
			opts:      Options{MitigationPairs: []RankPair{{From: 2, To: 3}}},
			keep:      []string{"1-2-3", "3-4-5"},
			discard:   []string{"1-2-5"},
			mitigated: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(mitigationPoints(), threeRankSpec(t), tt.opts)
			require.NoError(t, err)
			got := ids(res.Instances)
			for _, id := range tt.keep {
				assert.Contains(t, got, id)
			}
			for _, id := range tt.discard {
				assert.NotContains(t, got, id)
			}
			assert.Equal(t, tt.mitigated, res.Stats.Mitigated)
		})
	}
}
