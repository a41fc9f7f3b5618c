package lineage

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"lineage-scanner/internal/models"
)

const seriesLen = 30

// series turns generated highs, ranges and kind flags into a point series
// with gaps between sequence indexes.
func series(highs, ranges []float64, peaks []bool) []models.Point {
	n := len(highs)
	if len(ranges) < n {
		n = len(ranges)
	}
	if len(peaks) < n {
		n = len(peaks)
	}
	points := make([]models.Point, 0, n)
	for i := 0; i < n; i++ {
		kind := models.KindValley
		if peaks[i] {
			kind = models.KindPeak
		}
		high := decimal.NewFromFloat(highs[i]).Round(2)
		low := high.Sub(decimal.NewFromFloat(ranges[i]).Round(2))
		p := models.Point{
			Index:     int64(i*3 + 7),
			Kind:      kind,
			High:      high,
			Low:       low,
			Open:      low,
			Close:     high,
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
		}
		if i%5 == 1 && i+4 < n {
			p.SweptBy = []int64{int64((i+2)*3 + 7), int64((i+4)*3 + 7)}
		}
		points = append(points, p)
	}
	return points
}

// specFromBits derives a chain of the given depth from a bit pattern: two
// bits per rank pick relation and constraint.
func specFromBits(depth, bits int) ChainSpec {
	links := []LinkDef{{Rank: 1, Kind: AnyKind}}
	constraints := []Constraint{ConstraintNone, ConstraintBehind, ConstraintBeyond, ConstraintNone}
	for r := 2; r <= depth; r++ {
		b := bits >> (3 * (r - 2))
		rel := RelationOpposite
		if b&1 == 1 {
			rel = RelationIdentical
		}
		links = append(links, LinkDef{Rank: r, Relation: rel, Constraint: constraints[(b>>1)&3]})
	}
	spec, err := NewChainSpec(links)
	if err != nil {
		panic(err)
	}
	return spec
}

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxShrinkCount = 0
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

// Property: every instance binds exactly N points with strictly increasing
// sequence indexes, and each member carries only its own rank's link.
func TestProperty_InstancesAreWellFormed(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("N members, increasing indexes, own-rank provenance", prop.ForAll(
		func(highs, ranges []float64, peaks []bool, depth, bits int) bool {
			spec := specFromBits(depth, bits)
			res, err := Run(series(highs, ranges, peaks), spec, Options{})
			if err != nil {
				return false
			}
			for _, inst := range res.Instances {
				if len(inst.Members) != depth {
					return false
				}
				for i, m := range inst.Members {
					if m.Rank != i+1 || m.Link.Rank != m.Rank || m.Link.Index != m.Point.Index {
						return false
					}
					if i == 0 {
						if m.Link.ParentIndex != nil {
							return false
						}
						continue
					}
					prev := inst.Members[i-1].Point.Index
					if m.Point.Index <= prev || m.Link.ParentIndex == nil || *m.Link.ParentIndex != prev {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(seriesLen, gen.Float64Range(10, 20)),
		gen.SliceOfN(seriesLen, gen.Float64Range(0.1, 3)),
		gen.SliceOfN(seriesLen, gen.Bool()),
		gen.IntRange(1, 4),
		gen.IntRange(0, 511),
	))

	properties.TestingRun(t)
}

// Property: scanning the same series twice yields the same instance set.
func TestProperty_ScanIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("repeated scans agree", prop.ForAll(
		func(highs, ranges []float64, peaks []bool, depth, bits int) bool {
			points := series(highs, ranges, peaks)
			opts := Options{
				MitigationRanks: []int{depth},
				SelectionRank:   depth,
				SelectionMode:   SelectExtreme,
			}
			engine, err := NewEngine(specFromBits(depth, bits), opts)
			if err != nil {
				return false
			}
			first, err := engine.Scan(points)
			if err != nil {
				return false
			}
			second, err := engine.Scan(points)
			if err != nil {
				return false
			}

			seen := make(map[string]bool)
			for _, inst := range first.Instances {
				seen[inst.ID] = true
			}
			if len(seen) != len(second.Instances) {
				return false
			}
			for _, inst := range second.Instances {
				if !seen[inst.ID] {
					return false
				}
			}
			return first.Stats == second.Stats
		},
		gen.SliceOfN(seriesLen, gen.Float64Range(10, 20)),
		gen.SliceOfN(seriesLen, gen.Float64Range(0.1, 3)),
		gen.SliceOfN(seriesLen, gen.Bool()),
		gen.IntRange(1, 4),
		gen.IntRange(0, 511),
	))

	properties.TestingRun(t)
}

// Property: after selection each prefix group holds exactly one instance and
// it carries the group's extreme representative price.
func TestProperty_SelectionKeepsOneExtremePerGroup(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("one extreme survivor per group", prop.ForAll(
		func(highs, ranges []float64, peaks []bool, depth, bits int, rankSeed int) bool {
			if depth < 2 {
				depth = 2
			}
			rank := 1 + rankSeed%depth
			spec := specFromBits(depth, bits)

			res, err := Run(series(highs, ranges, peaks), spec, Options{})
			if err != nil {
				return false
			}

			groups := make(map[string][]*Instance)
			for _, inst := range res.Instances {
				key := groupKey(inst, rank)
				groups[key] = append(groups[key], inst)
			}

			survivors := Select(res.Instances, rank, SelectExtreme)
			perGroup := make(map[string]*Instance)
			for _, inst := range survivors {
				key := groupKey(inst, rank)
				if _, dup := perGroup[key]; dup {
					return false
				}
				perGroup[key] = inst
			}
			if len(perGroup) != len(groups) {
				return false
			}

			for key, members := range groups {
				winner := representative(perGroup[key], rank)
				kind := perGroup[key].Members[rank-1].Point.Kind
				for _, m := range members {
					if moreExtreme(kind, representative(m, rank), winner) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(seriesLen, gen.Float64Range(10, 20)),
		gen.SliceOfN(seriesLen, gen.Float64Range(0.1, 3)),
		gen.SliceOfN(seriesLen, gen.Bool()),
		gen.IntRange(2, 4),
		gen.IntRange(0, 511),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
