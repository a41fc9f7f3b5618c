package lineage

import (
	"github.com/shopspring/decimal"

	"lineage-scanner/internal/models"
)

// threshold returns the POI price of the point bound at rank: the low of a
// peak, the high of a valley.
func threshold(inst *Instance, rank int) (models.PointKind, decimal.Decimal) {
	p := inst.Members[rank-1].Point
	if p.Kind == models.KindPeak {
		return p.Kind, p.Low
	}
	return p.Kind, p.High
}

// violates reports whether p breaches a threshold derived from a point of
// the given kind: a high above it for a peak, a low below it for a valley.
func violates(kind models.PointKind, p models.Point, level decimal.Decimal) bool {
	if kind == models.KindPeak {
		return p.High.GreaterThan(level)
	}
	return p.Low.LessThan(level)
}

// LocatePOI sets the instance threshold from the point bound at rank and
// scans forward from the final-rank point for the first breach. Running out
// of points leaves the status pending.
func LocatePOI(store *PointStore, inst *Instance, rank int) {
	kind, level := threshold(inst, rank)
	inst.POI = POI{Status: POIPending, Rank: rank, Kind: kind, Threshold: level}

	for pos := inst.positions[len(inst.positions)-1] + 1; pos < store.Len(); pos++ {
		p := store.At(pos)
		if violates(kind, p, level) {
			inst.POI.Status = POIBroken
			inst.POI.Breaking = &p
			return
		}
	}
}

// MitigatedByRanks reports whether any point bound at one of ranks breaches
// the instance threshold. LocatePOI must have run first.
func MitigatedByRanks(inst *Instance, ranks []int) bool {
	for _, r := range ranks {
		m, ok := inst.Member(r)
		if !ok {
			continue
		}
		if violates(inst.POI.Kind, m.Point, inst.POI.Threshold) {
			return true
		}
	}
	return false
}

// MitigatedByPairs reports whether, for any pair, a point strictly between
// the two bound points shares the later rank's kind and breaches the
// instance threshold. LocatePOI must have run first.
func MitigatedByPairs(store *PointStore, inst *Instance, pairs []RankPair) bool {
	for _, pair := range pairs {
		if pair.From < 1 || pair.To > len(inst.positions) || pair.From >= pair.To {
			continue
		}
		kind := inst.Members[pair.To-1].Point.Kind
		for pos := inst.positions[pair.From-1] + 1; pos < inst.positions[pair.To-1]; pos++ {
			p := store.At(pos)
			if p.Kind == kind && violates(inst.POI.Kind, p, inst.POI.Threshold) {
				return true
			}
		}
	}
	return false
}
