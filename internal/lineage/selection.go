package lineage

import "github.com/shopspring/decimal"

// Select groups instances that share ranks 1..rank-1 and the kind bound at
// rank, and keeps one member per group: the most extreme rank point (highest high, lowest low) in
// SelectExtreme mode, the least extreme otherwise. Exact ties go to the
// earliest sequence index at rank. Instances shorter than rank are kept
// untouched. Survivors keep their input order.
func Select(instances []*Instance, rank int, mode SelectionMode) []*Instance {
	if rank < 1 {
		return instances
	}

	winners := make(map[string]*Instance)
	for _, inst := range instances {
		if len(inst.Members) < rank {
			continue
		}
		key := groupKey(inst, rank)
		best, ok := winners[key]
		if !ok || beats(inst, best, rank, mode) {
			winners[key] = inst
		}
	}

	out := make([]*Instance, 0, len(winners))
	for _, inst := range instances {
		if len(inst.Members) < rank {
			out = append(out, inst)
			continue
		}
		if winners[groupKey(inst, rank)] == inst {
			out = append(out, inst)
		}
	}
	return out
}

// groupKey keys peaks and valleys at rank apart so that highs are never
// compared against lows.
func groupKey(inst *Instance, rank int) string {
	return instanceKey(inst.Indexes()[:rank-1]) + "/" + string(inst.Members[rank-1].Point.Kind)
}

// beats reports whether a should replace b as the group survivor.
func beats(a, b *Instance, rank int, mode SelectionMode) bool {
	pa, pb := a.Members[rank-1].Point, b.Members[rank-1].Point
	va, vb := representative(a, rank), representative(b, rank)

	if va.Equal(vb) {
		return pa.Index < pb.Index
	}
	more := moreExtreme(pa.Kind, va, vb)
	if mode == SelectNonExtreme {
		return !more
	}
	return more
}

// representative is the selection price of the point bound at rank.
func representative(inst *Instance, rank int) decimal.Decimal {
	return inst.Members[rank-1].Point.Extreme()
}
