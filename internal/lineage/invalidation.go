package lineage

// CheckInvalidation tags the instance with the intruder and outlaw events
// found between its messenger (rank 2) and final-rank points. Tags only
// enrich the instance; nothing is removed here.
//
// Intruder: the first liquidity sweep recorded against the messenger whose
// sweeping index lies strictly inside the span.
// Outlaw: the earliest point strictly inside the span whose kind is the
// opposite of the final point's kind.
func CheckInvalidation(store *PointStore, inst *Instance) {
	if len(inst.Members) < 2 {
		return
	}

	messenger := inst.Members[1]
	final := inst.Final()
	lo, hi := messenger.Point.Index, final.Point.Index

	for _, sweeper := range messenger.Point.SweptBy {
		if sweeper > lo && sweeper < hi {
			idx := sweeper
			inst.Intruder = &idx
			break
		}
	}

	opposite := final.Point.Kind.Opposite()
	for pos := inst.positions[1] + 1; pos < inst.positions[len(inst.positions)-1]; pos++ {
		p := store.At(pos)
		if p.Kind == opposite {
			idx := p.Index
			inst.Outlaw = &idx
			break
		}
	}
}
