package lineage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lineage-scanner/internal/models"
)

// Link is the provenance recorded on a confirmed node.
type Link struct {
	Rank        int      `json:"rank"`
	ParentIndex *int64   `json:"parent_index,omitempty"`
	Index       int64    `json:"index"`
	Relation    Relation `json:"relation,omitempty"`
}

// Label renders the provenance as rank:parent>index/relation.
func (l Link) Label() string {
	if l.ParentIndex == nil {
		return fmt.Sprintf("%d:%d", l.Rank, l.Index)
	}
	return fmt.Sprintf("%d:%d>%d/%s", l.Rank, *l.ParentIndex, l.Index, l.Relation)
}

// ValidateLinks confirms or drops every node in the arena and returns the
// number of confirmed nodes. Anchors are always confirmed.
func ValidateLinks(c *Chains) int {
	confirmed := 0
	for id := range c.nodes {
		n := &c.nodes[id]
		p := c.store.At(n.pos)

		if n.parent == noParent {
			n.confirmed = true
			n.link = Link{Rank: 1, Index: p.Index}
			confirmed++
			continue
		}

		parent := c.nodes[n.parent]
		def := c.spec.Link(n.rank)
		if !c.linkHolds(def, n.pos, parent.pos) {
			continue
		}

		parentIndex := c.store.At(parent.pos).Index
		n.confirmed = true
		n.link = Link{Rank: n.rank, ParentIndex: &parentIndex, Index: p.Index, Relation: def.Relation}
		confirmed++
	}
	return confirmed
}

// linkHolds applies def's constraint between the point at pos and its parent
// at parentPos. Prices are read on the side of the child's kind, so a peak
// compares highs and a valley compares lows whatever the parent's kind.
func (c *Chains) linkHolds(def LinkDef, pos, parentPos int) bool {
	if def.Constraint == ConstraintNone {
		return true
	}

	p := c.store.At(pos)
	q := c.store.At(parentPos)
	side := p.Kind
	ref := q.Side(side)

	switch def.Constraint {
	case ConstraintBehind:
		return moreExtreme(side, ref, p.Side(side))
	case ConstraintBeyond:
		if !moreExtreme(side, p.Side(side), ref) {
			return false
		}
		if def.CollectiveWindow == 0 {
			return true
		}
		// The window must fit strictly between parent and child.
		if pos-def.CollectiveWindow <= parentPos {
			return false
		}
		for k := 1; k <= def.CollectiveWindow; k++ {
			if !moreExtreme(side, c.store.At(pos-k).Side(side), ref) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// moreExtreme reports whether a lies strictly further than b in the
// direction of kind: higher for a peak, lower for a valley.
func moreExtreme(kind models.PointKind, a, b decimal.Decimal) bool {
	if kind == models.KindPeak {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}
