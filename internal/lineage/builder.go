package lineage

import (
	"lineage-scanner/internal/models"
)

// NodeID addresses a node in a Chains arena.
type NodeID int

const noParent NodeID = -1

type node struct {
	rank      int
	pos       int
	parent    NodeID
	primary   bool
	confirmed bool
	link      Link
}

// ChainNode is a read-only view of one arena node.
type ChainNode struct {
	ID        NodeID
	Rank      int
	Point     models.Point
	Parent    NodeID
	Primary   bool
	Confirmed bool
}

// Chains is the arena produced by the chain builder. Every candidate binding
// is a node holding its rank, its store position and a back-pointer to the
// parent node one rank below.
type Chains struct {
	store    *PointStore
	spec     ChainSpec
	nodes    []node
	anchors  []NodeID
	children map[NodeID][]NodeID

	explore bool
	maxAlt  int
}

// BuildChains binds every recognized point as a rank-1 anchor and walks the
// store forward once per anchor. For each rank the first matching point is
// the primary continuation; later matches are recorded as alternatives under
// the same parent. Alternatives are only extended when explore is set.
func BuildChains(store *PointStore, spec ChainSpec, explore bool, maxAlternatives int) *Chains {
	c := &Chains{
		store:    store,
		spec:     spec,
		children: make(map[NodeID][]NodeID),
		explore:  explore,
		maxAlt:   maxAlternatives,
	}

	for pos := 0; pos < store.Len(); pos++ {
		if !spec.acceptsAnchor(store.At(pos).Kind) {
			continue
		}
		id := c.add(node{rank: 1, pos: pos, parent: noParent, primary: true})
		c.anchors = append(c.anchors, id)
		c.extend(id)
	}
	return c
}

func (c *Chains) add(n node) NodeID {
	c.nodes = append(c.nodes, n)
	return NodeID(len(c.nodes) - 1)
}

func (c *Chains) extend(id NodeID) {
	parent := c.nodes[id]
	if parent.rank >= c.spec.Depth() {
		return
	}

	rank := parent.rank + 1
	want := c.spec.Link(rank).Relation.Resolve(c.store.At(parent.pos).Kind)

	primary := noParent
	var alternatives []NodeID
	for pos := parent.pos + 1; pos < c.store.Len(); pos++ {
		if c.store.At(pos).Kind != want {
			continue
		}
		if c.maxAlt > 0 && len(c.children[id]) >= c.maxAlt {
			break
		}
		child := c.add(node{rank: rank, pos: pos, parent: id, primary: primary == noParent})
		c.children[id] = append(c.children[id], child)
		if primary == noParent {
			primary = child
		} else {
			alternatives = append(alternatives, child)
		}
	}

	if primary == noParent {
		return
	}
	c.extend(primary)
	if c.explore {
		for _, alt := range alternatives {
			c.extend(alt)
		}
	}
}

// Len returns the number of nodes in the arena.
func (c *Chains) Len() int {
	return len(c.nodes)
}

// Anchors returns the rank-1 nodes in store order.
func (c *Chains) Anchors() []NodeID {
	out := make([]NodeID, len(c.anchors))
	copy(out, c.anchors)
	return out
}

// Candidates returns the rank+1 candidates recorded under parent, primary
// first.
func (c *Chains) Candidates(parent NodeID) []NodeID {
	out := make([]NodeID, len(c.children[parent]))
	copy(out, c.children[parent])
	return out
}

// Node returns a view of the node.
func (c *Chains) Node(id NodeID) ChainNode {
	n := c.nodes[id]
	return ChainNode{
		ID:        id,
		Rank:      n.rank,
		Point:     c.store.At(n.pos),
		Parent:    n.parent,
		Primary:   n.primary,
		Confirmed: n.confirmed,
	}
}
