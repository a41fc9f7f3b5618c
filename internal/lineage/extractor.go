package lineage

// Extract assembles an instance for every confirmed node at the final rank
// whose ancestors are all confirmed. Instances with identical rank-ordered
// sequences are kept once, in arena order.
func Extract(c *Chains) []*Instance {
	depth := c.spec.Depth()
	seen := make(map[string]struct{})
	var out []*Instance

	for id := range c.nodes {
		n := c.nodes[id]
		if n.rank != depth || !n.confirmed {
			continue
		}

		path, ok := c.confirmedPath(NodeID(id))
		if !ok {
			continue
		}

		inst := c.newInstance(path)
		if _, dup := seen[inst.ID]; dup {
			continue
		}
		seen[inst.ID] = struct{}{}
		out = append(out, inst)
	}
	return out
}

// confirmedPath walks back-pointers from id to its anchor and returns the
// path in rank order, or false if a link on the way was dropped.
func (c *Chains) confirmedPath(id NodeID) ([]NodeID, bool) {
	path := make([]NodeID, c.nodes[id].rank)
	for cur := id; cur != noParent; cur = c.nodes[cur].parent {
		n := c.nodes[cur]
		if !n.confirmed {
			return nil, false
		}
		path[n.rank-1] = cur
	}
	return path, true
}

// newInstance builds the members from path. Each member takes its link from
// its own node only, so a point bound at different ranks in different
// instances never carries provenance from the other binding.
func (c *Chains) newInstance(path []NodeID) *Instance {
	inst := &Instance{
		Members:   make([]Member, len(path)),
		positions: make([]int, len(path)),
		POI:       POI{Status: POIPending},
	}
	for i, id := range path {
		n := c.nodes[id]
		inst.Members[i] = Member{Rank: n.rank, Point: c.store.At(n.pos), Link: n.link}
		inst.positions[i] = n.pos
	}
	inst.ID = instanceKey(inst.Indexes())
	return inst
}
