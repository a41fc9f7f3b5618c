package lineage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"lineage-scanner/internal/models"
)

// POIStatus is the breach state of an instance's threshold.
type POIStatus string

const (
	POIPending POIStatus = "pending"
	POIBroken  POIStatus = "broken"
)

// POI describes the anchor-derived threshold and the forward breach scan.
type POI struct {
	Status    POIStatus        `json:"status"`
	Rank      int              `json:"rank"`
	Kind      models.PointKind `json:"kind"`
	Threshold decimal.Decimal  `json:"threshold"`
	Breaking  *models.Point    `json:"breaking,omitempty"`
}

// Member is the point bound at one rank together with the provenance of
// that rank's link. A member never carries another rank's provenance.
type Member struct {
	Rank  int          `json:"rank"`
	Point models.Point `json:"point"`
	Link  Link         `json:"link"`
}

// Instance is a fully bound chain plus the fields derived by later stages.
type Instance struct {
	ID       string   `json:"id"`
	Members  []Member `json:"members"`
	Intruder *int64   `json:"intruder,omitempty"`
	Outlaw   *int64   `json:"outlaw,omitempty"`
	POI      POI      `json:"poi"`

	positions []int
}

// Member returns the member bound at rank.
func (inst *Instance) Member(rank int) (Member, bool) {
	if rank < 1 || rank > len(inst.Members) {
		return Member{}, false
	}
	return inst.Members[rank-1], true
}

// Final returns the member bound at the last rank.
func (inst *Instance) Final() Member {
	return inst.Members[len(inst.Members)-1]
}

// Tags renders the invalidation and POI tags.
func (inst *Instance) Tags() []string {
	var tags []string
	if inst.Intruder != nil {
		tags = append(tags, fmt.Sprintf("intruder:%d", *inst.Intruder))
	}
	if inst.Outlaw != nil {
		tags = append(tags, fmt.Sprintf("outlaw:%d", *inst.Outlaw))
	}
	if inst.POI.Status == POIBroken && inst.POI.Breaking != nil {
		tags = append(tags, fmt.Sprintf("broken:%d", inst.POI.Breaking.Index))
	}
	return tags
}

// Indexes returns the bound sequence indexes in rank order.
func (inst *Instance) Indexes() []int64 {
	out := make([]int64, len(inst.Members))
	for i, m := range inst.Members {
		out[i] = m.Point.Index
	}
	return out
}

// instanceKey joins sequence indexes; it is the identity of an instance and,
// when truncated, of its prefix.
func instanceKey(indexes []int64) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.FormatInt(idx, 10)
	}
	return strings.Join(parts, "-")
}
