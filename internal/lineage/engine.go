package lineage

import (
	"lineage-scanner/internal/models"
)

// Stats counts what each stage of a scan produced or removed.
type Stats struct {
	Points     int `json:"points"`
	Anchors    int `json:"anchors"`
	Nodes      int `json:"nodes"`
	Confirmed  int `json:"confirmed"`
	Extracted  int `json:"extracted"`
	Intruders  int `json:"intruders"`
	Outlaws    int `json:"outlaws"`
	Rejected   int `json:"rejected"`
	Broken     int `json:"broken"`
	Mitigated  int `json:"mitigated"`
	Deselected int `json:"deselected"`
	Survivors  int `json:"survivors"`
}

// Result is the output of one scan.
type Result struct {
	Instances []*Instance `json:"instances"`
	Stats     Stats       `json:"stats"`
}

// Engine runs a validated chain spec and option set against point series.
// An Engine holds no mutable state and may be shared between goroutines.
type Engine struct {
	spec ChainSpec
	opts Options
}

// NewEngine validates opts against spec.
func NewEngine(spec ChainSpec, opts Options) (*Engine, error) {
	if err := opts.Validate(spec); err != nil {
		return nil, err
	}
	return &Engine{spec: spec, opts: opts}, nil
}

// Spec returns the engine's chain spec.
func (e *Engine) Spec() ChainSpec {
	return e.spec
}

// Options returns the engine's validated options.
func (e *Engine) Options() Options {
	return e.opts
}

// Scan builds a point store from points and runs the pipeline.
func (e *Engine) Scan(points []models.Point) (*Result, error) {
	store, err := NewPointStore(points)
	if err != nil {
		return nil, err
	}
	return e.ScanStore(store), nil
}

// ScanStore runs every stage against store. It is deterministic: the same
// store always yields the same instances in the same order.
func (e *Engine) ScanStore(store *PointStore) *Result {
	res := &Result{}
	res.Stats.Points = store.Len()

	chains := BuildChains(store, e.spec, e.opts.ExploreAlternatives, e.opts.MaxAlternatives)
	res.Stats.Anchors = len(chains.anchors)
	res.Stats.Nodes = chains.Len()
	res.Stats.Confirmed = ValidateLinks(chains)

	instances := Extract(chains)
	res.Stats.Extracted = len(instances)

	kept := instances[:0]
	for _, inst := range instances {
		CheckInvalidation(store, inst)
		if inst.Intruder != nil {
			res.Stats.Intruders++
		}
		if inst.Outlaw != nil {
			res.Stats.Outlaws++
		}
		if (e.opts.RejectIntruders && inst.Intruder != nil) || (e.opts.RejectOutlaws && inst.Outlaw != nil) {
			res.Stats.Rejected++
			continue
		}

		LocatePOI(store, inst, e.opts.ThresholdRank)
		if inst.POI.Status == POIBroken {
			res.Stats.Broken++
		}

		if MitigatedByRanks(inst, e.opts.MitigationRanks) || MitigatedByPairs(store, inst, e.opts.MitigationPairs) {
			res.Stats.Mitigated++
			continue
		}
		kept = append(kept, inst)
	}

	if e.opts.SelectionRank > 0 {
		selected := Select(kept, e.opts.SelectionRank, e.opts.SelectionMode)
		res.Stats.Deselected = len(kept) - len(selected)
		kept = selected
	}

	if kept == nil {
		kept = []*Instance{}
	}
	res.Instances = kept
	res.Stats.Survivors = len(kept)
	return res
}

// Run is a convenience wrapper building an engine for a single scan.
func Run(points []models.Point, spec ChainSpec, opts Options) (*Result, error) {
	e, err := NewEngine(spec, opts)
	if err != nil {
		return nil, err
	}
	return e.Scan(points)
}
