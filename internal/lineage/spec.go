package lineage

import (
	"fmt"
	"sort"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/models"
)

// Relation derives a rank's required kind from the previous rank's point.
type Relation string

const (
	RelationIdentical Relation = "identical"
	RelationOpposite  Relation = "opposite"
)

// Resolve returns the kind required after a point of kind prev.
func (r Relation) Resolve(prev models.PointKind) models.PointKind {
	if r == RelationOpposite {
		return prev.Opposite()
	}
	return prev
}

// Constraint is the directional price test applied to a link.
type Constraint string

const (
	ConstraintNone   Constraint = "none"
	ConstraintBehind Constraint = "behind"
	ConstraintBeyond Constraint = "beyond"
)

// AnyKind accepts both peaks and valleys as rank-1 anchors.
const AnyKind models.PointKind = "any"

// LinkDef defines one rank of a chain. Kind is only read on rank 1; Relation,
// Constraint and CollectiveWindow only on ranks 2 and up.
type LinkDef struct {
	Rank             int
	Kind             models.PointKind
	Relation         Relation
	Constraint       Constraint
	CollectiveWindow int
}

// ChainSpec is the validated, rank-ordered list of link definitions.
type ChainSpec struct {
	links []LinkDef
}

// NewChainSpec validates links and orders them by rank. Ranks must be
// exactly 1..N.
func NewChainSpec(links []LinkDef) (ChainSpec, error) {
	if len(links) == 0 {
		return ChainSpec{}, apperrors.NewValidationError("chain.links", 0, "at least one link is required")
	}

	sorted := make([]LinkDef, len(links))
	copy(sorted, links)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	for i := range sorted {
		l := &sorted[i]
		field := func(name string) string { return fmt.Sprintf("chain.links[rank=%d].%s", l.Rank, name) }

		if l.Rank != i+1 {
			return ChainSpec{}, apperrors.NewValidationError("chain.links.rank", l.Rank,
				fmt.Sprintf("ranks must be contiguous from 1, expected %d", i+1))
		}

		if l.Rank == 1 {
			switch l.Kind {
			case "":
				l.Kind = AnyKind
			case AnyKind, models.KindPeak, models.KindValley:
			default:
				return ChainSpec{}, apperrors.NewValidationError(field("kind"), l.Kind, "must be any, peak or valley")
			}
			continue
		}

		switch l.Relation {
		case RelationIdentical, RelationOpposite:
		default:
			return ChainSpec{}, apperrors.NewValidationError(field("relation"), l.Relation, "must be identical or opposite")
		}
		switch l.Constraint {
		case "":
			l.Constraint = ConstraintNone
		case ConstraintNone, ConstraintBehind, ConstraintBeyond:
		default:
			return ChainSpec{}, apperrors.NewValidationError(field("constraint"), l.Constraint, "must be none, behind or beyond")
		}
		if l.CollectiveWindow < 0 {
			return ChainSpec{}, apperrors.NewValidationError(field("collective_window"), l.CollectiveWindow, "must be non-negative")
		}
	}

	return ChainSpec{links: sorted}, nil
}

// Depth returns the number of ranks N.
func (s ChainSpec) Depth() int {
	return len(s.links)
}

// Link returns the definition of the given 1-based rank.
func (s ChainSpec) Link(rank int) LinkDef {
	return s.links[rank-1]
}

// Links returns a copy of the rank-ordered definitions.
func (s ChainSpec) Links() []LinkDef {
	out := make([]LinkDef, len(s.links))
	copy(out, s.links)
	return out
}

func (s ChainSpec) acceptsAnchor(kind models.PointKind) bool {
	if !kind.Recognized() {
		return false
	}
	want := s.links[0].Kind
	return want == AnyKind || want == kind
}

// SelectionMode chooses which sibling survives selection.
type SelectionMode string

const (
	SelectExtreme    SelectionMode = "extreme"
	SelectNonExtreme SelectionMode = "non_extreme"
)

// RankPair bounds a mitigation window between two bound ranks.
type RankPair struct {
	From int
	To   int
}

// Options holds the POI, mitigation and selection parameters of a run.
type Options struct {
	// ThresholdRank is the rank whose point supplies the POI threshold.
	// Zero means rank 1.
	ThresholdRank int
	// MitigationRanks are bound ranks whose own points must not violate the
	// threshold.
	MitigationRanks []int
	// MitigationPairs are windows whose interior points of the later rank's
	// kind must not violate the threshold.
	MitigationPairs []RankPair
	// SelectionRank groups siblings sharing ranks 1..SelectionRank-1. Zero
	// disables selection.
	SelectionRank int
	SelectionMode SelectionMode

	// ExploreAlternatives lets non-primary candidates seed their own
	// continuations.
	ExploreAlternatives bool
	// MaxAlternatives caps the candidates recorded per parent, primary
	// included. Zero is unlimited.
	MaxAlternatives int

	RejectIntruders bool
	RejectOutlaws   bool
}

// Validate checks the options against a chain spec and fills defaults.
func (o *Options) Validate(spec ChainSpec) error {
	n := spec.Depth()

	if o.ThresholdRank == 0 {
		o.ThresholdRank = 1
	}
	if o.ThresholdRank < 1 || o.ThresholdRank > n {
		return apperrors.NewValidationError("poi.threshold_rank", o.ThresholdRank, fmt.Sprintf("must be within 1..%d", n))
	}

	for _, r := range o.MitigationRanks {
		if r < 1 || r > n {
			return apperrors.NewValidationError("mitigation.ranks", r, fmt.Sprintf("must be within 1..%d", n))
		}
	}
	for _, p := range o.MitigationPairs {
		if p.From < 1 || p.To > n || p.From >= p.To {
			return apperrors.NewValidationError("mitigation.pairs", fmt.Sprintf("%d-%d", p.From, p.To),
				fmt.Sprintf("need 1 <= from < to <= %d", n))
		}
	}

	if o.SelectionRank < 0 {
		return apperrors.NewValidationError("selection.rank", o.SelectionRank, "must be non-negative")
	}
	if o.SelectionRank > 0 {
		switch o.SelectionMode {
		case "":
			o.SelectionMode = SelectExtreme
		case SelectExtreme, SelectNonExtreme:
		default:
			return apperrors.NewValidationError("selection.mode", o.SelectionMode, "must be extreme or non_extreme")
		}
	}

	if o.MaxAlternatives < 0 {
		return apperrors.NewValidationError("engine.max_alternatives", o.MaxAlternatives, "must be non-negative")
	}
	return nil
}
