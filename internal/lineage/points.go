package lineage

import (
	"fmt"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/models"
)

// PointStore is an immutable, randomly indexable sequence of points for one
// partition, ordered by sequence index.
type PointStore struct {
	points []models.Point
	pos    map[int64]int
}

// NewPointStore copies points into a store. Sequence indexes must be
// strictly increasing.
func NewPointStore(points []models.Point) (*PointStore, error) {
	s := &PointStore{
		points: make([]models.Point, len(points)),
		pos:    make(map[int64]int, len(points)),
	}
	copy(s.points, points)

	for i, p := range s.points {
		if i > 0 && p.Index <= s.points[i-1].Index {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("points[%d].sequence_index", i), p.Index,
				fmt.Sprintf("must be greater than previous index %d", s.points[i-1].Index))
		}
		if p.Kind == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("points[%d].kind", i), p.Kind, "required field missing")
		}
		s.pos[p.Index] = i
	}
	return s, nil
}

// Len returns the number of points.
func (s *PointStore) Len() int {
	return len(s.points)
}

// At returns the point at position i.
func (s *PointStore) At(i int) models.Point {
	return s.points[i]
}

// Position returns the store position of the point with the given sequence
// index.
func (s *PointStore) Position(index int64) (int, bool) {
	i, ok := s.pos[index]
	return i, ok
}

// Points returns a copy of the stored points.
func (s *PointStore) Points() []models.Point {
	out := make([]models.Point, len(s.points))
	copy(out, s.points)
	return out
}
