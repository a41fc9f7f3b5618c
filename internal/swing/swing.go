// Package swing turns candles into the swing-point series consumed by the
// lineage engine.
package swing

import (
	"lineage-scanner/internal/models"
)

// Detector finds fractal swing points and annotates liquidity sweeps.
type Detector struct {
	left  int // bars before the pivot
	right int // bars after the pivot
}

// NewDetector creates a detector. Widths below 1 are raised to 1.
func NewDetector(left, right int) *Detector {
	if left < 1 {
		left = 1
	}
	if right < 1 {
		right = 1
	}
	return &Detector{left: left, right: right}
}

func (d *Detector) Name() string {
	return "SwingDetector"
}

// Detect returns the swing points of candles in order. The sequence index of
// a point is the position of its candle. A bar whose high and low are both
// extremes of the window is reported as a peak.
func (d *Detector) Detect(candles []models.Candle) []models.Point {
	n := len(candles)
	if n < d.left+d.right+1 {
		return nil
	}

	points := make([]models.Point, 0, n/4)
	for i := d.left; i < n-d.right; i++ {
		hi, lo := true, true
		for j := i - d.left; j <= i+d.right; j++ {
			if candles[j].High.GreaterThan(candles[i].High) {
				hi = false
			}
			if candles[j].Low.LessThan(candles[i].Low) {
				lo = false
			}
			if !hi && !lo {
				break
			}
		}

		var kind models.PointKind
		switch {
		case hi:
			kind = models.KindPeak
		case lo:
			kind = models.KindValley
		default:
			continue
		}

		c := candles[i]
		points = append(points, models.Point{
			Index:     int64(i),
			Kind:      kind,
			High:      c.High,
			Low:       c.Low,
			Open:      c.Open,
			Close:     c.Close,
			Timestamp: c.Timestamp,
		})
	}

	AnnotateSweeps(points)
	return points
}

// AnnotateSweeps records on each point the later same-kind points that swept
// it: a peak is swept by a wick above its high that closes back below it, a
// valley by a wick below its low that closes back above it. The scan for a
// point stops at the first same-kind point closing beyond its level.
func AnnotateSweeps(points []models.Point) {
	for i := range points {
		p := &points[i]
		p.SweptBy = nil
		level := p.Extreme()

		for j := i + 1; j < len(points); j++ {
			q := points[j]
			if q.Kind != p.Kind {
				continue
			}

			var wicked, closedBeyond bool
			if p.Kind == models.KindPeak {
				wicked = q.High.GreaterThan(level)
				closedBeyond = q.Close.GreaterThan(level)
			} else {
				wicked = q.Low.LessThan(level)
				closedBeyond = q.Close.LessThan(level)
			}

			if closedBeyond {
				break
			}
			if wicked {
				p.SweptBy = append(p.SweptBy, q.Index)
			}
		}
	}
}
