package traction

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidCurves = errors.New("invalid tractive force curves")

// Point is one speed/force sample on a curve
type Point struct {
	SpeedMpS float64 `json:"speed_mps"`
	ForceN   float64 `json:"force_n"`
}

// Curve is the force-versus-speed characteristic at one throttle setting
type Curve struct {
	Throttle float64 `json:"throttle"`
	Points   []Point `json:"points"`
}

// ForceTable is a family of curves indexed by throttle and interpolated
// bilinearly in throttle and speed.
type ForceTable struct {
	curves        []Curve
	AllowNegative bool
}

// NewForceTable validates and sorts the curves
func NewForceTable(curves []Curve, allowNegative bool) (*ForceTable, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("%w: no curves", ErrInvalidCurves)
	}
	sorted := make([]Curve, len(curves))
	for i, c := range curves {
		if c.Throttle < 0 || c.Throttle > 1 {
			return nil, fmt.Errorf("%w: curve %d throttle %v outside [0, 1]", ErrInvalidCurves, i, c.Throttle)
		}
		if len(c.Points) == 0 {
			return nil, fmt.Errorf("%w: curve %d has no points", ErrInvalidCurves, i)
		}
		pts := append([]Point(nil), c.Points...)
		for j := 1; j < len(pts); j++ {
			if pts[j].SpeedMpS <= pts[j-1].SpeedMpS {
				return nil, fmt.Errorf("%w: curve %d speeds must increase", ErrInvalidCurves, i)
			}
		}
		sorted[i] = Curve{Throttle: c.Throttle, Points: pts}
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Throttle < sorted[b].Throttle })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Throttle == sorted[i-1].Throttle {
			return nil, fmt.Errorf("%w: duplicate throttle %v", ErrInvalidCurves, sorted[i].Throttle)
		}
	}
	return &ForceTable{curves: sorted, AllowNegative: allowNegative}, nil
}

// MaxForceN is the largest force anywhere in the table
func (t *ForceTable) MaxForceN() float64 {
	var best float64
	for _, c := range t.curves {
		for _, p := range c.Points {
			if p.ForceN > best {
				best = p.ForceN
			}
		}
	}
	return best
}

// Lookup interpolates the force at a throttle and speed. Below the lowest
// curve the force fades linearly to zero at zero throttle.
func (t *ForceTable) Lookup(throttle, speedMpS float64) float64 {
	throttle = clamp(throttle, 0, 1)
	first := t.curves[0]
	if throttle <= first.Throttle {
		if first.Throttle <= 0 {
			return first.at(speedMpS)
		}
		return first.at(speedMpS) * throttle / first.Throttle
	}
	last := t.curves[len(t.curves)-1]
	if throttle >= last.Throttle {
		return last.at(speedMpS)
	}
	i := sort.Search(len(t.curves), func(i int) bool { return t.curves[i].Throttle >= throttle })
	lo, hi := t.curves[i-1], t.curves[i]
	w := (throttle - lo.Throttle) / (hi.Throttle - lo.Throttle)
	return lerp(lo.at(speedMpS), hi.at(speedMpS), w)
}

// at interpolates the curve in speed, holding the end values outside its range
func (c Curve) at(speed float64) float64 {
	pts := c.Points
	if speed <= pts[0].SpeedMpS {
		return pts[0].ForceN
	}
	if speed >= pts[len(pts)-1].SpeedMpS {
		return pts[len(pts)-1].ForceN
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].SpeedMpS >= speed })
	a, b := pts[i-1], pts[i]
	return lerp(a.ForceN, b.ForceN, (speed-a.SpeedMpS)/(b.SpeedMpS-a.SpeedMpS))
}

func lerp(a, b, w float64) float64 {
	return a + (b-a)*w
}
