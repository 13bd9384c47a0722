// Package quadrant clips map features to the four cursor quadrants and merges
// fragments of the same feature back together.
package quadrant

import (
	"errors"
	"fmt"
	"math"

	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/paulmach/orb"
)

// epsilon under which two crossing points are the same point
const epsilon = 1e-12

// ErrMultipleCrossings marks a line that crosses the quadrant boundary more
// than once. Such lines are dropped rather than sliced.
var ErrMultipleCrossings = errors.New("line crosses quadrant boundary more than once")

// UnsupportedGeometryError indicates a geometry kind the clipper does not handle
type UnsupportedGeometryError struct {
	Type models.GeometryType
}

func (e *UnsupportedGeometryError) Error() string {
	return fmt.Sprintf("unsupported geometry: %s", e.Type)
}

// Clip restricts f to box. It returns nil without error when f does not
// intersect box. Polygons and unknown kinds return *UnsupportedGeometryError.
// Parts of a MultiLineString that cross the boundary more than once are
// dropped silently; Aggregate counts them.
func Clip(f models.Feature, box orb.Bound) (*models.Feature, error) {
	clipped, _, err := clip(f, box)
	return clipped, err
}

// clip is Clip plus the number of MultiLineString parts dropped for crossing
// the boundary more than once.
func clip(f models.Feature, box orb.Bound) (*models.Feature, int, error) {
	switch g := f.Geometry.(type) {
	case orb.Point:
		if !box.Contains(g) {
			return nil, 0, nil
		}
		return &f, 0, nil

	case orb.MultiPoint:
		var inside orb.MultiPoint
		for _, p := range g {
			if box.Contains(p) {
				inside = append(inside, p)
			}
		}
		switch len(inside) {
		case 0:
			return nil, 0, nil
		case len(g):
			return &f, 0, nil
		}
		clipped := f.WithGeometry(inside)
		return &clipped, 0, nil

	case orb.LineString:
		ls, err := clipLine(g, box)
		if err != nil || ls == nil {
			return nil, 0, err
		}
		clipped := f.WithGeometry(ls)
		return &clipped, 0, nil

	case orb.MultiLineString:
		// each part is clipped on its own; parts crossing twice are dropped
		var parts orb.MultiLineString
		crossed := 0
		for _, line := range g {
			ls, err := clipLine(line, box)
			if err != nil {
				crossed++
				continue
			}
			if ls != nil {
				parts = append(parts, ls)
			}
		}
		switch len(parts) {
		case 0:
			return nil, crossed, nil
		case 1:
			clipped := f.WithGeometry(parts[0])
			return &clipped, crossed, nil
		}
		clipped := f.WithGeometry(parts)
		return &clipped, crossed, nil

	case nil:
		return nil, 0, &UnsupportedGeometryError{}
	}

	return nil, 0, &UnsupportedGeometryError{Type: f.Type()}
}

func clipLine(ls orb.LineString, box orb.Bound) (orb.LineString, error) {
	if len(ls) < 2 {
		return nil, nil
	}
	if within(ls, box) {
		return ls, nil
	}

	cs := crossings(ls, box)
	switch len(cs) {
	case 0:
		return nil, nil
	case 1:
		return split(ls, cs[0], box), nil
	}
	return nil, ErrMultipleCrossings
}

type crossing struct {
	segment int
	point   orb.Point
}

// split cuts ls at the crossing and keeps the side lying inside box.
func split(ls orb.LineString, c crossing, box orb.Bound) orb.LineString {
	head := make(orb.LineString, 0, c.segment+2)
	head = append(head, ls[:c.segment+1]...)
	head = appendDistinct(head, c.point)

	tail := orb.LineString{c.point}
	for _, p := range ls[c.segment+1:] {
		tail = appendDistinct(tail, p)
	}

	for _, part := range []orb.LineString{head, tail} {
		if len(part) >= 2 && within(part, box) {
			return part
		}
	}
	return nil
}

// crossings returns the distinct points where ls meets the boundary of box,
// ordered along the line.
func crossings(ls orb.LineString, box orb.Bound) []crossing {
	edges := [4][2]orb.Point{
		{box.Min, {box.Max.X(), box.Min.Y()}},
		{{box.Max.X(), box.Min.Y()}, box.Max},
		{box.Max, {box.Min.X(), box.Max.Y()}},
		{{box.Min.X(), box.Max.Y()}, box.Min},
	}

	var found []crossing
	for i := 0; i < len(ls)-1; i++ {
		for _, e := range edges {
			p, ok := intersect(ls[i], ls[i+1], e[0], e[1])
			if !ok {
				continue
			}
			p = clamp(p, box)
			if seen(found, p) {
				continue
			}
			found = append(found, crossing{segment: i, point: p})
		}
	}
	return found
}

// intersect returns the intersection of segments ab and cd. Parallel and
// collinear segments report no intersection.
func intersect(a, b, c, d orb.Point) (orb.Point, bool) {
	r := orb.Point{b.X() - a.X(), b.Y() - a.Y()}
	s := orb.Point{d.X() - c.X(), d.Y() - c.Y()}
	denom := cross(r, s)
	if denom == 0 {
		return orb.Point{}, false
	}

	qp := orb.Point{c.X() - a.X(), c.Y() - a.Y()}
	t := cross(qp, s) / denom
	u := cross(qp, r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return orb.Point{}, false
	}
	return orb.Point{a.X() + t*r.X(), a.Y() + t*r.Y()}, true
}

func cross(a, b orb.Point) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}

func within(ls orb.LineString, box orb.Bound) bool {
	for _, p := range ls {
		if !box.Contains(p) {
			return false
		}
	}
	return true
}

func clamp(p orb.Point, box orb.Bound) orb.Point {
	return orb.Point{
		math.Min(math.Max(p.X(), box.Min.X()), box.Max.X()),
		math.Min(math.Max(p.Y(), box.Min.Y()), box.Max.Y()),
	}
}

func seen(found []crossing, p orb.Point) bool {
	for _, c := range found {
		if near(c.point, p) {
			return true
		}
	}
	return false
}

func appendDistinct(ls orb.LineString, p orb.Point) orb.LineString {
	if len(ls) > 0 && near(ls[len(ls)-1], p) {
		return ls
	}
	return append(ls, p)
}

func near(a, b orb.Point) bool {
	return math.Abs(a.X()-b.X()) <= epsilon && math.Abs(a.Y()-b.Y()) <= epsilon
}
