package quadrant

import (
	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/paulmach/orb"
)

// Merge groups fragments by feature id and returns one feature per id, in
// order of first appearance. Groups of two or more are combined into a
// multi-part geometry carrying the first fragment's properties; a group whose
// combination has no coordinates is dropped.
func Merge(fragments []models.Feature) []models.Feature {
	var order []string
	groups := make(map[string][]models.Feature)
	for _, f := range fragments {
		if _, ok := groups[f.ID]; !ok {
			order = append(order, f.ID)
		}
		groups[f.ID] = append(groups[f.ID], f)
	}

	merged := make([]models.Feature, 0, len(order))
	for _, id := range order {
		group := groups[id]
		switch len(group) {
		case 0:
			continue
		case 1:
			merged = append(merged, group[0])
			continue
		}
		if f, ok := combine(group); ok {
			merged = append(merged, f)
		}
	}
	return merged
}

// combine folds a group into a MultiPoint or MultiLineString. Points take
// precedence when a group mixes kinds.
func combine(group []models.Feature) (models.Feature, bool) {
	var points orb.MultiPoint
	var lines orb.MultiLineString

	for _, f := range group {
		switch g := f.Geometry.(type) {
		case orb.Point:
			points = append(points, g)
		case orb.MultiPoint:
			points = append(points, g...)
		case orb.LineString:
			if len(g) > 0 {
				lines = append(lines, g)
			}
		case orb.MultiLineString:
			for _, ls := range g {
				if len(ls) > 0 {
					lines = append(lines, ls)
				}
			}
		}
	}

	first := group[0]
	switch {
	case len(points) > 0:
		return first.WithGeometry(points), true
	case len(lines) > 0:
		return first.WithGeometry(lines), true
	}
	return models.Feature{}, false
}
