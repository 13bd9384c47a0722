package quadrant

import (
	"errors"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/models"
)

// Drop reasons reported in Stats
const (
	ReasonUnsupported = "unsupported_geometry"
	ReasonCrossings   = "multiple_crossings"
)

// Set is the merged feature list of one quadrant
type Set struct {
	Quadrant cursor.Quadrant
	Features []models.Feature
}

// Stats summarises one aggregation pass
type Stats struct {
	Input   int
	Kept    int
	Dropped map[string]int
}

// Aggregate clips every feature against each quadrant and merges the
// fragments per quadrant. Features are read, never modified.
func Aggregate(features []models.Feature, quads [4]cursor.Quadrant) ([4]Set, Stats) {
	var sets [4]Set
	stats := Stats{Input: len(features), Dropped: make(map[string]int)}

	for i, q := range quads {
		fragments := make([]models.Feature, 0, len(features))
		for _, f := range features {
			clipped, crossed, err := clip(f, q.Bound)
			if crossed > 0 {
				stats.Dropped[ReasonCrossings] += crossed
			}
			if err != nil {
				stats.Dropped[reason(err)]++
				continue
			}
			if clipped != nil {
				fragments = append(fragments, *clipped)
			}
		}
		sets[i] = Set{Quadrant: q, Features: Merge(fragments)}
		stats.Kept += len(sets[i].Features)
	}
	return sets, stats
}

func reason(err error) string {
	var unsupported *UnsupportedGeometryError
	switch {
	case errors.As(err, &unsupported):
		return ReasonUnsupported
	case errors.Is(err, ErrMultipleCrossings):
		return ReasonCrossings
	}
	return err.Error()
}
