package quadrant

import (
	"testing"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitBox = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

func feature(id string, g orb.Geometry) models.Feature {
	return models.Feature{
		ID:         id,
		Geometry:   g,
		Properties: models.Properties{Name: "feature " + id, LayerID: "road-primary"},
	}
}

func TestClipPoint(t *testing.T) {
	testCases := []struct {
		name   string
		point  orb.Point
		inside bool
	}{
		{"inside", orb.Point{0.5, 0.5}, true},
		{"on edge", orb.Point{1, 0.3}, true},
		{"on corner", orb.Point{0, 0}, true},
		{"outside", orb.Point{1.01, 0.5}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clipped, err := Clip(feature("p", tc.point), unitBox)
			require.NoError(t, err)
			if tc.inside {
				require.NotNil(t, clipped)
				assert.Equal(t, tc.point, clipped.Geometry)
			} else {
				assert.Nil(t, clipped)
			}
		})
	}
}

func TestClipMultiPoint(t *testing.T) {
	clipped, err := Clip(feature("mp", orb.MultiPoint{{0.5, 0.5}, {3, 3}}), unitBox)
	require.NoError(t, err)
	require.NotNil(t, clipped)
	assert.Equal(t, orb.MultiPoint{{0.5, 0.5}}, clipped.Geometry)

	clipped, err = Clip(feature("mp", orb.MultiPoint{{3, 3}}), unitBox)
	require.NoError(t, err)
	assert.Nil(t, clipped)
}

func TestClipLineString(t *testing.T) {
	testCases := []struct {
		name     string
		line     orb.LineString
		expected orb.LineString
		err      error
	}{
		{
			name:     "fully contained",
			line:     orb.LineString{{0.1, 0.1}, {0.9, 0.9}},
			expected: orb.LineString{{0.1, 0.1}, {0.9, 0.9}},
		},
		{
			name:     "exits east",
			line:     orb.LineString{{0.5, 0.5}, {1.5, 0.5}},
			expected: orb.LineString{{0.5, 0.5}, {1, 0.5}},
		},
		{
			name:     "enters from east",
			line:     orb.LineString{{1.5, 0.5}, {0.5, 0.5}},
			expected: orb.LineString{{1, 0.5}, {0.5, 0.5}},
		},
		{
			name:     "exits after a bend",
			line:     orb.LineString{{0.2, 0.2}, {0.8, 0.2}, {0.8, 1.4}},
			expected: orb.LineString{{0.2, 0.2}, {0.8, 0.2}, {0.8, 1}},
		},
		{
			name:     "exits through a corner",
			line:     orb.LineString{{0.5, 0.5}, {1.5, 1.5}},
			expected: orb.LineString{{0.5, 0.5}, {1, 1}},
		},
		{
			name: "disjoint",
			line: orb.LineString{{2, 2}, {3, 3}},
		},
		{
			name: "passes through",
			line: orb.LineString{{-0.5, 0.5}, {1.5, 0.5}},
			err:  ErrMultipleCrossings,
		},
		{
			name: "single vertex",
			line: orb.LineString{{0.5, 0.5}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clipped, err := Clip(feature("l", tc.line), unitBox)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Nil(t, clipped)
				return
			}
			require.NoError(t, err)
			if tc.expected == nil {
				assert.Nil(t, clipped)
				return
			}
			require.NotNil(t, clipped)
			got, ok := clipped.Geometry.(orb.LineString)
			require.True(t, ok)
			require.Len(t, got, len(tc.expected))
			for i := range got {
				assert.InDelta(t, tc.expected[i].X(), got[i].X(), 1e-12)
				assert.InDelta(t, tc.expected[i].Y(), got[i].Y(), 1e-12)
			}
		})
	}
}

func TestClipKeepsProperties(t *testing.T) {
	f := feature("7", orb.LineString{{0.5, 0.5}, {1.5, 0.5}})
	f.Tags = map[string]string{"highway": "primary"}

	clipped, err := Clip(f, unitBox)
	require.NoError(t, err)
	require.NotNil(t, clipped)
	assert.Equal(t, f.Properties, clipped.Properties)
	assert.Equal(t, f.Tags, clipped.Tags)
	assert.Equal(t, orb.LineString{{0.5, 0.5}, {1.5, 0.5}}, f.Geometry)
}

func TestClipMultiLineString(t *testing.T) {
	mls := orb.MultiLineString{
		{{0.1, 0.1}, {0.4, 0.4}},
		{{0.5, 0.5}, {1.5, 0.5}},
		{{-1, 0.5}, {2, 0.5}},
		{{5, 5}, {6, 6}},
	}

	clipped, err := Clip(feature("m", mls), unitBox)
	require.NoError(t, err)
	require.NotNil(t, clipped)
	got, ok := clipped.Geometry.(orb.MultiLineString)
	require.True(t, ok)
	assert.Len(t, got, 2)

	single, err := Clip(feature("m", orb.MultiLineString{{{0.1, 0.1}, {0.4, 0.4}}, {{5, 5}, {6, 6}}}), unitBox)
	require.NoError(t, err)
	require.NotNil(t, single)
	assert.Equal(t, models.LineStringType, single.Type())

	none, err := Clip(feature("m", orb.MultiLineString{{{5, 5}, {6, 6}}}), unitBox)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, crossed, err := clip(feature("m", mls), unitBox)
	require.NoError(t, err)
	assert.Equal(t, 1, crossed)
}

func TestClipUnsupported(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}

	for _, g := range []orb.Geometry{poly, orb.MultiPolygon{poly}, orb.Collection{orb.Point{0.5, 0.5}}, nil} {
		clipped, err := Clip(feature("u", g), unitBox)
		assert.Nil(t, clipped)
		var unsupported *UnsupportedGeometryError
		assert.ErrorAs(t, err, &unsupported)
	}
}

func TestMergeSharedID(t *testing.T) {
	fragments := []models.Feature{
		feature("42", orb.LineString{{0, 0}, {0.1, 0.1}}),
		feature("7", orb.Point{0.5, 0.5}),
		feature("42", orb.LineString{{0.2, 0.2}, {0.3, 0.3}}),
		feature("42", orb.MultiLineString{{{0.4, 0.4}, {0.5, 0.5}}}),
	}
	fragments[2].Properties.Name = "renamed fragment"

	merged := Merge(fragments)
	require.Len(t, merged, 2)
	assert.Equal(t, "42", merged[0].ID)
	assert.Equal(t, "7", merged[1].ID)

	lines, ok := merged[0].Geometry.(orb.MultiLineString)
	require.True(t, ok)
	assert.Len(t, lines, 3)
	assert.Equal(t, "feature 42", merged[0].Properties.Name)
}

func TestMergeIdempotent(t *testing.T) {
	once := Merge([]models.Feature{
		feature("1", orb.LineString{{0, 0}, {1, 1}}),
		feature("1", orb.LineString{{2, 2}, {3, 3}}),
		feature("2", orb.Point{1, 1}),
	})
	twice := Merge(once)
	assert.Equal(t, once, twice)

	single := []models.Feature{feature("9", orb.Point{0, 0})}
	assert.Equal(t, single, Merge(single))
}

func TestMergeDropsEmptyCombination(t *testing.T) {
	merged := Merge([]models.Feature{
		feature("e", orb.LineString{}),
		feature("e", orb.MultiLineString{}),
	})
	assert.Empty(t, merged)
}

func TestMergePoints(t *testing.T) {
	merged := Merge([]models.Feature{
		feature("p", orb.Point{0, 0}),
		feature("p", orb.MultiPoint{{1, 1}, {2, 2}}),
	})
	require.Len(t, merged, 1)
	assert.Equal(t, orb.MultiPoint{{0, 0}, {1, 1}, {2, 2}}, merged[0].Geometry)
}

func TestAggregate(t *testing.T) {
	c, err := cursor.New(cursor.DefaultOptions())
	require.NoError(t, err)
	quads := c.Quadrants()

	features := []models.Feature{
		// three fragments of one road, all in the southwest quadrant
		feature("42", orb.LineString{{-0.004, -0.004}, {-0.003, -0.003}}),
		feature("42", orb.LineString{{-0.003, -0.003}, {-0.002, -0.002}}),
		feature("42", orb.LineString{{-0.002, -0.002}, {-0.001, -0.001}}),
		feature("cafe", orb.Point{0.002, 0.002}),
		feature("park", orb.Polygon{{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0}}}),
		feature("avenue", orb.LineString{{-0.01, 0.002}, {0.01, 0.002}}),
	}

	sets, stats := Aggregate(features, quads)

	require.Len(t, sets[0].Features, 1)
	assert.Equal(t, "42", sets[0].Features[0].ID)
	assert.Empty(t, sets[1].Features)
	assert.Empty(t, sets[2].Features)
	require.Len(t, sets[3].Features, 1)
	assert.Equal(t, "cafe", sets[3].Features[0].ID)

	assert.Equal(t, 6, stats.Input)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 4, stats.Dropped[ReasonUnsupported])
	// the avenue crosses both northern quadrants from edge to edge
	assert.Equal(t, 2, stats.Dropped[ReasonCrossings])

	for i, s := range sets {
		assert.Equal(t, cursor.Directions[i], s.Quadrant.Direction)
	}
}

func TestAggregateCountsCrossedParts(t *testing.T) {
	c, err := cursor.New(cursor.DefaultOptions())
	require.NoError(t, err)

	road := feature("road", orb.MultiLineString{
		{{-0.004, -0.004}, {-0.001, -0.001}},
		{{-0.01, 0.002}, {0.01, 0.002}},
	})
	sets, stats := Aggregate([]models.Feature{road}, c.Quadrants())

	require.Len(t, sets[0].Features, 1)
	assert.Equal(t, models.LineStringType, sets[0].Features[0].Type())
	assert.Empty(t, sets[1].Features)
	assert.Empty(t, sets[3].Features)
	assert.Equal(t, 1, stats.Kept)
	// the second part crosses both northern quadrants from edge to edge
	assert.Equal(t, 2, stats.Dropped[ReasonCrossings])
}
