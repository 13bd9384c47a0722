package describe

import (
	"testing"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/1F47E/quadcursor/pkg/quadrant"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func road(id, name string) models.Feature {
	return models.Feature{
		ID:         id,
		Geometry:   orb.LineString{{-0.004, -0.004}, {-0.001, -0.001}},
		Properties: models.Properties{Name: name, LayerID: "road-primary"},
	}
}

func poi(id, name string, tags map[string]string) models.Feature {
	return models.Feature{
		ID:         id,
		Geometry:   orb.Point{0.001, 0.001},
		Properties: models.Properties{Name: name, LayerID: "poi"},
		Tags:       tags,
	}
}

func TestExpand(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"W Main St", "West Main Street "},
		{"W 1st Ave", "West 1st Avenue "},
		{"NW Lovejoy St", "Northwest Lovejoy Street "},
		{"NE Alberta St", "Northeast Alberta Street "},
		{"SW Naito Pkwy", "Southwest Naito Parkway "},
		{"S Broadway", "South Broadway"},
		{"Colfax Ave", "Colfax Avenue "},
		{"e colfax ave", "East colfax Avenue "},
		{"Stout St", "Stout Street "},
		{"Main St St", "Main Street  St"},
		{"Hwy 6", "Highway  6"},
		{"Cherry Creek Dr", "Cherry Creek Drive "},
		{"Ct", "Court "},
		{"Larimer Sq", "Larimer Sq"},
		{"W", "W"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Expand(tc.name))
		})
	}
}

func TestExpandIsSinglePass(t *testing.T) {
	// "Street" produced by the St rule is not rewritten again
	assert.Equal(t, "Street  Paul", Expand("St Paul"))
	assert.Equal(t, Expand("W Main St"), Expand("W Main St"))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "West Main Street", Display("West Main Street "))
	assert.Equal(t, "Highway 6", Display("Highway  6"))
	assert.Equal(t, "", Display("   "))
}

func TestHumanName(t *testing.T) {
	assert.Equal(t, "West Main Street ", HumanName(road("1", "W Main St")))

	bridge := road("2", "N Speer Blvd")
	bridge.Properties.LayerID = "bridge-secondary-tertiary"
	assert.Equal(t, "North Speer Blvd", HumanName(bridge))

	water := models.Feature{Properties: models.Properties{LayerID: "water-shadow"}}
	assert.Equal(t, "water", HumanName(water))

	namedWater := models.Feature{Properties: models.Properties{LayerID: "water", Name: "Sloan Lake"}}
	assert.Equal(t, "Sloan Lake", HumanName(namedWater))

	// only road-like layers are expanded
	shop := poi("3", "W St Bakery", nil)
	assert.Equal(t, "W St Bakery", HumanName(shop))
}

func TestDescription(t *testing.T) {
	testCases := []struct {
		name     string
		tags     map[string]string
		expected string
	}{
		{"no tags", nil, ""},
		{"unrecognised tags", map[string]string{"opening_hours": "24/7"}, ""},
		{"amenity", map[string]string{"amenity": "bicycle_rental"}, "bicycle_rental"},
		{"shop", map[string]string{"shop": "bakery"}, "bakery shop"},
		{"leisure", map[string]string{"leisure": "park"}, "leisure: park"},
		{
			name:     "light rail",
			tags:     map[string]string{"public_transport": "stop_position", "network": "RTD", "light_rail": "yes"},
			expected: "(RTD) light rail station",
		},
		{
			name:     "bus stop without network",
			tags:     map[string]string{"public_transport": "platform", "bus": "yes"},
			expected: "bus stop",
		},
		{
			name:     "priority order",
			tags:     map[string]string{"class": "c", "type": "t", "craft": "brewery", "shop": "alcohol", "amenity": "pub", "leisure": "garden"},
			expected: "leisure: garden pub alcohol shop brewery t c",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Description(poi("p", "", tc.tags)))
		})
	}

	notPOI := road("r", "Main St")
	notPOI.Tags = map[string]string{"amenity": "cafe"}
	assert.Equal(t, "", Description(notPOI))
}

func TestPhraseSuppressesRepeatedNames(t *testing.T) {
	features := []models.Feature{
		road("42", "W 1st Ave"),
		poi("b1", "Denver B-cycle", map[string]string{"amenity": "bicycle_rental"}),
		road("43", "W 1st Ave"),
		poi("b2", "Denver B-cycle", map[string]string{"amenity": "bicycle_rental"}),
		// expansion normalises case, so this is the same spoken name
		road("44", "w 1st ave"),
		// matching is case-sensitive
		poi("b3", "denver b-cycle", nil),
	}

	phrase := Phrase("southwest", features)
	assert.Equal(t,
		"southwest quadrant: West 1st Avenue ... Denver B-cycle bicycle rental ... bicycle rental ... denver b-cycle",
		phrase)
}

func TestPhraseEmpty(t *testing.T) {
	assert.Equal(t, "", Phrase("northeast", nil))
	assert.Equal(t, "", Phrase("northeast", []models.Feature{road("1", "")}))
}

func TestLabelScenarioSharedFragments(t *testing.T) {
	c, err := cursor.New(cursor.DefaultOptions())
	require.NoError(t, err)

	features := []models.Feature{
		road("42", "W 1st Ave"),
		road("42", "W 1st Ave"),
		road("42", "W 1st Ave"),
	}
	features[1].Geometry = orb.LineString{{-0.003, -0.004}, {-0.002, -0.001}}
	features[2].Geometry = orb.LineString{{-0.002, -0.004}, {-0.003, -0.001}}

	sets, _ := quadrant.Aggregate(features, c.Quadrants())
	require.Len(t, sets[0].Features, 1)

	label := Label(sets)
	assert.Equal(t, "southwest quadrant: West 1st Avenue", label)
}

func TestLabelOrderAndSeparators(t *testing.T) {
	var sets [4]quadrant.Set
	for i := range sets {
		sets[i].Quadrant = cursor.Quadrant{Index: i, Direction: cursor.Directions[i]}
	}
	sets[3].Features = []models.Feature{poi("c", "Crema", map[string]string{"amenity": "cafe"})}
	sets[1].Features = []models.Feature{road("r", "Larimer St")}

	assert.Equal(t,
		"southeast quadrant: Larimer Street ; ... ... northeast quadrant: Crema cafe",
		Label(sets))

	assert.Equal(t, "", Label([4]quadrant.Set{}))
}

func TestAnnouncerMarksRepeats(t *testing.T) {
	a := NewAnnouncer(LabelMarker, 0)

	assert.Equal(t, "southwest quadrant: water", a.Announce("southwest quadrant: water"))
	assert.Equal(t, "southwest quadrant: water . ", a.Announce("southwest quadrant: water"))
	assert.Equal(t, "southwest quadrant: water", a.Announce("southwest quadrant: water"))
	assert.Equal(t, "", a.Announce(""))
	assert.Equal(t, "", a.Announce(""))
	assert.Equal(t, "", a.Last())
}

func TestAnnouncerTruncates(t *testing.T) {
	a := NewAnnouncer(CommandMarker, 20)

	assert.Equal(t, "north 1 kilometers", a.Announce("north 1 kilometers"))
	assert.Equal(t, "north 1 kilometers .", a.Announce("north 1 kilometers"))

	long := "jump north 10 kilometers"
	assert.Equal(t, long, a.Announce(long))
	assert.Equal(t, long, a.Announce(long))
}
