package rtree

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(id string, lon, lat float64) models.Feature {
	return models.Feature{
		ID:         id,
		Geometry:   orb.Point{lon, lat},
		Properties: models.Properties{Name: id, LayerID: "poi"},
	}
}

func line(id string, pts ...orb.Point) models.Feature {
	return models.Feature{
		ID:         id,
		Geometry:   orb.LineString(pts),
		Properties: models.Properties{Name: id, LayerID: "road-primary"},
	}
}

func ids(features []models.Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = f.ID
	}
	return out
}

func denver() []models.Feature {
	return []models.Feature{
		point("union-station", -105.0002, 39.7527),
		line("colfax", orb.Point{-105.02, 39.7402}, orb.Point{-104.94, 39.7402}),
		point("capitol", -104.9848, 39.7393),
		line("speer", orb.Point{-105.01, 39.76}, orb.Point{-104.98, 39.72}),
		point("boulder", -105.2705, 40.0150),
		{ID: "no-geometry"},
	}
}

func TestNewFeatureIndex(t *testing.T) {
	index := NewFeatureIndex()
	assert.NotNil(t, index)
	assert.NotEmpty(t, index.partitions)
	assert.Equal(t, int64(0), index.Count())

	index = NewFeatureIndexWithPartitions(0)
	assert.NotEmpty(t, index.partitions)
}

func TestIndexFeatures(t *testing.T) {
	index := NewFeatureIndexWithPartitions(4)

	require.NoError(t, index.IndexFeatures(denver()))
	assert.Equal(t, int64(5), index.Count())
	assert.Len(t, index.Features(), 6)

	ext := index.Extent()
	assert.InDelta(t, -105.2705, ext.Min.Lon(), 1e-9)
	assert.InDelta(t, 40.0150, ext.Max.Lat(), 1e-9)

	require.NoError(t, index.IndexFeatures(nil))
	assert.Equal(t, int64(5), index.Count())
}

func TestQueryFeatures(t *testing.T) {
	index := NewFeatureIndexWithPartitions(8)
	require.NoError(t, index.IndexFeatures(denver()))

	testCases := []struct {
		name     string
		bound    orb.Bound
		expected []string
	}{
		{
			name:     "downtown",
			bound:    orb.Bound{Min: orb.Point{-105.01, 39.735}, Max: orb.Point{-104.98, 39.755}},
			expected: []string{"union-station", "colfax", "capitol", "speer"},
		},
		{
			name:     "line crossing only",
			bound:    orb.Bound{Min: orb.Point{-104.96, 39.735}, Max: orb.Point{-104.95, 39.745}},
			expected: []string{"colfax"},
		},
		{
			name:     "boulder",
			bound:    orb.Bound{Min: orb.Point{-105.3, 40.0}, Max: orb.Point{-105.2, 40.1}},
			expected: []string{"boulder"},
		},
		{
			name:     "nothing",
			bound:    orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{11, 11}},
			expected: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := index.QueryFeatures(context.Background(), tc.bound)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ids(results))
		})
	}
}

func TestQueryKeepsFragments(t *testing.T) {
	index := NewFeatureIndexWithPartitions(2)
	require.NoError(t, index.IndexFeatures([]models.Feature{
		line("42", orb.Point{-0.004, -0.004}, orb.Point{-0.001, -0.001}),
		line("42", orb.Point{-0.003, -0.004}, orb.Point{-0.002, -0.001}),
		point("p", 0.001, 0.001),
	}))

	results, err := index.QueryFeatures(context.Background(), orb.Bound{Min: orb.Point{-0.005, -0.005}, Max: orb.Point{0.005, 0.005}})
	require.NoError(t, err)
	assert.Equal(t, []string{"42", "42", "p"}, ids(results))
}

func TestQueryCancelled(t *testing.T) {
	index := NewFeatureIndex()
	require.NoError(t, index.IndexFeatures(denver()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := index.QueryFeatures(ctx, orb.Bound{Min: orb.Point{-106, 39}, Max: orb.Point{-104, 41}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClear(t *testing.T) {
	index := NewFeatureIndex()
	require.NoError(t, index.IndexFeatures(denver()))
	index.Clear()

	assert.Equal(t, int64(0), index.Count())
	results, err := index.QueryFeatures(context.Background(), orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPersistence(t *testing.T) {
	index1 := NewFeatureIndex()
	features := append(denver(), generateRandomFeatures(200)...)
	features[0].Tags = map[string]string{"railway": "station"}
	features = append(features, models.Feature{
		ID:       "lake",
		Geometry: orb.Polygon{{{-105.05, 39.74}, {-105.04, 39.74}, {-105.04, 39.75}, {-105.05, 39.74}}},
	})
	require.NoError(t, index1.IndexFeatures(features))

	file := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, index1.SaveToFile(file))

	index2, err := Open(file)
	require.NoError(t, err)
	assert.Equal(t, index1.Count(), index2.Count())

	bound := orb.Bound{Min: orb.Point{-106, 39}, Max: orb.Point{-104, 41}}
	results1, err := index1.QueryFeatures(context.Background(), bound)
	require.NoError(t, err)
	results2, err := index2.QueryFeatures(context.Background(), bound)
	require.NoError(t, err)
	assert.Equal(t, results1, results2)
	assert.Equal(t, "station", results2[0].Tags["railway"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestConcurrentQueries(t *testing.T) {
	index := NewFeatureIndex()
	require.NoError(t, index.IndexFeatures(generateRandomFeatures(5000)))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lon, lat := rand.Float64()*40-120, rand.Float64()*20+30
			bound := orb.Bound{Min: orb.Point{lon, lat}, Max: orb.Point{lon + 1, lat + 1}}
			_, err := index.QueryFeatures(context.Background(), bound)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func generateRandomFeatures(n int) []models.Feature {
	features := make([]models.Feature, n)
	for i := range features {
		lon := rand.Float64()*40 - 120 // -120 to -80
		lat := rand.Float64()*20 + 30  // 30-50
		if i%3 == 0 {
			features[i] = line(fmt.Sprintf("line_%d", i), orb.Point{lon, lat}, orb.Point{lon + 0.01, lat + 0.01})
			continue
		}
		features[i] = point(fmt.Sprintf("point_%d", i), lon, lat)
	}
	return features
}

func BenchmarkIndexFeatures(b *testing.B) {
	sizes := []int{1000, 10000, 100000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("%d_features", size), func(b *testing.B) {
			features := generateRandomFeatures(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				index := NewFeatureIndex()
				_ = index.IndexFeatures(features)
			}
		})
	}
}

func BenchmarkQueryFeatures(b *testing.B) {
	index := NewFeatureIndex()
	_ = index.IndexFeatures(generateRandomFeatures(100000))
	bound := orb.Bound{Min: orb.Point{-115, 35}, Max: orb.Point{-114.99, 35.01}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = index.QueryFeatures(context.Background(), bound)
	}
}
