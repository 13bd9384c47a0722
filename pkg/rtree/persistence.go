package rtree

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/paulmach/orb"
)

func init() {
	// concrete geometry kinds carried in models.Feature.Geometry
	gob.Register(orb.Point{})
	gob.Register(orb.MultiPoint{})
	gob.Register(orb.LineString{})
	gob.Register(orb.MultiLineString{})
	gob.Register(orb.Ring{})
	gob.Register(orb.Polygon{})
	gob.Register(orb.MultiPolygon{})
}

// IndexData is the serializable form of the feature index
type IndexData struct {
	Features []models.Feature
	Count    int64
}

// SaveToFile writes the indexed features to a gob file
func (g *FeatureIndex) SaveToFile(filename string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	data := IndexData{
		Features: g.features,
		Count:    g.itemCount.Load(),
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return nil
}

// LoadFromFile replaces the index content with a gob file
func (g *FeatureIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data IndexData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}

	g.Clear()
	if err := g.IndexFeatures(data.Features); err != nil {
		return fmt.Errorf("failed to index features: %w", err)
	}
	if g.Count() != data.Count {
		return fmt.Errorf("index count mismatch: file has %d, indexed %d", data.Count, g.Count())
	}
	return nil
}

// Open loads a gob index file into a new index
func Open(filename string) (*FeatureIndex, error) {
	g := NewFeatureIndex()
	if err := g.LoadFromFile(filename); err != nil {
		return nil, err
	}
	return g, nil
}
