// Package rtree is an in-memory feature provider: an R-Tree over feature
// bounds, partitioned into longitude bands that are searched in parallel.
package rtree

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const (
	// points and axis-aligned lines get this extent so rtreego accepts them
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialFeature wraps a feature to implement rtreego.Spatial
type spatialFeature struct {
	seq   int
	bound orb.Bound
	rect  *rtreego.Rect
}

func (sf *spatialFeature) Bounds() *rtreego.Rect {
	return sf.rect
}

// FeatureIndex is a thread-safe R-Tree feature index. Query results keep the
// order the features were indexed in.
type FeatureIndex struct {
	partitions []*rtreego.Rtree
	numParts   int
	mu         sync.RWMutex
	features   []models.Feature
	itemCount  atomic.Int64
	extent     orb.Bound
}

// NewFeatureIndex creates an index with one partition per CPU
func NewFeatureIndex() *FeatureIndex {
	return NewFeatureIndexWithPartitions(runtime.NumCPU())
}

// NewFeatureIndexWithPartitions creates an index with n longitude bands
func NewFeatureIndexWithPartitions(n int) *FeatureIndex {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	g := &FeatureIndex{numParts: n}
	g.reset()
	return g
}

func (g *FeatureIndex) reset() {
	g.partitions = make([]*rtreego.Rtree, g.numParts)
	for i := range g.partitions {
		g.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	g.features = nil
	g.extent = orb.Bound{}
	g.itemCount.Store(0)
}

// IndexFeatures appends features to the index. Features without geometry are
// skipped. Fragments sharing an ID are indexed separately.
func (g *FeatureIndex) IndexFeatures(features []models.Feature) error {
	if len(features) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// build items in parallel chunks, then route them by longitude
	items := make([]*spatialFeature, len(features))
	base := len(g.features)
	chunk := (len(features) + g.numParts - 1) / g.numParts

	var wg sync.WaitGroup
	for start := 0; start < len(features); start += chunk {
		end := min(start+chunk, len(features))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if features[i].Geometry == nil {
					continue
				}
				b := features[i].Geometry.Bound()
				rect, err := toRect(b)
				if err != nil {
					continue
				}
				items[i] = &spatialFeature{seq: base + i, bound: b, rect: rect}
			}
		}(start, end)
	}
	wg.Wait()

	routed := make([][]*spatialFeature, g.numParts)
	g.features = append(g.features, features...)
	for _, item := range items {
		if item == nil {
			continue
		}
		idx := g.partitionOf(item.bound.Center().Lon())
		routed[idx] = append(routed[idx], item)
		if g.itemCount.Load() == 0 {
			g.extent = item.bound
		} else {
			g.extent = g.extent.Union(item.bound)
		}
		g.itemCount.Add(1)
	}

	for i, part := range routed {
		if len(part) == 0 {
			continue
		}
		wg.Add(1)
		go func(tree *rtreego.Rtree, items []*spatialFeature) {
			defer wg.Done()
			for _, item := range items {
				tree.Insert(item)
			}
		}(g.partitions[i], part)
	}
	wg.Wait()
	return nil
}

// QueryFeatures returns the features whose bounds intersect bound, in index
// order. Every partition is searched; routing only balances the trees.
func (g *FeatureIndex) QueryFeatures(ctx context.Context, bound orb.Bound) ([]models.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query, err := toRect(bound)
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	resultsChan := make(chan []int, g.numParts)
	for _, tree := range g.partitions {
		go func(tree *rtreego.Rtree) {
			var seqs []int
			for _, result := range tree.SearchIntersect(query) {
				item, ok := result.(*spatialFeature)
				if !ok || !item.bound.Intersects(bound) {
					continue
				}
				seqs = append(seqs, item.seq)
			}
			resultsChan <- seqs
		}(tree)
	}

	var all []int
	for range g.partitions {
		all = append(all, <-resultsChan...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Ints(all)
	out := make([]models.Feature, 0, len(all))
	for _, seq := range all {
		out = append(out, g.features[seq])
	}
	return out, nil
}

// Features returns every indexed feature in index order
func (g *FeatureIndex) Features() []models.Feature {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]models.Feature(nil), g.features...)
}

// Extent returns the union of all indexed bounds
func (g *FeatureIndex) Extent() orb.Bound {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.extent
}

// Count returns the number of indexed features
func (g *FeatureIndex) Count() int64 {
	return g.itemCount.Load()
}

// Clear removes all features from the index
func (g *FeatureIndex) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

func (g *FeatureIndex) partitionOf(lon float64) int {
	idx := int((lon + 180.0) / (360.0 / float64(g.numParts)))
	return max(0, min(idx, g.numParts-1))
}

func toRect(b orb.Bound) (*rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{b.Min.Lon(), b.Min.Lat()},
		[]float64{
			max(b.Max.Lon()-b.Min.Lon(), tolerance),
			max(b.Max.Lat()-b.Min.Lat(), tolerance),
		},
	)
}
