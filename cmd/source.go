package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/1F47E/quadcursor/internal/config"
	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/1F47E/quadcursor/pkg/poi"
	"github.com/1F47E/quadcursor/pkg/postgis"
	"github.com/1F47E/quadcursor/pkg/rtree"
	"github.com/1F47E/quadcursor/pkg/session"
	"github.com/paulmach/orb"
)

// source is an opened feature provider plus the extent of its data
type source struct {
	provider session.FeatureProvider
	extent   orb.Bound
	close    func() error
}

func isDSN(target string) bool {
	return strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://")
}

// openSource resolves target to a provider. The configured PostGIS DSN wins
// over the default file name.
func openSource(ctx context.Context, target string, cfg config.Config) (*source, error) {
	if (target == "" || target == "features.geojson") && cfg.PostGIS.DSN != "" {
		target = cfg.PostGIS.DSN
	}

	switch {
	case isDSN(target):
		store, err := postgis.Open(ctx, target)
		if err != nil {
			return nil, err
		}
		ext, err := store.Extent(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		logger.L().Info("source_open", "kind", "postgis", "extent", ext)
		return &source{provider: store, extent: ext, close: store.Close}, nil

	case strings.EqualFold(filepath.Ext(target), ".gob"):
		start := time.Now()
		idx, err := rtree.Open(target)
		if err != nil {
			return nil, err
		}
		logger.L().Info("source_open", "kind", "gob", "path", target, "features", idx.Count(), "duration", time.Since(start))
		return &source{provider: idx, extent: idx.Extent(), close: func() error { return nil }}, nil

	default:
		idx, err := indexGeoJSON(target, cfg.LabelProperty)
		if err != nil {
			return nil, err
		}
		return &source{provider: idx, extent: idx.Extent(), close: func() error { return nil }}, nil
	}
}

func indexGeoJSON(path, labelProperty string) (*rtree.FeatureIndex, error) {
	start := time.Now()
	features, err := models.LoadGeoJSONFile(path, labelProperty)
	if err != nil {
		return nil, err
	}
	idx := rtree.NewFeatureIndex()
	if err := idx.IndexFeatures(features); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", path, err)
	}
	logger.L().Info("source_open", "kind", "geojson", "path", path, "features", idx.Count(), "duration", time.Since(start))
	return idx, nil
}

// startCenter picks the explicit center or the middle of the data
func startCenter(lon, lat float64, explicit bool, extent orb.Bound) orb.Point {
	if explicit {
		return orb.Point{lon, lat}
	}
	return extent.Center()
}

// buildPOI wires the category search behind a Redis or in-memory cache.
// It returns nil when POI lookup is disabled.
func buildPOI(cfg config.Config) (session.POILookup, func() error, error) {
	noop := func() error { return nil }
	if !cfg.POI.Enabled {
		return nil, noop, nil
	}

	client, err := poi.NewClient(poi.Options{
		Endpoint:   cfg.POI.Endpoint,
		APIKey:     cfg.POI.APIKey,
		Categories: cfg.POI.Categories,
	})
	if err != nil {
		return nil, noop, err
	}

	if rdb := poi.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password); rdb != nil {
		logger.L().Info("poi_cache", "backend", "redis", "addr", cfg.Redis.Addr)
		return poi.NewService(client, poi.NewRedisCache(rdb, cfg.POI.CacheTTL)), rdb.Close, nil
	}
	logger.L().Info("poi_cache", "backend", "memory", "size", cfg.POI.CacheSize)
	return poi.NewService(client, poi.NewMemoryCache(cfg.POI.CacheSize, cfg.POI.CacheTTL)), noop, nil
}
