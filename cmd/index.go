package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/1F47E/quadcursor/pkg/postgis"
	"github.com/1F47E/quadcursor/pkg/rtree"
	"github.com/spf13/cobra"
)

var (
	indexIn      string
	indexOut     string
	indexPostGIS string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build a feature index from a GeoJSON file",
	Long: `Load a GeoJSON FeatureCollection, build the R-Tree index and save it as a
gob file. With --postgis the features are also written to a PostGIS table.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexIn, "in", "i", "features.geojson", "Input GeoJSON file")
	indexCmd.Flags().StringVarP(&indexOut, "out", "o", "data/index.gob", "Output index file")
	indexCmd.Flags().StringVar(&indexPostGIS, "postgis", "", "Also load into this PostGIS DSN (default: postgis.dsn from config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l := logger.L()

	start := time.Now()
	features, err := models.LoadGeoJSONFile(indexIn, cfg.LabelProperty)
	if err != nil {
		return err
	}
	l.Info("geojson_loaded", "path", indexIn, "features", len(features), "duration", time.Since(start))

	start = time.Now()
	idx := rtree.NewFeatureIndex()
	if err := idx.IndexFeatures(features); err != nil {
		return fmt.Errorf("failed to index features: %w", err)
	}
	indexTime := time.Since(start)
	fmt.Printf("Index built in %v (%.0f features/sec)\n", indexTime, float64(idx.Count())/indexTime.Seconds())

	if dir := filepath.Dir(indexOut); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := idx.SaveToFile(indexOut); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	if info, err := os.Stat(indexOut); err == nil {
		fmt.Printf("Index saved to %s (%.2f MB)\n", indexOut, float64(info.Size())/(1024*1024))
	}
	fmt.Printf("Total features indexed: %d\n", idx.Count())

	dsn := indexPostGIS
	if dsn == "" {
		dsn = cfg.PostGIS.DSN
	}
	if dsn == "" {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return loadPostGIS(ctx, dsn, features)
}

func loadPostGIS(ctx context.Context, dsn string, features []models.Feature) error {
	store, err := postgis.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	start := time.Now()
	if err := store.BulkInsertFeatures(ctx, features); err != nil {
		return err
	}
	if err := store.CreateSpatialIndex(ctx); err != nil {
		return err
	}
	fmt.Printf("PostGIS loaded in %v\n", time.Since(start))

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Rows: %v, table: %v, indexes: %v\n", stats["row_count"], stats["table_size"], stats["index_size"])
	return nil
}
