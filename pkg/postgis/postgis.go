// Package postgis stores features in a PostGIS table and serves them back as
// a feature provider.
package postgis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/pkg/models"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const batchSize = 10000

// FeatureStore is a feature provider backed by the map_features table
type FeatureStore struct {
	db *sql.DB
}

// Open connects to dsn, a postgres:// URL or key=value string
func Open(ctx context.Context, dsn string) (*FeatureStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &FeatureStore{db: db}, nil
}

// InitSchema recreates the feature table
func (p *FeatureStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`DROP TABLE IF EXISTS map_features;`,
		`CREATE TABLE map_features (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			layer_id TEXT NOT NULL DEFAULT '',
			source_id TEXT NOT NULL DEFAULT '',
			source_layer TEXT NOT NULL DEFAULT '',
			ref TEXT NOT NULL DEFAULT '',
			iso_3166_2 TEXT NOT NULL DEFAULT '',
			other_tags TEXT NOT NULL DEFAULT '',
			tags JSONB,
			geom GEOMETRY(GEOMETRY, 4326) NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// CreateSpatialIndex creates a GIST index on the geometry column
func (p *FeatureStore) CreateSpatialIndex(ctx context.Context) error {
	start := time.Now()
	if _, err := p.db.ExecContext(ctx, `CREATE INDEX idx_map_features_geom ON map_features USING GIST(geom);`); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, "ANALYZE map_features;"); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}

	logger.L().Info("postgis_index_created", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// BulkInsertFeatures inserts features in committed batches. Features
// without geometry are skipped.
func (p *FeatureStore) BulkInsertFeatures(ctx context.Context, features []models.Feature) error {
	stmt, err := p.db.PrepareContext(ctx, `
		INSERT INTO map_features (id, name, layer_id, source_id, source_layer, ref, iso_3166_2, other_tags, tags, geom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, ST_SetSRID(ST_GeomFromGeoJSON($10), 4326))
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStmt := tx.StmtContext(ctx, stmt)

	inserted := 0
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		row, err := encodeFeature(f)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := txStmt.ExecContext(ctx, row.args()...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert feature %s: %w", f.ID, err)
		}

		inserted++
		if inserted%batchSize == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			tx, err = p.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
			txStmt = tx.StmtContext(ctx, stmt)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final batch: %w", err)
	}
	logger.L().Info("postgis_features_inserted", "count", inserted)
	return nil
}

// QueryFeatures returns the features whose geometry intersects bound, in
// insertion order.
func (p *FeatureStore) QueryFeatures(ctx context.Context, bound orb.Bound) ([]models.Feature, error) {
	query := `
		SELECT id, name, layer_id, source_id, source_layer, ref, iso_3166_2, other_tags,
			COALESCE(tags::text, ''), ST_AsGeoJSON(geom)
		FROM map_features
		WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY seq
	`

	rows, err := p.db.QueryContext(ctx, query,
		bound.Min.Lon(), bound.Min.Lat(),
		bound.Max.Lon(), bound.Max.Lat())
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []models.Feature
	for rows.Next() {
		var r featureRow
		if err := rows.Scan(&r.id, &r.name, &r.layerID, &r.sourceID, &r.sourceLayer,
			&r.ref, &r.iso, &r.otherTags, &r.tags, &r.geometry); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f, err := r.decode()
		if err != nil {
			return nil, err
		}
		results = append(results, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Count returns the number of stored features
func (p *FeatureStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM map_features").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count features: %w", err)
	}
	return count, nil
}

// Extent returns the bounding box of all stored geometry. An empty table
// yields an empty bound.
func (p *FeatureStore) Extent(ctx context.Context) (orb.Bound, error) {
	var minX, minY, maxX, maxY sql.NullFloat64
	err := p.db.QueryRowContext(ctx, `
		SELECT ST_XMin(e), ST_YMin(e), ST_XMax(e), ST_YMax(e)
		FROM (SELECT ST_Extent(geom) AS e FROM map_features) s
	`).Scan(&minX, &minY, &maxX, &maxY)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("failed to read extent: %w", err)
	}
	if !minX.Valid {
		return orb.Bound{}, nil
	}
	return orb.Bound{Min: orb.Point{minX.Float64, minY.Float64}, Max: orb.Point{maxX.Float64, maxY.Float64}}, nil
}

// Stats returns database and table sizes
func (p *FeatureStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var dbSize string
	err := p.db.QueryRowContext(ctx, `SELECT pg_size_pretty(pg_database_size(current_database()))`).Scan(&dbSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get database size: %w", err)
	}
	stats["database_size"] = dbSize

	var tableSize, indexSize string
	err = p.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size('map_features')),
			pg_size_pretty(pg_indexes_size('map_features'))
	`).Scan(&tableSize, &indexSize)
	if err != nil {
		stats["table_size"] = "0 bytes"
		stats["index_size"] = "0 bytes"
	} else {
		stats["table_size"] = tableSize
		stats["index_size"] = indexSize
	}

	count, _ := p.Count(ctx)
	stats["row_count"] = count
	return stats, nil
}

// Close closes the database connection
func (p *FeatureStore) Close() error {
	return p.db.Close()
}

// featureRow is one map_features row in column order
type featureRow struct {
	id, name, layerID, sourceID, sourceLayer string
	ref, iso, otherTags                      string
	tags                                     string
	geometry                                 string
}

func encodeFeature(f models.Feature) (featureRow, error) {
	geom, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
	if err != nil {
		return featureRow{}, fmt.Errorf("failed to encode geometry of %s: %w", f.ID, err)
	}

	r := featureRow{
		id:          f.ID,
		name:        f.Properties.Name,
		layerID:     f.Properties.LayerID,
		sourceID:    f.Properties.SourceID,
		sourceLayer: f.Properties.SourceLayer,
		ref:         f.Properties.Ref,
		iso:         f.Properties.ISO31662,
		otherTags:   f.Properties.OtherTags,
		geometry:    string(geom),
	}
	if len(f.Tags) > 0 {
		tags, err := json.Marshal(f.Tags)
		if err != nil {
			return featureRow{}, fmt.Errorf("failed to encode tags of %s: %w", f.ID, err)
		}
		r.tags = string(tags)
	}
	return r, nil
}

func (r featureRow) args() []interface{} {
	var tags interface{}
	if r.tags != "" {
		tags = r.tags
	}
	return []interface{}{
		r.id, r.name, r.layerID, r.sourceID, r.sourceLayer,
		r.ref, r.iso, r.otherTags, tags, r.geometry,
	}
}

func (r featureRow) decode() (models.Feature, error) {
	g, err := geojson.UnmarshalGeometry([]byte(r.geometry))
	if err != nil {
		return models.Feature{}, fmt.Errorf("failed to decode geometry of %s: %w", r.id, err)
	}

	f := models.Feature{
		ID:       r.id,
		Geometry: g.Geometry(),
		Properties: models.Properties{
			Name:        r.name,
			LayerID:     r.layerID,
			SourceID:    r.sourceID,
			SourceLayer: r.sourceLayer,
			Ref:         r.ref,
			ISO31662:    r.iso,
			OtherTags:   r.otherTags,
		},
	}
	if r.tags != "" {
		// tags are lenient like other_tags
		if err := json.Unmarshal([]byte(r.tags), &f.Tags); err != nil {
			f.Tags = map[string]string{}
		}
	}
	return f, nil
}
