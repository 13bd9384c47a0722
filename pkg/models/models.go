// Package models holds the feature and location types shared by the cursor,
// the quadrant engine and the feature providers.
package models

import (
	"strings"

	"github.com/paulmach/orb"
)

// GeometryType names the GeoJSON kind carried by a feature's geometry
type GeometryType string

const (
	PointType           GeometryType = "Point"
	MultiPointType      GeometryType = "MultiPoint"
	LineStringType      GeometryType = "LineString"
	MultiLineStringType GeometryType = "MultiLineString"
	PolygonType         GeometryType = "Polygon"
	MultiPolygonType    GeometryType = "MultiPolygon"
)

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the location as a lon/lat orb point
func (l Location) Point() orb.Point {
	return orb.Point{l.Lon, l.Lat}
}

// LocationOf converts a lon/lat orb point
func LocationOf(p orb.Point) Location {
	return Location{Lat: p.Lat(), Lon: p.Lon()}
}

// Properties is the closed set of attributes the describer reads.
type Properties struct {
	Name        string `json:"name,omitempty"`
	LayerID     string `json:"layer_id"`
	SourceID    string `json:"source_id,omitempty"`
	SourceLayer string `json:"source_layer,omitempty"`
	Ref         string `json:"ref,omitempty"`
	ISO31662    string `json:"iso_3166_2,omitempty"`
	// OtherTags keeps the raw `"key"=>"value"` string the tags were parsed from.
	OtherTags string `json:"other_tags,omitempty"`
}

// Feature is one map entity as returned by a provider. Several features may
// share an ID when the provider returns a feature in fragments.
type Feature struct {
	ID         string            `json:"id"`
	Geometry   orb.Geometry      `json:"-"`
	Properties Properties        `json:"properties"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// Type returns the geometry kind, or "" when the feature has no geometry
func (f Feature) Type() GeometryType {
	if f.Geometry == nil {
		return ""
	}
	return GeometryType(f.Geometry.GeoJSONType())
}

// WithGeometry returns a copy of the feature carrying g. Properties and tags
// are shared with the receiver; features are read-only once built.
func (f Feature) WithGeometry(g orb.Geometry) Feature {
	f.Geometry = g
	return f
}

// Labelable reports whether the feature carries anything a label can be
// built from.
func (f Feature) Labelable() bool {
	return f.Properties.Name != "" || f.Properties.Ref != "" || f.Properties.ISO31662 != ""
}

// InLayer reports whether the layer id starts with prefix
func (f Feature) InLayer(prefix string) bool {
	return strings.HasPrefix(f.Properties.LayerID, prefix)
}
