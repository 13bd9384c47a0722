package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultLabelProperty is the property read as a feature's name
const DefaultLabelProperty = "name"

// ParseTags converts an osm2pgsql style `"key"=>"value", ...` string into a
// mapping. Malformed input yields an empty mapping, never an error.
func ParseTags(raw string) map[string]string {
	tags := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tags
	}

	var decoded map[string]interface{}
	body := "{" + strings.ReplaceAll(raw, "=>", ":") + "}"
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return tags
	}
	for k, v := range decoded {
		tags[k] = stringify(v)
	}
	return tags
}

// FlattenTags zips parallel key/value arrays from a vector tile feature into
// a mapping. Extra keys or values without a partner are ignored.
func FlattenTags(keys []string, values []interface{}) map[string]string {
	tags := make(map[string]string, len(keys))
	for i, k := range keys {
		if i >= len(values) {
			break
		}
		tags[k] = stringify(values[i])
	}
	return tags
}

// FromGeoJSON converts a decoded GeoJSON feature. seq is used as the
// render-time id when the feature carries neither osm_id nor an id.
func FromGeoJSON(gf *geojson.Feature, seq int, labelProperty string) Feature {
	if labelProperty == "" {
		labelProperty = DefaultLabelProperty
	}
	props := gf.Properties
	if props == nil {
		props = geojson.Properties{}
	}

	f := Feature{
		ID:       strconv.Itoa(seq),
		Geometry: gf.Geometry,
		Properties: Properties{
			Name:        lookup(props, labelProperty),
			LayerID:     firstOf(props, "layer_id", "layer"),
			SourceID:    firstOf(props, "source_id", "source"),
			SourceLayer: lookup(props, "source_layer"),
			Ref:         lookup(props, "ref"),
			ISO31662:    lookup(props, "iso_3166_2"),
			OtherTags:   lookup(props, "other_tags"),
		},
	}

	if gf.ID != nil {
		f.ID = stringify(gf.ID)
	}
	if id := firstOf(props, "osm_id", "id"); id != "" {
		f.ID = id
	}

	f.Tags = ParseTags(f.Properties.OtherTags)
	if vt, ok := props["vector_tags"].(map[string]interface{}); ok {
		for k, v := range vt {
			f.Tags[k] = stringify(v)
		}
	}
	if keys, ok := props["tag_keys"].([]interface{}); ok {
		values, _ := props["tag_values"].([]interface{})
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = stringify(k)
		}
		for k, v := range FlattenTags(names, values) {
			f.Tags[k] = v
		}
	}

	f.fallbackName()
	return f
}

// fallbackName names unnamed lines after their route reference.
func (f *Feature) fallbackName() {
	if f.Properties.Name != "" {
		return
	}
	switch f.Type() {
	case LineStringType, MultiLineStringType:
	default:
		return
	}
	switch {
	case f.Properties.ISO31662 != "" && f.Properties.Ref != "":
		f.Properties.Name = f.Properties.ISO31662 + " " + f.Properties.Ref
	case f.Properties.Ref != "":
		f.Properties.Name = f.Properties.Ref
	}
}

// ToGeoJSON converts the feature back into a GeoJSON feature
func (f Feature) ToGeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry)
	gf.ID = f.ID
	gf.Properties["osm_id"] = f.ID
	gf.Properties["layer_id"] = f.Properties.LayerID
	setIf(gf.Properties, DefaultLabelProperty, f.Properties.Name)
	setIf(gf.Properties, "source_id", f.Properties.SourceID)
	setIf(gf.Properties, "source_layer", f.Properties.SourceLayer)
	setIf(gf.Properties, "ref", f.Properties.Ref)
	setIf(gf.Properties, "iso_3166_2", f.Properties.ISO31662)
	setIf(gf.Properties, "other_tags", f.Properties.OtherTags)
	return gf
}

// LoadGeoJSONFile reads a FeatureCollection from disk
func LoadGeoJSONFile(path, labelProperty string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson %s: %w", path, err)
	}

	features := make([]Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		if gf == nil || gf.Geometry == nil {
			continue
		}
		features = append(features, FromGeoJSON(gf, i, labelProperty))
	}
	return features, nil
}

// Bound returns the bounding box of the feature geometry
func (f Feature) Bound() orb.Bound {
	if f.Geometry == nil {
		return orb.Bound{}
	}
	return f.Geometry.Bound()
}

func setIf(props geojson.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}

func lookup(props geojson.Properties, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

func firstOf(props geojson.Properties, keys ...string) string {
	for _, k := range keys {
		if v := lookup(props, k); v != "" {
			return v
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
