// Package describe turns the merged features of each quadrant into the text
// read out by assistive technology.
package describe

import (
	"strings"

	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/1F47E/quadcursor/pkg/quadrant"
)

const (
	// PhraseSeparator joins feature phrases within a quadrant
	PhraseSeparator = " ... "
	// QuadrantSeparator joins quadrant phrases within a label
	QuadrantSeparator = " ; ... ... "
)

// HumanName is the spoken name of a feature. Road-like layers get their
// abbreviations expanded; unnamed water is called "water". The result is not
// trimmed.
func HumanName(f models.Feature) string {
	name := f.Properties.Name
	if f.InLayer("water") && name == "" {
		return "water"
	}
	if isRoad(f.Properties.LayerID) {
		return Expand(name)
	}
	return name
}

// Description summarises the tags of a point of interest. Features outside
// poi layers, or without tags, have none.
func Description(f models.Feature) string {
	if !f.InLayer("poi") || len(f.Tags) == 0 {
		return ""
	}
	tags := f.Tags
	var parts []string

	if _, ok := tags["public_transport"]; ok {
		if network := tags["network"]; network != "" {
			parts = append(parts, "("+network+")")
		}
		if tags["light_rail"] == "yes" {
			parts = append(parts, "light rail station")
		}
		if tags["bus"] == "yes" {
			parts = append(parts, "bus stop")
		}
	}
	if v, ok := tags["leisure"]; ok {
		parts = append(parts, "leisure: "+v)
	}
	if v, ok := tags["amenity"]; ok {
		parts = append(parts, v)
	}
	if v, ok := tags["shop"]; ok {
		parts = append(parts, v+" shop")
	}
	for _, key := range []string{"craft", "type", "class"} {
		if v, ok := tags[key]; ok {
			parts = append(parts, v)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Phrase describes one quadrant. A name is spoken only the first time it
// occurs in the quadrant (case-sensitive); repeats contribute just their
// description. It returns "" when no feature contributes.
func Phrase(direction string, features []models.Feature) string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = Display(HumanName(f))
	}

	first := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := first[n]; !ok {
			first[n] = i
		}
	}

	var parts []string
	for i, f := range features {
		var part []string
		if names[i] != "" && first[names[i]] == i {
			part = append(part, names[i])
		}
		if d := Description(f); d != "" {
			part = append(part, strings.ReplaceAll(d, "_", " "))
		}
		if p := Display(strings.Join(part, " ")); p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return direction + " quadrant: " + strings.Join(parts, PhraseSeparator)
}

// Label joins the non-empty quadrant phrases in spatial order.
func Label(sets [4]quadrant.Set) string {
	phrases := make([]string, 0, len(sets))
	for _, s := range sets {
		if p := Phrase(s.Quadrant.Direction, s.Features); p != "" {
			phrases = append(phrases, p)
		}
	}
	return strings.Join(phrases, QuadrantSeparator)
}

func isRoad(layer string) bool {
	l := strings.ToLower(layer)
	return strings.Contains(l, "road") || strings.Contains(l, "bridge") || strings.Contains(l, "crossing")
}
