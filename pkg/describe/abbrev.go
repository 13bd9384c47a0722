package describe

import "strings"

type rule struct {
	abbr string
	full string
}

// directional prefixes, longest first so SW wins over S
var directions = []rule{
	{"SW", "Southwest"},
	{"SE", "Southeast"},
	{"NW", "Northwest"},
	{"NE", "Northeast"},
	{"W", "West"},
	{"E", "East"},
	{"N", "North"},
	{"S", "South"},
}

var streetTypes = []rule{
	{"Ave", "Avenue"},
	{"St", "Street"},
	{"Rd", "Road"},
	{"Pl", "Place"},
	{"Ct", "Court"},
	{"Cir", "Circle"},
	{"Dr", "Drive"},
	{"Pkwy", "Parkway"},
	{"Hwy", "Highway"},
}

// Expand spells out street name abbreviations in a single left-to-right pass.
// A leading directional followed by a space is expanded once; then each
// street-type rule expands its first whole-word, case-insensitive match.
// Replacements are never rescanned. Every expansion is followed by a space,
// so the result may carry trailing or doubled spaces; Display normalises them.
func Expand(name string) string {
	var b strings.Builder
	rest := name

	for _, r := range directions {
		if len(rest) > len(r.abbr) && rest[len(r.abbr)] == ' ' && strings.EqualFold(rest[:len(r.abbr)], r.abbr) {
			b.WriteString(r.full)
			b.WriteByte(' ')
			rest = rest[len(r.abbr)+1:]
			break
		}
	}

	used := make([]bool, len(streetTypes))
	for i := 0; i < len(rest); {
		if !isWordByte(rest[i]) {
			b.WriteByte(rest[i])
			i++
			continue
		}
		j := i
		for j < len(rest) && isWordByte(rest[j]) {
			j++
		}
		b.WriteString(expandWord(rest[i:j], used))
		i = j
	}
	return b.String()
}

func expandWord(word string, used []bool) string {
	for k, r := range streetTypes {
		if !used[k] && strings.EqualFold(word, r.abbr) {
			used[k] = true
			return r.full + " "
		}
	}
	return word
}

// Display collapses runs of whitespace and trims the ends.
func Display(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}
