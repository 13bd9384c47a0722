package describe

import "strings"

const (
	// LabelMarker is appended to a quadrant label that repeats the previous one
	LabelMarker = " . "
	// CommandMarker is appended to a repeated command announcement
	CommandMarker = " ."
)

// Announcer remembers the last text pushed to a live region and marks exact
// repeats so screen readers read them again.
type Announcer struct {
	marker string
	maxLen int
	last   string
}

// NewAnnouncer creates an announcer. When maxLen is positive, any text longer
// than maxLen has every occurrence of the marker stripped.
func NewAnnouncer(marker string, maxLen int) *Announcer {
	return &Announcer{marker: marker, maxLen: maxLen}
}

// Announce returns the text to publish and records it as the last one.
// Empty text is published as-is.
func (a *Announcer) Announce(text string) string {
	if text != "" && text == a.last {
		text += a.marker
	}
	if a.maxLen > 0 && len(text) > a.maxLen {
		text = strings.ReplaceAll(text, a.marker, "")
	}
	a.last = text
	return text
}

// Last returns the most recently published text
func (a *Announcer) Last() string {
	return a.last
}
