// Package keyboard interprets navigation keys into cursor moves and the
// command announcements that go with them.
package keyboard

import (
	"math"
	"strconv"
	"strings"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/describe"
)

const (
	nudgeFactor = 0.2
	jumpFactor  = 10.0
	// one degree is taken as 100 km for spoken distances
	metersPerDegree = 100000.0

	// DefaultMaxAnnouncement is the length above which repeat markers are stripped
	DefaultMaxAnnouncement = 50
)

// Action is the effect of a key
type Action int

const (
	None Action = iota
	ZoomIn
	ZoomOut
	PanNorth
	PanSouth
	PanWest
	PanEast
)

func (a Action) String() string {
	switch a {
	case ZoomIn:
		return "zoom_in"
	case ZoomOut:
		return "zoom_out"
	case PanNorth:
		return "pan_north"
	case PanSouth:
		return "pan_south"
	case PanWest:
		return "pan_west"
	case PanEast:
		return "pan_east"
	}
	return "none"
}

// IsZoom reports whether the action changes the cursor extent
func (a Action) IsZoom() bool {
	return a == ZoomIn || a == ZoomOut
}

// State of the navigator. Every handled key passes through Moving or Zooming
// and ends back in Idle.
type State int

const (
	Idle State = iota
	Moving
	Zooming
)

// KeyEvent is a raw key value plus the two modifier flags. Nudge takes
// precedence when both are set.
type KeyEvent struct {
	Key   string
	Nudge bool
	Jump  bool
}

// Transition describes what a handled key did
type Transition struct {
	Action       Action
	Multiplier   float64
	Announcement string
}

var keymap = map[string]Action{
	"=": ZoomIn,
	"+": ZoomIn,
	"-": ZoomOut,
	"m": PanSouth,
	"i": PanNorth,
	"j": PanWest,
	"l": PanEast,
}

// Lookup returns the action bound to a key, case-insensitively
func Lookup(key string) Action {
	return keymap[strings.ToLower(key)]
}

// Navigator applies key events to a cursor.
type Navigator struct {
	cursor    *cursor.Cursor
	announcer *describe.Announcer
	state     State
}

// New creates a navigator. maxLen bounds announcements that keep their
// repeat marker; zero uses DefaultMaxAnnouncement.
func New(c *cursor.Cursor, maxLen int) *Navigator {
	if maxLen <= 0 {
		maxLen = DefaultMaxAnnouncement
	}
	return &Navigator{
		cursor:    c,
		announcer: describe.NewAnnouncer(describe.CommandMarker, maxLen),
	}
}

// Handle applies ev to the cursor. It returns false for unbound keys, which
// leave the cursor and the announcement untouched.
func (n *Navigator) Handle(ev KeyEvent) (Transition, bool) {
	action := Lookup(ev.Key)
	if action == None {
		return Transition{}, false
	}

	multiplier, prefix := 1.0, ""
	switch {
	case ev.Nudge:
		multiplier, prefix = nudgeFactor, "nudge"
	case ev.Jump:
		multiplier, prefix = jumpFactor, "jump"
	}

	c := n.cursor
	var dir string
	switch action {
	case ZoomIn:
		n.state = Zooming
		c.ZoomIn()
		dir = "zoom in to " + Distance(c.Width(), 1)
		// zoom ignores the modifiers
		multiplier = 1
	case ZoomOut:
		n.state = Zooming
		c.ZoomOut()
		dir = "zoom out to " + Distance(c.Width(), 1)
		multiplier = 1
	case PanSouth:
		n.state = Moving
		c.Pan(0, -multiplier*c.Height())
		dir = "south " + Distance(c.Width(), multiplier)
	case PanNorth:
		n.state = Moving
		c.Pan(0, multiplier*c.Height())
		dir = "north " + Distance(c.Width(), multiplier)
	case PanWest:
		n.state = Moving
		c.Pan(-multiplier*c.Width(), 0)
		dir = "west " + Distance(c.Width(), multiplier)
	case PanEast:
		n.state = Moving
		c.Pan(multiplier*c.Width(), 0)
		dir = "east " + Distance(c.Width(), multiplier)
	}

	text := strings.TrimSpace(prefix + " " + dir)
	t := Transition{
		Action:       action,
		Multiplier:   multiplier,
		Announcement: n.announcer.Announce(text),
	}
	n.state = Idle
	return t, true
}

// Initial announces the current cursor width
func (n *Navigator) Initial() string {
	return n.announcer.Announce(Distance(n.cursor.Width(), 1))
}

// State returns the navigator state
func (n *Navigator) State() State {
	return n.state
}

// Distance speaks multiplier × width degrees as meters, or kilometers from
// 1000 m up.
func Distance(width, multiplier float64) string {
	meters := multiplier * width * metersPerDegree
	if meters < 1000 {
		return format(meters) + " meters"
	}
	return format(meters/1000) + " kilometers"
}

func format(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
