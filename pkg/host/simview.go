// Package host provides a headless map view: Web Mercator projection over a
// fixed pixel viewport, with the move and render notifications a real map
// widget would emit.
package host

import (
	"math"
	"sync"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// TileSize is the pixel size of the world at zoom 0
	TileSize = 512.0
	MaxZoom  = 22.0
)

// worldMeters is the Web Mercator extent of the world along one axis
var worldMeters = 2 * orb.EarthRadius * math.Pi

// EventKind is a host notification
type EventKind int

const (
	MoveStart EventKind = iota
	Render
	MoveEnd
)

func (k EventKind) String() string {
	switch k {
	case MoveStart:
		return "movestart"
	case Render:
		return "render"
	}
	return "moveend"
}

// Listener consumes host notifications
type Listener interface {
	OnMoveStart()
	OnMoveEnd()
	OnRender()
}

// SimView is an in-memory map view. Moves queue their notifications; Flush
// delivers them outside any SimView call so listeners may call back in.
type SimView struct {
	mu     sync.Mutex
	width  float64
	height float64
	center orb.Point
	zoom   float64
	events []EventKind
}

// NewSimView creates a view of width×height pixels
func NewSimView(width, height int, center orb.Point, zoom float64) *SimView {
	return &SimView{
		width:  float64(width),
		height: float64(height),
		center: center,
		zoom:   clampZoom(zoom),
	}
}

func (v *SimView) Center() orb.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

func (v *SimView) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Size returns the viewport in pixels
func (v *SimView) Size() (float64, float64) {
	return v.width, v.height
}

// Project returns the viewport pixel of a lon/lat point, origin top left.
func (v *SimView) Project(p orb.Point) cursor.Pixel {
	v.mu.Lock()
	defer v.mu.Unlock()

	scale := worldPixels(v.zoom)
	px := toWorld(p, scale)
	c := toWorld(v.center, scale)
	return cursor.Pixel{
		X: px[0] - c[0] + v.width/2,
		Y: px[1] - c[1] + v.height/2,
	}
}

// Unproject is the inverse of Project
func (v *SimView) Unproject(px cursor.Pixel) orb.Point {
	v.mu.Lock()
	defer v.mu.Unlock()

	scale := worldPixels(v.zoom)
	c := toWorld(v.center, scale)
	wx := px.X - v.width/2 + c[0]
	wy := px.Y - v.height/2 + c[1]

	merc := orb.Point{
		wx/scale*worldMeters - worldMeters/2,
		worldMeters/2 - wy/scale*worldMeters,
	}
	return project.Mercator.ToWGS84(merc)
}

// Bound returns the visible lon/lat rectangle
func (v *SimView) Bound() orb.Bound {
	nw := v.Unproject(cursor.Pixel{X: 0, Y: 0})
	se := v.Unproject(cursor.Pixel{X: v.width, Y: v.height})
	return orb.Bound{
		Min: orb.Point{nw.Lon(), se.Lat()},
		Max: orb.Point{se.Lon(), nw.Lat()},
	}
}

// PanTo recenters the view without changing zoom
func (v *SimView) PanTo(center orb.Point) {
	v.JumpTo(center, v.Zoom())
}

// JumpTo sets center and zoom
func (v *SimView) JumpTo(center orb.Point, zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.center = center
	v.zoom = clampZoom(zoom)
	v.events = append(v.events, MoveStart, Render, MoveEnd)
}

// FitBounds zooms to the largest level at which the rectangle fits the
// viewport, centered on its midpoint.
func (v *SimView) FitBounds(sw, ne orb.Point) {
	a := project.WGS84.ToMercator(sw)
	b := project.WGS84.ToMercator(ne)
	dx := math.Abs(b[0]-a[0]) / worldMeters * TileSize
	dy := math.Abs(b[1]-a[1]) / worldMeters * TileSize

	zoom := MaxZoom
	if dx > 0 && dy > 0 {
		zoom = math.Log2(math.Min(v.width/dx, v.height/dy))
	}
	center := orb.Point{(sw.Lon() + ne.Lon()) / 2, (sw.Lat() + ne.Lat()) / 2}
	v.JumpTo(center, zoom)
}

// Pending returns the number of undelivered notifications
func (v *SimView) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.events)
}

// Flush delivers queued notifications to l, including any queued while
// delivering, and returns how many were delivered.
func (v *SimView) Flush(l Listener) int {
	n := 0
	for {
		v.mu.Lock()
		if len(v.events) == 0 {
			v.mu.Unlock()
			return n
		}
		ev := v.events[0]
		v.events = v.events[1:]
		v.mu.Unlock()

		switch ev {
		case MoveStart:
			l.OnMoveStart()
		case Render:
			l.OnRender()
		case MoveEnd:
			l.OnMoveEnd()
		}
		n++
	}
}

func worldPixels(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}

func toWorld(p orb.Point, scale float64) orb.Point {
	m := project.WGS84.ToMercator(p)
	return orb.Point{
		(m[0] + worldMeters/2) / worldMeters * scale,
		(worldMeters/2 - m[1]) / worldMeters * scale,
	}
}

func clampZoom(z float64) float64 {
	return math.Max(0, math.Min(z, MaxZoom))
}
