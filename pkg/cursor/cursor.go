// Package cursor tracks the navigation point and the rectangle around it that
// the quadrant engine describes.
package cursor

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// coordinates and zoom are rounded to 4 decimals to suppress render jitter
	precision = 10000.0
	// the re-fit rectangle is padded by a tenth of the cursor width on each side
	fitPadding = 10.0
)

// Directions of the four quadrants, in spatial order.
var Directions = [4]string{"southwest", "southeast", "northwest", "northeast"}

// ErrInvalidExtent is returned for non-positive or inverted extent limits
var ErrInvalidExtent = errors.New("invalid cursor extent")

// Options bounds the cursor extent, in degrees.
type Options struct {
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	MinWidth  float64 `yaml:"min_width"`
	MinHeight float64 `yaml:"min_height"`
	MaxWidth  float64 `yaml:"max_width"`
	MaxHeight float64 `yaml:"max_height"`
}

// DefaultOptions returns a roughly one kilometre cursor.
func DefaultOptions() Options {
	return Options{
		Width:     0.01,
		Height:    0.01,
		MinWidth:  0.0005,
		MinHeight: 0.0005,
		MaxWidth:  1,
		MaxHeight: 1,
	}
}

// Validate checks that the limits are positive and ordered and that the
// initial extent lies within them.
func (o Options) Validate() error {
	for name, v := range map[string]float64{
		"width": o.Width, "height": o.Height,
		"min_width": o.MinWidth, "min_height": o.MinHeight,
		"max_width": o.MaxWidth, "max_height": o.MaxHeight,
	} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidExtent, name, v)
		}
	}
	if o.MinWidth > o.MaxWidth || o.MinHeight > o.MaxHeight {
		return fmt.Errorf("%w: minimum exceeds maximum", ErrInvalidExtent)
	}
	if o.Width < o.MinWidth || o.Width > o.MaxWidth || o.Height < o.MinHeight || o.Height > o.MaxHeight {
		return fmt.Errorf("%w: initial %vx%v outside limits", ErrInvalidExtent, o.Width, o.Height)
	}
	return nil
}

// View is the part of the host map the cursor reads its center from.
type View interface {
	Center() orb.Point
	Zoom() float64
}

// Projector maps geographic coordinates into screen pixels.
type Projector interface {
	Project(p orb.Point) Pixel
}

// Pixel is a screen position
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PixelRect is the on-screen rectangle of the cursor
type PixelRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Corners of the cursor rectangle plus the padded pair used to re-fit the
// host view. They are always replaced as a whole.
type Corners struct {
	NW, SW, NE, SE orb.Point
	FitSW, FitNE   orb.Point
}

// Quadrant is one quarter of the cursor rectangle
type Quadrant struct {
	Index     int
	Direction string
	Bound     orb.Bound
}

// Cursor is the navigation state: center, zoom and extent.
type Cursor struct {
	opts     Options
	width    float64
	height   float64
	center   orb.Point
	zoom     float64
	centered bool
	corners  Corners
}

// New creates a cursor centered on 0,0 with the initial extent from opts.
func New(opts Options) (*Cursor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Cursor{
		opts:   opts,
		width:  opts.Width,
		height: opts.Height,
	}
	c.recompute()
	return c, nil
}

// SetCenter reads center and zoom from the host view, rounded to 4 decimals.
// It returns false and changes nothing when both match the previous call.
func (c *Cursor) SetCenter(v View) bool {
	hc := v.Center()
	center := orb.Point{round(hc.Lon()), round(hc.Lat())}
	zoom := round(v.Zoom())

	if c.centered && c.zoom == zoom && c.center.Equal(center) {
		return false
	}
	c.center = center
	c.zoom = zoom
	c.centered = true
	c.recompute()
	return true
}

// Update recomputes the corners and returns the on-screen rectangle. A nil
// projector yields an empty rectangle.
func (c *Cursor) Update(p Projector) PixelRect {
	c.recompute()
	if p == nil {
		return PixelRect{}
	}

	bl := p.Project(c.corners.SW)
	tl := p.Project(c.corners.NW)
	tr := p.Project(c.corners.NE)

	return PixelRect{
		Left:   tl.X,
		Top:    tl.Y,
		Width:  math.Abs(tr.X - bl.X),
		Height: math.Abs(tr.Y - bl.Y),
	}
}

// ZoomIn halves the extent, clamped to the minimum.
func (c *Cursor) ZoomIn() {
	c.width = math.Max(c.width/2, c.opts.MinWidth)
	c.height = math.Max(c.height/2, c.opts.MinHeight)
	c.recompute()
}

// ZoomOut doubles the extent, clamped to the maximum.
func (c *Cursor) ZoomOut() {
	c.width = math.Min(c.width*2, c.opts.MaxWidth)
	c.height = math.Min(c.height*2, c.opts.MaxHeight)
	c.recompute()
}

// Pan moves the center by the given offsets in degrees.
func (c *Cursor) Pan(dLon, dLat float64) {
	c.center = orb.Point{c.center.Lon() + dLon, c.center.Lat() + dLat}
	c.centered = true
	c.recompute()
}

// Quadrants splits the cursor rectangle into southwest, southeast, northwest
// and northeast boxes, offset from the southwest corner.
func (c *Cursor) Quadrants() [4]Quadrant {
	var quads [4]Quadrant
	w := c.width / 2
	h := c.height / 2
	sw := c.corners.SW

	for i := range quads {
		origin := orb.Point{
			sw.Lon() + float64(i%2)*w,
			sw.Lat() + float64(i/2)*h,
		}
		quads[i] = Quadrant{
			Index:     i,
			Direction: Directions[i],
			Bound: orb.Bound{
				Min: origin,
				Max: orb.Point{origin.Lon() + w, origin.Lat() + h},
			},
		}
	}
	return quads
}

func (c *Cursor) Center() orb.Point { return c.center }
func (c *Cursor) Zoom() float64     { return c.zoom }
func (c *Cursor) Width() float64    { return c.width }
func (c *Cursor) Height() float64   { return c.height }
func (c *Cursor) Corners() Corners  { return c.corners }

// Bound returns the cursor rectangle
func (c *Cursor) Bound() orb.Bound {
	return orb.Bound{Min: c.corners.SW, Max: c.corners.NE}
}

func (c *Cursor) recompute() {
	x, y := c.center.Lon(), c.center.Lat()
	hw, hh := c.width/2, c.height/2
	pad := c.width / fitPadding

	sw := orb.Point{x - hw, y - hh}
	ne := orb.Point{x + hw, y + hh}
	c.corners = Corners{
		NW:    orb.Point{x - hw, y + hh},
		SW:    sw,
		NE:    ne,
		SE:    orb.Point{x + hw, y - hh},
		FitSW: orb.Point{sw.Lon() - pad, sw.Lat() - pad},
		FitNE: orb.Point{ne.Lon() + pad, ne.Lat() + pad},
	}
}

func round(v float64) float64 {
	return math.Round(v*precision) / precision
}
