package cursor

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	center orb.Point
	zoom   float64
}

func (v fakeView) Center() orb.Point { return v.center }
func (v fakeView) Zoom() float64     { return v.zoom }

// flatProjector maps one degree to 1000 pixels with y growing southward
type flatProjector struct{}

func (flatProjector) Project(p orb.Point) Pixel {
	return Pixel{X: p.Lon() * 1000, Y: -p.Lat() * 1000}
}

func newCursor(t *testing.T) *Cursor {
	t.Helper()
	c, err := New(DefaultOptions())
	require.NoError(t, err)
	return c
}

func TestNewCursor(t *testing.T) {
	c := newCursor(t)
	assert.Equal(t, 0.01, c.Width())
	assert.Equal(t, 0.01, c.Height())
	assert.Equal(t, orb.Point{-0.005, -0.005}, c.Corners().SW)
}

func TestOptionsValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Options)
	}{
		{"zero width", func(o *Options) { o.Width = 0 }},
		{"negative min", func(o *Options) { o.MinHeight = -1 }},
		{"inverted limits", func(o *Options) { o.MinWidth = 2 }},
		{"initial above max", func(o *Options) { o.Height = 5 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.modify(&opts)
			_, err := New(opts)
			assert.ErrorIs(t, err, ErrInvalidExtent)
		})
	}
}

func TestSetCenterRoundsAndDebounces(t *testing.T) {
	c := newCursor(t)

	changed := c.SetCenter(fakeView{center: orb.Point{-104.991234, 39.742167}, zoom: 14.123456})
	assert.True(t, changed)
	assert.Equal(t, orb.Point{-104.9912, 39.7422}, c.Center())
	assert.Equal(t, 14.1235, c.Zoom())
	corners := c.Corners()

	// jitter below the rounding precision is ignored
	changed = c.SetCenter(fakeView{center: orb.Point{-104.991241, 39.742171}, zoom: 14.12346})
	assert.False(t, changed)
	assert.Equal(t, corners, c.Corners())

	changed = c.SetCenter(fakeView{center: orb.Point{-104.991241, 39.742171}, zoom: 15})
	assert.True(t, changed)
}

func TestSetCenterFirstCallAtOrigin(t *testing.T) {
	c := newCursor(t)
	assert.True(t, c.SetCenter(fakeView{}))
	assert.False(t, c.SetCenter(fakeView{}))
}

func TestCorners(t *testing.T) {
	c := newCursor(t)
	c.SetCenter(fakeView{center: orb.Point{10, 20}, zoom: 12})

	corners := c.Corners()
	assert.InDelta(t, 9.995, corners.NW.Lon(), 1e-12)
	assert.InDelta(t, 20.005, corners.NW.Lat(), 1e-12)
	assert.InDelta(t, 9.995, corners.SW.Lon(), 1e-12)
	assert.InDelta(t, 19.995, corners.SW.Lat(), 1e-12)
	assert.InDelta(t, 10.005, corners.NE.Lon(), 1e-12)
	assert.InDelta(t, 10.005, corners.SE.Lon(), 1e-12)
	assert.InDelta(t, 19.995, corners.SE.Lat(), 1e-12)
	assert.InDelta(t, 9.994, corners.FitSW.Lon(), 1e-12)
	assert.InDelta(t, 19.994, corners.FitSW.Lat(), 1e-12)
	assert.InDelta(t, 10.006, corners.FitNE.Lon(), 1e-12)
	assert.InDelta(t, 20.006, corners.FitNE.Lat(), 1e-12)
}

func TestUpdatePixelRect(t *testing.T) {
	c := newCursor(t)
	c.SetCenter(fakeView{center: orb.Point{1, 1}, zoom: 10})

	rect := c.Update(flatProjector{})
	assert.InDelta(t, 995, rect.Left, 1e-9)
	assert.InDelta(t, -1005, rect.Top, 1e-9)
	assert.InDelta(t, 10, rect.Width, 1e-9)
	assert.InDelta(t, 10, rect.Height, 1e-9)

	assert.Equal(t, PixelRect{}, c.Update(nil))
}

func TestZoomInClampsAtMinimum(t *testing.T) {
	c := newCursor(t)
	for i := 0; i < 6; i++ {
		c.ZoomIn()
		assert.GreaterOrEqual(t, c.Width(), 0.0005)
		assert.GreaterOrEqual(t, c.Height(), 0.0005)
	}
	assert.Equal(t, 0.0005, c.Width())
	assert.Equal(t, 0.0005, c.Height())
}

func TestZoomOutClampsAtMaximum(t *testing.T) {
	c := newCursor(t)
	for i := 0; i < 10; i++ {
		c.ZoomOut()
	}
	assert.Equal(t, 1.0, c.Width())
	assert.Equal(t, 1.0, c.Height())
	assert.InDelta(t, 0.5, c.Corners().NE.Lon(), 1e-12)
}

func TestPan(t *testing.T) {
	c := newCursor(t)
	c.SetCenter(fakeView{center: orb.Point{5, 5}, zoom: 3})
	c.Pan(-0.01, 0.02)
	assert.InDelta(t, 4.99, c.Center().Lon(), 1e-12)
	assert.InDelta(t, 5.02, c.Center().Lat(), 1e-12)
	assert.InDelta(t, 5.025, c.Corners().NW.Lat(), 1e-12)
}

func TestQuadrantDirections(t *testing.T) {
	c := newCursor(t)
	quads := c.Quadrants()
	for i, q := range quads {
		assert.Equal(t, i, q.Index)
		assert.Equal(t, Directions[i], q.Direction)
	}
	assert.True(t, quads[0].Bound.Contains(orb.Point{-0.004, -0.004}))
	assert.True(t, quads[1].Bound.Contains(orb.Point{0.004, -0.004}))
	assert.True(t, quads[2].Bound.Contains(orb.Point{-0.004, 0.004}))
	assert.True(t, quads[3].Bound.Contains(orb.Point{0.004, 0.004}))
}

func TestQuadrantsPartitionCursor(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			c := newCursor(t)
			c.SetCenter(fakeView{center: orb.Point{r.Float64()*360 - 180, r.Float64()*170 - 85}, zoom: 10})
			for z := r.Intn(6); z > 0; z-- {
				if r.Intn(2) == 0 {
					c.ZoomIn()
				} else {
					c.ZoomOut()
				}
			}

			quads := c.Quadrants()
			outer := c.Bound()

			union := quads[0].Bound
			area := 0.0
			for _, q := range quads {
				union = union.Union(q.Bound)
				area += (q.Bound.Max.Lon() - q.Bound.Min.Lon()) * (q.Bound.Max.Lat() - q.Bound.Min.Lat())
			}
			assert.InDelta(t, outer.Min.Lon(), union.Min.Lon(), 1e-9)
			assert.InDelta(t, outer.Min.Lat(), union.Min.Lat(), 1e-9)
			assert.InDelta(t, outer.Max.Lon(), union.Max.Lon(), 1e-9)
			assert.InDelta(t, outer.Max.Lat(), union.Max.Lat(), 1e-9)

			// total area equals the cursor area, so the pieces cannot overlap
			assert.InDelta(t, c.Width()*c.Height(), area, 1e-12)

			for a := 0; a < 4; a++ {
				for b := a + 1; b < 4; b++ {
					assert.InDelta(t, 0, overlapArea(quads[a].Bound, quads[b].Bound), 1e-15)
				}
			}
		})
	}
}

func overlapArea(a, b orb.Bound) float64 {
	w := minf(a.Max.Lon(), b.Max.Lon()) - maxf(a.Min.Lon(), b.Min.Lon())
	h := minf(a.Max.Lat(), b.Max.Lat()) - maxf(a.Min.Lat(), b.Min.Lat())
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
