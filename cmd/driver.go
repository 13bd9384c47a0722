package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/1F47E/quadcursor/internal/config"
	"github.com/1F47E/quadcursor/pkg/host"
	"github.com/1F47E/quadcursor/pkg/keyboard"
	"github.com/1F47E/quadcursor/pkg/scheduler"
	"github.com/1F47E/quadcursor/pkg/session"
	"github.com/paulmach/orb"
)

const (
	settleStep     = 50 * time.Millisecond
	maxSettleSteps = 1000
)

// driver runs a session headless on a simulated view and a manual clock, so
// a whole navigation resolves without wall-clock waits.
type driver struct {
	view    *host.SimView
	clock   *scheduler.Manual
	out     *session.Recorder
	session *session.Session
}

func newDriver(cfg config.Config, provider session.FeatureProvider, poi session.POILookup, center orb.Point, log *slog.Logger) (*driver, error) {
	opts := cfg.SessionOptions()
	clock := scheduler.NewManual()
	opts.Scheduler = clock
	opts.POI = poi
	opts.Logger = log

	view := host.NewSimView(cfg.View.Width, cfg.View.Height, center, cfg.View.Zoom)
	out := &session.Recorder{}
	s, err := session.New(view, provider, out, opts)
	if err != nil {
		return nil, err
	}
	return &driver{view: view, clock: clock, out: out, session: s}, nil
}

// settle delivers host notifications and advances the clock until nothing is
// left to run, then waits for background lookups.
func (d *driver) settle() error {
	for i := 0; i < maxSettleSteps; i++ {
		d.view.Flush(d.session)
		if d.clock.Pending() == 0 && d.view.Pending() == 0 {
			d.session.Wait()
			return nil
		}
		d.clock.Advance(settleStep)
	}
	return fmt.Errorf("session did not settle after %s", time.Duration(maxSettleSteps)*settleStep)
}

// start attaches the session and settles the first label
func (d *driver) start() error {
	d.session.Attach()
	return d.settle()
}

// press handles one key and settles whatever it triggers
func (d *driver) press(ev keyboard.KeyEvent) error {
	if !d.session.HandleKey(ev) {
		return fmt.Errorf("unbound key %q", ev.Key)
	}
	return d.settle()
}

func (d *driver) close() {
	d.session.Close()
}

// parseKeys reads a comma separated key script. A leading ^ marks a nudge and
// a leading ! a jump: "i,^l,!-" is north, nudge east, jump zoom out.
func parseKeys(script string) ([]keyboard.KeyEvent, error) {
	var events []keyboard.KeyEvent
	for _, tok := range strings.Split(script, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		ev := keyboard.KeyEvent{}
		switch tok[0] {
		case '^':
			ev.Nudge = true
			tok = tok[1:]
		case '!':
			ev.Jump = true
			tok = tok[1:]
		}
		if keyboard.Lookup(tok) == keyboard.None {
			return nil, fmt.Errorf("unknown key %q", tok)
		}
		ev.Key = tok
		events = append(events, ev)
	}
	return events, nil
}
