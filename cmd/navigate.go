package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/1F47E/quadcursor/internal/config"
	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/host"
	"github.com/1F47E/quadcursor/pkg/keyboard"
	"github.com/1F47E/quadcursor/pkg/session"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

const (
	flushInterval = 50 * time.Millisecond
	keyQueueSize  = 64
)

var (
	navigateLon float64
	navigateLat float64
	navigateLog string
)

var navigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Move the cursor interactively",
	Long: `Interactive cursor. i/j/m/l pan north/west/south/east, = and - zoom.
Hold shift for a nudge, alt for a jump. q quits.`,
	RunE: runNavigate,
}

func init() {
	navigateCmd.Flags().Float64Var(&navigateLon, "lon", 0, "Start longitude (default: center of the data)")
	navigateCmd.Flags().Float64Var(&navigateLat, "lat", 0, "Start latitude (default: center of the data)")
	navigateCmd.Flags().StringVar(&navigateLog, "log", "", "Write logs to this file instead of discarding them")
}

type labelMsg struct{ label, title string }
type commandMsg string
type rectMsg cursor.PixelRect
type flushedMsg struct{}

// tuiPresenter forwards session output into the bubbletea loop. It is only
// ever called from command goroutines or timers, never from Update.
type tuiPresenter struct {
	program *tea.Program
}

func (p *tuiPresenter) SetLabel(label, title string)   { p.program.Send(labelMsg{label, title}) }
func (p *tuiPresenter) AnnounceCommand(text string)    { p.program.Send(commandMsg(text)) }
func (p *tuiPresenter) PlaceCursor(r cursor.PixelRect) { p.program.Send(rectMsg(r)) }

// keyQueue applies key presses on one goroutine, in arrival order
type keyQueue struct {
	ch   chan keyboard.KeyEvent
	done chan struct{}
}

func newKeyQueue(size int, handle func(keyboard.KeyEvent) bool) *keyQueue {
	q := &keyQueue{
		ch:   make(chan keyboard.KeyEvent, size),
		done: make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for ev := range q.ch {
			handle(ev)
		}
	}()
	return q
}

// Push enqueues ev without blocking. It returns false when the queue is full.
func (q *keyQueue) Push(ev keyboard.KeyEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Close waits for queued keys to be applied
func (q *keyQueue) Close() {
	close(q.ch)
	<-q.done
}

type navModel struct {
	session  *session.Session
	view     *host.SimView
	keys     *keyQueue
	limits   cursor.Options
	spinner  spinner.Model
	gauge    progress.Model
	label    string
	title    string
	commands []string
	rect     cursor.PixelRect
	width    int
}

func newNavModel(s *session.Session, view *host.SimView, keys *keyQueue, limits cursor.Options) navModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return navModel{
		session: s,
		view:    view,
		keys:    keys,
		limits:  limits,
		spinner: sp,
		gauge:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:   80,
	}
}

func (m navModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			m.session.Attach()
			return flushedMsg{}
		},
	)
}

// flush delivers queued host notifications off the update loop
func (m navModel) flush() tea.Cmd {
	return tea.Tick(flushInterval, func(time.Time) tea.Msg {
		m.view.Flush(m.session)
		return flushedMsg{}
	})
}

func (m navModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.gauge.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		if ev, ok := keyEvent(msg); ok {
			// the presenter sends back into this loop, so never block here
			m.keys.Push(ev)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case flushedMsg:
		return m, m.flush()

	case labelMsg:
		m.label, m.title = msg.label, msg.title
		return m, nil

	case commandMsg:
		m.commands = append(m.commands, string(msg))
		if len(m.commands) > 5 {
			m.commands = m.commands[1:]
		}
		return m, nil

	case rectMsg:
		m.rect = cursor.PixelRect(msg)
		return m, nil
	}

	return m, nil
}

func (m navModel) View() string {
	var b strings.Builder
	snap := m.session.Snapshot()

	b.WriteString(titleStyle.Render("quadcursor"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %.4f, %.4f", snap.Center.Lon, snap.Center.Lat)))
	b.WriteString("\n\n")

	label := m.label
	if label == "" {
		label = dimStyle.Render("(nothing here)")
	} else {
		label = labelStyle.Render(label)
	}
	if snap.State != session.Announced.String() {
		label = m.spinner.View() + " " + label
	}
	body := label
	if m.title != "" && m.title != m.label {
		body += "\n" + dimStyle.Render(m.title)
	}
	b.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(body))
	b.WriteString("\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("cursor %s wide, %.0fx%.0f px at %.0f,%.0f",
		keyboard.Distance(snap.Width, 1), m.rect.Width, m.rect.Height, m.rect.Left, m.rect.Top)))
	b.WriteString("\n")
	b.WriteString(m.gauge.ViewAs(widthFraction(snap.Width, m.limits)))
	b.WriteString("\n\n")

	for _, c := range m.commands {
		b.WriteString(commandStyle.Render("> " + c))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("i/j/m/l pan • =/- zoom • shift nudge • alt jump • q quit"))
	b.WriteString("\n")
	return b.String()
}

// keyEvent maps a terminal key to a navigation event. Upper case letters come
// from shift and nudge; alt jumps.
func keyEvent(msg tea.KeyMsg) (keyboard.KeyEvent, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return keyboard.KeyEvent{}, false
	}
	key := string(msg.Runes)
	ev := keyboard.KeyEvent{
		Key:   strings.ToLower(key),
		Nudge: key != strings.ToLower(key),
		Jump:  msg.Alt,
	}
	if keyboard.Lookup(ev.Key) == keyboard.None {
		return keyboard.KeyEvent{}, false
	}
	return ev, true
}

// widthFraction places width on a log scale between the cursor limits
func widthFraction(width float64, limits cursor.Options) float64 {
	lo, hi := math.Log(limits.MinWidth), math.Log(limits.MaxWidth)
	if hi <= lo || width <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, (math.Log(width)-lo)/(hi-lo)))
}

func runNavigate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if navigateLog != "" {
		f, err := os.OpenFile(navigateLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := logger.SetupWriter(logOut)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	src, err := openSource(ctx, sourceTarget, cfg)
	if err != nil {
		return err
	}
	defer src.close()

	lookup, closePOI, err := buildPOI(cfg)
	if err != nil {
		return err
	}
	defer closePOI()

	explicit := cmd.Flags().Changed("lon") || cmd.Flags().Changed("lat")
	center := startCenter(navigateLon, navigateLat, explicit, src.extent)

	return runTUI(cfg, src.provider, lookup, center, log)
}

func runTUI(cfg config.Config, provider session.FeatureProvider, lookup session.POILookup, center orb.Point, log *slog.Logger) error {
	opts := cfg.SessionOptions()
	opts.POI = lookup
	opts.Logger = log

	view := host.NewSimView(cfg.View.Width, cfg.View.Height, center, cfg.View.Zoom)
	presenter := &tuiPresenter{}
	s, err := session.New(view, provider, presenter, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	keys := newKeyQueue(keyQueueSize, s.HandleKey)
	program := tea.NewProgram(newNavModel(s, view, keys, cfg.Cursor), tea.WithAltScreen())
	presenter.program = program
	_, err = program.Run()
	keys.Close()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
