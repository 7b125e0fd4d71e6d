package ui

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/asticode/go-astikit"
	tea "github.com/charmbracelet/bubbletea"
)

const previewPeriod = 100 * time.Millisecond

// Player is what the UI needs from *player.Player
type Player interface {
	Play(path string) error
	Playing() (path string, ok bool)
	StopPlayback()
}

// Snapshotter provides the presented frame, *rgba.Surface implements it
type Snapshotter interface {
	Snapshot() (*image.RGBA, bool)
}

// PlaybackStoppedMsg must be sent whenever the player goes back to idle on its own
type PlaybackStoppedMsg struct {
	Path string
}

type playedMsg struct {
	err  error
	path string
}

type previewMsg time.Time

type Model struct {
	cursor  int
	dir     string
	entries []entry
	err     error
	height  int
	l       astikit.CompleteLogger
	p       Player
	playing string
	preview []string
	s       Snapshotter
	width   int
}

type ModelOptions struct {
	Dir         string
	Logger      astikit.StdLogger
	Player      Player
	Snapshotter Snapshotter
}

func NewModel(o ModelOptions) Model {
	m := Model{
		l: astikit.AdaptStdLogger(o.Logger),
		p: o.Player,
		s: o.Snapshotter,
	}
	m.open(o.Dir)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case playedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil

		// Playback may have stopped already
		if path, ok := m.p.Playing(); !ok || path != msg.path {
			return m, nil
		}
		m.playing = msg.path
		m.preview = nil
		return m, m.tickPreview()
	case PlaybackStoppedMsg:
		if m.playing == msg.Path {
			m.playing = ""
			m.preview = nil
		}
	case previewMsg:
		if m.playing == "" {
			return m, nil
		}
		m.refreshPreview()
		return m, m.tickPreview()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Playing
	if m.playing != "" {
		switch msg.String() {
		case "esc":
			m.p.StopPlayback()
			m.playing = ""
			m.preview = nil
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	// Browsing
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "backspace":
		m.open(filepath.Dir(m.dir))
	case "enter":
		// No entry
		if m.cursor >= len(m.entries) {
			return m, nil
		}

		// Dir
		e := m.entries[m.cursor]
		if e.dir {
			m.open(filepath.Join(m.dir, e.name))
			return m, nil
		}

		// Media file
		return m, m.play(filepath.Join(m.dir, e.name))
	}
	return m, nil
}

func (m *Model) open(dir string) {
	// Make sure dir is absolute
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	// List
	es, err := listDir(dir)
	if err != nil {
		m.l.Warn(err)
		m.err = err
		return
	}

	// Update
	m.cursor = 0
	m.dir = dir
	m.entries = es
	m.err = nil
}

func (m Model) play(path string) tea.Cmd {
	return func() tea.Msg {
		if err := m.p.Play(path); err != nil {
			m.l.Warn(fmt.Errorf("ui: playing %s failed: %w", path, err))
			return playedMsg{err: err, path: path}
		}
		return playedMsg{path: path}
	}
}

func (m Model) tickPreview() tea.Cmd {
	return tea.Tick(previewPeriod, func(t time.Time) tea.Msg { return previewMsg(t) })
}

func (m *Model) refreshPreview() {
	// No snapshotter
	if m.s == nil {
		return
	}

	// Snapshot
	i, ok := m.s.Snapshot()
	if !ok {
		return
	}

	// Render, leaving room for the overlay
	cols, rows := m.width, m.height-4
	if cols <= 0 || rows <= 0 {
		cols, rows = 80, 20
	}
	m.preview = renderPreview(i, cols, rows)
}

func (m Model) View() string {
	var sb strings.Builder

	// Playing
	if m.playing != "" {
		sb.WriteString(fmt.Sprintf("Playing: %s\n\n", filepath.Base(m.playing)))
		for _, l := range m.preview {
			sb.WriteString(l + "\n")
		}
		sb.WriteString("\nESC: Stop and Close Video\n")
		return sb.String()
	}

	// Header
	sb.WriteString(m.dir + "\n\n")

	// Entries
	if len(m.entries) == 0 {
		sb.WriteString("  (empty)\n")
	}
	for idx, e := range m.entries {
		cursor := "  "
		if idx == m.cursor {
			cursor = "> "
		}
		sb.WriteString(cursor + e.String() + "\n")
	}

	// Error
	if m.err != nil {
		sb.WriteString("\nError: " + m.err.Error() + "\n")
	}

	// Help
	sb.WriteString("\n↑/↓: Move  Enter: Open  Backspace: Parent  q: Quit\n")
	return sb.String()
}
