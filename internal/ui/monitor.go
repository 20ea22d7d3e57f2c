package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultMaxEvents is how many key presses the monitor keeps on screen
const DefaultMaxEvents = 10

// KeyMsg reports a media key press to the monitor
type KeyMsg struct {
	Key mediakey.Type
	At  time.Time
}

// SourceMsg tells the monitor where events come from
type SourceMsg struct {
	Source  string // "daemon" or "in-process"
	Backend string
	Grabbed bool
}

// ErrorMsg shows a fatal error and quits
type ErrorMsg struct {
	Err error
}

// EventEntry is one line of the event list
type EventEntry struct {
	Key mediakey.Type
	At  time.Time
}

// MonitorModel is the inline view of `popkeys listen`
type MonitorModel struct {
	spinner   spinner.Model
	source    SourceMsg
	events    []EventEntry
	counts    map[mediakey.Type]int
	maxEvents int
	err       error
	quitting  bool
}

// NewMonitorModel creates a monitor that keeps the last maxEvents presses
func NewMonitorModel(maxEvents int) *MonitorModel {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &MonitorModel{
		spinner:   s,
		counts:    make(map[mediakey.Type]int),
		maxEvents: maxEvents,
	}
}

// Init starts the spinner
func (m *MonitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the monitor
func (m *MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "c":
			m.events = nil
			m.counts = make(map[mediakey.Type]int)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SourceMsg:
		m.source = msg

	case KeyMsg:
		m.AddEvent(msg.Key, msg.At)

	case ErrorMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// AddEvent records a key press, dropping the oldest beyond maxEvents
func (m *MonitorModel) AddEvent(key mediakey.Type, at time.Time) {
	m.events = append(m.events, EventEntry{Key: key, At: at})
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
	m.counts[key]++
}

// Events returns the events on screen, oldest first
func (m *MonitorModel) Events() []EventEntry {
	return m.events
}

// Count returns how many times key was pressed since start
func (m *MonitorModel) Count(key mediakey.Type) int {
	return m.counts[key]
}

// Err returns the error that ended the monitor, if any
func (m *MonitorModel) Err() error {
	return m.err
}

// View renders the status bar and the event list
func (m *MonitorModel) View() string {
	if m.err != nil {
		return FormatError(m.err.Error()) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")

	if len(m.events) == 0 {
		b.WriteString(m.spinner.View() + " " + SubtleStyle.Render("Press a media key..."))
		b.WriteString("\n")
	} else {
		for _, ev := range m.events {
			b.WriteString(formatEvent(ev))
			b.WriteString("\n")
		}
	}

	if m.quitting {
		return b.String()
	}

	b.WriteString(SubtleStyle.Render("[c] clear • [q] quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *MonitorModel) renderStatusBar() string {
	var parts []string

	nameStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorSecondary)
	parts = append(parts, nameStyle.Render("POPKEYS"))

	if m.source.Source == "" {
		parts = append(parts, SubtleStyle.Render("starting"))
	} else {
		parts = append(parts, FormatStatus(m.source.Grabbed, m.source.Backend))
		parts = append(parts, SubtleStyle.Render("via "+m.source.Source))
	}

	parts = append(parts, SubtleStyle.Render(fmt.Sprintf("%d events", m.total())))

	separator := lipgloss.NewStyle().Foreground(ColorMuted).Render(" │ ")
	return strings.Join(parts, separator)
}

func (m *MonitorModel) total() int {
	n := 0
	for _, c := range m.counts {
		n += c
	}
	return n
}

func formatEvent(ev EventEntry) string {
	return fmt.Sprintf("%s %s %s",
		TimeStyle.Render(ev.At.Format("15:04:05.000")),
		KeyIcon(ev.Key),
		KeyLabelStyle.Render(ev.Key.String()))
}
