package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/sectioncrawl/internal/progress"
)

// LogLevel represents the severity of a log entry
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarning
	LevelError
)

// LogEntry represents a single log message
type LogEntry struct {
	timestamp time.Time
	level     LogLevel
	message   string
}

// EventConsole lists state changes, rejections and fetch failures
type EventConsole struct {
	viewport  viewport.Model
	entries   []LogEntry
	width     int
	height    int
	style     lipgloss.Style
	showLevel LogLevel // Filter to show only messages >= this level
}

// Styles for different log levels
var (
	errorLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	infoLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

// NewEventConsole creates a new event console
func NewEventConsole() *EventConsole {
	e := &EventConsole{
		entries:   make([]LogEntry, 0),
		style:     borderStyle.BorderForeground(lipgloss.Color("196")),
		showLevel: LevelInfo,
	}
	e.viewport = viewport.New(0, 0)
	return e
}

// SetSize updates the console dimensions
func (e *EventConsole) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.viewport.Width = width - 4
	e.viewport.Height = height - 4
}

// AddEntry adds a new log entry
func (e *EventConsole) AddEntry(level LogLevel, msg string) {
	e.addEntryAt(time.Now(), level, msg)
}

func (e *EventConsole) addEntryAt(ts time.Time, level LogLevel, msg string) {
	e.entries = append(e.entries, LogEntry{timestamp: ts, level: level, message: msg})
	e.updateContent()
}

// Observe records the events worth reading later. Dispatches and accepted
// candidates are shown by other panels.
func (e *EventConsole) Observe(ev progress.Event) {
	switch ev.Kind {
	case progress.EventStateChanged:
		level := LevelInfo
		if ev.State == "FAILED" {
			level = LevelError
		} else if ev.State == "CANCELLED" {
			level = LevelWarning
		}
		e.addEntryAt(ev.Time, level, "State "+ev.State)
	case progress.EventPageFailed:
		e.addEntryAt(ev.Time, LevelError, fmt.Sprintf("%s: %s", ev.URL, ev.Reason))
	case progress.EventCandidateRejected:
		e.addEntryAt(ev.Time, LevelWarning, fmt.Sprintf("Rejected %s (%s)", ev.URL, ev.Reason))
	}
}

// Update handles UI updates
func (e *EventConsole) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "pgup":
			e.viewport.HalfViewUp()
		case "pgdown":
			e.viewport.HalfViewDown()
		case "1":
			e.showLevel = LevelInfo
			e.updateContent()
		case "2":
			e.showLevel = LevelWarning
			e.updateContent()
		case "3":
			e.showLevel = LevelError
			e.updateContent()
		}
	}

	var cmd tea.Cmd
	e.viewport, cmd = e.viewport.Update(msg)
	return cmd
}

// View renders the console
func (e *EventConsole) View() string {
	filterInfo := fmt.Sprintf(
		"\nFilter: %s (1:Info 2:Warn 3:Error)",
		e.levelString(e.showLevel),
	)

	stats := fmt.Sprintf(
		"Total: %d | Errors: %d | Warnings: %d",
		len(e.entries),
		e.countByLevel(LevelError),
		e.countByLevel(LevelWarning),
	)

	return e.style.Width(e.width).Render(
		e.viewport.View() +
			infoStyle.Render(filterInfo) + "\n" +
			infoStyle.Render(stats),
	)
}

// updateContent updates the viewport content
func (e *EventConsole) updateContent() {
	atBottom := e.viewport.AtBottom()

	var sb strings.Builder
	for _, entry := range e.entries {
		if entry.level < e.showLevel {
			continue
		}

		var logStyle lipgloss.Style
		switch entry.level {
		case LevelError:
			logStyle = errorLogStyle
		case LevelWarning:
			logStyle = warningLogStyle
		default:
			logStyle = infoLogStyle
		}

		sb.WriteString(fmt.Sprintf(
			"%s [%s] %s\n",
			timestampStyle.Render(entry.timestamp.Format("15:04:05")),
			logStyle.Render(e.levelString(entry.level)),
			entry.message,
		))
	}

	e.viewport.SetContent(sb.String())
	if atBottom {
		e.viewport.GotoBottom()
	}
}

func (e *EventConsole) levelString(level LogLevel) string {
	switch level {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARN"
	default:
		return "INFO"
	}
}

func (e *EventConsole) countByLevel(level LogLevel) int {
	count := 0
	for _, entry := range e.entries {
		if entry.level == level {
			count++
		}
	}
	return count
}
