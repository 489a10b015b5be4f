// Package ui renders a live terminal dashboard of a crawl from its progress
// events, and the final ranking summary.
package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/sectioncrawl/internal/progress"
)

// Base component interface
type Component interface {
	Init() tea.Cmd
	Update(tea.Msg) (Component, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// Define common styles
var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			PaddingLeft(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// EventMsg delivers one crawl event to the program.
type EventMsg progress.Event

// streamClosedMsg reports that no more events will arrive.
type streamClosedMsg struct{}

// WaitForEvent reads the next event from ch.
func WaitForEvent(ch <-chan progress.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg(e)
	}
}

// Individual panel components
type WorkerPanel struct {
	viewport viewport.Model
	style    lipgloss.Style
	title    string
	width    int
	height   int
	grid     *WorkerGrid
}

func NewWorkerPanel(workers int) *WorkerPanel {
	w := &WorkerPanel{
		title: "Workers",
		style: borderStyle.BorderForeground(lipgloss.Color("63")),
		grid:  NewWorkerGrid(workers),
	}
	w.viewport = viewport.New(0, 0)
	return w
}

func (w *WorkerPanel) Init() tea.Cmd {
	return w.grid.Init()
}

func (w *WorkerPanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	var cmd tea.Cmd
	w.viewport, cmd = w.viewport.Update(msg)
	gridCmd := w.grid.Update(msg)
	return w, tea.Batch(cmd, gridCmd)
}

func (w *WorkerPanel) View() string {
	content := titleStyle.Render(w.title) + "\n\n"
	content += w.grid.View()

	w.viewport.SetContent(content)
	return w.style.Width(w.width).Height(w.height).Render(w.viewport.View())
}

func (w *WorkerPanel) SetSize(width, height int) {
	w.width = width
	w.height = height
	w.viewport.Width = width - 4
	w.viewport.Height = height - 4
	w.grid.SetSize(width-4, height-6)
}

type QueuePanel struct {
	style  lipgloss.Style
	width  int
	height int
	queue  *QueueList
}

func NewQueuePanel() *QueuePanel {
	return &QueuePanel{
		style: borderStyle.BorderForeground(lipgloss.Color("99")),
		queue: NewQueueList(),
	}
}

func (q *QueuePanel) Init() tea.Cmd {
	return nil
}

func (q *QueuePanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			q.queue.list.CursorUp()
			return q, nil
		case "down", "j":
			q.queue.list.CursorDown()
			return q, nil
		}
	}
	return q, q.queue.Update(msg)
}

func (q *QueuePanel) View() string {
	return q.style.Width(q.width).Height(q.height).Render(q.queue.View())
}

func (q *QueuePanel) SetSize(width, height int) {
	q.width = width
	q.height = height
	q.queue.SetSize(width-4, height-4)
}

type ResultsPanel struct {
	style  lipgloss.Style
	width  int
	height int
	table  *ResultsTable
}

func NewResultsPanel() *ResultsPanel {
	return &ResultsPanel{
		style: borderStyle.BorderForeground(lipgloss.Color("35")),
		table: NewResultsTable(),
	}
}

func (r *ResultsPanel) Init() tea.Cmd {
	return nil
}

func (r *ResultsPanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	return r, r.table.Update(msg)
}

func (r *ResultsPanel) View() string {
	return r.style.Width(r.width).Height(r.height).Render(r.table.View())
}

func (r *ResultsPanel) SetSize(width, height int) {
	r.width = width
	r.height = height
	r.table.SetSize(width-4, height-4)
}

type ConsolePanel struct {
	style   lipgloss.Style
	width   int
	height  int
	console *EventConsole
}

func NewConsolePanel() *ConsolePanel {
	return &ConsolePanel{
		style:   borderStyle.BorderForeground(lipgloss.Color("196")),
		console: NewEventConsole(),
	}
}

func (c *ConsolePanel) Init() tea.Cmd {
	return nil
}

func (c *ConsolePanel) Update(msg tea.Msg) (Component, tea.Cmd) {
	return c, c.console.Update(msg)
}

func (c *ConsolePanel) View() string {
	return c.style.Width(c.width).Height(c.height).Render(c.console.View())
}

func (c *ConsolePanel) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.console.SetSize(width-4, height-4)
}

// Layout is the dashboard model. It consumes crawl events and quits on q.
type Layout struct {
	events   <-chan progress.Event
	workers  *WorkerPanel
	queue    *QueuePanel
	results  *ResultsPanel
	console  *ConsolePanel
	stats    *StatsPanel
	width    int
	height   int
	finished bool
}

// NewLayout builds the dashboard for a crawl with the given worker count.
func NewLayout(events <-chan progress.Event, workers int) *Layout {
	return &Layout{
		events:  events,
		workers: NewWorkerPanel(workers),
		queue:   NewQueuePanel(),
		results: NewResultsPanel(),
		console: NewConsolePanel(),
		stats:   NewStatsPanel(),
	}
}

// SetSize adjusts the layout and all components to the given dimensions
func (l *Layout) SetSize(width, height int) {
	l.width = width
	l.height = height

	halfWidth := width / 2
	halfHeight := height / 2

	// Workers and stats share the left side
	workerHeight := int(float64(halfHeight) * 0.4)
	statsHeight := halfHeight - workerHeight

	l.workers.SetSize(halfWidth, workerHeight)
	l.stats.SetSize(halfWidth, statsHeight)
	l.queue.SetSize(width-halfWidth, halfHeight)
	l.results.SetSize(width, height/4)
	l.console.SetSize(width, height-halfHeight-height/4)
}

func (l *Layout) Init() tea.Cmd {
	return tea.Batch(
		WaitForEvent(l.events),
		l.workers.Init(),
		l.stats.Init(),
	)
}

func (l *Layout) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		l.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return l, tea.Quit
		}
	case EventMsg:
		l.apply(progress.Event(msg))
		cmds = append(cmds, WaitForEvent(l.events))
	case streamClosedMsg:
		l.finished = true
		l.console.console.AddEntry(LevelInfo, "Crawl finished. Press q to see the summary.")
	}

	var cmd tea.Cmd
	_, cmd = l.workers.Update(msg)
	cmds = append(cmds, cmd)
	_, cmd = l.queue.Update(msg)
	cmds = append(cmds, cmd)
	_, cmd = l.results.Update(msg)
	cmds = append(cmds, cmd)
	_, cmd = l.console.Update(msg)
	cmds = append(cmds, cmd)
	cmds = append(cmds, l.stats.Update(msg))

	return l, tea.Batch(cmds...)
}

// apply routes an event to the panels it concerns.
func (l *Layout) apply(e progress.Event) {
	l.stats.Observe(e)
	l.console.console.Observe(e)

	switch e.Kind {
	case progress.EventPageDispatched:
		l.workers.grid.ActivateWorker(e.Worker, e.URL)
		l.queue.queue.MarkURL(e.URL, statusFetching)
	case progress.EventPageFetched:
		l.workers.grid.DeactivateWorker(e.Worker)
		l.queue.queue.MarkURL(e.URL, statusDone)
		l.results.table.AddResult(PageRow{URL: e.URL})
	case progress.EventPageFailed:
		l.workers.grid.DeactivateWorker(e.Worker)
		l.queue.queue.MarkURL(e.URL, statusFailed)
		l.results.table.AddResult(PageRow{URL: e.URL, Error: e.Reason})
	case progress.EventCandidateAccepted:
		l.queue.queue.AddURL(e.URL, e.Score)
	}
}

// View renders the complete layout
func (l *Layout) View() string {
	leftSide := lipgloss.JoinVertical(
		lipgloss.Left,
		l.workers.View(),
		l.stats.View(),
	)

	topRow := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftSide,
		l.queue.View(),
	)

	view := lipgloss.JoinVertical(
		lipgloss.Left,
		topRow,
		l.results.View(),
		l.console.View(),
	)
	if l.finished {
		view += "\n" + infoStyle.Render(fmt.Sprintf("Done: %d pages fetched. Press q to exit.", l.stats.fetched))
	}
	return view
}

// Finished reports whether the event stream has closed.
func (l *Layout) Finished() bool {
	return l.finished
}
