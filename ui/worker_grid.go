package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/sectioncrawl/internal/progress"
)

// WorkerSpinner represents a single worker's spinner
type WorkerSpinner struct {
	spinner spinner.Model
	active  bool
	url     string
}

// WorkerGrid shows one spinner per fetch worker
type WorkerGrid struct {
	workers    []WorkerSpinner
	maxWorkers int
	columns    int
	style      lipgloss.Style
	width      int
	height     int
}

var (
	idleSpinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	activeSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Initialize a new worker grid
func NewWorkerGrid(maxWorkers int) *WorkerGrid {
	grid := &WorkerGrid{
		maxWorkers: maxWorkers,
		columns:    4,
		style:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()),
		workers:    make([]WorkerSpinner, maxWorkers),
	}

	for i := range grid.workers {
		s := spinner.New()
		s.Spinner = spinner.Dot
		s.Style = idleSpinnerStyle
		grid.workers[i] = WorkerSpinner{spinner: s}
	}

	return grid
}

// Init starts every spinner. Each spinner only reacts to its own ticks.
func (g *WorkerGrid) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(g.workers))
	for i := range g.workers {
		cmds = append(cmds, g.workers[i].spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// ActivateWorker marks a worker busy with url
func (g *WorkerGrid) ActivateWorker(id int, url string) {
	if id < 0 || id >= g.maxWorkers {
		return
	}
	g.workers[id].active = true
	g.workers[id].url = url
	g.workers[id].spinner.Style = activeSpinnerStyle
}

// DeactivateWorker marks a worker idle
func (g *WorkerGrid) DeactivateWorker(id int) {
	if id < 0 || id >= g.maxWorkers {
		return
	}
	g.workers[id].active = false
	g.workers[id].url = ""
	g.workers[id].spinner.Style = idleSpinnerStyle
}

// Update advances the spinner animations
func (g *WorkerGrid) Update(msg tea.Msg) tea.Cmd {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return nil
	}

	var cmds []tea.Cmd
	for i := range g.workers {
		var cmd tea.Cmd
		g.workers[i].spinner, cmd = g.workers[i].spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// View renders the worker grid
func (g *WorkerGrid) View() string {
	workerWidth := 10
	rows := (g.maxWorkers + g.columns - 1) / g.columns

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Workers (%d/%d active)\n\n", g.ActiveCount(), g.maxWorkers))

	for row := 0; row < rows; row++ {
		var cells []string
		for col := 0; col < g.columns; col++ {
			idx := row*g.columns + col
			if idx >= g.maxWorkers {
				break
			}

			worker := g.workers[idx]
			var cell string
			if worker.active {
				cell = fmt.Sprintf("%d:%s", idx+1, worker.spinner.View())
			} else {
				cell = fmt.Sprintf("%d:○", idx+1)
			}
			cells = append(cells, lipgloss.NewStyle().Width(workerWidth).Align(lipgloss.Center).Render(cell))
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, cells...))
		sb.WriteString("\n")
	}

	for idx, worker := range g.workers {
		if worker.active {
			sb.WriteString(fmt.Sprintf("\n%d: %s", idx+1, progress.FormatURL(worker.url, max(g.width-6, 20))))
		}
	}

	return g.style.Width(g.width).Render(sb.String())
}

// ActiveCount returns the number of active workers
func (g *WorkerGrid) ActiveCount() int {
	count := 0
	for _, w := range g.workers {
		if w.active {
			count++
		}
	}
	return count
}

// SetSize updates the grid dimensions
func (g *WorkerGrid) SetSize(width, height int) {
	g.width = width
	g.height = height
	cols := (width - 4) / 12
	if cols >= 2 {
		g.columns = cols
	}
}
