package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PageRow is one finished fetch
type PageRow struct {
	URL   string
	Error string
}

// ResultsTable lists finished fetches in completion order
type ResultsTable struct {
	viewport    viewport.Model
	results     []PageRow
	width       int
	height      int
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	style       lipgloss.Style
}

// NewResultsTable creates a new results table
func NewResultsTable() *ResultsTable {
	t := &ResultsTable{
		results: make([]PageRow, 0),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		cellStyle: lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingRight(1),
		style: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("35")),
	}
	t.viewport = viewport.New(0, 0)
	return t
}

// SetSize updates the table dimensions
func (t *ResultsTable) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.viewport.Width = width - 4
	t.viewport.Height = height - 4
}

// Update handles UI updates
func (t *ResultsTable) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return cmd
}

// View renders the table
func (t *ResultsTable) View() string {
	if len(t.results) == 0 {
		return t.style.Render(infoStyle.Render("No pages fetched yet"))
	}

	urlWidth := max(min(60, t.width/2), 10)
	header := t.headerStyle.Render(fmt.Sprintf("%-*s %-8s %s", urlWidth, "URL", "Status", "Error"))

	var rows []string
	for _, result := range t.results {
		status := "ok"
		if result.Error != "" {
			status = "failed"
		}
		row := t.cellStyle.Render(fmt.Sprintf(
			"%-*s %-8s %s",
			urlWidth, truncate(result.URL, urlWidth),
			status,
			result.Error,
		))
		if result.Error != "" {
			row = errorStyle.Render(row)
		}
		rows = append(rows, row)
	}

	t.viewport.SetContent(header + "\n" + strings.Join(rows, "\n"))

	stats := fmt.Sprintf(
		"\nTotal Pages: %d | Success: %d | Errors: %d",
		len(t.results),
		len(t.results)-t.errorCount(),
		t.errorCount(),
	)

	return t.style.Width(t.width).Render(
		t.viewport.View() + "\n" + infoStyle.Render(stats),
	)
}

// AddResult adds a finished fetch
func (t *ResultsTable) AddResult(result PageRow) {
	t.results = append(t.results, result)
	if t.viewport.AtBottom() {
		t.viewport.GotoBottom()
	}
}

func truncate(s string, w int) string {
	if len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-3] + "..."
}

func (t *ResultsTable) errorCount() int {
	count := 0
	for _, r := range t.results {
		if r.Error != "" {
			count++
		}
	}
	return count
}
