package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	statusPending  = "pending"
	statusFetching = "fetching"
	statusDone     = "done"
	statusFailed   = "failed"
)

// QueueItem represents an accepted candidate URL
type QueueItem struct {
	url    string
	status string
	score  float64
}

// FilterValue implements list.Item interface
func (i QueueItem) FilterValue() string { return i.url }

// Title returns the item's title
func (i QueueItem) Title() string { return i.url }

// Description returns the item's description
func (i QueueItem) Description() string {
	return fmt.Sprintf("Score: %.2f | Status: %s", i.score, i.status)
}

// QueueList lists accepted candidates and their fetch status
type QueueList struct {
	list     list.Model
	width    int
	height   int
	finished int
	index    map[string]int
}

// NewQueueList creates a new queue list
func NewQueueList() *QueueList {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("170"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("244"))

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Frontier"
	l.Styles.Title = l.Styles.Title.Foreground(lipgloss.Color("240"))
	l.SetFilteringEnabled(false)

	return &QueueList{list: l, index: make(map[string]int)}
}

// SetSize updates the list dimensions
func (q *QueueList) SetSize(width, height int) {
	q.width = width
	q.height = height
	q.list.SetSize(width, height)
}

// Update handles UI updates
func (q *QueueList) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	q.list, cmd = q.list.Update(msg)
	return cmd
}

// View renders the component
func (q *QueueList) View() string {
	return q.list.View()
}

// AddURL appends an accepted candidate
func (q *QueueList) AddURL(url string, score float64) {
	if _, ok := q.index[url]; ok {
		return
	}
	q.index[url] = len(q.list.Items())
	q.list.InsertItem(len(q.list.Items()), QueueItem{url: url, status: statusPending, score: score})
	q.updateTitle()
}

// MarkURL sets the status of a listed URL. Unknown URLs, such as the seed,
// are ignored.
func (q *QueueList) MarkURL(url, status string) {
	i, ok := q.index[url]
	if !ok {
		return
	}
	item, ok := q.list.Items()[i].(QueueItem)
	if !ok {
		return
	}
	if status == statusDone || status == statusFailed {
		q.finished++
	}
	item.status = status
	q.list.SetItem(i, item)
	q.updateTitle()
}

// Pending returns how many listed URLs have not finished
func (q *QueueList) Pending() int {
	return len(q.index) - q.finished
}

func (q *QueueList) updateTitle() {
	q.list.Title = fmt.Sprintf("Frontier (%d pending)", q.Pending())
}
