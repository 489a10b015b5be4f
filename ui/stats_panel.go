package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	crawlprogress "github.com/go-scripts/sectioncrawl/internal/progress"
)

// StatsPanel displays crawl counters and budget usage
type StatsPanel struct {
	state      string
	fetched    int
	failed     int
	rejected   int
	frontier   int
	budget     int
	startTime  time.Time
	recent     []string
	bar        progress.Model
	width      int
	height     int
	style      lipgloss.Style
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
}

func NewStatsPanel() *StatsPanel {
	return &StatsPanel{
		recent: make([]string, 0, 5),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		style: borderStyle.
			BorderForeground(lipgloss.Color("99")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
	}
}

func (s *StatsPanel) Init() tea.Cmd {
	return nil
}

func (s *StatsPanel) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.bar.Width = max(width-8, 10)
}

func (s *StatsPanel) Update(msg tea.Msg) tea.Cmd {
	return nil
}

// Observe folds an event's counter snapshot into the panel.
func (s *StatsPanel) Observe(e crawlprogress.Event) {
	if s.startTime.IsZero() {
		s.startTime = e.Time
	}
	if e.State != "" {
		s.state = e.State
	}
	s.fetched = e.Fetched
	s.failed = e.Failed
	s.rejected = e.Rejected
	s.frontier = e.Frontier
	s.budget = e.Budget

	if e.Kind == crawlprogress.EventPageFetched || e.Kind == crawlprogress.EventPageFailed {
		s.recent = append(s.recent, e.URL)
		if len(s.recent) > 5 {
			s.recent = s.recent[1:]
		}
	}
}

// Fraction returns the share of the page budget consumed.
func (s *StatsPanel) Fraction() float64 {
	if s.budget <= 0 {
		return 0
	}
	return min(float64(s.fetched+s.failed)/float64(s.budget), 1)
}

func (s *StatsPanel) View() string {
	used := s.fetched + s.failed

	pagesPerSecond := 0.0
	if !s.startTime.IsZero() {
		if elapsed := time.Since(s.startTime).Seconds(); elapsed > 0 {
			pagesPerSecond = float64(used) / elapsed
		}
	}

	stats := []struct {
		label string
		value string
	}{
		{"State", s.state},
		{"Budget", fmt.Sprintf("%d/%d pages", used, s.budget)},
		{"Fetched", fmt.Sprintf("%d", s.fetched)},
		{"Failed", fmt.Sprintf("%d", s.failed)},
		{"Rejected", fmt.Sprintf("%d links", s.rejected)},
		{"Frontier", fmt.Sprintf("%d URLs", s.frontier)},
		{"Pages/Second", fmt.Sprintf("%.2f", pagesPerSecond)},
		{"Elapsed Time", s.formatElapsedTime()},
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("Crawl Statistics") + "\n\n")
	content.WriteString(s.bar.ViewAs(s.Fraction()) + "\n\n")

	columnWidth := (s.width - 8) / 2
	for _, stat := range stats {
		content.WriteString(fmt.Sprintf("%-*s %s\n",
			columnWidth,
			s.labelStyle.Render(stat.label+":"),
			s.valueStyle.Render(stat.value),
		))
	}

	if len(s.recent) > 0 {
		content.WriteString("\nRecent URLs:\n")
		for _, url := range s.recent {
			content.WriteString(infoStyle.Render("• "+url) + "\n")
		}
	}

	return s.style.Width(s.width).Height(s.height).Render(content.String())
}

func (s *StatsPanel) formatElapsedTime() string {
	if s.startTime.IsZero() {
		return "00:00:00"
	}
	elapsed := time.Since(s.startTime)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(elapsed.Hours()),
		int(elapsed.Minutes())%60,
		int(elapsed.Seconds())%60,
	)
}
