package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/go-scripts/sectioncrawl/internal/types"
)

var summaryCellStyle = lipgloss.NewStyle().Padding(0, 1)

// RenderSummary formats the crawl statistics and one ranking table per
// subsection, in catalog order.
func RenderSummary(result *types.CrawlResult) string {
	var sb strings.Builder

	state := infoStyle
	switch result.Stats.FinalState {
	case "FAILED":
		state = errorStyle
	case "CANCELLED":
		state = warningStyle
	}

	sb.WriteString(titleStyle.Render("Crawl "+result.ID) + "\n")
	sb.WriteString(fmt.Sprintf("Seed: %s\n", result.Seed))
	sb.WriteString(fmt.Sprintf("State: %s (%s)\n",
		state.Render(result.Stats.FinalState), result.Stats.Termination))
	sb.WriteString(fmt.Sprintf("Pages: %d fetched, %d failed, %d rejected, %d unfetched\n",
		result.Stats.PagesFetched, result.Stats.PagesFailed,
		result.Stats.PagesRejected, result.Stats.Unfetched))
	if !result.FinishedAt.IsZero() && !result.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)))
	}

	for _, id := range result.Subsections {
		sb.WriteString("\n" + titleStyle.Render(id) + "\n")
		ranked := result.Rankings[id]
		if len(ranked) == 0 {
			sb.WriteString(warningStyle.Render("  no relevant pages") + "\n")
			continue
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("63"))).
			StyleFunc(func(row, col int) lipgloss.Style { return summaryCellStyle }).
			Headers("#", "Score", "Mode", "URL", "Title")
		for _, rp := range ranked {
			t.Row(
				fmt.Sprintf("%d", rp.Rank),
				fmt.Sprintf("%.2f", rp.Score.Score),
				string(rp.Score.Mode),
				truncate(rp.Page.URL, 60),
				truncate(rp.Page.Title, 40),
			)
		}
		sb.WriteString(t.String() + "\n")
	}

	return sb.String()
}
