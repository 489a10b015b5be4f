// Package export writes a crawl result as flat ranking records, in JSON with
// a summary header or in CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Record is one ranked page for one subsection.
type Record struct {
	Section    string    `json:"section"`
	Subsection string    `json:"subsection"`
	Rank       int       `json:"rank"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Language   string    `json:"language,omitempty"`
	Score      float64   `json:"score"`
	Mode       string    `json:"mode"`
	Rationale  string    `json:"rationale,omitempty"`
	Matches    []string  `json:"matches,omitempty"`
	Strategy   string    `json:"strategy"`
	Screenshot string    `json:"screenshot,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Summary describes the crawl as a whole.
type Summary struct {
	ID          string           `json:"id"`
	Seed        string           `json:"seed"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Subsections []string         `json:"subsections"`
	Stats       types.CrawlStats `json:"stats"`
}

// Document is the JSON output.
type Document struct {
	Summary Summary  `json:"summary"`
	Records []Record `json:"records"`
}

var csvHeader = []string{
	"section", "subsection", "rank", "url", "title", "language", "score", "mode",
	"rationale", "matches", "strategy", "screenshot", "fetched_at",
}

// Records flattens the rankings in catalog order. cat resolves subsection
// IDs to section and subsection names; without it the ID is split on its
// first slash.
func Records(result *types.CrawlResult, cat *catalog.Catalog) []Record {
	records := make([]Record, 0)
	for _, id := range result.Subsections {
		section, name := splitID(id, cat)
		for _, rp := range result.Rankings[id] {
			records = append(records, Record{
				Section:    section,
				Subsection: name,
				Rank:       rp.Rank,
				URL:        rp.Page.URL,
				Title:      rp.Page.Title,
				Language:   rp.Page.Language,
				Score:      rp.Score.Score,
				Mode:       string(rp.Score.Mode),
				Rationale:  rp.Score.Rationale,
				Matches:    rp.Score.Matches,
				Strategy:   string(rp.Page.Strategy),
				Screenshot: rp.Page.ScreenshotRef,
				FetchedAt:  rp.Page.FetchedAt,
			})
		}
	}
	return records
}

func splitID(id string, cat *catalog.Catalog) (string, string) {
	if cat != nil {
		if sub, ok := cat.Lookup(id); ok {
			return sub.Section, sub.Name
		}
	}
	section, name, _ := strings.Cut(id, "/")
	return section, name
}

// Write encodes result to out.
func Write(out io.Writer, format Format, result *types.CrawlResult, cat *catalog.Catalog) error {
	records := Records(result, cat)

	switch format {
	case FormatJSON:
		doc := Document{
			Summary: Summary{
				ID:          result.ID,
				Seed:        result.Seed,
				StartedAt:   result.StartedAt,
				FinishedAt:  result.FinishedAt,
				Subsections: result.Subsections,
				Stats:       result.Stats,
			},
			Records: records,
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		return nil

	case FormatCSV:
		w := csv.NewWriter(out)
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, r := range records {
			row := []string{
				r.Section,
				r.Subsection,
				strconv.Itoa(r.Rank),
				r.URL,
				r.Title,
				r.Language,
				strconv.FormatFloat(r.Score, 'f', 4, 64),
				r.Mode,
				r.Rationale,
				strings.Join(r.Matches, "; "),
				r.Strategy,
				r.Screenshot,
				r.FetchedAt.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
		w.Flush()
		return w.Error()

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile writes result to path, creating its directory.
func WriteFile(path string, format Format, result *types.CrawlResult, cat *catalog.Catalog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := Write(file, format, result, cat); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
