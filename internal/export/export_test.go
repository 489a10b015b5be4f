package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

func sampleResult() *types.CrawlResult {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	page := types.FetchedPage{
		URL:       "https://uni.edu/apply",
		Title:     "Apply",
		Language:  "en",
		Strategy:  types.StrategyRendering,
		Outcome:   types.OutcomeSuccess,
		FetchedAt: fetched,
	}
	return &types.CrawlResult{
		ID:          "crawl-1",
		Seed:        "https://uni.edu/",
		Subsections: []string{"Admissions/Deadlines", "Finance/Tuition"},
		Rankings: map[string][]types.RankedPage{
			"Admissions/Deadlines": {{
				Rank: 1,
				Page: page,
				Score: types.RelevanceScore{
					SubsectionID: "Admissions/Deadlines",
					Score:        0.8125,
					Mode:         types.ModeKeyword,
					Rationale:    "matched 2 of 3 keywords",
					Matches:      []string{"admission", "deadlines"},
				},
			}},
			"Finance/Tuition": {},
		},
		Stats: types.CrawlStats{PagesFetched: 1, Termination: types.TerminationFrontierExhausted, FinalState: "DONE"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestRecords(t *testing.T) {
	cat := &catalog.Catalog{Sections: []*catalog.Section{{
		Name:        "Admissions",
		Subsections: []*catalog.Subsection{{Section: "Admissions", Name: "Deadlines"}},
	}}}

	records := Records(sampleResult(), cat)
	require.Len(t, records, 1)
	assert.Equal(t, "Admissions", records[0].Section)
	assert.Equal(t, "Deadlines", records[0].Subsection)
	assert.Equal(t, "rendering", records[0].Strategy)

	records = Records(sampleResult(), nil)
	assert.Equal(t, "Deadlines", records[0].Subsection)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResult(), nil))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "crawl-1", doc.Summary.ID)
	assert.Equal(t, types.TerminationFrontierExhausted, doc.Summary.Stats.Termination)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "https://uni.edu/apply", doc.Records[0].URL)
	assert.InDelta(t, 0.8125, doc.Records[0].Score, 1e-9)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleResult(), nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"Admissions", "Deadlines", "1", "https://uni.edu/apply", "Apply", "en", "0.8125", "keyword",
		"matched 2 of 3 keywords", "admission; deadlines", "rendering", "", "2026-03-01T12:00:00Z",
	}, rows[1])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.json")
	require.NoError(t, WriteFile(path, FormatJSON, sampleResult(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"seed": "https://uni.edu/"`)

	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), sampleResult(), nil))
}
