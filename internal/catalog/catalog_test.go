package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	values := NewPlaceholders("Stanford University", "Stanford, California")

	testCases := []struct {
		name     string
		input    string
		values   Placeholders
		expected string
	}{
		{
			name:     "Organization name",
			input:    "Offices of [organization name]",
			values:   values,
			expected: "Offices of Stanford University",
		},
		{
			name:     "Location",
			input:    "Campus life in [city, country]",
			values:   values,
			expected: "Campus life in Stanford, California",
		},
		{
			name:     "Case insensitive tokens",
			input:    "[Organization Name] at [CITY]",
			values:   values,
			expected: "Stanford University at Stanford",
		},
		{
			name:     "Unknown value resolves to empty",
			input:    "Events held in [city, country].",
			values:   NewPlaceholders("Acme", ""),
			expected: "Events held in.",
		},
		{
			name:     "Non-placeholder brackets are kept",
			input:    "See [1] for [organization name]",
			values:   values,
			expected: "See [1] for Stanford University",
		},
		{
			name:     "Nil values",
			input:    "[organization name] research",
			values:   nil,
			expected: "research",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Substitute(tc.input, tc.values))
		})
	}
}

func TestLoadSubstitutesBeforeKeywords(t *testing.T) {
	raw := []RawSection{
		{
			Name:       "About [organization name]",
			Definition: "General information about [organization name] in [city, country]",
			Subsections: []RawSubsection{
				{Name: "Location", Definition: "Where [organization name] is located: [city, country]"},
				{Name: "History", Definition: "Founding and history of [organization name]"},
			},
		},
	}

	cat, err := Load(raw, NewPlaceholders("Stanford University", "Stanford, California"))
	require.NoError(t, err)

	for _, sec := range cat.Sections {
		assert.NotContains(t, sec.Name, "[")
		assert.NotContains(t, sec.Definition, "[")
		for _, sub := range sec.Subsections {
			assert.NotContains(t, sub.Definition, "[")
			for _, kw := range sub.Keywords {
				assert.False(t, strings.ContainsAny(kw, "[]"), "keyword %q", kw)
			}
		}
	}

	loc := cat.Sections[0].Subsections[0]
	assert.Equal(t, "About Stanford University/Location", loc.ID())
	assert.Equal(t, []string{"location", "stanford", "university", "located", "california"}, loc.Keywords)
	assert.False(t, loc.Unscorable)
}

func TestLoadMarksUnscorable(t *testing.T) {
	raw := []RawSection{
		{
			Name: "Misc",
			Subsections: []RawSubsection{
				{Name: "Q&A", Definition: "it is to be"},
				{Name: "Contacts", Definition: "Phone and email contacts"},
			},
		},
	}

	cat, err := Load(raw, nil)
	require.NoError(t, err)

	subs := cat.Subsections()
	require.Len(t, subs, 2)
	assert.True(t, subs[0].Unscorable)
	assert.Empty(t, subs[0].Keywords)
	assert.False(t, subs[1].Unscorable)
}

func TestLoadMalformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  []RawSection
	}{
		{
			name: "No sections",
			raw:  nil,
		},
		{
			name: "Section without name",
			raw: []RawSection{
				{Definition: "x", Subsections: []RawSubsection{{Name: "a", Definition: "b"}}},
			},
		},
		{
			name: "Section name only placeholder",
			raw: []RawSection{
				{Name: "[organization name]", Subsections: []RawSubsection{{Name: "a", Definition: "b"}}},
			},
		},
		{
			name: "Subsection without name",
			raw: []RawSection{
				{Name: "A", Subsections: []RawSubsection{{Definition: "b"}}},
			},
		},
		{
			name: "Every subsection lacks a definition",
			raw: []RawSection{
				{Name: "A", Subsections: []RawSubsection{{Name: "one"}, {Name: "two"}}},
				{Name: "B", Subsections: []RawSubsection{{Name: "three"}}},
			},
		},
		{
			name: "No subsections at all",
			raw:  []RawSection{{Name: "A", Definition: "something"}},
		},
		{
			name: "Duplicate subsection",
			raw: []RawSection{
				{Name: "A", Subsections: []RawSubsection{{Name: "x", Definition: "y"}, {Name: "x", Definition: "z"}}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cat, err := Load(tc.raw, NewPlaceholders("", ""))
			assert.Nil(t, cat)
			var malformed *MalformedCatalogError
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sections.yaml")
	content := `sections:
  - name: Admissions
    definition: How to apply to [organization name]
    subsections:
      - name: Deadlines
        definition: Application deadlines and admission dates
      - name: Tuition
        definition: Tuition fees and financial aid
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := LoadFile(path, NewPlaceholders("Stanford University", ""))
	require.NoError(t, err)
	require.Len(t, cat.Sections, 1)
	assert.Equal(t, "How to apply to Stanford University", cat.Sections[0].Definition)

	sub, ok := cat.Lookup("Admissions/Tuition")
	require.True(t, ok)
	assert.Equal(t, []string{"tuition", "fees", "financial", "aid"}, sub.Keywords)

	require.NoError(t, os.WriteFile(path, []byte("sections: [::"), 0o644))
	_, err = LoadFile(path, nil)
	var malformed *MalformedCatalogError
	assert.ErrorAs(t, err, &malformed)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}
