// Package catalog holds the organizational sections and subsections a crawl
// is asked to find evidence for.
//
// Definitions may carry bracketed placeholders such as "[organization name]"
// or "[city, country]". Load resolves them before keywords are derived, so a
// keyword set never contains placeholder text.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/go-scripts/sectioncrawl/internal/keywords"
)

// Placeholder names recognized even when no value is supplied.
const (
	PlaceholderOrganization = "organization name"
	PlaceholderLocation     = "city, country"
	PlaceholderCity         = "city"
	PlaceholderCountry      = "country"
)

var knownPlaceholders = []string{
	PlaceholderOrganization,
	PlaceholderLocation,
	PlaceholderCity,
	PlaceholderCountry,
}

var (
	placeholderPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)
	orphanPunctuation  = regexp.MustCompile(`\s+([,.;:])`)
)

// Placeholders maps a lower-cased placeholder name to its value.
type Placeholders map[string]string

// NewPlaceholders builds the standard value set from an organization name and
// a "city, country" location. Either may be empty.
func NewPlaceholders(organization, location string) Placeholders {
	p := Placeholders{
		PlaceholderOrganization: strings.TrimSpace(organization),
		PlaceholderLocation:     strings.TrimSpace(location),
	}
	city, country, found := strings.Cut(location, ",")
	p[PlaceholderCity] = strings.TrimSpace(city)
	if found {
		p[PlaceholderCountry] = strings.TrimSpace(country)
	}
	return p
}

// RawSection is a section definition as read from a catalog file.
type RawSection struct {
	Name        string          `yaml:"name"`
	Definition  string          `yaml:"definition"`
	Subsections []RawSubsection `yaml:"subsections"`
}

// RawSubsection is a subsection definition as read from a catalog file.
type RawSubsection struct {
	Name       string `yaml:"name"`
	Definition string `yaml:"definition"`
}

// Section is a resolved, immutable top-level category.
type Section struct {
	Name        string
	Definition  string
	Subsections []*Subsection
}

// Subsection is the unit pages are scored and ranked against.
type Subsection struct {
	Section    string
	Name       string
	Definition string
	Keywords   []string
	// Unscorable is set when no keyword survived extraction. Keyword scoring
	// returns 0 for such subsections.
	Unscorable bool
}

// ID identifies the subsection within a crawl result.
func (s *Subsection) ID() string {
	return s.Section + "/" + s.Name
}

// Catalog is the ordered, resolved set of sections.
type Catalog struct {
	Sections []*Section
}

// Subsections returns every subsection in catalog order.
func (c *Catalog) Subsections() []*Subsection {
	var out []*Subsection
	for _, sec := range c.Sections {
		out = append(out, sec.Subsections...)
	}
	return out
}

// Lookup finds a subsection by ID.
func (c *Catalog) Lookup(id string) (*Subsection, bool) {
	for _, sub := range c.Subsections() {
		if sub.ID() == id {
			return sub, true
		}
	}
	return nil, false
}

// Load validates raw definitions, substitutes placeholders and derives
// keywords for every subsection.
func Load(raw []RawSection, values Placeholders) (*Catalog, error) {
	if len(raw) == 0 {
		return nil, &MalformedCatalogError{Reason: "no sections defined"}
	}

	cat := &Catalog{Sections: make([]*Section, 0, len(raw))}
	defined := 0
	seen := make(map[string]struct{})

	for i, rs := range raw {
		name := Substitute(rs.Name, values)
		if name == "" {
			return nil, &MalformedCatalogError{Reason: fmt.Sprintf("section %d has no name", i+1)}
		}

		sec := &Section{
			Name:        name,
			Definition:  Substitute(rs.Definition, values),
			Subsections: make([]*Subsection, 0, len(rs.Subsections)),
		}

		for j, rsub := range rs.Subsections {
			subName := Substitute(rsub.Name, values)
			if subName == "" {
				return nil, &MalformedCatalogError{
					Section: name,
					Reason:  fmt.Sprintf("subsection %d has no name", j+1),
				}
			}

			sub := &Subsection{
				Section:    name,
				Name:       subName,
				Definition: Substitute(rsub.Definition, values),
			}
			if _, dup := seen[sub.ID()]; dup {
				return nil, &MalformedCatalogError{
					Section: name,
					Reason:  fmt.Sprintf("duplicate subsection %q", subName),
				}
			}
			seen[sub.ID()] = struct{}{}

			if sub.Definition != "" {
				defined++
			}
			sub.Keywords = keywords.Extract(sub.Name + " " + sub.Definition)
			sub.Unscorable = len(sub.Keywords) == 0
			sec.Subsections = append(sec.Subsections, sub)
		}

		cat.Sections = append(cat.Sections, sec)
	}

	if len(seen) == 0 {
		return nil, &MalformedCatalogError{Reason: "no subsections defined"}
	}
	if defined == 0 {
		return nil, &MalformedCatalogError{Reason: "every subsection lacks a definition"}
	}

	return cat, nil
}

// LoadFile reads a YAML catalog of the form
//
//	sections:
//	  - name: Admissions
//	    definition: ...
//	    subsections:
//	      - name: Deadlines
//	        definition: ...
func LoadFile(path string, values Placeholders) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var doc struct {
		Sections []RawSection `yaml:"sections"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedCatalogError{Reason: "invalid YAML", Cause: err}
	}

	return Load(doc.Sections, values)
}

// Substitute replaces every recognized placeholder in s. Placeholders without
// a value resolve to the empty string; bracketed text that is not a
// placeholder is left alone. Whitespace is collapsed afterwards.
func Substitute(s string, values Placeholders) string {
	if s == "" {
		return ""
	}

	out := placeholderPattern.ReplaceAllStringFunc(s, func(tok string) string {
		key := strings.ToLower(strings.TrimSpace(tok[1 : len(tok)-1]))
		if v, ok := values[key]; ok {
			return v
		}
		if isKnownPlaceholder(key) {
			return ""
		}
		return tok
	})

	out = strings.Join(strings.Fields(out), " ")
	return orphanPunctuation.ReplaceAllString(out, "$1")
}

func isKnownPlaceholder(key string) bool {
	for _, k := range knownPlaceholders {
		if k == key {
			return true
		}
	}
	return false
}
