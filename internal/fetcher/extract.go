package fetcher

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/go-scripts/sectioncrawl/internal/frontier"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// MaxContextLength bounds the surrounding text kept with a link, in runes.
const MaxContextLength = 240

// Elements whose text is never part of a page's content.
const noiseSelector = "script, style, noscript, nav, footer, header, template, svg, iframe"

var skippedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".mp4": {}, ".mp3": {}, ".zip": {}, ".exe": {},
}

var skippedPrefixes = []string{"mailto:", "tel:", "javascript:", "#", "data:"}

// Document is the content extracted from a fetched HTML page.
type Document struct {
	Title           string
	MetaDescription string
	Text            string
	WordCount       int
	// Language is a base language code such as "en".
	Language        string
	Links           []types.LinkCandidate
}

// Parse extracts title, description, visible text and same-site links from
// markup served at pageURL.
func Parse(pageURL, markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	out := &Document{
		Title:           collapse(doc.Find("title").First().Text()),
		MetaDescription: metaDescription(doc),
	}

	// Must run before nav and header are stripped.
	out.Links = extractLinks(doc, pageURL, base)

	doc.Find(noiseSelector).Remove()
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	out.Text = visibleText(root)
	out.WordCount = len(strings.Fields(out.Text))

	lang, ok := declaredLanguage(doc)
	if !ok {
		lang = DetectLanguage(out.Title + " " + out.Text)
	}
	out.Language = lang.String()

	return out, nil
}

func metaDescription(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		return collapse(v)
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		return collapse(v)
	}
	return ""
}

func extractLinks(doc *goquery.Document, pageURL string, base *url.URL) []types.LinkCandidate {
	self, _ := frontier.NormalizeURL(pageURL)
	seen := make(map[string]struct{})
	var links []types.LinkCandidate

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || hasSkippedPrefix(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs, err := frontier.NormalizeURL(base.ResolveReference(ref).String())
		if err != nil || abs == self {
			return
		}
		if !frontier.SameSite(pageURL, abs) || hasSkippedExtension(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		anchor := collapse(s.Text())
		if anchor == "" {
			anchor = collapse(s.AttrOr("title", s.Find("img[alt]").AttrOr("alt", "")))
		}

		links = append(links, types.LinkCandidate{
			SourceURL:  pageURL,
			URL:        abs,
			AnchorText: anchor,
			Context:    truncate(visibleText(s.Parent()), MaxContextLength),
		})
	})

	return links
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func hasSkippedExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	_, skip := skippedExtensions[strings.ToLower(path.Ext(u.Path))]
	return skip
}

// visibleText joins text nodes with spaces so adjacent block elements do not
// run their words together.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return collapse(b.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
