package pipeline

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/docspasta/internal/domain"
)

// mainSelectors are tried in order to locate a page's main content region.
var mainSelectors = []string{"main", "article", `[role="main"]`}

// boilerplateSelector matches elements stripped from the content region
// before Markdown conversion.
const boilerplateSelector = "nav, header, footer, aside, script, style, noscript, iframe, form, " +
	".sidebar, .side-bar, .advertisement, .ads, .cookie-banner, .menu, .navigation, .breadcrumb"

// skippedSchemes are href schemes that never lead to a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Extracted is the parse output for one page.
type Extracted struct {
	// Title is the page title, falling back to the first h1.
	Title string
	// ContentHTML is the pruned main-content subtree.
	ContentHTML string
	// Links are the page's harvested absolute URLs, in document order.
	Links []string
}

// Extract parses a fetched HTML body: title, pruned main content, and up to
// maxLinks absolute link targets resolved against the page URL.
func Extract(htmlBody, pageURL string, maxLinks int) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, domain.WrapError(domain.KindParseError, "parse html", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	// Harvest before pruning: links in navigation still count as discovery.
	links := harvestLinks(doc, pageURL, maxLinks)

	content := mainContent(doc)
	content.Find(boilerplateSelector).Remove()

	contentHTML, err := goquery.OuterHtml(content)
	if err != nil {
		return nil, domain.WrapError(domain.KindParseError, "render content", err)
	}

	return &Extracted{
		Title:       title,
		ContentHTML: contentHTML,
		Links:       links,
	}, nil
}

// mainContent selects the first matching content region, falling back to the
// document body.
func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}

	return doc.Find("body").First()
}

// harvestLinks collects up to maxLinks absolute href targets. Relative hrefs
// resolve against the page URL; fragment-only and non-fetchable schemes are
// dropped.
func harvestLinks(doc *goquery.Document, pageURL string, maxLinks int) []string {
	if maxLinks <= 0 {
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	links := make([]string, 0, maxLinks)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || hasSkippedScheme(href) {
			return true
		}

		ref, parseErr := url.Parse(href)
		if parseErr != nil {
			return true
		}

		links = append(links, base.ResolveReference(ref).String())

		return len(links) < maxLinks
	})

	return links
}

func hasSkippedScheme(href string) bool {
	lowered := strings.ToLower(href)

	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lowered, scheme) {
			return true
		}
	}

	return false
}
