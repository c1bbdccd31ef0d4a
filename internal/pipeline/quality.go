package pipeline

import (
	"net/url"
	"strings"
)

// qualityKeywords each add points per occurrence, capped below.
var qualityKeywords = []string{"api", "documentation", "guide", "tutorial", "reference", "manual"}

// qualityPathSegments mark URL paths that typically hold documentation.
var qualityPathSegments = []string{"/docs/", "/documentation/", "/guide/", "/tutorial/", "/api/", "/reference/"}

// Scoring weights and caps.
const (
	headingBonus      = 15
	codeFenceBonus    = 15
	lengthBonus       = 10
	lengthThreshold   = 1000
	longBonus         = 15
	longThreshold     = 5000
	perCodeBlockBonus = 5
	codeBlockCap      = 20
	perKeywordBonus   = 5
	keywordCap        = 25
	docPathBonus      = 15
	maxScore          = 100
)

// Score rates converted Markdown on a fixed 0-100 heuristic: headings, code
// blocks, length, documentation keywords, and a documentation-shaped URL path.
func Score(markdown, pageURL string) int {
	score := 0

	if strings.Contains(markdown, "# ") || strings.Contains(markdown, "## ") {
		score += headingBonus
	}

	codeBlocks := strings.Count(markdown, "```") / 2
	if codeBlocks > 0 {
		score += codeFenceBonus
	}

	score += capped(codeBlocks*perCodeBlockBonus, codeBlockCap)

	if len(markdown) > lengthThreshold {
		score += lengthBonus
	}

	if len(markdown) > longThreshold {
		score += longBonus
	}

	lowered := strings.ToLower(markdown)
	keywordHits := 0

	for _, keyword := range qualityKeywords {
		keywordHits += strings.Count(lowered, keyword)
	}

	score += capped(keywordHits*perKeywordBonus, keywordCap)

	if isDocPath(pageURL) {
		score += docPathBonus
	}

	if score > maxScore {
		return maxScore
	}

	return score
}

// isDocPath reports whether the URL path contains a documentation segment.
// The trailing slash is appended so "/docs" matches as well as "/docs/".
func isDocPath(pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}

	p := strings.ToLower(parsed.Path) + "/"

	for _, segment := range qualityPathSegments {
		if strings.Contains(p, segment) {
			return true
		}
	}

	return false
}

func capped(value, limit int) int {
	if value > limit {
		return limit
	}

	return value
}
