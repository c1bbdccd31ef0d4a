package pipeline

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/jonesrussell/docspasta/internal/domain"
)

// ToMarkdown converts a pruned HTML subtree to Markdown. The page URL anchors
// relative links inside the converted output.
func ToMarkdown(contentHTML, pageURL string) (string, error) {
	base := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		base = parsed.Scheme + "://" + parsed.Host
	}

	converter := md.NewConverter(base, true, nil)

	markdown, err := converter.ConvertString(contentHTML)
	if err != nil {
		return "", domain.WrapError(domain.KindParseError, "convert markdown", err)
	}

	return strings.TrimSpace(markdown), nil
}

// WordCount counts whitespace-delimited tokens.
func WordCount(markdown string) int {
	return len(strings.Fields(markdown))
}
