package frontier

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jonesrussell/docspasta/internal/domain"
)

// assetSegments are path segments that mark a URL as a static asset rather
// than a documentation page.
var assetSegments = []string{
	"/assets/",
	"/images/",
	"/img/",
	"/css/",
	"/js/",
	"/fonts/",
	"/static/",
	"/media/",
}

// assetExtensions are file extensions that mark a URL as a static asset.
var assetExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico",
	".css", ".js", ".map",
	".mp4", ".webm", ".mp3", ".wav",
	".ttf", ".woff", ".woff2", ".eot",
	".pdf", ".zip", ".tar",
}

// IsDocumentationPath reports whether a URL path could hold documentation
// content: it contains no asset segment and ends in no asset extension.
func IsDocumentationPath(p string) bool {
	lowered := strings.ToLower(p)

	for _, segment := range assetSegments {
		if strings.Contains(lowered, segment) {
			return false
		}
	}

	for _, ext := range assetExtensions {
		if strings.HasSuffix(lowered, ext) {
			return false
		}
	}

	return true
}

// Scope decides whether a URL belongs to a job's crawl: same site as the
// seed (unless external links are enabled) and matching the job's
// include/exclude path patterns.
type Scope struct {
	seedHost       string
	followExternal bool
	include        []*regexp.Regexp
	exclude        []*regexp.Regexp
}

// NewScope builds the scope filter for a job from its seed URL and options.
// The option patterns must already have passed validation; a pattern that
// fails to compile here returns an InvalidUrl error.
func NewScope(seedURL string, opts domain.JobOptions) (*Scope, error) {
	host, err := ExtractHost(seedURL)
	if err != nil {
		return nil, err
	}

	scope := &Scope{
		seedHost:       BareHost(host),
		followExternal: opts.FollowExternalLinks,
	}

	for _, pattern := range opts.IncludePaths {
		re, compileErr := regexp.Compile(pattern)
		if compileErr != nil {
			return nil, domain.WrapError(domain.KindInvalidURL, "include pattern", compileErr)
		}

		scope.include = append(scope.include, re)
	}

	for _, pattern := range opts.ExcludePaths {
		re, compileErr := regexp.Compile(pattern)
		if compileErr != nil {
			return nil, domain.WrapError(domain.KindInvalidURL, "exclude pattern", compileErr)
		}

		scope.exclude = append(scope.exclude, re)
	}

	return scope, nil
}

// Allows reports whether a parsed URL is inside the crawl scope. Host
// comparison ignores the www prefix, matching the dedup permutations.
func (s *Scope) Allows(u *url.URL) bool {
	if !s.followExternal && BareHost(strings.ToLower(u.Hostname())) != s.seedHost {
		return false
	}

	if len(s.include) > 0 {
		matched := false

		for _, re := range s.include {
			if re.MatchString(u.Path) {
				matched = true
				break
			}
		}

		if !matched {
			return false
		}
	}

	for _, re := range s.exclude {
		if re.MatchString(u.Path) {
			return false
		}
	}

	return true
}
