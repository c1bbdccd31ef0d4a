// Package frontier manages the per-job URL queue: canonical URL forms, dedup
// permutations, documentation filtering, and the FIFO of pending fetches
// backed by the KV store.
package frontier

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/jonesrussell/docspasta/internal/domain"
)

// clickIDs lists non-utm tracking parameters stripped during normalization.
var clickIDs = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
}

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = domain.NewError(domain.KindInvalidURL, "empty url")
	errMissingSchemeOrHost = domain.NewError(domain.KindInvalidURL, "missing scheme or host")
	errUnsupportedScheme   = domain.NewError(domain.KindInvalidURL, "unsupported scheme")
)

// NormalizeURL applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings. Transformations include
// lowercasing scheme and host, removing default ports, removing fragments,
// sorting query parameters, stripping tracking parameters, and stripping the
// trailing slash from non-root paths. Path case and the scheme are preserved.
func NormalizeURL(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", domain.WrapError(domain.KindInvalidURL, "normalize url", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = buildCleanQuery(parsed.Query())
	parsed.Path = normalizePath(parsed.Path)
	parsed.RawPath = ""

	return parsed.String(), nil
}

// ResolveURL resolves href (possibly relative) against baseURL and returns
// the normalized absolute form.
func ResolveURL(baseURL, href string) (string, error) {
	if strings.TrimSpace(href) == "" {
		return "", errEmptyInput
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", domain.WrapError(domain.KindInvalidURL, "resolve base", err)
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", domain.WrapError(domain.KindInvalidURL, "resolve href", err)
	}

	return NormalizeURL(base.ResolveReference(ref).String())
}

// Permutations returns every canonical spelling that must be treated as the
// same page for dedup: both schemes, the bare and www-prefixed host, and for
// non-root paths the slash and slashless forms. The input is normalized
// first, so any spelling of the same URL yields the same permutation set.
func Permutations(rawURL string) ([]string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidURL, "permutations", err)
	}

	bare := BareHost(parsed.Hostname())
	hosts := []string{bare, "www." + bare}

	if port := parsed.Port(); port != "" {
		for i := range hosts {
			hosts[i] += ":" + port
		}
	}

	escapedPath := parsed.EscapedPath()
	paths := []string{escapedPath}

	if escapedPath != "/" {
		paths = append(paths, escapedPath+"/")
	}

	query := ""
	if parsed.RawQuery != "" {
		query = "?" + parsed.RawQuery
	}

	perms := make([]string, 0, 2*len(hosts)*len(paths))

	for _, scheme := range []string{"http", "https"} {
		for _, host := range hosts {
			for _, p := range paths {
				perms = append(perms, scheme+"://"+host+p+query)
			}
		}
	}

	return perms, nil
}

// ExtractHost returns the hostname (without port) from a URL, lowercased.
func ExtractHost(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", domain.WrapError(domain.KindInvalidURL, "extract host", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// BareHost strips a "www." prefix unless the remainder is a bare TLD
// (e.g. "www.com" stays intact).
func BareHost(hostname string) string {
	trimmed := strings.TrimPrefix(hostname, "www.")
	if trimmed != hostname && !strings.Contains(trimmed, ".") {
		return hostname
	}

	return trimmed
}

// validateParsedURL checks that a parsed URL has a fetchable scheme and host.
func validateParsedURL(u *url.URL) error {
	if u.Scheme == "" || u.Host == "" {
		return errMissingSchemeOrHost
	}

	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %s", errUnsupportedScheme, u.Scheme)
	}

	return nil
}

// normalizeHost lowercases the hostname and removes the scheme's default port.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" || port == defaultPorts[strings.ToLower(u.Scheme)] {
		return hostname
	}

	return hostname + ":" + port
}

// isTrackingParam reports whether a query key belongs to the stripped set:
// any utm_* key plus the click identifiers.
func isTrackingParam(key string) bool {
	if strings.HasPrefix(key, "utm_") {
		return true
	}

	_, ok := clickIDs[key]

	return ok
}

// buildCleanQuery strips tracking parameters, sorts the remaining keys
// alphabetically, and returns the encoded query string. Returns an empty
// string when no parameters remain after filtering.
func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))

	for key := range values {
		if !isTrackingParam(key) {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}

		vals := values[key]
		for j, val := range vals {
			if j > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// normalizePath resolves dot-segments and strips the trailing slash,
// preserving the root "/". Path case is never altered.
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	return path.Clean(p)
}
