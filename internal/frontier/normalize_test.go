package frontier_test

import (
	"sort"
	"testing"

	"github.com/jonesrussell/docspasta/internal/frontier"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		// Scheme and host normalization
		{"lowercase scheme", "HTTPS://Example.com/Path", "https://example.com/Path", false},
		{"lowercase host", "https://EXAMPLE.COM/path", "https://example.com/path", false},
		{"http scheme is preserved", "http://example.com/path", "http://example.com/path", false},

		// Port handling
		{"remove default https port", "https://example.com:443/path", "https://example.com/path", false},
		{"remove default http port", "http://example.com:80/path", "http://example.com/path", false},
		{"keep non-default port", "https://example.com:8080/path", "https://example.com:8080/path", false},

		// Path normalization
		{"remove trailing slash", "https://example.com/docs/", "https://example.com/docs", false},
		{"keep root slash", "https://example.com/", "https://example.com/", false},
		{"empty path becomes root", "https://example.com", "https://example.com/", false},
		{"preserve path case", "https://example.com/Docs/API", "https://example.com/Docs/API", false},
		{"resolve dot segments", "https://example.com/a/b/../c", "https://example.com/a/c", false},

		// Fragment removal
		{"remove fragment", "https://example.com/path#section", "https://example.com/path", false},

		// Query parameter handling
		{"sort query params", "https://example.com/path?z=1&a=2", "https://example.com/path?a=2&z=1", false},
		{"strip utm params", "https://example.com/path?utm_source=twitter&id=1", "https://example.com/path?id=1", false},
		{"strip fbclid", "https://example.com/path?fbclid=abc123&id=1", "https://example.com/path?id=1", false},
		{"strip gclid", "https://example.com/path?gclid=xyz&page=2", "https://example.com/path?page=2", false},
		{"keep params outside the tracking set", "https://example.com/path?gclsrc=x&ref=nav", "https://example.com/path?gclsrc=x&ref=nav", false},
		{"empty query after stripping", "https://example.com/path?utm_source=x", "https://example.com/path", false},

		// Error cases
		{"empty string", "", "", true},
		{"invalid url", "://not-a-url", "", true},
		{"missing scheme", "example.com/path", "", true},
		{"mailto link", "mailto:docs@example.com", "", true},
		{"javascript link", "javascript:void(0)", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := frontier.NormalizeURL(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeURL(%q) expected error, got nil", tt.input)
				}
				return
			}

			if err != nil {
				t.Errorf("NormalizeURL(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	const base = "https://example.com/docs/guide"

	tests := []struct {
		name    string
		href    string
		want    string
		wantErr bool
	}{
		{"relative sibling", "install", "https://example.com/docs/install", false},
		{"relative child", "./setup/linux", "https://example.com/docs/setup/linux", false},
		{"parent directory", "../api/reference", "https://example.com/api/reference", false},
		{"absolute path", "/changelog", "https://example.com/changelog", false},
		{"absolute url", "https://other.example.com/page", "https://other.example.com/page", false},
		{"protocol relative", "//cdn.example.com/page", "https://cdn.example.com/page", false},
		{"fragment only", "#section", "https://example.com/docs/guide", false},
		{"query only", "?page=2", "https://example.com/docs/guide?page=2", false},
		{"empty href", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := frontier.ResolveURL(base, tt.href)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ResolveURL(%q, %q) expected error, got nil", base, tt.href)
				}
				return
			}

			if err != nil {
				t.Errorf("ResolveURL(%q, %q) unexpected error: %v", base, tt.href, err)
				return
			}

			if got != tt.want {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", base, tt.href, got, tt.want)
			}
		})
	}
}

func sortedPermutations(t *testing.T, rawURL string) []string {
	t.Helper()

	perms, err := frontier.Permutations(rawURL)
	if err != nil {
		t.Fatalf("Permutations(%q) unexpected error: %v", rawURL, err)
	}

	sort.Strings(perms)

	return perms
}

func TestPermutations_NonRootPath(t *testing.T) {
	got := sortedPermutations(t, "https://example.com/docs")

	want := []string{
		"http://example.com/docs",
		"http://example.com/docs/",
		"http://www.example.com/docs",
		"http://www.example.com/docs/",
		"https://example.com/docs",
		"https://example.com/docs/",
		"https://www.example.com/docs",
		"https://www.example.com/docs/",
	}
	sort.Strings(want)

	if len(got) != len(want) {
		t.Fatalf("expected %d permutations, got %d: %v", len(want), len(got), got)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("permutation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPermutations_RootPath(t *testing.T) {
	got := sortedPermutations(t, "https://example.com")

	want := []string{
		"http://example.com/",
		"http://www.example.com/",
		"https://example.com/",
		"https://www.example.com/",
	}
	sort.Strings(want)

	if len(got) != len(want) {
		t.Fatalf("expected %d permutations, got %d: %v", len(want), len(got), got)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("permutation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPermutations_EquivalentSpellings(t *testing.T) {
	a := sortedPermutations(t, "https://example.com/docs")
	b := sortedPermutations(t, "HTTP://WWW.Example.com/docs/")

	if len(a) != len(b) {
		t.Fatalf("permutation counts differ: %d vs %d", len(a), len(b))
	}

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("permutation %d differs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestPermutations_QueryCarried(t *testing.T) {
	perms := sortedPermutations(t, "https://example.com/docs?page=2")

	for _, p := range perms {
		if got := p[len(p)-len("?page=2"):]; got != "?page=2" {
			t.Errorf("permutation %q does not end with query", p)
		}
	}
}

func TestBareHost(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"www.example.com", "example.com"},
		{"example.com", "example.com"},
		{"www.docs.example.com", "docs.example.com"},
		{"www.com", "www.com"},
		{"wwwexample.com", "wwwexample.com"},
	}

	for _, tt := range tests {
		if got := frontier.BareHost(tt.input); got != tt.want {
			t.Errorf("BareHost(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtractHost(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "https://example.com/path", "example.com", false},
		{"with port", "https://example.com:8080/path", "example.com", false},
		{"with www", "https://www.example.com/path", "www.example.com", false},
		{"uppercase host", "https://EXAMPLE.COM/path", "example.com", false},
		{"empty string", "", "", true},
		{"invalid url", "://bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := frontier.ExtractHost(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ExtractHost(%q) expected error, got nil", tt.input)
				}
				return
			}

			if err != nil {
				t.Errorf("ExtractHost(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("ExtractHost(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
