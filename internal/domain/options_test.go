package domain_test

import (
	"testing"
	"time"

	"github.com/jonesrussell/docspasta/internal/domain"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestResolve_Defaults(t *testing.T) {
	opts := (*domain.JobOptionsPatch)(nil).Resolve()

	if opts.MaxPages != 50 {
		t.Errorf("MaxPages = %d, want 50", opts.MaxPages)
	}
	if opts.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", opts.MaxDepth)
	}
	if opts.MaxWorkers != 5 {
		t.Errorf("MaxWorkers = %d, want 5", opts.MaxWorkers)
	}
	if opts.BatchCount != 10 {
		t.Errorf("BatchCount = %d, want 10", opts.BatchCount)
	}
	if opts.SoftDeadline != 25*time.Second {
		t.Errorf("SoftDeadline = %v, want 25s", opts.SoftDeadline)
	}
	if opts.PageTimeout != 8*time.Second {
		t.Errorf("PageTimeout = %v, want 8s", opts.PageTimeout)
	}
	if opts.JobTimeout != 300*time.Second {
		t.Errorf("JobTimeout = %v, want 300s", opts.JobTimeout)
	}
	if opts.QualityThreshold != 20 {
		t.Errorf("QualityThreshold = %d, want 20", opts.QualityThreshold)
	}
	if opts.FollowExternalLinks {
		t.Error("FollowExternalLinks should default to false")
	}
	if !opts.RespectRobots {
		t.Error("RespectRobots should default to true")
	}
	if !opts.UseSitemap {
		t.Error("UseSitemap should default to true")
	}
	if opts.MaxLinksPerPage != 50 {
		t.Errorf("MaxLinksPerPage = %d, want 50", opts.MaxLinksPerPage)
	}
}

func TestResolve_ZeroValuesAreExpressible(t *testing.T) {
	patch := &domain.JobOptionsPatch{
		MaxDepth:        intPtr(0),
		MaxLinksPerPage: intPtr(0),
		RespectRobots:   boolPtr(false),
	}

	opts := patch.Resolve()

	if opts.MaxDepth != 0 {
		t.Errorf("explicit maxDepth=0 lost: got %d", opts.MaxDepth)
	}
	if opts.MaxLinksPerPage != 0 {
		t.Errorf("explicit maxLinksPerPage=0 lost: got %d", opts.MaxLinksPerPage)
	}
	if opts.RespectRobots {
		t.Error("explicit respectRobots=false lost")
	}
	// Untouched fields keep defaults
	if opts.MaxPages != 50 {
		t.Errorf("MaxPages = %d, want default 50", opts.MaxPages)
	}
}

func TestResolve_DurationsFromSeconds(t *testing.T) {
	patch := &domain.JobOptionsPatch{
		SoftDeadlineSec: intPtr(10),
		PageTimeoutSec:  intPtr(3),
		JobTimeoutSec:   intPtr(60),
	}

	opts := patch.Resolve()

	if opts.SoftDeadline != 10*time.Second {
		t.Errorf("SoftDeadline = %v, want 10s", opts.SoftDeadline)
	}
	if opts.PageTimeout != 3*time.Second {
		t.Errorf("PageTimeout = %v, want 3s", opts.PageTimeout)
	}
	if opts.JobTimeout != 60*time.Second {
		t.Errorf("JobTimeout = %v, want 60s", opts.JobTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.JobOptions)
		wantErr bool
	}{
		{"defaults are valid", func(o *domain.JobOptions) {}, false},
		{"zero maxPages", func(o *domain.JobOptions) { o.MaxPages = 0 }, true},
		{"negative maxDepth", func(o *domain.JobOptions) { o.MaxDepth = -1 }, true},
		{"zero maxWorkers", func(o *domain.JobOptions) { o.MaxWorkers = 0 }, true},
		{"zero batchCount", func(o *domain.JobOptions) { o.BatchCount = 0 }, true},
		{"quality above 100", func(o *domain.JobOptions) { o.QualityThreshold = 101 }, true},
		{"negative maxLinksPerPage", func(o *domain.JobOptions) { o.MaxLinksPerPage = -1 }, true},
		{"bad include regex", func(o *domain.JobOptions) { o.IncludePaths = []string{"["} }, true},
		{"bad exclude regex", func(o *domain.JobOptions) { o.ExcludePaths = []string{"("} }, true},
		{"good regexes", func(o *domain.JobOptions) {
			o.IncludePaths = []string{"^/docs/"}
			o.ExcludePaths = []string{`\.html$`}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := domain.DefaultOptions()
			tt.mutate(&opts)

			err := opts.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestClampTo(t *testing.T) {
	opts := domain.DefaultOptions()
	opts.MaxPages = 10000
	opts.MaxWorkers = 100

	opts.ClampTo(domain.OptionCaps{MaxPages: 500, MaxDepth: 10, MaxWorkers: 20})

	if opts.MaxPages != 500 {
		t.Errorf("MaxPages = %d, want clamped 500", opts.MaxPages)
	}
	if opts.MaxWorkers != 20 {
		t.Errorf("MaxWorkers = %d, want clamped 20", opts.MaxWorkers)
	}
	if opts.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want untouched 2", opts.MaxDepth)
	}
}

func TestOptionsEncodeRoundTrip(t *testing.T) {
	opts := domain.DefaultOptions()
	opts.IncludePaths = []string{"^/docs/"}
	opts.MaxDepth = 0

	encoded, err := opts.Encode()
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}

	meta := &domain.JobMeta{OptionsJSON: encoded}
	decoded, err := meta.Options()
	if err != nil {
		t.Fatalf("Options() unexpected error: %v", err)
	}

	if decoded.MaxDepth != 0 {
		t.Errorf("MaxDepth = %d, want 0", decoded.MaxDepth)
	}
	if decoded.SoftDeadline != opts.SoftDeadline {
		t.Errorf("SoftDeadline = %v, want %v", decoded.SoftDeadline, opts.SoftDeadline)
	}
	if len(decoded.IncludePaths) != 1 || decoded.IncludePaths[0] != "^/docs/" {
		t.Errorf("IncludePaths = %v, want [^/docs/]", decoded.IncludePaths)
	}
}
