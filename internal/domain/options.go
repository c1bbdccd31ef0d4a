package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Default job option values.
const (
	DefaultMaxPages        = 50
	DefaultMaxDepth        = 2
	DefaultMaxWorkers      = 5
	DefaultBatchCount      = 10
	DefaultSoftDeadline    = 25 * time.Second
	DefaultPageTimeout     = 8 * time.Second
	DefaultJobTimeout      = 300 * time.Second
	DefaultQualityMinimum  = 20
	DefaultMaxLinksPerPage = 50
	// DefaultReinvokeMargin is the wall-clock margin to the invocation hard
	// deadline below which a worker hands off instead of starting a new page.
	DefaultReinvokeMargin = 5 * time.Second
	// DefaultInitialWorkers caps how many workers are dispatched at job creation.
	DefaultInitialWorkers = 3
)

// JobOptions is the resolved, fully-populated option set attached to a job.
// Durations are stored natively; the HTTP layer accepts seconds and resolves
// through JobOptionsPatch.
type JobOptions struct {
	MaxPages            int           `json:"maxPages"`
	MaxDepth            int           `json:"maxDepth"`
	MaxWorkers          int           `json:"maxWorkers"`
	BatchCount          int           `json:"batchCount"`
	SoftDeadline        time.Duration `json:"softDeadline"`
	PageTimeout         time.Duration `json:"pageTimeout"`
	JobTimeout          time.Duration `json:"jobTimeout"`
	QualityThreshold    int           `json:"qualityThreshold"`
	FollowExternalLinks bool          `json:"followExternalLinks"`
	RespectRobots       bool          `json:"respectRobots"`
	UseSitemap          bool          `json:"useSitemap"`
	IncludePaths        []string      `json:"includePaths"`
	ExcludePaths        []string      `json:"excludePaths"`
	MaxLinksPerPage     int           `json:"maxLinksPerPage"`
}

// DefaultOptions returns the option set with every default applied.
func DefaultOptions() JobOptions {
	return JobOptions{
		MaxPages:            DefaultMaxPages,
		MaxDepth:            DefaultMaxDepth,
		MaxWorkers:          DefaultMaxWorkers,
		BatchCount:          DefaultBatchCount,
		SoftDeadline:        DefaultSoftDeadline,
		PageTimeout:         DefaultPageTimeout,
		JobTimeout:          DefaultJobTimeout,
		QualityThreshold:    DefaultQualityMinimum,
		FollowExternalLinks: false,
		RespectRobots:       true,
		UseSitemap:          true,
		IncludePaths:        nil,
		ExcludePaths:        nil,
		MaxLinksPerPage:     DefaultMaxLinksPerPage,
	}
}

// JobOptionsPatch carries the options a client actually provided. Nil fields
// fall back to defaults, so zero values (maxDepth=0, maxLinksPerPage=0)
// remain expressible.
type JobOptionsPatch struct {
	MaxPages            *int     `json:"maxPages"`
	MaxDepth            *int     `json:"maxDepth"`
	MaxWorkers          *int     `json:"maxWorkers"`
	BatchCount          *int     `json:"batchCount"`
	SoftDeadlineSec     *int     `json:"softDeadline"`
	PageTimeoutSec      *int     `json:"pageTimeout"`
	JobTimeoutSec       *int     `json:"jobTimeout"`
	QualityThreshold    *int     `json:"qualityThreshold"`
	FollowExternalLinks *bool    `json:"followExternalLinks"`
	RespectRobots       *bool    `json:"respectRobots"`
	UseSitemap          *bool    `json:"useSitemap"`
	IncludePaths        []string `json:"includePaths"`
	ExcludePaths        []string `json:"excludePaths"`
	MaxLinksPerPage     *int     `json:"maxLinksPerPage"`
}

// Resolve applies the patch on top of the defaults and returns the concrete
// option set.
func (p *JobOptionsPatch) Resolve() JobOptions {
	opts := DefaultOptions()
	if p == nil {
		return opts
	}
	if p.MaxPages != nil {
		opts.MaxPages = *p.MaxPages
	}
	if p.MaxDepth != nil {
		opts.MaxDepth = *p.MaxDepth
	}
	if p.MaxWorkers != nil {
		opts.MaxWorkers = *p.MaxWorkers
	}
	if p.BatchCount != nil {
		opts.BatchCount = *p.BatchCount
	}
	if p.SoftDeadlineSec != nil {
		opts.SoftDeadline = time.Duration(*p.SoftDeadlineSec) * time.Second
	}
	if p.PageTimeoutSec != nil {
		opts.PageTimeout = time.Duration(*p.PageTimeoutSec) * time.Second
	}
	if p.JobTimeoutSec != nil {
		opts.JobTimeout = time.Duration(*p.JobTimeoutSec) * time.Second
	}
	if p.QualityThreshold != nil {
		opts.QualityThreshold = *p.QualityThreshold
	}
	if p.FollowExternalLinks != nil {
		opts.FollowExternalLinks = *p.FollowExternalLinks
	}
	if p.RespectRobots != nil {
		opts.RespectRobots = *p.RespectRobots
	}
	if p.UseSitemap != nil {
		opts.UseSitemap = *p.UseSitemap
	}
	if p.IncludePaths != nil {
		opts.IncludePaths = p.IncludePaths
	}
	if p.ExcludePaths != nil {
		opts.ExcludePaths = p.ExcludePaths
	}
	if p.MaxLinksPerPage != nil {
		opts.MaxLinksPerPage = *p.MaxLinksPerPage
	}
	return opts
}

// OptionCaps holds server-side upper bounds applied to requested options.
type OptionCaps struct {
	MaxPages   int
	MaxDepth   int
	MaxWorkers int
}

// ClampTo bounds the options by the server caps. Zero caps leave the value
// untouched.
func (o *JobOptions) ClampTo(caps OptionCaps) {
	if caps.MaxPages > 0 && o.MaxPages > caps.MaxPages {
		o.MaxPages = caps.MaxPages
	}
	if caps.MaxDepth > 0 && o.MaxDepth > caps.MaxDepth {
		o.MaxDepth = caps.MaxDepth
	}
	if caps.MaxWorkers > 0 && o.MaxWorkers > caps.MaxWorkers {
		o.MaxWorkers = caps.MaxWorkers
	}
}

// Validate checks bounds and compiles the path filters.
func (o *JobOptions) Validate() error {
	if o.MaxPages < 1 {
		return errors.New("maxPages must be at least 1")
	}
	if o.MaxDepth < 0 {
		return errors.New("maxDepth must not be negative")
	}
	if o.MaxWorkers < 1 {
		return errors.New("maxWorkers must be at least 1")
	}
	if o.BatchCount < 1 {
		return errors.New("batchCount must be at least 1")
	}
	if o.SoftDeadline <= 0 {
		return errors.New("softDeadline must be positive")
	}
	if o.PageTimeout <= 0 {
		return errors.New("pageTimeout must be positive")
	}
	if o.JobTimeout <= 0 {
		return errors.New("jobTimeout must be positive")
	}
	if o.QualityThreshold < 0 || o.QualityThreshold > 100 {
		return errors.New("qualityThreshold must be in [0,100]")
	}
	if o.MaxLinksPerPage < 0 {
		return errors.New("maxLinksPerPage must not be negative")
	}
	for _, expr := range o.IncludePaths {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("invalid includePaths pattern %q: %w", expr, err)
		}
	}
	for _, expr := range o.ExcludePaths {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("invalid excludePaths pattern %q: %w", expr, err)
		}
	}
	return nil
}

// Encode serializes the options for storage in the job metadata hash.
func (o JobOptions) Encode() (string, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode job options: %w", err)
	}
	return string(raw), nil
}
