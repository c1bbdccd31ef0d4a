package kv

import "fmt"

// Key builders for the crawl keyspace. All per-job keys embed the job id so
// that a purge can enumerate and delete them.

// JobMetaKey is the hash holding job metadata and totals.
func JobMetaKey(jobID string) string {
	return fmt.Sprintf("job:%s:meta", jobID)
}

// FrontierKey is the FIFO list of pending URL entries.
func FrontierKey(jobID string) string {
	return fmt.Sprintf("frontier:%s", jobID)
}

// VisitedKey is the set of normalized URL permutations already seen.
func VisitedKey(jobID string) string {
	return fmt.Sprintf("visited:%s", jobID)
}

// WorkersKey is the active worker counter.
func WorkersKey(jobID string) string {
	return fmt.Sprintf("workers:%s", jobID)
}

// EventsKey is the append-only event stream.
func EventsKey(jobID string) string {
	return fmt.Sprintf("events:%s", jobID)
}

// CompletingKey is the completion lock set.
func CompletingKey(jobID string) string {
	return fmt.Sprintf("completing:%s", jobID)
}

// PagesKey is the hash of page records keyed by normalized URL.
func PagesKey(jobID string) string {
	return fmt.Sprintf("pages:%s", jobID)
}

// ClaimKey is the set of URLs claimed for fetching.
func ClaimKey(jobID string) string {
	return fmt.Sprintf("fetching:%s", jobID)
}

// ResultKey is the assembled Markdown document.
func ResultKey(jobID string) string {
	return fmt.Sprintf("result:%s", jobID)
}

// ActiveJobsKey is the set of jobs not yet terminal.
const ActiveJobsKey = "jobs:active"

// SitemapKey caches discovered sitemap URLs per host.
func SitemapKey(host string) string {
	return fmt.Sprintf("sitemap:%s:urls", host)
}

// RobotsKey caches the robots.txt body per host.
func RobotsKey(host string) string {
	return fmt.Sprintf("robots:%s", host)
}

// JobKeys returns every per-job key for purge.
func JobKeys(jobID string) []string {
	return []string{
		JobMetaKey(jobID),
		FrontierKey(jobID),
		VisitedKey(jobID),
		WorkersKey(jobID),
		EventsKey(jobID),
		CompletingKey(jobID),
		PagesKey(jobID),
		ClaimKey(jobID),
		ResultKey(jobID),
	}
}
