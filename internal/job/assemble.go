package job

import (
	"context"
	"sort"
	"strings"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/kv"
)

// Assemble builds the final Markdown document from a job's page records:
// crawled pages meeting the quality threshold, best first, URL order breaking
// score ties so the output is deterministic.
func Assemble(records []*domain.PageRecord, qualityThreshold int) string {
	kept := make([]*domain.PageRecord, 0, len(records))

	for _, record := range records {
		if record.Status == domain.PageStatusCrawled && record.QualityScore >= qualityThreshold {
			kept = append(kept, record)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].QualityScore != kept[j].QualityScore {
			return kept[i].QualityScore > kept[j].QualityScore
		}

		return kept[i].URL < kept[j].URL
	})

	var doc strings.Builder

	for i, record := range kept {
		if i > 0 {
			doc.WriteString("\n\n---\n\n")
		}

		title := record.Title
		if title == "" {
			title = record.URL
		}

		doc.WriteString("## ")
		doc.WriteString(title)
		doc.WriteString("\n\n**Source:** ")
		doc.WriteString(record.URL)
		doc.WriteString("\n\n")
		doc.WriteString(record.Content)
	}

	return doc.String()
}

// assembleResult reads the job's page records, assembles the document, and
// stores it under the result key.
func (s *Service) assembleResult(ctx context.Context, jobID string, qualityThreshold int) error {
	pages, err := s.store.HashGetAll(ctx, kv.PagesKey(jobID))
	if err != nil {
		return err
	}

	records := make([]*domain.PageRecord, 0, len(pages))

	for rawURL, raw := range pages {
		record, err := domain.DecodePage(raw)
		if err != nil {
			s.log.Warn("dropping undecodable page record", "job_id", jobID, "url", rawURL, "error", err)
			continue
		}

		records = append(records, record)
	}

	doc := Assemble(records, qualityThreshold)

	return s.store.ValueSet(ctx, kv.ResultKey(jobID), doc, jobTTL)
}
