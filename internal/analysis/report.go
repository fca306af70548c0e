package analysis

import (
	"encoding/json"
	"time"

	"fleetlens/internal/detect"
	"fleetlens/internal/parser"
	"fleetlens/internal/store"
)

// Totals summarizes what one run processed.
type Totals struct {
	Users   int `json:"users"`
	Systems int `json:"systems"`
	Files   int `json:"files"`
	Entries int `json:"entries"`
}

// AnalysisReport is the published result of one analysis run. A report is
// created once per run and superseded, never mutated, by the next run.
// The counters distinguish "0 issues" from "analysis degraded": a report
// with skips and errors at zero genuinely found nothing.
type AnalysisReport struct {
	ID            string    `json:"id"`
	Root          string    `json:"root"`
	SignatureHash string    `json:"signature_hash"`
	GeneratedAt   time.Time `json:"generated_at"`

	Totals Totals          `json:"totals"`
	Issues []*detect.Issue `json:"issues"`

	SeverityStats map[string]int `json:"severity_stats"`
	CategoryStats map[string]int `json:"category_stats"`

	FilesSkipped       int `json:"files_skipped"`
	ParseErrors        int `json:"parse_errors"`
	RecordsSkipped     int `json:"records_skipped"`
	Anomalies          int `json:"anomalies"`
	EnrichmentFailures int `json:"enrichment_failures"`

	// Stale is set on the served copy when a refresh for this root is in
	// progress; it is never persisted.
	Stale bool `json:"stale,omitempty"`
}

// staleCopy returns a shallow copy flagged stale for serving during a
// refresh.
func (r *AnalysisReport) staleCopy() *AnalysisReport {
	cp := *r
	cp.Stale = true
	return &cp
}

// issueStats recomputes the per-severity and per-category issue counts.
func issueStats(issues []*detect.Issue) (severity, category map[string]int) {
	severity = make(map[string]int)
	category = make(map[string]int)
	for _, issue := range issues {
		severity[issue.Severity.String()]++
		category[issue.Category]++
	}
	return severity, category
}

// toRecord converts a report to its persisted form.
func toRecord(r *AnalysisReport) *store.Report {
	rec := &store.Report{
		ID:                 r.ID,
		Root:               r.Root,
		SignatureHash:      r.SignatureHash,
		GeneratedAt:        r.GeneratedAt,
		UsersProcessed:     r.Totals.Users,
		SystemsProcessed:   r.Totals.Systems,
		FilesProcessed:     r.Totals.Files,
		EntriesParsed:      r.Totals.Entries,
		FilesSkipped:       r.FilesSkipped,
		ParseErrors:        r.ParseErrors,
		RecordsSkipped:     r.RecordsSkipped,
		Anomalies:          r.Anomalies,
		EnrichmentFailures: r.EnrichmentFailures,
		SeverityStats:      marshalJSON(r.SeverityStats),
		CategoryStats:      marshalJSON(r.CategoryStats),
	}
	for rank, issue := range r.Issues {
		rec.Issues = append(rec.Issues, store.ReportIssue{
			ReportID:        r.ID,
			Rank:            rank,
			Signature:       issue.Signature,
			Category:        issue.Category,
			Severity:        int(issue.Severity),
			RootCause:       issue.RootCause,
			Solution:        issue.Solution,
			OccurrenceCount: issue.OccurrenceCount,
			Enriched:        issue.Enriched,
			AffectedUsers:   marshalJSON(issue.AffectedUsers),
			SampleEntries:   marshalJSON(issue.SampleEntries),
			FirstSeen:       issue.FirstSeen,
			LastSeen:        issue.LastSeen,
		})
	}
	return rec
}

// fromRecord rebuilds a report from its persisted form.
func fromRecord(rec *store.Report) *AnalysisReport {
	r := &AnalysisReport{
		ID:            rec.ID,
		Root:          rec.Root,
		SignatureHash: rec.SignatureHash,
		GeneratedAt:   rec.GeneratedAt,
		Totals: Totals{
			Users:   rec.UsersProcessed,
			Systems: rec.SystemsProcessed,
			Files:   rec.FilesProcessed,
			Entries: rec.EntriesParsed,
		},
		FilesSkipped:       rec.FilesSkipped,
		ParseErrors:        rec.ParseErrors,
		RecordsSkipped:     rec.RecordsSkipped,
		Anomalies:          rec.Anomalies,
		EnrichmentFailures: rec.EnrichmentFailures,
	}
	unmarshalJSON(rec.SeverityStats, &r.SeverityStats)
	unmarshalJSON(rec.CategoryStats, &r.CategoryStats)
	for _, row := range rec.Issues {
		issue := &detect.Issue{
			Signature:       row.Signature,
			Category:        row.Category,
			Severity:        parser.Level(row.Severity),
			RootCause:       row.RootCause,
			Solution:        row.Solution,
			OccurrenceCount: row.OccurrenceCount,
			Enriched:        row.Enriched,
			FirstSeen:       row.FirstSeen,
			LastSeen:        row.LastSeen,
		}
		unmarshalJSON(row.AffectedUsers, &issue.AffectedUsers)
		unmarshalJSON(row.SampleEntries, &issue.SampleEntries)
		r.Issues = append(r.Issues, issue)
	}
	return r
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalJSON[T any](s string, dst *T) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), dst)
}
