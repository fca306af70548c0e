package detect

import (
	"time"

	"fleetlens/internal/parser"
)

// Issue is a deduplicated group of significant log entries sharing one
// grouping signature. Issues are mutated only while a detection pass is
// merging entries into them; once published in a report they are
// immutable.
type Issue struct {
	Signature       string            `json:"signature"`
	Category        string            `json:"category"`
	Severity        parser.Level      `json:"severity"`
	RootCause       string            `json:"root_cause"`
	Solution        string            `json:"solution"`
	AffectedUsers   []string          `json:"affected_users"`
	OccurrenceCount int               `json:"occurrence_count"`
	SampleEntries   []parser.LogEntry `json:"sample_entries"`
	FirstSeen       *time.Time        `json:"first_seen"`
	LastSeen        *time.Time        `json:"last_seen"`
	// Enriched is set when an LLM replaced the pattern text; issues left
	// on pattern text after an enrichment attempt stay "pattern-only".
	Enriched bool `json:"enriched"`
}

// observe folds one entry into the issue.
func (i *Issue) observe(entry parser.LogEntry, sampleLimit int) {
	i.OccurrenceCount++
	if entry.LevelKnown && entry.Level > i.Severity {
		i.Severity = entry.Level
	}
	if len(i.SampleEntries) < sampleLimit {
		i.SampleEntries = append(i.SampleEntries, entry)
	}
	if entry.Timestamp != nil {
		if i.FirstSeen == nil || entry.Timestamp.Before(*i.FirstSeen) {
			ts := *entry.Timestamp
			i.FirstSeen = &ts
		}
		if i.LastSeen == nil || entry.Timestamp.After(*i.LastSeen) {
			ts := *entry.Timestamp
			i.LastSeen = &ts
		}
	}
}
