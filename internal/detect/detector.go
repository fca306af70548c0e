package detect

import (
	"fmt"
	"sort"

	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
)

const (
	defaultSampleLimit = 5

	unclassifiedRootCause = "Unclassified recurring event; no known pattern matched."
	unclassifiedSolution  = "Review the sample messages; recurring unclassified events usually deserve a new catalog pattern."
)

// Detector turns the complete entry set of one analysis run into a small
// list of severity-ranked, deduplicated issues.
type Detector struct {
	logger      *pterm.Logger
	catalog     *Catalog
	sampleLimit int
}

// Result is the outcome of one detection pass.
type Result struct {
	Issues []*Issue
	// Significant counts the entries that were issue candidates.
	Significant int
	// Anomalies counts malformed entries (missing level or timestamp);
	// they are still grouped, never silently dropped.
	Anomalies int
}

// NewDetector creates a detector over the given catalog. A nil catalog
// selects the compiled-in default; sampleLimit <= 0 selects the default
// bound on sample entries per issue.
func NewDetector(logger *pterm.Logger, catalog *Catalog, sampleLimit int) *Detector {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}
	return &Detector{logger: logger, catalog: catalog, sampleLimit: sampleLimit}
}

// Detect groups significant entries into issues. The pass is a pure
// function of its input: identical entry sets yield identical issues in
// identical order.
func (d *Detector) Detect(entries []parser.LogEntry) Result {
	res := Result{}
	groups := make(map[string]*Issue)
	users := make(map[string]map[string]struct{})

	for _, entry := range entries {
		if entry.Timestamp == nil || !entry.LevelKnown {
			res.Anomalies++
		}
		if !d.significant(entry) {
			continue
		}
		res.Significant++

		signature, category, pat := d.classify(entry)
		issue, ok := groups[signature]
		if !ok {
			issue = &Issue{
				Signature: signature,
				Category:  category,
				Severity:  parser.LevelWarning,
			}
			if pat != nil {
				issue.RootCause = pat.RootCause
				issue.Solution = pat.Solution
				if pat.severity > issue.Severity {
					issue.Severity = pat.severity
				}
			} else {
				issue.RootCause = unclassifiedRootCause
				issue.Solution = unclassifiedSolution
			}
			groups[signature] = issue
			users[signature] = make(map[string]struct{})
		}
		issue.observe(entry, d.sampleLimit)
		if entry.UserID != "" {
			users[signature][entry.UserID] = struct{}{}
		}
	}

	res.Issues = make([]*Issue, 0, len(groups))
	for signature, issue := range groups {
		issue.AffectedUsers = sortedKeys(users[signature])
		res.Issues = append(res.Issues, issue)
	}

	// Deterministic output order: severity desc, occurrences desc,
	// signature asc as the tie-break.
	sort.Slice(res.Issues, func(i, j int) bool {
		a, b := res.Issues[i], res.Issues[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.OccurrenceCount != b.OccurrenceCount {
			return a.OccurrenceCount > b.OccurrenceCount
		}
		return a.Signature < b.Signature
	})

	d.logger.Debug("Issue detection completed",
		d.logger.Args(
			"entries", len(entries),
			"significant", res.Significant,
			"issues", len(res.Issues),
			"anomalies", res.Anomalies,
		))
	return res
}

// significant reports whether the entry is an issue candidate.
// Warning and above qualify; entries whose source carried no recognizable
// level also qualify so that malformed-but-recurring problems still
// surface through the source+event_id fallback grouping.
func (d *Detector) significant(entry parser.LogEntry) bool {
	if !entry.LevelKnown {
		return true
	}
	return entry.Level >= parser.LevelWarning
}

// classify derives the grouping signature: first-match-wins over the
// pattern catalog; entries no pattern claims group by (source, event_id)
// so unknown-but-recurring problems still form one issue.
func (d *Detector) classify(entry parser.LogEntry) (signature, category string, pat *compiledPattern) {
	if p, ok := d.catalog.match(entry); ok {
		return "pattern:" + p.Name, p.Category, p
	}
	id := "-"
	if entry.EventID != nil {
		id = fmt.Sprintf("%d", *entry.EventID)
	}
	return fmt.Sprintf("source:%s#%s", entry.Source, id), "Uncategorized", nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
