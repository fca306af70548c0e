package detect

import (
	"reflect"
	"testing"
	"time"

	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
)

func testLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelFatal)
}

func ts(minute int) *time.Time {
	t := time.Date(2026, 1, 1, 10, minute, 0, 0, time.UTC)
	return &t
}

func intp(n int) *int { return &n }

func entry(level parser.Level, source string, eventID *int, minute int, message string) parser.LogEntry {
	return parser.LogEntry{
		Level:      level,
		LevelKnown: true,
		Source:     source,
		EventID:    eventID,
		Timestamp:  ts(minute),
		Message:    message,
		UserID:     "alice",
	}
}

func TestDetector_GroupsBySourceAndEventID(t *testing.T) {
	// Three identical network errors and one disk warning yield exactly
	// two issues, network first.
	entries := []parser.LogEntry{
		entry(parser.LevelError, "Net", intp(42), 0, "link down"),
		entry(parser.LevelError, "Net", intp(42), 1, "link down"),
		entry(parser.LevelError, "Net", intp(42), 2, "link down"),
		entry(parser.LevelWarning, "Disk", intp(7), 3, "slow io"),
	}

	// Empty catalog forces the source+event_id fallback grouping.
	catalog, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	d := NewDetector(testLogger(), catalog, 0)
	res := d.Detect(entries)

	if len(res.Issues) != 2 {
		t.Fatalf("Expected 2 issues, got %d", len(res.Issues))
	}
	if res.Significant != 4 {
		t.Errorf("Expected 4 significant entries, got %d", res.Significant)
	}

	net := res.Issues[0]
	if net.Signature != "source:Net#42" {
		t.Errorf("Expected network issue first, got %q", net.Signature)
	}
	if net.OccurrenceCount != 3 {
		t.Errorf("Expected occurrence count 3, got %d", net.OccurrenceCount)
	}
	if net.Severity != parser.LevelError {
		t.Errorf("Expected Error severity, got %v", net.Severity)
	}
	if net.FirstSeen == nil || !net.FirstSeen.Equal(*ts(0)) {
		t.Errorf("Unexpected FirstSeen: %v", net.FirstSeen)
	}
	if net.LastSeen == nil || !net.LastSeen.Equal(*ts(2)) {
		t.Errorf("Unexpected LastSeen: %v", net.LastSeen)
	}
	if net.RootCause == "" || net.Solution == "" {
		t.Error("Fallback issues must carry unclassified root cause and solution text")
	}

	disk := res.Issues[1]
	if disk.Signature != "source:Disk#7" {
		t.Errorf("Expected disk issue second, got %q", disk.Signature)
	}
	if !reflect.DeepEqual(disk.AffectedUsers, []string{"alice"}) {
		t.Errorf("Unexpected affected users: %v", disk.AffectedUsers)
	}
}

func TestDetector_IgnoresInformationalEntries(t *testing.T) {
	entries := []parser.LogEntry{
		entry(parser.LevelInformation, "Svc", nil, 0, "started"),
		entry(parser.LevelVerbose, "Svc", nil, 1, "heartbeat"),
	}
	d := NewDetector(testLogger(), nil, 0)
	res := d.Detect(entries)
	if len(res.Issues) != 0 {
		t.Fatalf("Expected 0 issues for informational entries, got %d", len(res.Issues))
	}
	if res.Significant != 0 {
		t.Errorf("Expected 0 significant entries, got %d", res.Significant)
	}
}

func TestDetector_MalformedEntriesStillGrouped(t *testing.T) {
	// No level, no timestamp. The entry counts as an anomaly AND still
	// groups into an issue.
	malformed := parser.LogEntry{Source: "Mystery", Message: "???", UserID: "bob"}
	d := NewDetector(testLogger(), nil, 0)
	res := d.Detect([]parser.LogEntry{malformed, malformed})

	if res.Anomalies != 2 {
		t.Errorf("Expected 2 anomalies, got %d", res.Anomalies)
	}
	if len(res.Issues) != 1 {
		t.Fatalf("Expected malformed entries to form 1 issue, got %d", len(res.Issues))
	}
	issue := res.Issues[0]
	if issue.Signature != "source:Mystery#-" {
		t.Errorf("Unexpected signature: %q", issue.Signature)
	}
	if issue.FirstSeen != nil || issue.LastSeen != nil {
		t.Error("Expected nil first/last seen without timestamps")
	}
}

func TestDetector_CatalogPatternWins(t *testing.T) {
	catalog, err := Compile([]Pattern{
		{
			Name:      "disk-failure",
			Match:     MatchSpec{Keywords: []string{"bad block"}},
			Category:  "Storage",
			Severity:  "Critical",
			RootCause: "The drive is reporting unreadable sectors.",
			Solution:  "Back up immediately and replace the drive.",
		},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	entries := []parser.LogEntry{
		entry(parser.LevelWarning, "Disk", intp(7), 0, "Bad Block detected on sda"),
		entry(parser.LevelWarning, "Disk", intp(7), 1, "unrelated warning"),
	}
	d := NewDetector(testLogger(), catalog, 0)
	res := d.Detect(entries)

	if len(res.Issues) != 2 {
		t.Fatalf("Expected pattern and fallback issues, got %d", len(res.Issues))
	}
	patIssue := res.Issues[0]
	if patIssue.Signature != "pattern:disk-failure" {
		t.Fatalf("Expected pattern issue ranked first, got %q", patIssue.Signature)
	}
	if patIssue.Category != "Storage" {
		t.Errorf("Expected pattern category, got %q", patIssue.Category)
	}
	if patIssue.Severity != parser.LevelCritical {
		t.Errorf("Expected pattern severity floor Critical, got %v", patIssue.Severity)
	}
	if patIssue.RootCause != "The drive is reporting unreadable sectors." {
		t.Errorf("Expected pattern root cause, got %q", patIssue.RootCause)
	}
}

func TestDetector_SampleLimit(t *testing.T) {
	var entries []parser.LogEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(parser.LevelError, "Net", intp(42), i, "link down"))
	}
	d := NewDetector(testLogger(), mustEmptyCatalog(t), 3)
	res := d.Detect(entries)
	if len(res.Issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(res.Issues))
	}
	if len(res.Issues[0].SampleEntries) != 3 {
		t.Errorf("Expected 3 samples, got %d", len(res.Issues[0].SampleEntries))
	}
	if res.Issues[0].OccurrenceCount != 10 {
		t.Errorf("Expected full occurrence count 10, got %d", res.Issues[0].OccurrenceCount)
	}
}

func TestDetector_Deterministic(t *testing.T) {
	entries := []parser.LogEntry{
		entry(parser.LevelError, "B", intp(1), 0, "x"),
		entry(parser.LevelError, "A", intp(1), 1, "x"),
		entry(parser.LevelWarning, "C", nil, 2, "x"),
		entry(parser.LevelError, "A", intp(1), 3, "x"),
	}
	d := NewDetector(testLogger(), mustEmptyCatalog(t), 0)

	first := d.Detect(entries)
	for run := 0; run < 5; run++ {
		again := d.Detect(entries)
		if len(again.Issues) != len(first.Issues) {
			t.Fatalf("Issue count changed between runs")
		}
		for i := range first.Issues {
			if again.Issues[i].Signature != first.Issues[i].Signature {
				t.Fatalf("Issue order changed: run %d pos %d: %q vs %q",
					run, i, again.Issues[i].Signature, first.Issues[i].Signature)
			}
		}
	}

	// Same severity: count desc, then signature asc.
	want := []string{"source:A#1", "source:B#1", "source:C#-"}
	for i, sig := range want {
		if first.Issues[i].Signature != sig {
			t.Errorf("Position %d: expected %q, got %q", i, sig, first.Issues[i].Signature)
		}
	}
}

func TestDefaultCatalog_MatchesKnownEvents(t *testing.T) {
	d := NewDetector(testLogger(), nil, 0)

	shutdown := parser.LogEntry{
		Level: parser.LevelError, LevelKnown: true,
		Source: "EventLog", EventID: intp(6008),
		Timestamp: ts(0), Message: "The previous system shutdown was unexpected.",
	}
	res := d.Detect([]parser.LogEntry{shutdown})
	if len(res.Issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(res.Issues))
	}
	if res.Issues[0].Signature != "pattern:unexpected-shutdown" {
		t.Errorf("Expected unexpected-shutdown pattern, got %q", res.Issues[0].Signature)
	}
}

func TestCompile_RejectsBadPatterns(t *testing.T) {
	if _, err := Compile([]Pattern{{Name: "bad", Match: MatchSpec{Regex: "("}}}); err == nil {
		t.Error("Expected error for invalid regex")
	}
	if _, err := Compile([]Pattern{{Match: MatchSpec{Regex: "x"}}}); err == nil {
		t.Error("Expected error for missing name")
	}
	if _, err := Compile([]Pattern{{Name: "empty"}}); err == nil {
		t.Error("Expected error for empty matcher")
	}
}

func mustEmptyCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return c
}
